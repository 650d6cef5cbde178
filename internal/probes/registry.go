// Package probes provides the built-in probe registry.
package probes

import (
	"github.com/jandubois/multiping/internal/probe"
	"github.com/jandubois/multiping/internal/probes/multiping"
)

// GetAllDescriptions returns descriptions of all built-in probes.
func GetAllDescriptions() []probe.Description {
	return []probe.Description{
		multiping.GetDescription(),
	}
}
