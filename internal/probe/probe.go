package probe

import "strings"

// Status represents the outcome of a probe execution.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// Rank orders statuses from best to worst: ok < warning < critical < unknown.
// Unrecognized values rank with unknown.
func (s Status) Rank() int {
	switch s {
	case StatusOK:
		return 0
	case StatusWarning:
		return 1
	case StatusCritical:
		return 2
	default:
		return 3
	}
}

// Compare returns -1, 0 or 1 depending on whether s ranks below, equal to or
// above other.
func (s Status) Compare(other Status) int {
	a, b := s.Rank(), other.Rank()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ExitCode is the monitoring-plugin process exit code for the status.
func (s Status) ExitCode() int {
	return s.Rank()
}

// Label is the upper-case form used on plugin output lines.
func (s Status) Label() string {
	if s.Rank() == 3 {
		return strings.ToUpper(string(StatusUnknown))
	}
	return strings.ToUpper(string(s))
}

// Result is the standard output format for probes.
type Result struct {
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Metrics map[string]any `json:"metrics,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Description is the self-description format for probes.
type Description struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Version     string    `json:"version"`
	Subcommand  string    `json:"subcommand,omitempty"`
	Arguments   Arguments `json:"arguments"`
}

// Arguments describes required and optional probe arguments.
type Arguments struct {
	Required map[string]ArgumentSpec `json:"required,omitempty"`
	Optional map[string]ArgumentSpec `json:"optional,omitempty"`
}

// ArgumentSpec describes a single argument.
type ArgumentSpec struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}
