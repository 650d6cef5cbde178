// Package notify sends alerts when a check changes status.
package notify

import (
	"context"
	"fmt"

	"github.com/jandubois/multiping/internal/probe"
)

// Channel is a notification channel.
type Channel interface {
	Send(ctx context.Context, msg *Message) error
	Type() string
}

// Message contains notification details.
type Message struct {
	Title    string
	Body     string
	Priority Priority
	Tags     []string
}

// Priority levels for notifications.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// StatusChange is a status transition between two runs of the same check.
type StatusChange struct {
	CheckName string
	OldStatus probe.Status // empty for the first run
	NewStatus probe.Status
	Message   string
}

// Changed reports whether the transition is worth notifying about. The
// first run of a check only notifies when it is not OK.
func (c *StatusChange) Changed() bool {
	if c.OldStatus == "" {
		return c.NewStatus != probe.StatusOK
	}
	return c.OldStatus != c.NewStatus
}

// FormatStatusChange creates a notification message for a status change.
func FormatStatusChange(change *StatusChange) *Message {
	priority := PriorityNormal
	switch change.NewStatus {
	case probe.StatusCritical:
		priority = PriorityUrgent
	case probe.StatusWarning, probe.StatusUnknown:
		priority = PriorityHigh
	}

	title := fmt.Sprintf("[%s] %s", change.NewStatus.Label(), change.CheckName)
	body := change.Message
	if change.OldStatus != "" {
		body = fmt.Sprintf("%s → %s: %s", change.OldStatus.Label(), change.NewStatus.Label(), change.Message)
	}

	tags := []string{string(change.NewStatus)}
	if change.OldStatus != "" && change.NewStatus == probe.StatusOK {
		tags = append(tags, "recovery")
	}

	return &Message{
		Title:    title,
		Body:     body,
		Priority: priority,
		Tags:     tags,
	}
}
