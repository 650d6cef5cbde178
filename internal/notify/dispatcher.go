package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Dispatcher fans a status change out to all configured channels.
type Dispatcher struct {
	channels []Channel
}

// NewDispatcher creates a dispatcher for channels.
func NewDispatcher(channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels}
}

// NotifyStatusChange sends change to every channel concurrently and waits
// for all of them, since a check process exits right afterwards. Changes
// that are not worth reporting are dropped.
func (d *Dispatcher) NotifyStatusChange(ctx context.Context, change *StatusChange) error {
	if !change.Changed() || len(d.channels) == 0 {
		return nil
	}
	msg := FormatStatusChange(change)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, ch := range d.channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			if err := ch.Send(ctx, msg); err != nil {
				slog.Error("notification send failed", "channel_type", ch.Type(), "check", change.CheckName, "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			slog.Debug("notification sent", "channel_type", ch.Type(), "check", change.CheckName, "status", change.NewStatus)
		}(ch)
	}
	wg.Wait()

	return errors.Join(errs...)
}
