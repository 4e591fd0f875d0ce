package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cafe_pos_backend/internal/models"
	"cafe_pos_backend/pkg/utils"
)

// Notifier receives committed events for realtime delivery.
type Notifier interface {
	Notify(ctx context.Context, event models.Event) error
}

const defaultNotifyTimeout = 5 * time.Second

// Dispatcher hands events to the Notifier in the background. Callers never
// wait on delivery and delivery errors are only logged.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. A nil notifier drops every event.
func NewDispatcher(notifier Notifier, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &Dispatcher{notifier: notifier, timeout: timeout}
}

// Dispatch delivers events in order on a separate goroutine.
func (d *Dispatcher) Dispatch(events ...models.Event) {
	if d == nil || d.notifier == nil || len(events) == 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				utils.LogError(fmt.Errorf("panic: %v", r), "Notifier panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		for _, event := range events {
			if err := d.notifier.Notify(ctx, event); err != nil {
				utils.LogWarn(err, "Failed to deliver event", map[string]interface{}{"event": string(event.Kind())})
			}
		}
	}()
}

// Wait blocks until every dispatched batch has been handed over.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
