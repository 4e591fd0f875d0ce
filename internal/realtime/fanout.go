package realtime

import (
	"context"
	"errors"

	"cafe_pos_backend/internal/models"
	"cafe_pos_backend/internal/services"
)

var (
	_ services.Notifier = (*Hub)(nil)
	_ services.Notifier = (*Publisher)(nil)
	_ services.Notifier = Fanout(nil)
)

// Fanout delivers every event to each notifier in turn. A failing notifier
// does not stop the others.
type Fanout []services.Notifier

func (f Fanout) Notify(ctx context.Context, event models.Event) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
