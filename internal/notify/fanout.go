package notify

import (
	"context"
	"errors"

	"arena/internal/arena"
)

// Fanout delivers each notification to every sink. A failing sink does not
// stop the others.
type Fanout []arena.Notifier

func (f Fanout) Notify(ctx context.Context, n arena.Notification) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
