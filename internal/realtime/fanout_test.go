package realtime

import (
	"context"
	"errors"
	"testing"

	"cafe_pos_backend/internal/models"

	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	kinds []models.EventKind
	err   error
}

func (r *recordingNotifier) Notify(ctx context.Context, event models.Event) error {
	r.kinds = append(r.kinds, event.Kind())
	return r.err
}

func TestFanout_DeliversToAllEvenWhenOneFails(t *testing.T) {
	broken := &recordingNotifier{err: errors.New("broker down")}
	healthy := &recordingNotifier{}

	err := Fanout{broken, nil, healthy}.Notify(context.Background(), models.OrderUpdatedEvent{})
	require.ErrorContains(t, err, "broker down")
	require.Equal(t, []models.EventKind{models.EventOrderUpdated}, broken.kinds)
	require.Equal(t, []models.EventKind{models.EventOrderUpdated}, healthy.kinds)

	require.NoError(t, Fanout{healthy}.Notify(context.Background(), models.StockUpdatedEvent{}))
}
