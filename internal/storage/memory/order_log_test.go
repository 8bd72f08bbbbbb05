package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/storage"
)

func receive(t *testing.T, ch <-chan *storage.OrderDelivery) *storage.OrderDelivery {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "feed closed unexpectedly")
		return d
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
		return nil
	}
}

func TestOrderLog_SubscribeDeliversBacklogAndLive(t *testing.T) {
	log := NewOrderLog()
	log.Append(&domain.OrderEvent{OrderID: "ORD-1"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := log.Subscribe(ctx)
	require.NoError(t, err)

	d := receive(t, ch)
	assert.Equal(t, "ORD-1", d.Event.OrderID)
	require.NoError(t, d.Ack(ctx))

	log.Append(&domain.OrderEvent{OrderID: "ORD-2"})
	d = receive(t, ch)
	assert.Equal(t, "ORD-2", d.Event.OrderID)
	assert.Equal(t, 1, log.Acked())
}

func TestOrderLog_ResubscribeRedeliversUnacked(t *testing.T) {
	log := NewOrderLog()
	log.Append(&domain.OrderEvent{OrderID: "ORD-1"})
	log.Append(&domain.OrderEvent{OrderID: "ORD-2"})

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := log.Subscribe(ctx)
	require.NoError(t, err)

	d := receive(t, ch)
	require.NoError(t, d.Ack(ctx))
	_ = receive(t, ch) // ORD-2 delivered but not acknowledged
	cancel()

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	ch2, err := log.Subscribe(ctx2)
	require.NoError(t, err)

	d = receive(t, ch2)
	assert.Equal(t, "ORD-2", d.Event.OrderID)
}

func TestOrderLog_SubscribeClosesOnCancel(t *testing.T) {
	log := NewOrderLog()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := log.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("feed not closed after cancel")
	}
}

func TestOrderLog_ListSince(t *testing.T) {
	log := NewOrderLog()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	log.Append(&domain.OrderEvent{OrderID: "late", CreatedAt: base.Add(2 * time.Hour)})
	log.Append(&domain.OrderEvent{OrderID: "old", CreatedAt: base.Add(-time.Hour)})
	log.Append(&domain.OrderEvent{OrderID: "early", CreatedAt: base})

	var seen []string
	err := log.ListSince(context.Background(), base, func(e *domain.OrderEvent) error {
		seen = append(seen, e.OrderID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, seen)
}
