package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/storage"
)

// OrderLog is an append-only in-memory order collection.
// It implements both storage.OrderFeed and storage.OrderSource.
type OrderLog struct {
	mu      sync.Mutex
	orders  []*domain.OrderEvent
	acked   int           // number of leading orders acknowledged
	appends chan struct{} // closed and replaced on every append
}

// NewOrderLog creates an empty order log.
func NewOrderLog() *OrderLog {
	return &OrderLog{
		appends: make(chan struct{}),
	}
}

// Append inserts an order and wakes subscribers.
func (l *OrderLog) Append(e *domain.OrderEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.orders = append(l.orders, copyOrder(e))
	close(l.appends)
	l.appends = make(chan struct{})
}

// Acked returns the number of acknowledged orders.
func (l *OrderLog) Acked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acked
}

// Subscribe delivers orders starting after the last acknowledged one.
func (l *OrderLog) Subscribe(ctx context.Context) (<-chan *storage.OrderDelivery, error) {
	out := make(chan *storage.OrderDelivery)

	l.mu.Lock()
	pos := l.acked
	l.mu.Unlock()

	go func() {
		defer close(out)
		for {
			l.mu.Lock()
			if pos >= len(l.orders) {
				wake := l.appends
				l.mu.Unlock()
				select {
				case <-wake:
					continue
				case <-ctx.Done():
					return
				}
			}
			e := copyOrder(l.orders[pos])
			l.mu.Unlock()

			next := pos + 1
			d := &storage.OrderDelivery{
				Event: e,
				Ack: func(context.Context) error {
					l.ack(next)
					return nil
				},
			}

			select {
			case out <- d:
				pos = next
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// ListSince calls fn for every order created at or after since, oldest first.
func (l *OrderLog) ListSince(ctx context.Context, since time.Time, fn func(*domain.OrderEvent) error) error {
	l.mu.Lock()
	var matched []*domain.OrderEvent
	for _, e := range l.orders {
		if !e.CreatedAt.Before(since) {
			matched = append(matched, copyOrder(e))
		}
	}
	l.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	for _, e := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (l *OrderLog) ack(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > l.acked {
		l.acked = n
	}
}

func copyOrder(e *domain.OrderEvent) *domain.OrderEvent {
	out := *e
	out.Items = make([]domain.LineItem, len(e.Items))
	copy(out.Items, e.Items)
	return &out
}

var (
	_ storage.OrderFeed   = (*OrderLog)(nil)
	_ storage.OrderSource = (*OrderLog)(nil)
)
