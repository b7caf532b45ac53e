package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tilequest/missionengine/internal/mission"
	"github.com/tilequest/missionengine/pkg/core"
)

// Ledger tracks item tokens that already counted toward progress.
type Ledger interface {
	Contributed(token core.ItemToken) bool
	Mark(token core.ItemToken)
}

// Broadcaster routes gameplay events to the active missions of one scope.
type Broadcaster struct {
	scope  string
	logger *slog.Logger

	mu   sync.Mutex
	subs []*mission.Mission

	// OTEL metrics
	delivered metric.Int64Counter
	deduped   metric.Int64Counter
	failures  metric.Int64Counter
}

// New creates a Broadcaster for the named scope ("world" or a participant id).
// Uses the global OTel meter for metrics (no-op if not configured).
func New(scope string, logger *slog.Logger) (*Broadcaster, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broadcaster{
		scope:  scope,
		logger: logger,
	}

	m := meter()
	var err error

	b.delivered, err = m.Int64Counter(
		"missions.events.delivered",
		metric.WithDescription("Events that changed mission progress"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating delivered counter: %w", err)
	}

	b.deduped, err = m.Int64Counter(
		"missions.events.deduplicated",
		metric.WithDescription("Passive item events ignored because the item already counted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating deduplicated counter: %w", err)
	}

	b.failures, err = m.Int64Counter(
		"missions.events.failed",
		metric.WithDescription("Event deliveries that panicked"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failure counter: %w", err)
	}

	return b, nil
}

// Subscribe adds m to the delivery list. Subscribing twice is a no-op.
func (b *Broadcaster) Subscribe(m *mission.Mission) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if slices.Contains(b.subs, m) {
		return
	}
	b.subs = append(b.subs, m)
}

// Unsubscribe removes m from the delivery list.
func (b *Broadcaster) Unsubscribe(m *mission.Mission) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = slices.DeleteFunc(b.subs, func(s *mission.Mission) bool { return s == m })
}

// Subscribers returns the delivery list in subscription order.
func (b *Broadcaster) Subscribers() []*mission.Mission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.subs)
}

// Len returns the number of subscribed missions.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Clear drops every subscription.
func (b *Broadcaster) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}

// Broadcast delivers ev to every active subscriber and returns how many
// missions changed. Passive item events consult ledger so that one item
// token counts at most once, across all missions.
func (b *Broadcaster) Broadcast(ev core.Event, ledger Ledger) int {
	changed := 0
	for _, m := range b.Subscribers() {
		if !m.IsActive() {
			continue
		}
		ok, stop := b.deliver(m, ev, ledger)
		if ok {
			changed++
		}
		if stop {
			break
		}
	}
	return changed
}

// DeliverTo delivers ev to a single mission, applying the same de-duplication.
func (b *Broadcaster) DeliverTo(m *mission.Mission, ev core.Event, ledger Ledger) bool {
	ok, _ := b.deliver(m, ev, ledger)
	return ok
}

func (b *Broadcaster) deliver(m *mission.Mission, ev core.Event, ledger Ledger) (changed, stop bool) {
	token, passive := passiveToken(ev)
	if passive && ledger != nil && ledger.Contributed(token) {
		b.deduped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("scope", b.scope)))
		return false, true
	}

	changed = b.handle(m, ev)
	if changed {
		b.delivered.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("scope", b.scope),
			attribute.String("kind", string(ev.Kind())),
		))
		if passive && ledger != nil {
			ledger.Mark(token)
		}
	}
	return changed, false
}

func (b *Broadcaster) handle(m *mission.Mission, ev core.Event) (changed bool) {
	defer func() {
		if r := recover(); r != nil {
			b.failures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("scope", b.scope)))
			b.logger.Error("mission event handler panicked",
				"scope", b.scope,
				"mission", m.ID,
				"participant", ev.Source(),
				"kind", ev.Kind(),
				"panic", r)
			changed = false
		}
	}()
	return m.HandleEvent(ev)
}

func passiveToken(ev core.Event) (core.ItemToken, bool) {
	ia, ok := ev.(core.ItemAcquired)
	if !ok || !ia.Passive || ia.Token == "" {
		return "", false
	}
	return ia.Token, true
}
