package ledger

import (
	"fmt"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// SubscribeMarket registers a market on the relay watch-list under its own
// (watchedContract, eventTopic) pair. Subscribing is purely additive and
// carries no fund risk, so it is open to any caller by default; deployments
// that want to restrict it to the creator or relay operator gate it at the
// transport layer. A market subscribes at most once and never unsubscribes.
func (l *Ledger) SubscribeMarket(marketID uint64) error {
	l.mu.Lock()

	m, err := l.marketLocked(marketID)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("subscribe: %w", err)
	}
	if l.subscribed[marketID] {
		l.mu.Unlock()
		return fmt.Errorf("subscribe: market %d: %w", marketID, domain.ErrAlreadySubscribed)
	}

	key := domain.EventKey{Contract: m.WatchedContract, Topic: m.EventTopic}
	l.subs[key] = append(l.subs[key], marketID)
	l.subscribed[marketID] = true

	watched, topic := m.WatchedContract, m.EventTopic
	l.mu.Unlock()

	l.emit(marketID, domain.MarketSubscribedEvent{
		MarketID:        marketID,
		WatchedContract: watched,
		EventTopic:      topic,
	})

	return nil
}

// Subscriptions returns the distinct (contract, topic) pairs currently
// registered: the relay's watch-list.
func (l *Ledger) Subscriptions() []domain.EventKey {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.EventKey, 0, len(l.subs))
	for key := range l.subs {
		out = append(out, key)
	}
	return out
}

// SubscriptionsDetailed returns each registered pair with the market ids
// listening on it.
func (l *Ledger) SubscriptionsDetailed() []domain.Subscription {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Subscription, 0, len(l.subs))
	for key, ids := range l.subs {
		out = append(out, domain.Subscription{
			Key:       key,
			MarketIDs: append([]uint64(nil), ids...),
		})
	}
	return out
}
