package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// MarkerStore claims event markers for a window of time.
type MarkerStore interface {
	InsertDedupMarker(ctx context.Context, key string, ttl time.Duration) (bool, error)
	PurgeExpiredDedupMarkers(ctx context.Context) error
}

// Gate admits each webhook event at most once per window. Providers redeliver
// webhooks on slow responses, so intake runs every event through the gate
// before any processing.
type Gate struct {
	store  MarkerStore
	ttl    time.Duration
	logger *logrus.Logger
}

func NewGate(store MarkerStore, ttl time.Duration, logger *logrus.Logger) *Gate {
	return &Gate{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// Admit reports whether an event should be processed. The first call for a
// given (channel, event) pair within the window wins; repeats are rejected.
// Storage failures admit the event: a duplicate delivery is cheaper than a
// lost message.
func (g *Gate) Admit(ctx context.Context, channelTag, eventID string) bool {
	if eventID == "" {
		return true
	}

	key := fmt.Sprintf("%s_event_%s", channelTag, eventID)

	claimed, err := g.store.InsertDedupMarker(ctx, key, g.ttl)
	if err != nil {
		g.logger.WithFields(logrus.Fields{
			"channel": channelTag,
			"error":   err,
		}).Warn("Dedup marker store unavailable, admitting event")
		return true
	}

	if !claimed {
		g.logger.WithFields(logrus.Fields{
			"channel": channelTag,
		}).Debug("Duplicate event rejected")
	}

	return claimed
}

// Purge drops expired markers. Called periodically by the cleanup scheduler.
func (g *Gate) Purge(ctx context.Context) error {
	return g.store.PurgeExpiredDedupMarkers(ctx)
}
