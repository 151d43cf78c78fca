package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"wabridge/internal/models"
	"wabridge/pkg/telegram"

	"github.com/sirupsen/logrus"
)

// TopicManager owns the binding between customers and team-side forum
// topics. Topics are provisioned lazily on the first delivery and rebuilt on
// demand when the team deletes one.
type TopicManager struct {
	store    Store
	team     TeamClient
	settings func() TeamSettings
	logger   *logrus.Logger

	// Serializes topic creation per customer so concurrent deliveries for
	// the same customer do not open duplicate threads. Entries are dropped
	// once the binding exists, the map only holds customers mid-creation.
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewTopicManager(store Store, team TeamClient, settings func() TeamSettings, logger *logrus.Logger) *TopicManager {
	return &TopicManager{
		store:    store,
		team:     team,
		settings: settings,
		logger:   logger,
		locks:    make(map[int64]*sync.Mutex),
	}
}

func (tm *TopicManager) customerLock(customerID int64) *sync.Mutex {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	lock, ok := tm.locks[customerID]
	if !ok {
		lock = &sync.Mutex{}
		tm.locks[customerID] = lock
	}
	return lock
}

// releaseLock drops a customer's creation lock. Safe while the lock is still
// held: waiters holding the old pointer proceed and find the binding, later
// callers get a fresh lock. Only the lock's own entry is removed, a stale
// pointer never evicts a newer one.
func (tm *TopicManager) releaseLock(customerID int64, lock *sync.Mutex) {
	tm.mu.Lock()
	if tm.locks[customerID] == lock {
		delete(tm.locks, customerID)
	}
	tm.mu.Unlock()
}

// EnsureTopic returns the customer's topic ID, creating the thread when the
// customer has none. The thread is named after the customer's bare address
// so the team can tell at a glance who a thread belongs to; masking stays a
// logging concern.
func (tm *TopicManager) EnsureTopic(ctx context.Context, customerID int64) (int64, error) {
	lock := tm.customerLock(customerID)
	lock.Lock()
	defer lock.Unlock()

	customer, err := tm.store.GetCustomerByID(ctx, customerID)
	if err != nil {
		return 0, fmt.Errorf("failed to load customer: %w", err)
	}
	if customer == nil {
		return 0, fmt.Errorf("customer %d not found", customerID)
	}
	if customer.HasTopic() {
		tm.releaseLock(customerID, lock)
		return customer.TopicID, nil
	}

	s := tm.settings()
	topic, err := tm.team.CreateForumTopic(ctx, s.GroupID, topicName(customer), s.IconIncoming)
	if err != nil {
		return 0, fmt.Errorf("failed to create forum topic: %w", err)
	}

	if err := tm.store.SetCustomerTopic(ctx, customerID, topic.MessageThreadID); err != nil {
		return 0, fmt.Errorf("failed to persist topic binding: %w", err)
	}
	tm.releaseLock(customerID, lock)

	tm.logger.WithFields(logrus.Fields{
		"customerId": customerID,
		"topicId":    topic.MessageThreadID,
	}).Info("Forum topic created")

	return topic.MessageThreadID, nil
}

// Invalidate drops a customer's topic binding after the team deleted the
// thread. The next delivery provisions a replacement.
func (tm *TopicManager) Invalidate(ctx context.Context, customerID int64) error {
	tm.logger.WithField("customerId", customerID).Warn("Topic is gone, clearing binding")
	return tm.store.ClearCustomerTopic(ctx, customerID)
}

// RefreshIcon flips the thread icon to mark unread or handled state. A
// missing thread invalidates the binding; an unchanged icon is fine.
func (tm *TopicManager) RefreshIcon(ctx context.Context, customerID, topicID int64, incoming bool) error {
	s := tm.settings()
	icon := s.IconOutgoing
	if incoming {
		icon = s.IconIncoming
	}
	if icon == "" {
		return nil
	}

	err := tm.team.EditForumTopic(ctx, s.GroupID, topicID, icon)
	if err == nil || telegram.IsTopicNotModified(err) {
		return nil
	}

	if telegram.IsTopicNotFound(err) {
		if clearErr := tm.Invalidate(ctx, customerID); clearErr != nil {
			return clearErr
		}
		return err
	}

	tm.logger.WithFields(logrus.Fields{
		"customerId": customerID,
		"topicId":    topicID,
		"error":      err,
	}).Warn("Failed to refresh topic icon")
	return nil
}

// topicName is the customer's bare address: the team needs to recognize who
// a thread belongs to, so no masking here. Logs still mask.
func topicName(customer *models.Customer) string {
	if at := strings.Index(customer.ChatID, "@"); at >= 0 {
		return customer.ChatID[:at]
	}
	return customer.ChatID
}
