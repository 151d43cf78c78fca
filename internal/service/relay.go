package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"wabridge/internal/database"
	"wabridge/internal/models"
	"wabridge/internal/privacy"
	"wabridge/pkg/whatsapp"

	"github.com/sirupsen/logrus"
)

const banNoticeText = "You are not able to contact support at this time."

// Relay is the intake layer. Webhook handlers hand it normalized events; it
// runs the admission checks, records the origin in the ledger, and enqueues
// the delivery job. All slow work happens on the queue, so intake returns
// quickly and the webhook never times out.
type Relay struct {
	deps   *Deps
	dedup  Deduper
	jobs   Submitter
	logger *logrus.Logger
}

func NewRelay(deps *Deps, dedup Deduper, jobs Submitter) *Relay {
	return &Relay{
		deps:   deps,
		dedup:  dedup,
		jobs:   jobs,
		logger: deps.Logger,
	}
}

// HandleChannelUpdate admits one inbound customer event. Duplicates, silent
// event kinds, and banned customers are dropped here; everything else is
// recorded and queued. A nil return means the event was consumed, not
// necessarily delivered.
func (r *Relay) HandleChannelUpdate(ctx context.Context, update *models.ChannelUpdate) error {
	log := r.logger.WithFields(logrus.Fields{
		"channel":   update.Channel,
		"messageId": privacy.MaskMessageID(update.EventID),
		"from":      privacy.MaskChatID(update.From),
		"kind":      update.Kind,
	})

	switch update.Kind {
	case models.KindReaction, models.KindStatus:
		// Reactions and delivery receipts have no counterpart on the
		// team side.
		log.Debug("Dropping silent event kind")
		return nil
	}

	if !r.dedup.Admit(ctx, update.Channel, update.EventID) {
		log.Debug("Dropping duplicate event")
		return nil
	}

	customer, err := r.deps.Store.GetOrCreateCustomer(ctx, update.Channel, update.From)
	if err != nil {
		return fmt.Errorf("failed to resolve customer: %w", err)
	}

	if customer.IsBanned() {
		log.WithField("customerId", customer.ID).Info("Dropping message from banned customer")
		r.sendBanNotice(ctx, customer)
		return nil
	}

	entry, err := r.deps.Store.RecordOrigin(ctx, customer.ID, models.DirectionInbound, update.EventID)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateOrigin) {
			log.Debug("Origin already recorded")
			return nil
		}
		return fmt.Errorf("failed to record origin: %w", err)
	}

	job := NewTeamDeliveryJob(r.deps, customer.ID, entry.ID, *update)
	if err := r.jobs.Submit(job); err != nil {
		return fmt.Errorf("failed to enqueue delivery: %w", err)
	}

	log.WithField("customerId", customer.ID).Info("Inbound message queued")
	return nil
}

// HandleTeamPost admits one reply posted by the team inside a customer
// topic.
func (r *Relay) HandleTeamPost(ctx context.Context, post *models.TeamPost) error {
	log := r.logger.WithFields(logrus.Fields{
		"messageId": post.MessageID,
		"topicId":   post.TopicID,
		"kind":      post.Kind,
		"edited":    post.Edited,
	})

	if post.TopicID == 0 {
		// General-thread chatter stays inside the team group.
		log.Debug("Ignoring post outside customer topics")
		return nil
	}

	eventID := strconv.FormatInt(post.MessageID, 10)
	if post.Edited {
		eventID = eventID + "-edit"
	}
	if !r.dedup.Admit(ctx, models.ChannelTelegram, eventID) {
		log.Debug("Dropping duplicate post")
		return nil
	}

	customer, err := r.deps.Store.GetCustomerByTopic(ctx, post.TopicID)
	if err != nil {
		return fmt.Errorf("failed to resolve customer by topic: %w", err)
	}
	if customer == nil {
		log.Warn("Post in a topic with no bound customer, dropping")
		return nil
	}

	if customer.IsBanned() {
		log.WithField("customerId", customer.ID).Warn("Customer is banned, not delivering")
		return nil
	}

	// Broken provider config cannot heal inside a job, so it is caught
	// here before anything is recorded or queued.
	if _, err := r.deps.Registry.Active(); err != nil {
		log.WithError(err).Error("No usable provider, dropping reply")
		return nil
	}

	entry, err := r.deps.Store.RecordOrigin(ctx, customer.ID, models.DirectionOutbound, eventID)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateOrigin) {
			log.Debug("Origin already recorded")
			return nil
		}
		return fmt.Errorf("failed to record origin: %w", err)
	}

	job := NewChannelDeliveryJob(r.deps, customer.ID, entry.ID, *post)
	if err := r.jobs.Submit(job); err != nil {
		return fmt.Errorf("failed to enqueue delivery: %w", err)
	}

	log.WithField("customerId", customer.ID).Info("Team reply queued")
	return nil
}

// sendBanNotice tells a banned customer their message went nowhere. Best
// effort: a failed notice is logged and forgotten.
func (r *Relay) sendBanNotice(ctx context.Context, customer *models.Customer) {
	provider, err := r.deps.Registry.Active()
	if err != nil {
		r.logger.WithError(err).Warn("No provider available for ban notice")
		return
	}

	result, err := provider.Send(ctx, &whatsapp.Outbound{
		To:   customer.ChatID,
		Kind: whatsapp.KindText,
		Text: banNoticeText,
	})
	if err != nil || !result.Sent() {
		r.logger.WithFields(logrus.Fields{
			"customerId": customer.ID,
			"error":      err,
		}).Warn("Failed to send ban notice")
	}
}
