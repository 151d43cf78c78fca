package service

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strconv"

	apperrors "wabridge/internal/errors"
	"wabridge/internal/models"
	"wabridge/internal/privacy"
	"wabridge/internal/queue"
	"wabridge/pkg/telegram"
	"wabridge/pkg/whatsapp"

	"github.com/sirupsen/logrus"
)

// editPrefix marks a relayed edit. Neither side supports editing the
// counterpart in place, so edits go out as fresh prefixed messages.
const editPrefix = "✏️ "

const fallbackStickerEmoji = "\U0001F642"

// Deps bundles what delivery jobs need. Jobs are values on the queue, so
// they share one deps struct instead of each carrying six fields.
type Deps struct {
	Store    Store
	Team     TeamClient
	Registry ProviderRegistry
	Media    MediaFetcher
	Topics   *TopicManager
	Settings func() TeamSettings
	Logger   *logrus.Logger
}

// TeamDeliveryJob carries one customer message into the team group.
type TeamDeliveryJob struct {
	deps       *Deps
	customerID int64
	entryID    int64
	update     models.ChannelUpdate
}

func NewTeamDeliveryJob(deps *Deps, customerID, entryID int64, update models.ChannelUpdate) *TeamDeliveryJob {
	return &TeamDeliveryJob{deps: deps, customerID: customerID, entryID: entryID, update: update}
}

func (j *TeamDeliveryJob) Name() string {
	return fmt.Sprintf("team-delivery %s", privacy.MaskMessageID(j.update.EventID))
}

func (j *TeamDeliveryJob) Run(ctx context.Context) (queue.Outcome, error) {
	// Provisioning the thread is a prerequisite, not part of the send, so
	// its failures never charge the send's attempt budget.
	topicID, err := j.deps.Topics.EnsureTopic(ctx, j.customerID)
	if err != nil {
		return queue.Reprovision, err
	}

	msg, err := j.send(ctx, topicID)
	if err != nil {
		if telegram.IsTopicNotFound(err) {
			if clearErr := j.deps.Topics.Invalidate(ctx, j.customerID); clearErr != nil {
				return queue.Retry, clearErr
			}
			return queue.Reprovision, err
		}
		if telegram.IsRetryable(err) {
			return queue.Retry, err
		}
		rejected := apperrors.Wrap(err, apperrors.ErrCodeTelegramAPI, "team delivery rejected")
		rejected.Severity = apperrors.SeverityWarning
		return queue.Done, rejected
	}

	if err := j.deps.Store.AttachDestination(ctx, j.entryID, strconv.FormatInt(msg.MessageID, 10)); err != nil {
		j.deps.Logger.WithError(err).Error("Failed to attach destination message ID")
	}
	if err := j.deps.Store.SaveChannelMessageRecord(ctx, j.entryID, j.update.EventID); err != nil {
		j.deps.Logger.WithError(err).Error("Failed to save channel message record")
	}

	_ = j.deps.Topics.RefreshIcon(ctx, j.customerID, topicID, true)
	j.markRead(ctx)

	return queue.Done, nil
}

func (j *TeamDeliveryJob) send(ctx context.Context, topicID int64) (*telegram.Message, error) {
	s := j.deps.Settings()
	update := &j.update

	switch update.Kind {
	case models.KindText:
		return j.deps.Team.SendMessage(ctx, s.GroupID, topicID, update.Text)

	case models.KindLocation:
		if update.Location == nil {
			return nil, fmt.Errorf("location update without coordinates")
		}
		return j.deps.Team.SendLocation(ctx, s.GroupID, topicID, update.Location.Latitude, update.Location.Longitude)

	case models.KindContact:
		if update.Contact == nil {
			return nil, fmt.Errorf("contact update without card")
		}
		return j.deps.Team.SendContact(ctx, s.GroupID, topicID, update.Contact.Phone, update.Contact.Name)

	case models.KindImage, models.KindVideo, models.KindDocument, models.KindAudio, models.KindSticker:
		path, err := j.fetchMedia(ctx)
		if err != nil {
			return nil, err
		}
		switch update.Kind {
		case models.KindImage:
			return j.deps.Team.SendPhoto(ctx, s.GroupID, topicID, path, update.Caption)
		case models.KindVideo:
			return j.deps.Team.SendVideo(ctx, s.GroupID, topicID, path, update.Caption)
		case models.KindAudio:
			return j.deps.Team.SendVoice(ctx, s.GroupID, topicID, path)
		case models.KindSticker:
			return j.deps.Team.SendSticker(ctx, s.GroupID, topicID, path)
		default:
			return j.deps.Team.SendDocument(ctx, s.GroupID, topicID, path, update.Caption)
		}

	default:
		if update.Text != "" {
			return j.deps.Team.SendMessage(ctx, s.GroupID, topicID, update.Text)
		}
		return nil, fmt.Errorf("unsupported message kind %q", update.Kind)
	}
}

func (j *TeamDeliveryJob) fetchMedia(ctx context.Context) (string, error) {
	provider, err := j.deps.Registry.Active()
	if err != nil {
		return "", err
	}

	url, err := provider.MediaURL(ctx, j.update.MediaID)
	if err != nil {
		return "", err
	}

	return j.deps.Media.Fetch(ctx, url, provider.AuthHeaders())
}

// markRead tells the customer channel their message reached the team. Best
// effort, a failure never fails the delivery.
func (j *TeamDeliveryJob) markRead(ctx context.Context) {
	provider, err := j.deps.Registry.Active()
	if err != nil {
		return
	}
	if err := provider.MarkRead(ctx, j.update.EventID); err != nil {
		j.deps.Logger.WithFields(logrus.Fields{
			"messageId": privacy.MaskMessageID(j.update.EventID),
			"error":     err,
		}).Debug("Failed to mark message as read")
	}
}

// ChannelDeliveryJob carries one team reply out to the customer.
type ChannelDeliveryJob struct {
	deps       *Deps
	customerID int64
	entryID    int64
	post       models.TeamPost
}

func NewChannelDeliveryJob(deps *Deps, customerID, entryID int64, post models.TeamPost) *ChannelDeliveryJob {
	return &ChannelDeliveryJob{deps: deps, customerID: customerID, entryID: entryID, post: post}
}

func (j *ChannelDeliveryJob) Name() string {
	return fmt.Sprintf("channel-delivery %d", j.post.MessageID)
}

func (j *ChannelDeliveryJob) Run(ctx context.Context) (queue.Outcome, error) {
	provider, err := j.deps.Registry.Active()
	if err != nil {
		// Broken provider config cannot heal within this job's attempts.
		j.deps.Logger.WithError(err).Error("No usable provider, dropping delivery")
		return queue.Done, err
	}

	customer, err := j.deps.Store.GetCustomerByID(ctx, j.customerID)
	if err != nil {
		return queue.Retry, err
	}
	if customer == nil {
		return queue.Done, fmt.Errorf("customer %d not found", j.customerID)
	}

	outbound, err := j.buildOutbound(ctx, provider, customer)
	if err != nil {
		return queue.Done, err
	}

	result, err := provider.Send(ctx, outbound)
	if err != nil {
		return queue.Done, err
	}

	switch result.Status {
	case whatsapp.StatusSent:
		if err := j.deps.Store.AttachDestination(ctx, j.entryID, result.MessageID); err != nil {
			j.deps.Logger.WithError(err).Error("Failed to attach destination message ID")
		}
		if result.MessageID != "" {
			if err := j.deps.Store.SaveChannelMessageRecord(ctx, j.entryID, result.MessageID); err != nil {
				j.deps.Logger.WithError(err).Error("Failed to save channel message record")
			}
		}
		_ = j.deps.Topics.RefreshIcon(ctx, j.customerID, j.post.TopicID, false)
		return queue.Done, nil

	case whatsapp.StatusRejected:
		if whatsapp.IsPermanentRejection(result.ErrorType) {
			j.deps.Logger.WithFields(logrus.Fields{
				"customerId": j.customerID,
				"errorType":  result.ErrorType,
				"reason":     result.Message,
			}).Warn("Channel rejected message")
			return queue.Done, apperrors.NewRejectedError(result.ErrorType, result.Message)
		}
		// An unrecognized rejection kind may still clear up, so it is
		// handled like a transport failure.
		return queue.Retry, apperrors.WrapRetryable(nil, apperrors.ErrCodeTransportFailure, result.Message)

	default:
		return queue.Retry, apperrors.WrapRetryable(nil, apperrors.ErrCodeTransportFailure, result.Message)
	}
}

func (j *ChannelDeliveryJob) buildOutbound(ctx context.Context, provider whatsapp.Provider, customer *models.Customer) (*whatsapp.Outbound, error) {
	post := &j.post

	out := &whatsapp.Outbound{To: customer.ChatID}

	switch post.Kind {
	case models.KindText:
		out.Kind = whatsapp.KindText
		out.Text = j.withEditPrefix(post.Text)

	case models.KindSticker:
		// Customer channels have no native sticker type for arbitrary
		// stickers, so the sticker's emoji stands in.
		out.Kind = whatsapp.KindText
		emoji := post.Emoji
		if emoji == "" {
			emoji = fallbackStickerEmoji
		}
		out.Text = emoji

	case models.KindContact:
		if post.Contact == nil {
			return nil, fmt.Errorf("contact post without card")
		}
		out.Kind = whatsapp.KindText
		out.Text = fmt.Sprintf("\U0001F464 %s\n\U0001F4DE %s", post.Contact.Name, post.Contact.Phone)

	case models.KindLocation:
		if post.Location == nil {
			return nil, fmt.Errorf("location post without coordinates")
		}
		out.Kind = whatsapp.KindLocation
		out.Latitude = post.Location.Latitude
		out.Longitude = post.Location.Longitude

	case models.KindImage, models.KindVideo, models.KindDocument, models.KindAudio:
		path, err := j.fetchTeamFile(ctx)
		if err != nil {
			return nil, err
		}

		out.Kind = string(post.Kind)
		out.MediaPath = path
		out.MimeType = mimeTypeOf(path)
		out.Filename = post.Filename
		out.Caption = j.withEditPrefix(post.Caption)

		mediaID, err := provider.UploadMedia(ctx, path, out.MimeType)
		if err != nil {
			return nil, fmt.Errorf("failed to upload media: %w", err)
		}
		out.MediaID = mediaID

	default:
		return nil, fmt.Errorf("unsupported message kind %q", post.Kind)
	}

	return out, nil
}

func (j *ChannelDeliveryJob) fetchTeamFile(ctx context.Context) (string, error) {
	file, err := j.deps.Team.GetFile(ctx, j.post.FileID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve team file: %w", err)
	}
	return j.deps.Media.Fetch(ctx, j.deps.Team.FileURL(file.FilePath), nil)
}

func (j *ChannelDeliveryJob) withEditPrefix(text string) string {
	if !j.post.Edited || text == "" {
		return text
	}
	return editPrefix + text
}

func mimeTypeOf(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
