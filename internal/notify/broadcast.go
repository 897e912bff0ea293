// internal/notify/broadcast.go
package notify

import (
	"context"
	"fmt"
	"time"

	stderrors "stockwatch/internal/common/errors"
	"stockwatch/internal/common/logger"
	"stockwatch/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
)

type ActiveUserLister interface {
	ListActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

// Broadcaster sends a system-wide announcement: one in-app record per
// recipient plus a single publish to the shared broadcast topic.
type Broadcaster struct {
	users         ActiveUserLister
	notifications NotificationRecorder
	snsClient     SNSService
	topicARN      string
	indexer       AuditIndexer
	logger        logger.Logger
	now           func() time.Time
}

func NewBroadcaster(
	users ActiveUserLister,
	notifications NotificationRecorder,
	snsClient SNSService,
	topicARN string,
	indexer AuditIndexer,
	log logger.Logger,
) *Broadcaster {
	return &Broadcaster{
		users:         users,
		notifications: notifications,
		snsClient:     snsClient,
		topicARN:      topicARN,
		indexer:       indexer,
		logger:        log,
		now:           time.Now,
	}
}

// Broadcast records a PENDING notification for every listed recipient,
// publishes one message to the broadcast topic, then settles all records
// to SENT or FAILED together. Returns the number of recipients recorded.
func (b *Broadcaster) Broadcast(ctx context.Context, userIDs []uuid.UUID, subject, message string) (int, error) {
	users, err := b.users.ListActiveByIDs(ctx, userIDs)
	if err != nil {
		return 0, stderrors.NewDatabaseError("list broadcast recipients", err)
	}
	if len(users) == 0 {
		return 0, nil
	}

	records := make([]*models.Notification, 0, len(users))
	for _, user := range users {
		n := &models.Notification{
			ID:      uuid.New(),
			UserID:  user.ID,
			Type:    models.NotificationTypeSystem,
			Channel: models.ChannelInApp,
			Subject: subject,
			Message: message,
			Status:  models.StatusPending,
		}
		if err := b.notifications.Create(ctx, n); err != nil {
			b.logger.Error("failed to record broadcast notification", map[string]interface{}{
				"userId": user.ID.String(),
				"error":  err.Error(),
			})
			continue
		}
		records = append(records, n)
	}
	if len(records) == 0 {
		return 0, stderrors.NewNotificationCreateFailedError(
			fmt.Errorf("no broadcast notifications could be recorded for %d recipients", len(users)))
	}

	_, pubErr := b.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(b.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})

	status := models.StatusSent
	var sentAt *time.Time
	if pubErr != nil {
		status = models.StatusFailed
		b.logger.Error("broadcast publish failed", map[string]interface{}{
			"topicArn": b.topicARN,
			"error":    pubErr.Error(),
		})
	} else {
		t := b.now()
		sentAt = &t
	}

	for _, n := range records {
		if err := b.notifications.UpdateStatus(ctx, n.ID, status, sentAt); err != nil {
			b.logger.Error("failed to settle broadcast notification", map[string]interface{}{
				"notificationId": n.ID.String(),
				"error":          err.Error(),
			})
			continue
		}
		n.Status = status
		n.SentAt = sentAt
		if b.indexer != nil {
			b.indexer.Index(ctx, n)
		}
	}

	if pubErr != nil {
		return len(records), stderrors.NewBroadcastFailedError(b.topicARN, pubErr)
	}
	return len(records), nil
}
