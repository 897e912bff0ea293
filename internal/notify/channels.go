// internal/notify/channels.go
package notify

import (
	"context"

	stderrors "stockwatch/internal/common/errors"
	"stockwatch/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Channel delivers one rendered notification to a recipient. Delivery is
// at-least-once: a retry after a lost acknowledgment may deliver twice.
type Channel interface {
	Type() models.NotificationChannel
	Deliver(ctx context.Context, user *models.User, subject, body string) error
}

// SESService and SNSService mirror the AWS client methods used, defined as
// interfaces so tests can mock them.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// EmailChannel delivers through AWS SES.
type EmailChannel struct {
	ses  SESService
	from string
}

func NewEmailChannel(sesClient SESService, from string) *EmailChannel {
	return &EmailChannel{ses: sesClient, from: from}
}

func (c *EmailChannel) Type() models.NotificationChannel {
	return models.ChannelEmail
}

func (c *EmailChannel) Deliver(ctx context.Context, user *models.User, subject, body string) error {
	if user.Email == "" {
		return stderrors.NewRecipientNotFoundError(user.ID.String())
	}

	input := &ses.SendEmailInput{
		Source: aws.String(c.from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{user.Email},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &sestypes.Body{
				Text: &sestypes.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := c.ses.SendEmail(ctx, input); err != nil {
		if ctx.Err() != nil {
			return stderrors.NewDeliveryTimeoutError(string(models.ChannelEmail))
		}
		return stderrors.NewDeliveryFailedError(string(models.ChannelEmail), err)
	}
	return nil
}

// WebhookChannel delivers by publishing to the user's SNS topic; SNS fans
// out to whatever HTTPS endpoints the user subscribed.
type WebhookChannel struct {
	sns SNSService
}

func NewWebhookChannel(snsClient SNSService) *WebhookChannel {
	return &WebhookChannel{sns: snsClient}
}

func (c *WebhookChannel) Type() models.NotificationChannel {
	return models.ChannelWebhook
}

func (c *WebhookChannel) Deliver(ctx context.Context, user *models.User, subject, body string) error {
	if user.WebhookARN == "" {
		// No endpoint configured is a data fault, not a transient failure.
		return stderrors.NewRecipientNotFoundError(user.ID.String())
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(user.WebhookARN),
		Subject:  aws.String(subject),
		Message:  aws.String(body),
	}

	if _, err := c.sns.Publish(ctx, input); err != nil {
		if ctx.Err() != nil {
			return stderrors.NewDeliveryTimeoutError(string(models.ChannelWebhook))
		}
		return stderrors.NewDeliveryFailedError(string(models.ChannelWebhook), err)
	}
	return nil
}

// InAppChannel has no external side effect: the stored notification record
// is itself the delivery.
type InAppChannel struct{}

func NewInAppChannel() *InAppChannel {
	return &InAppChannel{}
}

func (c *InAppChannel) Type() models.NotificationChannel {
	return models.ChannelInApp
}

func (c *InAppChannel) Deliver(ctx context.Context, user *models.User, subject, body string) error {
	return nil
}
