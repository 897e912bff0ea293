// internal/notify/channels_test.go
package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "stockwatch/internal/common/errors"
	"stockwatch/internal/models"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

// ==========================
// Tests
// ==========================

func TestEmailChannel_Deliver(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "holder@example.com"}

	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			assert.Equal(t, "alerts@stockwatch.example.com", *params.Source)
			assert.Equal(t, "holder@example.com", params.Destination.ToAddresses[0])
			assert.Equal(t, "Price Alert: AAPL", *params.Message.Subject.Data)
			assert.Contains(t, *params.Message.Body.Text.Data, "triggered")
			return &ses.SendEmailOutput{}, nil
		},
	}

	channel := NewEmailChannel(mockSES, "alerts@stockwatch.example.com")
	err := channel.Deliver(context.Background(), user, "Price Alert: AAPL", "your alert has triggered")
	require.NoError(t, err)
}

func TestEmailChannel_Deliver_NoEmailIsDataFault(t *testing.T) {
	channel := NewEmailChannel(&MockSESService{}, "alerts@stockwatch.example.com")
	err := channel.Deliver(context.Background(), &models.User{ID: uuid.New()}, "s", "b")

	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeRecipientNotFound, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestEmailChannel_Deliver_SendFailureIsRetryable(t *testing.T) {
	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("throttled")
		},
	}

	channel := NewEmailChannel(mockSES, "alerts@stockwatch.example.com")
	err := channel.Deliver(context.Background(), &models.User{ID: uuid.New(), Email: "a@b.c"}, "s", "b")

	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeDeliveryFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestEmailChannel_Deliver_ContextTimeout(t *testing.T) {
	mockSES := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, context.DeadlineExceeded
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	channel := NewEmailChannel(mockSES, "alerts@stockwatch.example.com")
	err := channel.Deliver(ctx, &models.User{ID: uuid.New(), Email: "a@b.c"}, "s", "b")

	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeDeliveryTimeout, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestWebhookChannel_Deliver(t *testing.T) {
	user := &models.User{
		ID:         uuid.New(),
		WebhookARN: "arn:aws:sns:us-east-1:123456789012:user-hooks",
	}

	mockSNS := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			assert.Equal(t, user.WebhookARN, *params.TopicArn)
			assert.Equal(t, "Price Alert: AAPL", *params.Subject)
			return &sns.PublishOutput{}, nil
		},
	}

	channel := NewWebhookChannel(mockSNS)
	err := channel.Deliver(context.Background(), user, "Price Alert: AAPL", "body")
	require.NoError(t, err)
}

func TestWebhookChannel_Deliver_MissingARN(t *testing.T) {
	channel := NewWebhookChannel(&MockSNSService{})
	err := channel.Deliver(context.Background(), &models.User{ID: uuid.New()}, "s", "b")

	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeRecipientNotFound, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestInAppChannel_Deliver(t *testing.T) {
	channel := NewInAppChannel()
	assert.Equal(t, models.ChannelInApp, channel.Type())
	assert.NoError(t, channel.Deliver(context.Background(), &models.User{}, "s", "b"))
}
