package sending

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

// SESAPI is the subset of the SES v2 client used for delivery.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends email via AWS SES.
type SESSender struct {
	client SESAPI
}

// NewSESSender builds an SES client. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func NewSESSender(ctx context.Context, accessKey, secretKey, region string) (*SESSender, error) {
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SESSender{client: sesv2.NewFromConfig(cfg)}, nil
}

// NewSESSenderWithClient wraps an existing client.
func NewSESSenderWithClient(client SESAPI) *SESSender {
	return &SESSender{client: client}
}

// Send delivers a single email through SES.
func (s *SESSender) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	if s.client == nil {
		return nil, fmt.Errorf("ses: %w", ErrNotConfigured)
	}

	from := msg.FromEmail
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if msg.CampaignID != "" {
		input.EmailTags = append(input.EmailTags,
			types.MessageTag{Name: aws.String("campaign_id"), Value: aws.String(msg.CampaignID)})
	}
	if msg.SubscriberID != "" {
		input.EmailTags = append(input.EmailTags,
			types.MessageTag{Name: aws.String("subscriber_id"), Value: aws.String(msg.SubscriberID)})
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("ses send: %w", err)
	}
	messageID := aws.ToString(out.MessageId)
	logger.Debug("ses delivered", "email", msg.To, "message_id", messageID)
	return &domain.SendResult{MessageID: messageID, Transport: domain.TransportSES, SentAt: time.Now()}, nil
}
