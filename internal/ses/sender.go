// Package ses delivers digest email through Amazon SES v2.
package ses

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/ignite/churn-scorer/internal/config"
	"github.com/ignite/churn-scorer/internal/pkg/logger"
)

// ErrNoRecipient is returned when a message has no destination address.
var ErrNoRecipient = errors.New("no recipient address")

// API is the subset of the SES v2 client used by Sender.
type API interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
	Tags    map[string]string
}

// Sender sends transactional email from a fixed address.
type Sender struct {
	api       API
	fromEmail string
	fromName  string
}

// NewSender creates a sender over an existing client.
func NewSender(api API, fromEmail, fromName string) *Sender {
	return &Sender{api: api, fromEmail: fromEmail, fromName: fromName}
}

// NewSenderFromConfig builds the SES client. Static keys are used when
// configured; otherwise the default credential chain applies.
func NewSenderFromConfig(ctx context.Context, cfg appconfig.SESConfig) (*Sender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load SES config: %w", err)
	}
	return NewSender(sesv2.NewFromConfig(awsCfg), cfg.FromAddress, cfg.FromName), nil
}

// Send delivers msg and returns the SES message id.
func (s *Sender) Send(ctx context.Context, msg Message) (string, error) {
	if msg.To == "" {
		return "", ErrNoRecipient
	}

	from := s.fromEmail
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
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
	if msg.Text != "" {
		input.Content.Simple.Body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")}
	}
	for name, value := range msg.Tags {
		input.EmailTags = append(input.EmailTags, types.MessageTag{Name: aws.String(name), Value: aws.String(value)})
	}

	out, err := s.api.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("ses send to %s: %w", logger.RedactEmail(msg.To), err)
	}
	id := aws.ToString(out.MessageId)
	logger.Info("email sent", "recipient", msg.To, "message_id", id)
	return id, nil
}
