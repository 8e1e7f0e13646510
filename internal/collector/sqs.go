package collector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/wcharczuk/observatory/internal/observatory"
)

// MessageAttributeVersion is the sqs message attribute carrying [observatory.Version].
const MessageAttributeVersion = "version"

// SQSAPI is the subset of the sqs client the collector uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

var _ observatory.Collector = (*SQS)(nil)

// NewSQS returns a new sqs collector sending to a given queue.
func NewSQS(client SQSAPI, queueURL string) *SQS {
	return &SQS{
		client:   client,
		queueURL: queueURL,
	}
}

// SQSOptions configure an sqs client for [NewSQSFromOptions].
type SQSOptions struct {
	QueueURL        string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// NewSQSFromOptions builds an sqs client from the default aws config chain,
// overridden by any non-empty options.
func NewSQSFromOptions(ctx context.Context, opts SQSOptions) (*SQS, error) {
	var loadOptions []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOptions = append(loadOptions, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.AppID = "observatory"
	})
	return NewSQS(client, opts.QueueURL), nil
}

// SQS sends each batch as a single sqs message.
type SQS struct {
	client   SQSAPI
	queueURL string
}

// QueueURL returns the destination queue url.
func (s *SQS) QueueURL() string {
	return s.queueURL
}

// Send implements [observatory.Collector].
func (s *SQS) Send(ctx context.Context, batch observatory.Batch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			MessageAttributeVersion: {
				DataType:    aws.String("String"),
				StringValue: aws.String(observatory.Version),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}
