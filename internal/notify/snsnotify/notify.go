// Package snsnotify publishes new slot notifications to an SNS topic.
package snsnotify

import (
	"context"
	"fmt"
	"slotwatch/internal/components/assert"
	"slotwatch/internal/components/telemetry"
	"slotwatch/internal/slots"
	"slotwatch/lib/awsutil"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

const report_sns_publish = "sns.publish"

// API is the subset of the SNS client used by Notifier.
type API interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Notifier struct {
	client   API
	topicArn string
	tel      telemetry.API
}

func New(cfg aws.Config, endpoint awsutil.Config, topicArn string, tel telemetry.API) Notifier {
	client := sns.NewFromConfig(cfg, func(o *sns.Options) {
		o.BaseEndpoint = endpoint.BaseEndpoint()
	})
	return NewNotifier(client, topicArn, tel)
}

func NewNotifier(client API, topicArn string, tel telemetry.API) Notifier {
	assert.NotNil(client)
	assert.NotEmptyStr(topicArn)
	assert.NotNil(tel)

	return Notifier{
		client:   client,
		topicArn: topicArn,
		tel:      telemetry.NewScopedAPI("snsnotify", tel),
	}
}

func (n Notifier) Notify(ctx context.Context, notification slots.Notification) error {
	out, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicArn),
		Subject:  aws.String(notification.Subject()),
		Message:  aws.String(notification.Message()),
	})
	if err != nil {
		n.tel.ReportBroken(report_sns_publish, err, n.topicArn)
		return fmt.Errorf("publish to %s: %w", n.topicArn, err)
	}
	n.tel.ReportDebug(report_sns_publish, aws.ToString(out.MessageId))
	return nil
}
