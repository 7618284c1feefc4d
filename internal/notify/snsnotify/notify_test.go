package snsnotify

import (
	"context"
	"errors"
	"slotwatch/internal/components/telemetry"
	"slotwatch/internal/slots"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/require"
)

var _ slots.Notifier = Notifier{}

type fakeClient struct {
	inputs []*sns.PublishInput
	err    error
}

func (c *fakeClient) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	c.inputs = append(c.inputs, params)
	if c.err != nil {
		return nil, c.err
	}
	return &sns.PublishOutput{MessageId: aws.String("message-1")}, nil
}

const topic = "arn:aws:sns:us-east-1:000000000000:slots"

func TestNotify(t *testing.T) {
	client := &fakeClient{}
	notifier := NewNotifier(client, topic, telemetry.NewRecorder())

	err := notifier.Notify(context.Background(), slots.Notification{
		Source: "https://example.com/signup",
		Slots:  []string{"01/01/2024-9:00"},
	})
	require.NoError(t, err)

	require.Len(t, client.inputs, 1)
	input := client.inputs[0]
	require.Equal(t, topic, aws.ToString(input.TopicArn))
	require.Equal(t, "New slots", aws.ToString(input.Subject))
	require.Equal(t, "https://example.com/signup: New slots are 01/01/2024-9:00", aws.ToString(input.Message))
}

func TestNotifyError(t *testing.T) {
	failure := errors.New("throttled")
	client := &fakeClient{err: failure}
	rec := telemetry.NewRecorder()
	notifier := NewNotifier(client, topic, rec)

	err := notifier.Notify(context.Background(), slots.Notification{
		Source: "src",
		Slots:  []string{"01/01/2024-9:00"},
	})
	require.ErrorIs(t, err, failure)
	require.Len(t, rec.Reports(telemetry.LevelBroken), 1)
}
