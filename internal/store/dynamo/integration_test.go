package dynamo

import (
	"context"
	"io"
	"log"
	"os"
	"slotwatch/internal/components/telemetry"
	"slotwatch/lib/awsutil"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestDynamoDBLocal(t *testing.T) {
	if os.Getenv("SLOTWATCH_INTEGRATION") == "" {
		t.Skip("set SLOTWATCH_INTEGRATION=1 to run tests against containers")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute*2)
	defer cancel()

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "amazon/dynamodb-local:latest",
			ExposedPorts: []string{"8000/tcp"},
			WaitingFor:   wait.ForListeningPort("8000/tcp"),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	endpoint, err := container.PortEndpoint(ctx, "8000/tcp", "http")
	require.NoError(t, err)

	endpointCfg := awsutil.Config{
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyId:     "local",
		SecretAccessKey: "local",
	}
	cfg, err := awsutil.Load(ctx, endpointCfg)
	require.NoError(t, err)

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = endpointCfg.BaseEndpoint()
	})
	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(KeyAttribute), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(KeyAttribute), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	require.NoError(t, err)

	store := New(cfg, endpointCfg, table, telemetry.NewRecorder())

	require.NoError(t, store.Put(ctx, []string{"01/01/2024-9:00"}))
	require.NoError(t, store.Put(ctx, []string{"01/01/2024-9:00", "02/01/2024-10:00"}))

	res, err := store.Lookup(ctx, []string{"01/01/2024-9:00", "03/01/2024-9:00", "01/01/2024-9:00"})
	require.NoError(t, err)
	require.Equal(t, []string{"01/01/2024-9:00"}, res.Confirmed)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"01/01/2024-9:00", "02/01/2024-10:00"}, list)
}
