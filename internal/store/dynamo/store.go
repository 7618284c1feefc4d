// Package dynamo keeps slots in a DynamoDB table whose partition key is the string attribute
// `Timeslot`.
package dynamo

import (
	"context"
	"fmt"
	"slices"
	"slotwatch/internal/components/assert"
	"slotwatch/internal/components/telemetry"
	"slotwatch/internal/slots"
	"slotwatch/lib/awsutil"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	report_store_lookup = "store.lookup"
	report_store_put    = "store.put"
	report_store_list   = "store.list"
)

// KeyAttribute is the partition key of the table.
const KeyAttribute = "Timeslot"

// BatchGetItem accepts at most 100 keys per call.
const lookupChunk = 100

// API is the subset of the DynamoDB client the store uses.
type API interface {
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type Store struct {
	client API
	table  string
	tel    telemetry.API
}

// New creates a DynamoDB client from the aws config and wraps it into a Store.
func New(cfg aws.Config, endpoint awsutil.Config, table string, tel telemetry.API) Store {
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = endpoint.BaseEndpoint()
	})
	return NewStore(client, table, tel)
}

func NewStore(client API, table string, tel telemetry.API) Store {
	assert.NotNil(client)
	assert.NotEmptyStr(table)
	assert.NotNil(tel)

	return Store{
		client: client,
		table:  table,
		tel:    telemetry.NewScopedAPI("dynamo", tel),
	}
}

func key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		KeyAttribute: &types.AttributeValueMemberS{Value: id},
	}
}

func keyValue(item map[string]types.AttributeValue) (string, bool) {
	value, ok := item[KeyAttribute].(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return value.Value, true
}

// Lookup asks for every id with BatchGetItem, keys reported back as unprocessed are returned
// as Unknown instead of being retried.
func (s Store) Lookup(ctx context.Context, ids []string) (slots.Lookup, error) {
	// BatchGetItem rejects requests that contain the same key twice.
	unique := slices.Clone(ids)
	slices.Sort(unique)
	unique = slices.Compact(unique)

	var out slots.Lookup
	for chunk := range slices.Chunk(unique, lookupChunk) {
		keys := make([]map[string]types.AttributeValue, len(chunk))
		for i, id := range chunk {
			keys[i] = key(id)
		}

		res, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{
				s.table: {
					Keys:                 keys,
					ProjectionExpression: aws.String(KeyAttribute),
				},
			},
		})
		if err != nil {
			s.tel.ReportBroken(report_store_lookup, err, s.table, len(chunk))
			return slots.Lookup{}, fmt.Errorf("batch get item: %w", err)
		}

		for _, item := range res.Responses[s.table] {
			id, ok := keyValue(item)
			if !ok {
				s.tel.ReportWarning(report_store_lookup, "item without string key", item)
				continue
			}
			out.Confirmed = append(out.Confirmed, id)
		}
		for _, item := range res.UnprocessedKeys[s.table].Keys {
			id, ok := keyValue(item)
			if !ok {
				continue
			}
			out.Unknown = append(out.Unknown, id)
		}
	}

	slices.Sort(out.Confirmed)
	s.tel.ReportDebug("lookup", len(ids), len(out.Confirmed), len(out.Unknown))
	return out, nil
}

// Put writes ids with a single BatchWriteItem, DynamoDB puts replace existing items so this is
// an upsert. Items DynamoDB leaves unprocessed are reported but not retried, they stay new
// for the next run.
func (s Store) Put(ctx context.Context, ids []string) error {
	if len(ids) > slots.BatchLimit {
		return fmt.Errorf("batch write item: %d items exceeds the limit of %d", len(ids), slots.BatchLimit)
	}

	// BatchWriteItem also rejects duplicate keys within one request.
	unique := slices.Clone(ids)
	slices.Sort(unique)
	unique = slices.Compact(unique)

	requests := make([]types.WriteRequest, len(unique))
	for i, id := range unique {
		requests[i] = types.WriteRequest{
			PutRequest: &types.PutRequest{Item: key(id)},
		}
	}

	res, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			s.table: requests,
		},
	})
	if err != nil {
		s.tel.ReportBroken(report_store_put, err, s.table, len(ids))
		return fmt.Errorf("batch write item: %w", err)
	}
	if unprocessed := res.UnprocessedItems[s.table]; len(unprocessed) > 0 {
		s.tel.ReportWarning(report_store_put, "unprocessed items", len(unprocessed))
	}
	return nil
}

func (s Store) List(ctx context.Context) ([]string, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:            aws.String(s.table),
		ProjectionExpression: aws.String(KeyAttribute),
	})

	out := []string{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			s.tel.ReportBroken(report_store_list, err, s.table)
			return nil, fmt.Errorf("scan: %w", err)
		}
		for _, item := range page.Items {
			id, ok := keyValue(item)
			if ok {
				out = append(out, id)
			}
		}
	}
	slices.Sort(out)
	return out, nil
}
