// Package dynamo is a store.Backend kept in a DynamoDB table whose partition
// key is the string attribute "key".
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dannyrandall/conferences/internal/conference"
)

// MaxWrites is the most items a single DynamoDB transaction accepts.
const MaxWrites = 100

var ErrTooManyWrites = errors.New("too many writes for one transaction")

// API is the part of *dynamodb.Client the store uses.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type item struct {
	Key  string `dynamodbav:"key"`
	Name string `dynamodbav:"name"`
	Year int    `dynamodbav:"year"`
	TxID string `dynamodbav:"tx_id"`
}

type Store struct {
	Dynamo API
	Table  string
}

func New(api API, table string) *Store {
	return &Store{Dynamo: api, Table: table}
}

func (s *Store) Load(ctx context.Context, key string) (conference.Conference, bool, error) {
	result, err := s.Dynamo.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Table),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			"key": &types.AttributeValueMemberS{Value: key},
		},
	})
	switch {
	case err != nil:
		return conference.Conference{}, false, fmt.Errorf("get item: %w", err)
	case result.Item == nil:
		return conference.Conference{}, false, nil
	}

	var it item
	if err := attributevalue.UnmarshalMap(result.Item, &it); err != nil {
		return conference.Conference{}, false, fmt.Errorf("unmarshal item: %w", err)
	}

	return conference.New(it.Name, it.Year), true, nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	input := &dynamodb.ScanInput{
		TableName:            aws.String(s.Table),
		ConsistentRead:       aws.Bool(true),
		ProjectionExpression: aws.String("#k"),
		ExpressionAttributeNames: map[string]string{
			"#k": "key",
		},
	}
	if prefix != "" {
		input.FilterExpression = aws.String("begins_with(#k, :prefix)")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: prefix},
		}
	}

	var keys []string
	p := dynamodb.NewScanPaginator(s.Dynamo, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		for _, av := range page.Items {
			var it item
			if err := attributevalue.UnmarshalMap(av, &it); err != nil {
				return nil, fmt.Errorf("unmarshal item: %w", err)
			}
			keys = append(keys, it.Key)
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// Apply writes every conference with a single TransactWriteItems call.
func (s *Store) Apply(ctx context.Context, txID string, writes map[string]conference.Conference) error {
	if len(writes) > MaxWrites {
		return fmt.Errorf("%w: %d > %d", ErrTooManyWrites, len(writes), MaxWrites)
	}

	items := make([]types.TransactWriteItem, 0, len(writes))
	for key, c := range writes {
		av, err := attributevalue.MarshalMap(item{Key: key, Name: c.Name, Year: c.Year, TxID: txID})
		if err != nil {
			return fmt.Errorf("marshal %q: %w", key, err)
		}

		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.Table),
				Item:      av,
			},
		})
	}

	_, err := s.Dynamo.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems:      items,
		ClientRequestToken: aws.String(txID),
	})
	if err != nil {
		return fmt.Errorf("transact write items: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return nil }
