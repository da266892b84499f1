package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants.
const (
	pkPrefix = "SNAPSHOT#"
	skMeta   = "META"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoSnapshotStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoSnapshotStore implements SnapshotStore with one item per date.
type DynamoSnapshotStore struct {
	client    DynamoAPI
	tableName string
}

// Compile-time interface check.
var _ SnapshotStore = (*DynamoSnapshotStore)(nil)

// NewDynamoSnapshotStore creates a store for the given table.
func NewDynamoSnapshotStore(client DynamoAPI, tableName string) *DynamoSnapshotStore {
	return &DynamoSnapshotStore{client: client, tableName: tableName}
}

// snapshotItem is the stored form. Job ids become string map keys.
type snapshotItem struct {
	Date        string               `dynamodbav:"date"`
	GeneratedAt string               `dynamodbav:"generatedAt"`
	Note        string               `dynamodbav:"note,omitempty"`
	Jobs        map[string]JobCounts `dynamodbav:"jobs"`
}

func snapshotPK(date string) string {
	return pkPrefix + date
}

func (s *DynamoSnapshotStore) Get(ctx context.Context, date string) (*Snapshot, error) {
	pk := snapshotPK(date)
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, skMeta, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item snapshotItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, skMeta, err)
	}

	snap := &Snapshot{
		Date:        item.Date,
		GeneratedAt: item.GeneratedAt,
		Note:        item.Note,
		Jobs:        make(map[int]JobCounts, len(item.Jobs)),
	}
	for k, v := range item.Jobs {
		id, err := strconv.Atoi(k)
		if err != nil {
			log.Warn().Str("jobKey", k).Str("date", date).Msg("Skipping non-numeric job key in snapshot")
			continue
		}
		snap.Jobs[id] = v
	}
	return snap, nil
}

func (s *DynamoSnapshotStore) Put(ctx context.Context, snap *Snapshot) error {
	item := snapshotItem{
		Date:        snap.Date,
		GeneratedAt: snap.GeneratedAt,
		Note:        snap.Note,
		Jobs:        make(map[string]JobCounts, len(snap.Jobs)),
	}
	for id, c := range snap.Jobs {
		item.Jobs[jobKey(id)] = c
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	pk := snapshotPK(snap.Date)
	av["PK"] = &types.AttributeValueMemberS{Value: pk}
	av["SK"] = &types.AttributeValueMemberS{Value: skMeta}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, skMeta, err)
	}
	log.Info().Str("table", s.tableName).Str("date", snap.Date).Int("jobs", len(snap.Jobs)).Msg("Snapshot saved")
	return nil
}
