package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/eventio/codec"
	"github.com/hupe1980/eventio/model"
)

// ErrConcurrentAppend is returned when another writer appended a file
// to the run between reading the catalog and writing the new entry.
var ErrConcurrentAppend = errors.New("concurrent catalog append detected")

// DDBClient is the subset of the DynamoDB API the catalog uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// CollectionInfo describes one collection stored in a file.
type CollectionInfo struct {
	Name          string              `json:"name"`
	TypeName      string              `json:"type_name"`
	SchemaVersion model.SchemaVersion `json:"schema_version"`
}

// FileEntry is one catalog record: an event file that belongs to a run.
type FileEntry struct {
	Seq         uint64           `json:"seq"`
	Name        string           `json:"name"`
	Events      int              `json:"events"`
	Collections []CollectionInfo `json:"collections"`
}

// Catalog tracks the event files of a run in DynamoDB. S3 has no
// compare-and-swap, so the catalog uses conditional writes to give
// concurrent writers a consistent, gap-free file sequence per run.
//
// Table schema:
//   - Partition key: run_id (string)
//   - Sort key: seq (number), monotonically increasing per run
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name eventio-catalog \
//	  --attribute-definitions AttributeName=run_id,AttributeType=S AttributeName=seq,AttributeType=N \
//	  --key-schema AttributeName=run_id,KeyType=HASH AttributeName=seq,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type Catalog struct {
	client    DDBClient
	tableName string
	runID     string
}

// NewCatalog creates a run catalog over the given table. runID is the
// partition key shared by all files of the run.
func NewCatalog(client DDBClient, tableName, runID string) *Catalog {
	return &Catalog{
		client:    client,
		tableName: tableName,
		runID:     runID,
	}
}

// Append records a new file for the run. The sequence number is
// assigned atomically; ErrConcurrentAppend means another writer won
// the slot and the caller should retry.
func (c *Catalog) Append(ctx context.Context, name string, events int, collections []CollectionInfo) (FileEntry, error) {
	latest, err := c.latestSeq(ctx)
	if err != nil {
		return FileEntry{}, err
	}
	return c.appendAt(ctx, latest+1, name, events, collections)
}

func (c *Catalog) appendAt(ctx context.Context, seq uint64, name string, events int, collections []CollectionInfo) (FileEntry, error) {
	entry := FileEntry{
		Seq:         seq,
		Name:        name,
		Events:      events,
		Collections: collections,
	}

	inventory, err := codec.Default.Marshal(entry.Collections)
	if err != nil {
		return FileEntry{}, fmt.Errorf("encode collection inventory: %w", err)
	}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]ddbtypes.AttributeValue{
			"run_id":      &ddbtypes.AttributeValueMemberS{Value: c.runID},
			"seq":         &ddbtypes.AttributeValueMemberN{Value: strconv.FormatUint(entry.Seq, 10)},
			"file_name":   &ddbtypes.AttributeValueMemberS{Value: entry.Name},
			"event_count": &ddbtypes.AttributeValueMemberN{Value: strconv.Itoa(entry.Events)},
			"collections": &ddbtypes.AttributeValueMemberS{Value: string(inventory)},
		},
		ConditionExpression: aws.String("attribute_not_exists(seq)"),
	})
	if err != nil {
		var condErr *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return FileEntry{}, ErrConcurrentAppend
		}
		return FileEntry{}, fmt.Errorf("append to catalog: %w", err)
	}

	return entry, nil
}

// Files returns all catalog entries of the run in sequence order.
func (c *Catalog) Files(ctx context.Context) ([]FileEntry, error) {
	var entries []FileEntry

	var startKey map[string]ddbtypes.AttributeValue
	for {
		resp, err := c.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(c.tableName),
			KeyConditionExpression: aws.String("run_id = :run"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":run": &ddbtypes.AttributeValueMemberS{Value: c.runID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query catalog: %w", err)
		}

		for _, item := range resp.Items {
			entry, err := decodeEntry(item)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}

		if resp.LastEvaluatedKey == nil {
			break
		}
		startKey = resp.LastEvaluatedKey
	}

	return entries, nil
}

// Latest returns the most recently appended file entry, or false when
// the run has no files yet.
func (c *Catalog) Latest(ctx context.Context) (FileEntry, bool, error) {
	resp, err := c.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("run_id = :run"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":run": &ddbtypes.AttributeValueMemberS{Value: c.runID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return FileEntry{}, false, fmt.Errorf("query catalog: %w", err)
	}
	if len(resp.Items) == 0 {
		return FileEntry{}, false, nil
	}

	entry, err := decodeEntry(resp.Items[0])
	if err != nil {
		return FileEntry{}, false, err
	}
	return entry, true, nil
}

// Remove deletes one catalog entry by sequence number.
func (c *Catalog) Remove(ctx context.Context, seq uint64) error {
	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]ddbtypes.AttributeValue{
			"run_id": &ddbtypes.AttributeValueMemberS{Value: c.runID},
			"seq":    &ddbtypes.AttributeValueMemberN{Value: strconv.FormatUint(seq, 10)},
		},
	})
	return err
}

func (c *Catalog) latestSeq(ctx context.Context) (uint64, error) {
	entry, ok, err := c.Latest(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return entry.Seq, nil
}

func decodeEntry(item map[string]ddbtypes.AttributeValue) (FileEntry, error) {
	var entry FileEntry

	seqAttr, ok := item["seq"].(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return entry, errors.New("catalog item missing seq attribute")
	}
	seq, err := strconv.ParseUint(seqAttr.Value, 10, 64)
	if err != nil {
		return entry, fmt.Errorf("parse seq: %w", err)
	}
	entry.Seq = seq

	nameAttr, ok := item["file_name"].(*ddbtypes.AttributeValueMemberS)
	if !ok {
		return entry, errors.New("catalog item missing file_name attribute")
	}
	entry.Name = nameAttr.Value

	if countAttr, ok := item["event_count"].(*ddbtypes.AttributeValueMemberN); ok {
		n, err := strconv.Atoi(countAttr.Value)
		if err != nil {
			return entry, fmt.Errorf("parse event_count: %w", err)
		}
		entry.Events = n
	}

	if collAttr, ok := item["collections"].(*ddbtypes.AttributeValueMemberS); ok {
		if err := codec.Default.Unmarshal([]byte(collAttr.Value), &entry.Collections); err != nil {
			return entry, fmt.Errorf("decode collection inventory: %w", err)
		}
	}

	return entry, nil
}
