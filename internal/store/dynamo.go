package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"options-paper-ledger/internal/config"
	"options-paper-ledger/internal/models"
)

// positionAttr is the numeric partition key holding a row's position.
const positionAttr = "pos"

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore keeps one item per row, keyed by its position.
// Every column is a string attribute named after its header.
type DynamoStore struct {
	client DynamoAPI
	table  string
	logger *zap.Logger
}

var _ RecordStore = (*DynamoStore)(nil)

// NewDynamoStore loads the default AWS configuration for the configured region.
func NewDynamoStore(ctx context.Context, cfg *config.DynamoDB, logger *zap.Logger) (*DynamoStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("could not load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewDynamoStoreWithClient(client, cfg.Table, logger), nil
}

// NewDynamoStoreWithClient wraps an existing client.
func NewDynamoStoreWithClient(client DynamoAPI, table string, logger *zap.Logger) *DynamoStore {
	return &DynamoStore{client: client, table: table, logger: logger.Named("dynamo-store")}
}

// EnsureHeader only checks that the table exists; items carry their own column names.
func (s *DynamoStore) EnsureHeader(ctx context.Context, _ []string) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err != nil {
		return unavailable("describe table "+s.table, err)
	}
	return nil
}

// ReadAll returns one row per position from 0 to the highest stored pos, so
// a row's index is always its key. Positions with no item come back as
// empty rows, which the ledger skips.
func (s *DynamoStore) ReadAll(ctx context.Context) ([]models.Row, error) {
	byPos := make(map[int]models.Row)
	maxPos := -1
	err := s.scan(ctx, nil, func(item map[string]dynamotypes.AttributeValue) {
		pos, err := decodePosition(item)
		if err != nil {
			s.logger.Warn("Skipping item without a position", zap.Error(err))
			return
		}
		byPos[pos] = s.decodeRow(pos, item)
		if pos > maxPos {
			maxPos = pos
		}
	})
	if err != nil {
		return nil, unavailable("scan table", err)
	}

	rows := make([]models.Row, maxPos+1)
	for pos := range rows {
		if row, ok := byPos[pos]; ok {
			rows[pos] = row
		} else {
			rows[pos] = models.Row{}
		}
	}
	return rows, nil
}

// Append writes the row one past the highest stored position. The put is conditional,
// so a concurrent writer that took the same position makes it fail instead of overwriting.
func (s *DynamoStore) Append(ctx context.Context, row models.Row) error {
	pos, err := s.nextPosition(ctx)
	if err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}
	item[positionAttr] = &dynamotypes.AttributeValueMemberN{Value: strconv.Itoa(pos)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pos)"),
		ExpressionAttributeNames: map[string]string{"#pos": positionAttr},
	})
	if err != nil {
		return unavailable("put item", err)
	}

	s.logger.Debug("Appended row", zap.Int("position", pos))
	return nil
}

func (s *DynamoStore) UpdateFields(ctx context.Context, position int, fields models.Row) error {
	if position < 0 {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, position)
	}
	if len(fields) == 0 {
		return nil
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	names := map[string]string{"#pos": positionAttr}
	values := make(map[string]dynamotypes.AttributeValue, len(cols))
	expr := "SET "
	for i, col := range cols {
		n, v := fmt.Sprintf("#c%d", i), fmt.Sprintf(":v%d", i)
		if i > 0 {
			expr += ", "
		}
		expr += n + " = " + v
		names[n] = col
		values[v] = &dynamotypes.AttributeValueMemberS{Value: fields[col]}
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]dynamotypes.AttributeValue{
			positionAttr: &dynamotypes.AttributeValueMemberN{Value: strconv.Itoa(position)},
		},
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(#pos)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})

	var condFailed *dynamotypes.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, position)
	}
	if err != nil {
		return unavailable("update item", err)
	}
	return nil
}

func (s *DynamoStore) Close() error { return nil }

// nextPosition scans only the key attribute and returns MAX(pos)+1, or 0 for an empty table.
func (s *DynamoStore) nextPosition(ctx context.Context) (int, error) {
	next := 0
	err := s.scan(ctx, &dynamodb.ScanInput{
		ProjectionExpression:     aws.String("#pos"),
		ExpressionAttributeNames: map[string]string{"#pos": positionAttr},
	}, func(item map[string]dynamotypes.AttributeValue) {
		if pos, err := decodePosition(item); err == nil && pos >= next {
			next = pos + 1
		}
	})
	if err != nil {
		return 0, unavailable("read positions", err)
	}
	return next, nil
}

// scan walks every page of a consistent scan. base may carry a projection.
func (s *DynamoStore) scan(ctx context.Context, base *dynamodb.ScanInput, fn func(map[string]dynamotypes.AttributeValue)) error {
	var startKey map[string]dynamotypes.AttributeValue
	for {
		in := &dynamodb.ScanInput{}
		if base != nil {
			*in = *base
		}
		in.TableName = aws.String(s.table)
		in.ExclusiveStartKey = startKey
		in.ConsistentRead = aws.Bool(true)

		out, err := s.client.Scan(ctx, in)
		if err != nil {
			return err
		}
		for _, item := range out.Items {
			fn(item)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func decodePosition(item map[string]dynamotypes.AttributeValue) (int, error) {
	av, ok := item[positionAttr]
	if !ok {
		return 0, fmt.Errorf("item has no %q attribute", positionAttr)
	}
	var pos int
	if err := attributevalue.Unmarshal(av, &pos); err != nil {
		return 0, fmt.Errorf("decode %q: %w", positionAttr, err)
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative %q %d", positionAttr, pos)
	}
	return pos, nil
}

// decodeRow turns every string or null attribute into a cell. Attributes of
// other types are not ledger columns and are dropped with a warning.
func (s *DynamoStore) decodeRow(pos int, item map[string]dynamotypes.AttributeValue) models.Row {
	row := make(models.Row, len(item)-1)
	for name, av := range item {
		if name == positionAttr {
			continue
		}
		var cell string
		if err := attributevalue.Unmarshal(av, &cell); err != nil {
			s.logger.Warn("Dropping undecodable attribute",
				zap.Int("position", pos), zap.String("attribute", name), zap.Error(err))
			continue
		}
		row[name] = cell
	}
	return row
}
