package store

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"options-paper-ledger/internal/models"
)

// MockDynamo is a mock implementation of DynamoAPI.
type MockDynamo struct {
	mock.Mock
}

func (m *MockDynamo) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DescribeTableOutput)
	return out, args.Error(1)
}

func (m *MockDynamo) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.ScanOutput)
	return out, args.Error(1)
}

func (m *MockDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *MockDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func item(pos, id string) map[string]dynamotypes.AttributeValue {
	return map[string]dynamotypes.AttributeValue{
		positionAttr:      &dynamotypes.AttributeValueMemberN{Value: pos},
		models.ColID:      &dynamotypes.AttributeValueMemberS{Value: id},
		models.ColStatus:  &dynamotypes.AttributeValueMemberS{Value: "OPEN"},
		models.ColPnL:     &dynamotypes.AttributeValueMemberNULL{Value: true},
		models.ColLotSize: &dynamotypes.AttributeValueMemberS{Value: "75"},
	}
}

func isPositionScan(in *dynamodb.ScanInput) bool {
	return aws.ToString(in.ProjectionExpression) == "#pos"
}

func isFullScan(in *dynamodb.ScanInput) bool {
	return in.ProjectionExpression == nil
}

func posOnly(pos string) map[string]dynamotypes.AttributeValue {
	return map[string]dynamotypes.AttributeValue{positionAttr: &dynamotypes.AttributeValueMemberN{Value: pos}}
}

func TestDynamoStore_ReadAllPaginatesAndOrders(t *testing.T) {
	ctx := context.Background()
	client := new(MockDynamo)
	st := NewDynamoStoreWithClient(client, "paper_trades", zap.NewNop())

	lastKey := map[string]dynamotypes.AttributeValue{positionAttr: &dynamotypes.AttributeValueMemberN{Value: "0"}}
	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey == nil
	})).Return(&dynamodb.ScanOutput{
		Items:            []map[string]dynamotypes.AttributeValue{item("2", "3"), item("0", "1")},
		LastEvaluatedKey: lastKey,
	}, nil).Once()
	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey != nil
	})).Return(&dynamodb.ScanOutput{
		Items: []map[string]dynamotypes.AttributeValue{
			item("1", "2"),
			{models.ColID: &dynamotypes.AttributeValueMemberS{Value: "orphan"}},
		},
	}, nil).Once()

	rows, err := st.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, want := range []string{"1", "2", "3"} {
		assert.Equal(t, want, rows[i][models.ColID])
	}
	assert.Equal(t, "", rows[0][models.ColPnL])
	_, hasPos := rows[0][positionAttr]
	assert.False(t, hasPos)
	client.AssertExpectations(t)
}

func TestDynamoStore_ReadAllKeepsPositionsWithOddAttributes(t *testing.T) {
	ctx := context.Background()
	client := new(MockDynamo)
	st := NewDynamoStoreWithClient(client, "paper_trades", zap.NewNop())

	tagged := item("1", "2")
	tagged["Tags"] = &dynamotypes.AttributeValueMemberL{Value: []dynamotypes.AttributeValue{
		&dynamotypes.AttributeValueMemberS{Value: "hedge"},
	}}
	client.On("Scan", mock.Anything, mock.MatchedBy(isFullScan)).Return(&dynamodb.ScanOutput{
		Items: []map[string]dynamotypes.AttributeValue{item("0", "1"), tagged, item("2", "3")},
	}, nil).Once()
	client.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		key, ok := in.Key[positionAttr].(*dynamotypes.AttributeValueMemberN)
		return ok && key.Value == "2"
	})).Return(&dynamodb.UpdateItemOutput{}, nil).Once()

	rows, err := st.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2", rows[1][models.ColID])
	_, hasTags := rows[1]["Tags"]
	assert.False(t, hasTags)

	// Closing trade 3 must address the item stored at pos 2.
	position := -1
	for i, row := range rows {
		if row[models.ColID] == "3" {
			position = i
		}
	}
	require.Equal(t, 2, position)
	require.NoError(t, st.UpdateFields(ctx, position, models.Row{models.ColStatus: "CLOSED"}))
	client.AssertExpectations(t)
}

func TestDynamoStore_ReadAllFillsGaps(t *testing.T) {
	ctx := context.Background()
	client := new(MockDynamo)
	st := NewDynamoStoreWithClient(client, "paper_trades", zap.NewNop())

	client.On("Scan", mock.Anything, mock.Anything).Return(&dynamodb.ScanOutput{
		Items: []map[string]dynamotypes.AttributeValue{item("3", "4"), item("0", "1")},
	}, nil).Once()

	rows, err := st.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "1", rows[0][models.ColID])
	assert.Empty(t, rows[1])
	assert.Empty(t, rows[2])
	assert.Equal(t, "4", rows[3][models.ColID])
}

func TestDynamoStore_AppendUsesNextPosition(t *testing.T) {
	ctx := context.Background()
	client := new(MockDynamo)
	st := NewDynamoStoreWithClient(client, "paper_trades", zap.NewNop())

	// pos 1 was deleted by hand; the next free position is still past the highest one.
	client.On("Scan", mock.Anything, mock.MatchedBy(isPositionScan)).Return(&dynamodb.ScanOutput{
		Items: []map[string]dynamotypes.AttributeValue{posOnly("2"), posOnly("0")},
	}, nil).Once()
	client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		pos, ok := in.Item[positionAttr].(*dynamotypes.AttributeValueMemberN)
		id, idOK := in.Item[models.ColID].(*dynamotypes.AttributeValueMemberS)
		return ok && pos.Value == "3" && idOK && id.Value == "3" &&
			aws.ToString(in.TableName) == "paper_trades" &&
			aws.ToString(in.ConditionExpression) == "attribute_not_exists(#pos)"
	})).Return(&dynamodb.PutItemOutput{}, nil).Once()

	require.NoError(t, st.Append(ctx, sampleRow("3", "OPEN")))
	client.AssertExpectations(t)
}

func TestDynamoStore_AppendToEmptyTable(t *testing.T) {
	ctx := context.Background()
	client := new(MockDynamo)
	st := NewDynamoStoreWithClient(client, "paper_trades", zap.NewNop())

	client.On("Scan", mock.Anything, mock.MatchedBy(isPositionScan)).
		Return(&dynamodb.ScanOutput{}, nil).Once()
	client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		pos, ok := in.Item[positionAttr].(*dynamotypes.AttributeValueMemberN)
		return ok && pos.Value == "0"
	})).Return(&dynamodb.PutItemOutput{}, nil).Once()

	require.NoError(t, st.Append(ctx, sampleRow("1", "OPEN")))
	client.AssertExpectations(t)
}

func TestDynamoStore_AppendConflict(t *testing.T) {
	ctx := context.Background()
	client := new(MockDynamo)
	st := NewDynamoStoreWithClient(client, "paper_trades", zap.NewNop())

	client.On("Scan", mock.Anything, mock.Anything).Return(&dynamodb.ScanOutput{}, nil)
	client.On("PutItem", mock.Anything, mock.Anything).
		Return(nil, &dynamotypes.ConditionalCheckFailedException{Message: aws.String("taken")})

	err := st.Append(ctx, sampleRow("1", "OPEN"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestDynamoStore_UpdateFields(t *testing.T) {
	ctx := context.Background()
	client := new(MockDynamo)
	st := NewDynamoStoreWithClient(client, "paper_trades", zap.NewNop())

	client.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		key, ok := in.Key[positionAttr].(*dynamotypes.AttributeValueMemberN)
		// Columns are sorted: PnL, Status.
		return ok && key.Value == "4" &&
			aws.ToString(in.UpdateExpression) == "SET #c0 = :v0, #c1 = :v1" &&
			in.ExpressionAttributeNames["#c0"] == models.ColPnL &&
			in.ExpressionAttributeNames["#c1"] == models.ColStatus
	})).Return(&dynamodb.UpdateItemOutput{}, nil).Once()

	err := st.UpdateFields(ctx, 4, models.Row{models.ColStatus: "CLOSED", models.ColPnL: "10"})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestDynamoStore_UpdateMissingRow(t *testing.T) {
	ctx := context.Background()
	client := new(MockDynamo)
	st := NewDynamoStoreWithClient(client, "paper_trades", zap.NewNop())

	client.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &dynamotypes.ConditionalCheckFailedException{Message: aws.String("missing")})

	err := st.UpdateFields(ctx, 9, models.Row{models.ColStatus: "CLOSED"})
	assert.ErrorIs(t, err, ErrRowOutOfRange)
	assert.ErrorIs(t, st.UpdateFields(ctx, -1, models.Row{models.ColStatus: "CLOSED"}), ErrRowOutOfRange)
}

func TestDynamoStore_EnsureHeaderNeedsTable(t *testing.T) {
	ctx := context.Background()
	client := new(MockDynamo)
	st := NewDynamoStoreWithClient(client, "paper_trades", zap.NewNop())

	client.On("DescribeTable", mock.Anything, mock.Anything).
		Return(nil, &dynamotypes.ResourceNotFoundException{Message: aws.String("no table")}).Once()
	client.On("DescribeTable", mock.Anything, mock.Anything).
		Return(&dynamodb.DescribeTableOutput{}, nil).Once()

	assert.ErrorIs(t, st.EnsureHeader(ctx, models.Header), ErrStoreUnavailable)
	assert.NoError(t, st.EnsureHeader(ctx, models.Header))
}

func TestDynamoStore_ScanFailure(t *testing.T) {
	client := new(MockDynamo)
	st := NewDynamoStoreWithClient(client, "paper_trades", zap.NewNop())
	client.On("Scan", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	_, err := st.ReadAll(context.Background())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
