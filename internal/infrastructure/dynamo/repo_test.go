package dynamo

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/edutech-foundation/site-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

func (m *mockAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.TransactWriteItemsOutput)
	return out, args.Error(1)
}

func canceled(codes ...string) error {
	reasons := make([]types.CancellationReason, len(codes))
	for i, c := range codes {
		reasons[i] = types.CancellationReason{Code: aws.String(c)}
	}
	return &types.TransactionCanceledException{CancellationReasons: reasons}
}

// --- UserRepo ---

func TestUserRepo_CreateWritesGuards(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		if len(in.TransactItems) != 3 {
			return false
		}
		email := in.TransactItems[1].Put.Item["user_id"].(*types.AttributeValueMemberS).Value
		username := in.TransactItems[2].Put.Item["user_id"].(*types.AttributeValueMemberS).Value
		return email == "email#a@x.com" && username == "username#alice" &&
			aws.ToString(in.TransactItems[0].Put.ConditionExpression) == "attribute_not_exists(user_id)"
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	repo := NewUserRepo(api, "users")
	require.NoError(t, repo.Create(context.Background(), &domain.User{UserID: "u1", Username: "alice", Email: "a@x.com"}))
	api.AssertExpectations(t)
}

func TestUserRepo_CreateMapsCancellationReasons(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"email", canceled("None", "ConditionalCheckFailed", "None"), domain.ErrEmailTaken},
		{"both reports email", canceled("None", "ConditionalCheckFailed", "ConditionalCheckFailed"), domain.ErrEmailTaken},
		{"username", canceled("None", "None", "ConditionalCheckFailed"), domain.ErrUsernameTaken},
		{"id", canceled("ConditionalCheckFailed", "None", "None"), domain.ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &mockAPI{}
			api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, tc.err)
			err := NewUserRepo(api, "users").Create(context.Background(), &domain.User{UserID: "u1", Username: "alice", Email: "a@x.com"})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUserRepo_CreatePassesOtherErrors(t *testing.T) {
	api := &mockAPI{}
	boom := errors.New("throttled")
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, boom)
	err := NewUserRepo(api, "users").Create(context.Background(), &domain.User{UserID: "u1"})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrConflict)
}

func TestUserRepo_GetByEmail(t *testing.T) {
	item, err := attributevalue.MarshalMap(domain.User{UserID: "u1", Username: "alice", Email: "a@x.com"})
	require.NoError(t, err)

	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return aws.ToString(in.IndexName) == emailIndex
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}, nil).Once()
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil).Once()

	repo := NewUserRepo(api, "users")
	u, err := repo.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)

	_, err = repo.GetByEmail(context.Background(), "b@x.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_UpdatePasswordHashMissingUser(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})
	err := NewUserRepo(api, "users").UpdatePasswordHash(context.Background(), "ghost", "hash")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// --- VerificationRepo ---

func newVerificationRepo(api API, now time.Time) *VerificationRepo {
	r := NewVerificationRepo(api, "email_verifications")
	r.now = func() time.Time { return now }
	return r
}

func storedItem(t *testing.T, code string, exp time.Time) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(verificationItem{Email: "a@x.com", Type: typeOTP, Code: code, ExpiresAt: exp})
	require.NoError(t, err)
	return item
}

func TestVerificationRepo_ConsumeConditionalDelete(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	api := &mockAPI{}
	api.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		n := in.ExpressionAttributeValues[":now"].(*types.AttributeValueMemberN).Value
		return n == strconv.FormatInt(now.Unix(), 10) &&
			in.ExpressionAttributeValues[":c"].(*types.AttributeValueMemberS).Value == "123456"
	})).Return(&dynamodb.DeleteItemOutput{}, nil)

	require.NoError(t, newVerificationRepo(api, now).Consume(context.Background(), "a@x.com", "123456"))
	api.AssertExpectations(t)
}

func TestVerificationRepo_ConsumeFailures(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	cases := []struct {
		name string
		item map[string]types.AttributeValue
		want error
	}{
		{"missing", nil, domain.ErrOTPMissing},
		{"expired", storedItem(t, "123456", now.Add(-time.Second)), domain.ErrOTPMissing},
		{"mismatch", storedItem(t, "654321", now.Add(time.Minute)), domain.ErrOTPMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &mockAPI{}
			api.On("DeleteItem", mock.Anything, mock.Anything).
				Return(nil, &types.ConditionalCheckFailedException{Item: tc.item})
			err := newVerificationRepo(api, now).Consume(context.Background(), "a@x.com", "123456")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestVerificationRepo_GetIgnoresExpiredItem(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).
		Return(&dynamodb.GetItemOutput{Item: storedItem(t, "123456", now)}, nil)

	_, err := newVerificationRepo(api, now).Get(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, domain.ErrOTPMissing)
}

func TestVerificationRepo_MarkSetsExpiry(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	api := &mockAPI{}
	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		typ := in.Item["type"].(*types.AttributeValueMemberS).Value
		exp := in.Item["expires_at"].(*types.AttributeValueMemberN).Value
		return typ == typeVerified && exp == strconv.FormatInt(now.Add(15*time.Minute).Unix(), 10)
	})).Return(&dynamodb.PutItemOutput{}, nil)

	require.NoError(t, newVerificationRepo(api, now).Mark(context.Background(), "a@x.com", 15*time.Minute))
	api.AssertExpectations(t)
}
