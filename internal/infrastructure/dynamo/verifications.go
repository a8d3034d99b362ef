package dynamo

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/edutech-foundation/site-api/internal/domain"
)

const (
	typeOTP      = "otp"
	typeVerified = "verified"
)

// verificationItem is one row of the verifications table.
// PK: email, SK: type ("otp" | "verified").
type verificationItem struct {
	Email     string    `dynamodbav:"email"`
	Type      string    `dynamodbav:"type"`
	Code      string    `dynamodbav:"code,omitempty"`
	ExpiresAt time.Time `dynamodbav:"expires_at,unixtime"`
}

// VerificationRepo keeps pending OTPs and verified-email markers. DynamoDB's
// TTL reaper is lazy, so every read re-checks expires_at.
type VerificationRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewVerificationRepo(client API, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName, now: time.Now}
}

func (r *VerificationRepo) Put(ctx context.Context, p *domain.PendingOTP) error {
	return r.put(ctx, verificationItem{Email: p.Email, Type: typeOTP, Code: p.Code, ExpiresAt: p.ExpiresAt})
}

func (r *VerificationRepo) Get(ctx context.Context, email string) (*domain.PendingOTP, error) {
	it, err := r.get(ctx, email, typeOTP)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, domain.ErrOTPMissing
	}
	return &domain.PendingOTP{Email: it.Email, Code: it.Code, ExpiresAt: it.ExpiresAt}, nil
}

// Consume deletes the pending code only if it matches and is still live.
// The conditional delete makes concurrent consumers race on DynamoDB itself.
func (r *VerificationRepo) Consume(ctx context.Context, email, code string) error {
	now := r.now()
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("email", email, "type", typeOTP),
		ConditionExpression: aws.String("#c = :c AND #e > :now"),
		ExpressionAttributeNames: map[string]string{
			"#c": "code",
			"#e": "expires_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c":   &types.AttributeValueMemberS{Value: code},
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return err
	}
	if len(ccf.Item) == 0 {
		return domain.ErrOTPMissing
	}
	var old verificationItem
	if err := attributevalue.UnmarshalMap(ccf.Item, &old); err != nil {
		return fmt.Errorf("unmarshal verification: %w", err)
	}
	if !now.Before(old.ExpiresAt) {
		return domain.ErrOTPMissing
	}
	if subtle.ConstantTimeCompare([]byte(old.Code), []byte(code)) != 1 {
		return domain.ErrOTPMismatch
	}
	// Unreachable unless the stored item disagrees with its own condition.
	return domain.ErrOTPMissing
}

func (r *VerificationRepo) Delete(ctx context.Context, email string) error {
	return r.delete(ctx, email, typeOTP)
}

func (r *VerificationRepo) Mark(ctx context.Context, email string, ttl time.Duration) error {
	return r.put(ctx, verificationItem{Email: email, Type: typeVerified, ExpiresAt: r.now().Add(ttl)})
}

func (r *VerificationRepo) IsMarked(ctx context.Context, email string) (bool, error) {
	it, err := r.get(ctx, email, typeVerified)
	if err != nil {
		return false, err
	}
	return it != nil, nil
}

func (r *VerificationRepo) Clear(ctx context.Context, email string) error {
	return r.delete(ctx, email, typeVerified)
}

func (r *VerificationRepo) put(ctx context.Context, it verificationItem) error {
	item, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// get returns nil without error when the item is absent or past its expiry.
func (r *VerificationRepo) get(ctx context.Context, email, typ string) (*verificationItem, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            compositeKey("email", email, "type", typ),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	var it verificationItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal verification: %w", err)
	}
	if !r.now().Before(it.ExpiresAt) {
		return nil, nil
	}
	return &it, nil
}

func (r *VerificationRepo) delete(ctx context.Context, email, typ string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("email", email, "type", typ),
	})
	return err
}
