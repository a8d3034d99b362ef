package dynamo

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/edutech-foundation/site-api/internal/config"
	"go.uber.org/zap"
)

// Bootstrap creates the users and verifications tables when missing and
// turns on expiry for verification items. Failures are logged; the
// repositories surface them on first use.
func Bootstrap(ctx context.Context, client *dynamodb.Client, tables config.DynamoTables, log *zap.SugaredLogger) {
	// Uniqueness guard items share the users table; they carry neither email
	// nor username, so the sparse GSIs never see them.
	createTable(ctx, client, log, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.Users),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("user_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("username"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("email"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("user_id"), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(usernameIndex, "username", ""),
			gsi(emailIndex, "email", ""),
		},
	})

	ready := createTable(ctx, client, log, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.Verifications),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("email"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("type"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("email"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("type"), KeyType: types.KeyTypeRange},
		},
	})
	if ready {
		enableTTL(ctx, client, log, tables.Verifications, "expires_at")
	}
}

// gsi builds a GSI descriptor. If sortKey is empty, only a hash key is added.
func gsi(indexName, hashKey, sortKey string) types.GlobalSecondaryIndex {
	ks := []types.KeySchemaElement{
		{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
	}
	if sortKey != "" {
		ks = append(ks, types.KeySchemaElement{
			AttributeName: aws.String(sortKey), KeyType: types.KeyTypeRange,
		})
	}
	return types.GlobalSecondaryIndex{
		IndexName:  aws.String(indexName),
		KeySchema:  ks,
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
}

// tableActiveTimeout bounds how long Bootstrap waits for a new table before
// configuring TTL on it.
const tableActiveTimeout = 2 * time.Minute

// createTable creates the table and waits for it to become ACTIVE.
// A table that already exists counts as ready.
func createTable(ctx context.Context, client *dynamodb.Client, log *zap.SugaredLogger, input *dynamodb.CreateTableInput) bool {
	name := aws.ToString(input.TableName)
	if _, err := client.CreateTable(ctx, input); err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return true
		}
		log.Warnw("could not create table", "table", name, "err", err)
		return false
	}
	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: input.TableName}, tableActiveTimeout); err != nil {
		log.Warnw("table did not become active", "table", name, "err", err)
		return false
	}
	log.Infow("created table", "table", name)
	return true
}

// enableTTL turns on expiry for ttlAttr unless it is already on; DynamoDB
// rejects a repeated enable.
func enableTTL(ctx context.Context, client *dynamodb.Client, log *zap.SugaredLogger, tableName, ttlAttr string) {
	desc, err := client.DescribeTimeToLive(ctx, &dynamodb.DescribeTimeToLiveInput{TableName: aws.String(tableName)})
	if err == nil && desc.TimeToLiveDescription != nil &&
		aws.ToString(desc.TimeToLiveDescription.AttributeName) == ttlAttr &&
		desc.TimeToLiveDescription.TimeToLiveStatus == types.TimeToLiveStatusEnabled {
		return
	}
	_, err = client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String(ttlAttr),
		},
	})
	if err != nil {
		log.Warnw("could not enable TTL", "table", tableName, "attr", ttlAttr, "err", err)
		return
	}
	log.Infow("enabled TTL", "table", tableName, "attr", ttlAttr)
}
