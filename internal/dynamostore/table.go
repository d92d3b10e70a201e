package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrTableExists is returned by CreateTable when the table is already present.
var ErrTableExists = errors.New("table already exists")

// TableAPI is the subset of the DynamoDB client used to provision the table.
type TableAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// TableSpec describes the table layout to provision.
type TableSpec struct {
	Name          string
	TenantIndex   string
	ReadCapacity  int64
	WriteCapacity int64
	// WaitTimeout bounds how long CreateTable waits for ACTIVE. Zero skips waiting.
	WaitTimeout time.Duration
}

func (s TableSpec) withDefaults() TableSpec {
	if s.Name == "" {
		s.Name = DefaultTableName
	}
	if s.TenantIndex == "" {
		s.TenantIndex = DefaultTenantIndex
	}
	if s.ReadCapacity <= 0 {
		s.ReadCapacity = 5
	}
	if s.WriteCapacity <= 0 {
		s.WriteCapacity = 5
	}
	return s
}

// CreateTable creates the configuration table with its tenant index.
func CreateTable(ctx context.Context, client TableAPI, ts TableSpec) error {
	ts = ts.withDefaults()
	throughput := &types.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(ts.ReadCapacity),
		WriteCapacityUnits: aws.Int64(ts.WriteCapacity),
	}

	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(ts.Name),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrPK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrSK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrTenant), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrSK), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(ts.TenantIndex),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(attrTenant), KeyType: types.KeyTypeHash},
				},
				Projection:            &types.Projection{ProjectionType: types.ProjectionTypeAll},
				ProvisionedThroughput: throughput,
			},
		},
		BillingMode:           types.BillingModeProvisioned,
		ProvisionedThroughput: throughput,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return fmt.Errorf("%w: %s", ErrTableExists, ts.Name)
		}
		return fmt.Errorf("create table %s: %w", ts.Name, err)
	}

	if ts.WaitTimeout <= 0 {
		return nil
	}
	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(ts.Name)}, ts.WaitTimeout); err != nil {
		return fmt.Errorf("wait for table %s: %w", ts.Name, err)
	}
	return nil
}
