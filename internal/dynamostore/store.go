package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/config-service/internal/model"
)

const (
	// DefaultTableName is the table used when none is configured.
	DefaultTableName = "ConfigurationsTable"
	// DefaultTenantIndex is the global secondary index keyed on tenant.
	DefaultTenantIndex = "tenant-index"
)

// ErrBackend wraps DynamoDB failures returned in strict mode.
var ErrBackend = errors.New("dynamodb backend error")

// API is the subset of the DynamoDB client used by Store.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ErrorHook observes backend failures, e.g. for metrics. ctx is the context
// of the call that failed.
type ErrorHook func(ctx context.Context, operation string, err error)

// Store serves configuration straight from a DynamoDB table. It keeps no
// cached data; every call reads the table.
type Store struct {
	client      API
	table       string
	tenantIndex string
	logger      *zap.Logger
	strict      bool
	onError     ErrorHook
}

// Option configures a Store.
type Option func(*Store)

// WithTenantIndex sets the name of the tenant GSI.
func WithTenantIndex(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.tenantIndex = name
		}
	}
}

// WithStrictErrors makes read operations return backend failures instead of
// degrading to empty results.
func WithStrictErrors(strict bool) Option {
	return func(s *Store) {
		s.strict = strict
	}
}

// WithErrorHook registers fn to be called on every backend failure.
func WithErrorHook(fn ErrorHook) Option {
	return func(s *Store) {
		s.onError = fn
	}
}

// New returns a Store reading table through client.
func New(client API, table string, logger *zap.Logger, opts ...Option) *Store {
	if table == "" {
		table = DefaultTableName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		client:      client,
		table:       table,
		tenantIndex: DefaultTenantIndex,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Table returns the table name.
func (s *Store) Table() string {
	return s.table
}

// GetConfig reads the item addressed by req. Absent items yield nil.
func (s *Store) GetConfig(ctx context.Context, req model.ConfigRequest) (*model.ConfigValue, error) {
	if model.ValidateSegments(req.Tenant, req.CloudRegion, req.Service, req.ConfigName) != nil {
		return nil, nil
	}
	pk := model.CompositeKey(req.Tenant, req.CloudRegion, req.Service, req.ConfigName)

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			attrPK: &types.AttributeValueMemberS{Value: pk},
			attrSK: &types.AttributeValueMemberS{Value: model.RecordSortKey},
		},
	})
	if err != nil {
		return nil, s.fail(ctx, "GetConfig", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	rec, err := decodeItem(out.Item)
	if err != nil {
		return nil, s.fail(ctx, "GetConfig", err)
	}
	return &rec.Value, nil
}

// GetAllConfigs scans the whole table and rebuilds the nested tree.
func (s *Store) GetAllConfigs(ctx context.Context) (model.ConfigurationData, error) {
	b := model.NewBuilder()
	p := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{TableName: aws.String(s.table)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			if err := s.fail(ctx, "GetAllConfigs", err); err != nil {
				return nil, err
			}
			return model.ConfigurationData{}, nil
		}
		for _, raw := range page.Items {
			rec, err := decodeItem(raw)
			if err != nil {
				s.skip(ctx, "GetAllConfigs", err)
				continue
			}
			b.Add(rec)
		}
	}
	return b.Data(), nil
}

// GetTenants returns the distinct tenant attributes across the table.
func (s *Store) GetTenants(ctx context.Context) ([]string, error) {
	expr, err := expression.NewBuilder().
		WithProjection(expression.NamesList(expression.Name(attrTenant))).
		Build()
	if err != nil {
		return s.emptyOr(ctx, "GetTenants", err)
	}
	return s.scanDistinct(ctx, "GetTenants", &dynamodb.ScanInput{
		TableName:                aws.String(s.table),
		ProjectionExpression:     expr.Projection(),
		ExpressionAttributeNames: expr.Names(),
	}, attrTenant)
}

// GetCloudRegions queries the tenant index for the tenant's regions.
func (s *Store) GetCloudRegions(ctx context.Context, tenant string) ([]string, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key(attrTenant).Equal(expression.Value(tenant))).
		WithProjection(expression.NamesList(expression.Name(attrCloudRegion))).
		Build()
	if err != nil {
		return s.emptyOr(ctx, "GetCloudRegions", err)
	}

	values := mapset.NewThreadUnsafeSet[string]()
	p := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		IndexName:                 aws.String(s.tenantIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return s.emptyOr(ctx, "GetCloudRegions", err)
		}
		collect(values, page.Items, attrCloudRegion)
	}
	return sorted(values), nil
}

// GetServices scans for the services under tenant and cloudRegion.
func (s *Store) GetServices(ctx context.Context, tenant, cloudRegion string) ([]string, error) {
	filter := expression.Name(attrTenant).Equal(expression.Value(tenant)).
		And(expression.Name(attrCloudRegion).Equal(expression.Value(cloudRegion)))
	return s.filteredDistinct(ctx, "GetServices", filter, attrService)
}

// GetConfigNames scans for the config names under the given service.
func (s *Store) GetConfigNames(ctx context.Context, tenant, cloudRegion, service string) ([]string, error) {
	filter := expression.Name(attrTenant).Equal(expression.Value(tenant)).
		And(
			expression.Name(attrCloudRegion).Equal(expression.Value(cloudRegion)),
			expression.Name(attrService).Equal(expression.Value(service)),
		)
	return s.filteredDistinct(ctx, "GetConfigNames", filter, attrConfigName)
}

// Reload is a no-op; the table is always read live.
func (s *Store) Reload(context.Context) error {
	return nil
}

// PutConfig upserts the item addressed by req. Writing the same key and value
// again leaves the table unchanged.
func (s *Store) PutConfig(ctx context.Context, req model.ConfigRequest, value model.ConfigValue) error {
	if err := model.ValidateSegments(req.Tenant, req.CloudRegion, req.Service, req.ConfigName); err != nil {
		return err
	}
	rec := model.Record{
		Tenant:      req.Tenant,
		CloudRegion: req.CloudRegion,
		Service:     req.Service,
		ConfigName:  req.ConfigName,
		Value:       value,
	}
	if value.Value.IsZero() {
		return fmt.Errorf("%s: missing value", rec.Key())
	}

	av, err := attributevalue.MarshalMap(newItem(rec))
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.Key(), err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		s.report(ctx, "PutConfig", err)
		return fmt.Errorf("put %s: %w", rec.Key(), err)
	}
	return nil
}

func (s *Store) filteredDistinct(ctx context.Context, op string, filter expression.ConditionBuilder, attr string) ([]string, error) {
	expr, err := expression.NewBuilder().
		WithFilter(filter).
		WithProjection(expression.NamesList(expression.Name(attr))).
		Build()
	if err != nil {
		return s.emptyOr(ctx, op, err)
	}
	return s.scanDistinct(ctx, op, &dynamodb.ScanInput{
		TableName:                 aws.String(s.table),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, attr)
}

func (s *Store) scanDistinct(ctx context.Context, op string, input *dynamodb.ScanInput, attr string) ([]string, error) {
	values := mapset.NewThreadUnsafeSet[string]()
	p := dynamodb.NewScanPaginator(s.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return s.emptyOr(ctx, op, err)
		}
		collect(values, page.Items, attr)
	}
	return sorted(values), nil
}

func (s *Store) emptyOr(ctx context.Context, op string, err error) ([]string, error) {
	if err := s.fail(ctx, op, err); err != nil {
		return nil, err
	}
	return []string{}, nil
}

// fail logs and reports err. It returns a non-nil error only in strict mode.
func (s *Store) fail(ctx context.Context, op string, err error) error {
	s.report(ctx, op, err)
	if s.strict {
		return fmt.Errorf("%w: %s: %w", ErrBackend, op, err)
	}
	return nil
}

func (s *Store) report(ctx context.Context, op string, err error) {
	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("table", s.table),
		zap.Error(err),
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		fields = append(fields, zap.String("error_code", apiErr.ErrorCode()))
	}
	s.logger.Error("dynamodb backend failure", fields...)
	if s.onError != nil {
		s.onError(ctx, op, err)
	}
}

func (s *Store) skip(ctx context.Context, op string, err error) {
	s.logger.Warn("skipping malformed item",
		zap.String("operation", op),
		zap.String("table", s.table),
		zap.Error(err),
	)
	if s.onError != nil {
		s.onError(ctx, op, err)
	}
}

func decodeItem(raw map[string]types.AttributeValue) (model.Record, error) {
	var it item
	if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
		return model.Record{}, fmt.Errorf("%w: %w", errMalformedItem, err)
	}
	return it.record()
}

func collect(set mapset.Set[string], items []map[string]types.AttributeValue, attr string) {
	for _, it := range items {
		if v, ok := stringAttr(it, attr); ok {
			set.Add(v)
		}
	}
}

func sorted(set mapset.Set[string]) []string {
	out := set.ToSlice()
	slices.Sort(out)
	return out
}
