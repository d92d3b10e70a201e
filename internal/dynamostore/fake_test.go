package dynamostore

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var equalityPattern = regexp.MustCompile(`(#\w+)\s*=\s*(:\w+)`)

// fakeTable is an in-memory stand-in for a DynamoDB table. It understands
// the equality expressions and projections the store generates and pages
// results pageSize items at a time.
type fakeTable struct {
	mu       sync.Mutex
	index    string
	pageSize int
	items    map[string]map[string]types.AttributeValue
	fail     map[string]error
	calls    map[string]int
}

func newFakeTable() *fakeTable {
	return &fakeTable{
		index:    DefaultTenantIndex,
		pageSize: 2,
		items:    map[string]map[string]types.AttributeValue{},
		fail:     map[string]error{},
		calls:    map[string]int{},
	}
}

func (f *fakeTable) put(raw map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk, _ := stringAttr(raw, attrPK)
	f.items[pk] = raw
}

func (f *fakeTable) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

func (f *fakeTable) enter(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.fail[op]
}

func (f *fakeTable) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := f.enter("GetItem"); err != nil {
		return nil, err
	}
	pk, _ := stringAttr(in.Key, attrPK)
	sk, _ := stringAttr(in.Key, attrSK)

	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[pk]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	if got, _ := stringAttr(it, attrSK); got != sk {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: it}, nil
}

func (f *fakeTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := f.enter("PutItem"); err != nil {
		return nil, err
	}
	f.put(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if err := f.enter("Scan"); err != nil {
		return nil, err
	}
	items, last := f.page(aws.ToString(in.FilterExpression), aws.ToString(in.ProjectionExpression),
		in.ExpressionAttributeNames, in.ExpressionAttributeValues, in.ExclusiveStartKey)
	return &dynamodb.ScanOutput{Items: items, Count: int32(len(items)), LastEvaluatedKey: last}, nil
}

func (f *fakeTable) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if err := f.enter("Query"); err != nil {
		return nil, err
	}
	if aws.ToString(in.IndexName) != f.index {
		return nil, &types.ResourceNotFoundException{Message: aws.String("index not found")}
	}
	items, last := f.page(aws.ToString(in.KeyConditionExpression), aws.ToString(in.ProjectionExpression),
		in.ExpressionAttributeNames, in.ExpressionAttributeValues, in.ExclusiveStartKey)
	return &dynamodb.QueryOutput{Items: items, Count: int32(len(items)), LastEvaluatedKey: last}, nil
}

func (f *fakeTable) page(
	condition, projection string,
	names map[string]string,
	values map[string]types.AttributeValue,
	start map[string]types.AttributeValue,
) ([]map[string]types.AttributeValue, map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	if startPK, ok := stringAttr(start, attrPK); ok {
		idx, _ := slices.BinarySearch(keys, startPK)
		if idx < len(keys) && keys[idx] == startPK {
			idx++
		}
		keys = keys[idx:]
	}

	var out []map[string]types.AttributeValue
	for i, k := range keys {
		if len(out) == f.pageSize {
			return out, map[string]types.AttributeValue{
				attrPK: &types.AttributeValueMemberS{Value: keys[i-1]},
				attrSK: &types.AttributeValueMemberS{Value: "config"},
			}
		}
		it := f.items[k]
		if !matches(it, condition, names, values) {
			continue
		}
		out = append(out, project(it, projection, names))
	}
	return out, nil
}

func matches(it map[string]types.AttributeValue, condition string, names map[string]string, values map[string]types.AttributeValue) bool {
	for _, m := range equalityPattern.FindAllStringSubmatch(condition, -1) {
		want, ok := values[m[2]].(*types.AttributeValueMemberS)
		if !ok {
			return false
		}
		got, ok := stringAttr(it, names[m[1]])
		if !ok || got != want.Value {
			return false
		}
	}
	return true
}

func project(it map[string]types.AttributeValue, projection string, names map[string]string) map[string]types.AttributeValue {
	if projection == "" {
		return it
	}
	out := map[string]types.AttributeValue{}
	for _, alias := range strings.Split(projection, ",") {
		name := names[strings.TrimSpace(alias)]
		if v, ok := it[name]; ok {
			out[name] = v
		}
	}
	return out
}

// fakeTableAdmin records CreateTable calls and reports every table ACTIVE.
type fakeTableAdmin struct {
	created []*dynamodb.CreateTableInput
	exists  bool
}

func (f *fakeTableAdmin) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if f.exists {
		return nil, &types.ResourceInUseException{Message: aws.String("Table already exists")}
	}
	f.created = append(f.created, in)
	f.exists = true
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeTableAdmin) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if !f.exists {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
		TableName:   in.TableName,
		TableStatus: types.TableStatusActive,
	}}, nil
}

var errThrottled = errors.New("ProvisionedThroughputExceededException: throttled")
