package dynamostore

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/eugenenazirov/config-service/internal/model"
)

const (
	attrPK          = "pk"
	attrSK          = "sk"
	attrTenant      = "tenant"
	attrCloudRegion = "cloudRegion"
	attrService     = "service"
	attrConfigName  = "configName"
)

var errMalformedItem = errors.New("malformed item")

// item is the stored shape of a config leaf.
type item struct {
	PK          string    `dynamodbav:"pk"`
	SK          string    `dynamodbav:"sk"`
	Tenant      string    `dynamodbav:"tenant"`
	CloudRegion string    `dynamodbav:"cloudRegion"`
	Service     string    `dynamodbav:"service"`
	ConfigName  string    `dynamodbav:"configName"`
	Value       itemValue `dynamodbav:"value"`
	Unit        string    `dynamodbav:"unit,omitempty"`
	Description string    `dynamodbav:"description,omitempty"`
}

func newItem(rec model.Record) item {
	return item{
		PK:          rec.Key(),
		SK:          model.RecordSortKey,
		Tenant:      rec.Tenant,
		CloudRegion: rec.CloudRegion,
		Service:     rec.Service,
		ConfigName:  rec.ConfigName,
		Value:       itemValue{rec.Value.Value},
		Unit:        rec.Value.Unit,
		Description: rec.Value.Description,
	}
}

// record converts it back, rejecting items whose key disagrees with their
// attributes so distinct leaves are never merged.
func (it item) record() (model.Record, error) {
	rec := model.Record{
		Tenant:      it.Tenant,
		CloudRegion: it.CloudRegion,
		Service:     it.Service,
		ConfigName:  it.ConfigName,
		Value: model.ConfigValue{
			Value:       it.Value.Scalar,
			Unit:        it.Unit,
			Description: it.Description,
		},
	}
	if err := model.ValidateSegments(rec.Tenant, rec.CloudRegion, rec.Service, rec.ConfigName); err != nil {
		return model.Record{}, fmt.Errorf("%w %q: %w", errMalformedItem, it.PK, err)
	}
	if it.PK != rec.Key() {
		return model.Record{}, fmt.Errorf("%w %q: key does not match attributes %q", errMalformedItem, it.PK, rec.Key())
	}
	if rec.Value.Value.IsZero() {
		return model.Record{}, fmt.Errorf("%w %q: missing value", errMalformedItem, it.PK)
	}
	return rec, nil
}

// itemValue stores numbers as N and strings as S attributes.
type itemValue struct {
	model.Scalar
}

func (v itemValue) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	switch {
	case v.IsZero():
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case v.IsNumber():
		return &types.AttributeValueMemberN{Value: v.Raw()}, nil
	default:
		return &types.AttributeValueMemberS{Value: v.Raw()}, nil
	}
}

func (v *itemValue) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch tv := av.(type) {
	case *types.AttributeValueMemberN:
		n, err := model.ParseNumber(tv.Value)
		if err != nil {
			return err
		}
		v.Scalar = n
	case *types.AttributeValueMemberS:
		v.Scalar = model.String(tv.Value)
	case *types.AttributeValueMemberNULL:
		v.Scalar = model.Scalar{}
	default:
		return fmt.Errorf("%w: unsupported attribute type %T", model.ErrInvalidScalar, av)
	}
	return nil
}

func stringAttr(it map[string]types.AttributeValue, name string) (string, bool) {
	s, ok := it[name].(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return s.Value, true
}
