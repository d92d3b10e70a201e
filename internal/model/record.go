package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	// KeySeparator joins the four path segments of a composite key.
	KeySeparator = "#"
	// RecordSortKey is the constant sort key of every flat record.
	RecordSortKey = "config"
)

// ErrInvalidSegment indicates a path segment that cannot be part of a composite key.
var ErrInvalidSegment = errors.New("path segment must be non-empty and must not contain " + KeySeparator)

// Record is the flat form of one config leaf.
type Record struct {
	Tenant      string
	CloudRegion string
	Service     string
	ConfigName  string
	Value       ConfigValue
}

// Request returns the lookup addressing r.
func (r Record) Request() ConfigRequest {
	return ConfigRequest{
		Tenant:      r.Tenant,
		CloudRegion: r.CloudRegion,
		Service:     r.Service,
		ConfigName:  r.ConfigName,
	}
}

// Key returns the composite key of r.
func (r Record) Key() string {
	return CompositeKey(r.Tenant, r.CloudRegion, r.Service, r.ConfigName)
}

// CompositeKey joins the four segments with KeySeparator.
func CompositeKey(tenant, cloudRegion, service, configName string) string {
	return strings.Join([]string{tenant, cloudRegion, service, configName}, KeySeparator)
}

// ValidateSegments rejects segments that would make a composite key ambiguous.
func ValidateSegments(segments ...string) error {
	for _, s := range segments {
		if s == "" || strings.Contains(s, KeySeparator) {
			return fmt.Errorf("%w: %q", ErrInvalidSegment, s)
		}
	}
	return nil
}

// Records flattens d into one record per leaf, ordered by composite key.
func (d ConfigurationData) Records() []Record {
	out := make([]Record, 0, d.Len())
	for tn, t := range d {
		for rn, r := range t.Cloud {
			for sn, s := range r.Services {
				for cn, v := range s.Configs {
					out = append(out, Record{
						Tenant:      tn,
						CloudRegion: rn,
						Service:     sn,
						ConfigName:  cn,
						Value:       v,
					})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key() < out[j].Key()
	})
	return out
}

// Builder rebuilds a ConfigurationData tree from flat records. Intermediate
// levels are created on first use and reused afterwards.
type Builder struct {
	data ConfigurationData
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{data: ConfigurationData{}}
}

// Add places rec in the tree.
func (b *Builder) Add(rec Record) {
	t, ok := b.data[rec.Tenant]
	if !ok {
		t = Tenant{Cloud: map[string]CloudRegion{}}
		b.data[rec.Tenant] = t
	}
	r, ok := t.Cloud[rec.CloudRegion]
	if !ok {
		r = CloudRegion{Services: map[string]Service{}}
		t.Cloud[rec.CloudRegion] = r
	}
	s, ok := r.Services[rec.Service]
	if !ok {
		s = Service{Configs: map[string]ConfigValue{}}
		r.Services[rec.Service] = s
	}
	s.Configs[rec.ConfigName] = rec.Value
}

// Data returns the tree built so far.
func (b *Builder) Data() ConfigurationData {
	return b.data
}

// FromRecords rebuilds the nested tree from records.
func FromRecords(records []Record) ConfigurationData {
	b := NewBuilder()
	for _, rec := range records {
		b.Add(rec)
	}
	return b.Data()
}
