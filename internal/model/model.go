package model

import (
	"fmt"
	"maps"
	"slices"

	"github.com/hashicorp/go-multierror"
)

// ConfigValue is a single named configuration leaf.
type ConfigValue struct {
	Value       Scalar `json:"value" yaml:"value"`
	Unit        string `json:"unit,omitempty" yaml:"unit,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Service maps config names to values.
type Service struct {
	Configs map[string]ConfigValue `json:"configs" yaml:"configs"`
}

// CloudRegion maps service names to services.
type CloudRegion struct {
	Services map[string]Service `json:"services" yaml:"services"`
}

// Tenant maps cloud region names to regions.
type Tenant struct {
	Cloud map[string]CloudRegion `json:"cloud" yaml:"cloud"`
}

// ConfigurationData is the root of the store, keyed by tenant name.
type ConfigurationData map[string]Tenant

// ConfigRequest addresses a single config value. Fields are matched exactly.
type ConfigRequest struct {
	Tenant      string `json:"tenant"`
	CloudRegion string `json:"cloudRegion"`
	Service     string `json:"service"`
	ConfigName  string `json:"configName"`
}

// ConfigResponse is the lookup result returned over HTTP.
type ConfigResponse struct {
	Tenant      string       `json:"tenant"`
	CloudRegion string       `json:"cloudRegion"`
	Service     string       `json:"service"`
	ConfigName  string       `json:"configName"`
	Config      *ConfigValue `json:"config"`
	Found       bool         `json:"found"`
}

// NewConfigResponse builds a response for req; a nil value means not found.
func NewConfigResponse(req ConfigRequest, value *ConfigValue) ConfigResponse {
	return ConfigResponse{
		Tenant:      req.Tenant,
		CloudRegion: req.CloudRegion,
		Service:     req.Service,
		ConfigName:  req.ConfigName,
		Config:      value,
		Found:       value != nil,
	}
}

// Lookup follows the four-level path of req. Any missing level yields false.
func (d ConfigurationData) Lookup(req ConfigRequest) (ConfigValue, bool) {
	svc, ok := d.service(req.Tenant, req.CloudRegion, req.Service)
	if !ok {
		return ConfigValue{}, false
	}
	v, ok := svc.Configs[req.ConfigName]
	return v, ok
}

// Tenants returns the sorted tenant names.
func (d ConfigurationData) Tenants() []string {
	return sortedKeys(d)
}

// CloudRegions returns the sorted region names of tenant.
func (d ConfigurationData) CloudRegions(tenant string) []string {
	t, ok := d[tenant]
	if !ok {
		return []string{}
	}
	return sortedKeys(t.Cloud)
}

// Services returns the sorted service names under tenant and cloudRegion.
func (d ConfigurationData) Services(tenant, cloudRegion string) []string {
	t, ok := d[tenant]
	if !ok {
		return []string{}
	}
	r, ok := t.Cloud[cloudRegion]
	if !ok {
		return []string{}
	}
	return sortedKeys(r.Services)
}

// ConfigNames returns the sorted config names under the given service.
func (d ConfigurationData) ConfigNames(tenant, cloudRegion, service string) []string {
	svc, ok := d.service(tenant, cloudRegion, service)
	if !ok {
		return []string{}
	}
	return sortedKeys(svc.Configs)
}

func (d ConfigurationData) service(tenant, cloudRegion, service string) (Service, bool) {
	t, ok := d[tenant]
	if !ok {
		return Service{}, false
	}
	r, ok := t.Cloud[cloudRegion]
	if !ok {
		return Service{}, false
	}
	svc, ok := r.Services[service]
	return svc, ok
}

// Clone returns a deep copy of d.
func (d ConfigurationData) Clone() ConfigurationData {
	out := make(ConfigurationData, len(d))
	for tn, t := range d {
		cloud := make(map[string]CloudRegion, len(t.Cloud))
		for rn, r := range t.Cloud {
			services := make(map[string]Service, len(r.Services))
			for sn, s := range r.Services {
				services[sn] = Service{Configs: maps.Clone(s.Configs)}
			}
			cloud[rn] = CloudRegion{Services: services}
		}
		out[tn] = Tenant{Cloud: cloud}
	}
	return out
}

// Validate checks that every leaf carries a value. All offending paths are reported.
func (d ConfigurationData) Validate() error {
	var result *multierror.Error
	for _, rec := range d.Records() {
		if rec.Value.Value.IsZero() {
			result = multierror.Append(result, fmt.Errorf("%s: missing value", rec.Key()))
		}
	}
	return result.ErrorOrNil()
}

// Len returns the number of leaf configs.
func (d ConfigurationData) Len() int {
	n := 0
	for _, t := range d {
		for _, r := range t.Cloud {
			for _, s := range r.Services {
				n += len(s.Configs)
			}
		}
	}
	return n
}

func sortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return []string{}
	}
	return slices.Sorted(maps.Keys(m))
}
