package config

import (
	"os"
	"strings"

	"docpipe/internal/errs"
)

// FallbackPrefix is prepended to a name when its plain lookup finds nothing.
const FallbackPrefix = "GOOGLE_CLOUD_"

// projectIDVariables are tried in order by ResolveProjectID.
var projectIDVariables = []string{"GOOGLE_CLOUD_PROJECT", "GCP_PROJECT", "GCLOUD_PROJECT"}

// Provider is a read-only source of named configuration values.
type Provider interface {
	Lookup(name string) (string, bool)
}

// Env reads from the process environment.
type Env struct{}

// Lookup implements Provider.
func (Env) Lookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

// Map is a Provider backed by a fixed map.
type Map map[string]string

// Lookup implements Provider.
func (m Map) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// Requirement names one configuration value and whether it must resolve.
type Requirement struct {
	Name     string
	Required bool
}

// Resolve looks up every requirement in p, trying name and then
// FallbackPrefix+name. Empty values count as unset.
//
// Optional values that resolve are included; those that don't are omitted. If
// any required value is unset, Resolve returns an *errs.ValidationError listing
// all of them and no map.
func Resolve(p Provider, reqs []Requirement) (map[string]string, error) {
	values := make(map[string]string, len(reqs))
	var missing []string

	for _, req := range reqs {
		if v, ok := lookup(p, req.Name); ok {
			values[req.Name] = v
			continue
		}
		if req.Required {
			missing = append(missing, req.Name)
		}
	}

	if len(missing) > 0 {
		return nil, errs.NewValidationError(missing[0], "missing required environment variables: "+strings.Join(missing, ", "))
	}
	return values, nil
}

// ResolveProjectID returns the Google Cloud project id from the first of
// GOOGLE_CLOUD_PROJECT, GCP_PROJECT and GCLOUD_PROJECT that is set.
func ResolveProjectID(p Provider) (string, error) {
	for _, name := range projectIDVariables {
		if v, ok := p.Lookup(name); ok && v != "" {
			return v, nil
		}
	}
	return "", errs.NewValidationError(projectIDVariables[0],
		"missing project id: set one of "+strings.Join(projectIDVariables, ", "))
}

func lookup(p Provider, name string) (string, bool) {
	if v, ok := p.Lookup(name); ok && v != "" {
		return v, true
	}
	if v, ok := p.Lookup(FallbackPrefix + name); ok && v != "" {
		return v, true
	}
	return "", false
}
