// Package datasource resolves datasource descriptors into connection
// settings. Descriptor fields may be literal values or `${env:NAME}`
// placeholders expanded from the process environment; the rest of the
// pipeline only ever sees a fully-resolved target.
package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultScope is the OAuth scope used when a descriptor does not override it.
const DefaultScope = "https://analysis.windows.net/powerbi/api/.default"

// Environment variable fallbacks for descriptor fields.
const (
	EnvDatasetID    = "PRAEPARO_PBI_DATASET_ID"
	EnvWorkspaceID  = "PRAEPARO_PBI_WORKSPACE_ID"
	EnvTenantID     = "PRAEPARO_PBI_TENANT_ID"
	EnvClientID     = "PRAEPARO_PBI_CLIENT_ID"
	EnvClientSecret = "PRAEPARO_PBI_CLIENT_SECRET"
	EnvRefreshToken = "PRAEPARO_PBI_REFRESH_TOKEN"
	EnvScope        = "PRAEPARO_PBI_SCOPE"
)

var envPlaceholder = regexp.MustCompile(`^\$\{env:([A-Z0-9_]+)\}$|^env:([A-Z0-9_]+)$`)

// ResolutionError reports a missing credential or configuration value,
// naming the value so the failure is diagnosable without inspecting
// internals. It is always surfaced before any remote call.
type ResolutionError struct {
	Datasource string
	Missing    string
	Source     string
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("datasource %q: missing required value %q", e.Datasource, e.Missing)
	if e.Source != "" {
		msg += " (" + e.Source + ")"
	}
	return msg
}

// Descriptor is a raw datasource document.
type Descriptor struct {
	Type         string `yaml:"type"`
	DatasetID    string `yaml:"datasetId"`
	WorkspaceID  string `yaml:"workspaceId"`
	TenantID     string `yaml:"tenantId"`
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
	RefreshToken string `yaml:"refreshToken"`
	Scope        string `yaml:"scope"`
}

// Settings holds the credentials needed to authenticate with the backend.
type Settings struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	RefreshToken string
	Scope        string
}

// Resolved is the runtime view of a datasource after environment expansion.
type Resolved struct {
	Name        string
	Type        string // "mock" or "powerbi"
	DatasetID   string
	WorkspaceID string
	Settings    Settings
	SourcePath  string
}

// Mock reports whether execution should use the deterministic mock provider.
func (r *Resolved) Mock() bool { return r == nil || r.Type == "mock" }

// Resolver resolves datasource references for visuals.
type Resolver struct {
	// LookupEnv supplies environment values; defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

func (r *Resolver) lookup(name string) (string, bool) {
	if r.LookupEnv != nil {
		return r.LookupEnv(name)
	}
	return os.LookupEnv(name)
}

// Resolve locates and resolves the datasource named by reference for the
// visual at visualPath. An empty or "mock" reference yields the mock target.
func (r *Resolver) Resolve(reference, visualPath string) (*Resolved, error) {
	name := strings.TrimSpace(reference)
	if name == "" || strings.EqualFold(name, "mock") {
		return &Resolved{Name: "mock", Type: "mock"}, nil
	}

	path, err := r.locate(name, visualPath)
	if err != nil {
		return nil, err
	}

	descriptor, err := load(path)
	if err != nil {
		return nil, err
	}
	return r.resolveDescriptor(name, path, descriptor)
}

func (r *Resolver) resolveDescriptor(name, path string, d *Descriptor) (*Resolved, error) {
	required := func(value, field, envKey string) (string, error) {
		resolved, err := r.expand(value, name, path)
		if err != nil {
			return "", err
		}
		if resolved == "" && envKey != "" {
			resolved, _ = r.lookup(envKey)
		}
		if resolved == "" {
			return "", &ResolutionError{Datasource: name, Missing: field, Source: path}
		}
		return resolved, nil
	}
	optional := func(value, envKey string) (string, error) {
		resolved, err := r.expand(value, name, path)
		if err != nil {
			return "", err
		}
		if resolved == "" && envKey != "" {
			resolved, _ = r.lookup(envKey)
		}
		return resolved, nil
	}

	datasetID, err := required(d.DatasetID, "datasetId", EnvDatasetID)
	if err != nil {
		return nil, err
	}
	workspaceID, err := optional(d.WorkspaceID, EnvWorkspaceID)
	if err != nil {
		return nil, err
	}
	tenantID, err := required(d.TenantID, "tenantId", EnvTenantID)
	if err != nil {
		return nil, err
	}
	clientID, err := required(d.ClientID, "clientId", EnvClientID)
	if err != nil {
		return nil, err
	}
	clientSecret, err := required(d.ClientSecret, "clientSecret", EnvClientSecret)
	if err != nil {
		return nil, err
	}
	refreshToken, err := required(d.RefreshToken, "refreshToken", EnvRefreshToken)
	if err != nil {
		return nil, err
	}
	scope, err := optional(d.Scope, EnvScope)
	if err != nil {
		return nil, err
	}
	if scope == "" {
		scope = DefaultScope
	}

	return &Resolved{
		Name:        name,
		Type:        "powerbi",
		DatasetID:   datasetID,
		WorkspaceID: workspaceID,
		Settings: Settings{
			TenantID:     tenantID,
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RefreshToken: refreshToken,
			Scope:        scope,
		},
		SourcePath: path,
	}, nil
}

// expand resolves `${env:NAME}` placeholders. A placeholder naming an unset
// variable is a resolution error identifying the variable.
func (r *Resolver) expand(raw, datasource, source string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", nil
	}
	match := envPlaceholder.FindStringSubmatch(text)
	if match == nil {
		return text, nil
	}
	envName := match[1]
	if envName == "" {
		envName = match[2]
	}
	value, ok := r.lookup(envName)
	if !ok {
		return "", &ResolutionError{Datasource: datasource, Missing: envName, Source: source}
	}
	return value, nil
}

// locate searches for a datasource definition: a path-like reference is
// resolved against the visual's ancestors, a bare name is searched as
// datasources/<name>.yaml (then .yml) walking up from the visual.
func (r *Resolver) locate(reference, visualPath string) (string, error) {
	extensions := []string{".yaml", ".yml"}

	if strings.ContainsAny(reference, "/\\") || hasYAMLExt(reference) {
		if filepath.IsAbs(reference) {
			if fileExists(reference) {
				return reference, nil
			}
		} else {
			for _, dir := range ancestors(filepath.Dir(visualPath)) {
				candidate := filepath.Join(dir, reference)
				if fileExists(candidate) {
					return candidate, nil
				}
			}
		}
		return "", &ResolutionError{Datasource: reference, Missing: "definition", Source: reference}
	}

	for _, dir := range ancestors(filepath.Dir(visualPath)) {
		for _, ext := range extensions {
			candidate := filepath.Join(dir, "datasources", reference+ext)
			if fileExists(candidate) {
				return candidate, nil
			}
			candidate = filepath.Join(dir, reference+ext)
			if fileExists(candidate) {
				return candidate, nil
			}
		}
	}
	return "", &ResolutionError{Datasource: reference, Missing: "definition"}
}

func hasYAMLExt(ref string) bool {
	ext := filepath.Ext(ref)
	return ext == ".yaml" || ext == ".yml"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func ancestors(start string) []string {
	var dirs []string
	current := start
	for {
		dirs = append(dirs, current)
		parent := filepath.Dir(current)
		if parent == current {
			return dirs
		}
		current = parent
	}
}

func load(path string) (*Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading datasource %s: %w", path, err)
	}
	var descriptor Descriptor
	if err := yaml.Unmarshal(raw, &descriptor); err != nil {
		return nil, fmt.Errorf("parsing datasource %s: %w", path, err)
	}
	if descriptor.Type == "" {
		descriptor.Type = "powerbi"
	}
	if descriptor.Type != "powerbi" {
		return nil, fmt.Errorf("datasource %s: unsupported type %q", path, descriptor.Type)
	}
	return &descriptor, nil
}
