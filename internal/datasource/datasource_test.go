package datasource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, descriptor string) (visualPath string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "datasources"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "visuals"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "datasources", "sales.yaml"), []byte(descriptor), 0o644))
	visualPath = filepath.Join(root, "visuals", "matrix.yaml")
	require.NoError(t, os.WriteFile(visualPath, []byte("type: matrix\n"), 0o644))
	return visualPath
}

func staticEnv(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		value, ok := values[name]
		return value, ok
	}
}

const fullDescriptor = `type: powerbi
datasetId: ds-123
tenantId: tenant-1
clientId: client-1
clientSecret: secret-1
refreshToken: token-1
`

func TestResolve_EmptyReferenceIsMock(t *testing.T) {
	r := &Resolver{LookupEnv: staticEnv(nil)}

	for _, reference := range []string{"", "  ", "mock", "MOCK"} {
		resolved, err := r.Resolve(reference, "visual.yaml")
		require.NoError(t, err)
		assert.True(t, resolved.Mock())
	}
}

func TestResolve_LiteralDescriptor(t *testing.T) {
	visualPath := writeProject(t, fullDescriptor)
	r := &Resolver{LookupEnv: staticEnv(nil)}

	resolved, err := r.Resolve("sales", visualPath)
	require.NoError(t, err)

	assert.Equal(t, "powerbi", resolved.Type)
	assert.Equal(t, "ds-123", resolved.DatasetID)
	assert.Equal(t, "tenant-1", resolved.Settings.TenantID)
	assert.Equal(t, DefaultScope, resolved.Settings.Scope)
	assert.False(t, resolved.Mock())
}

func TestResolve_EnvPlaceholderExpansion(t *testing.T) {
	visualPath := writeProject(t, `type: powerbi
datasetId: "${env:CUSTOM_DATASET}"
tenantId: tenant-1
clientId: client-1
clientSecret: secret-1
refreshToken: token-1
`)
	r := &Resolver{LookupEnv: staticEnv(map[string]string{"CUSTOM_DATASET": "ds-env"})}

	resolved, err := r.Resolve("sales", visualPath)
	require.NoError(t, err)
	assert.Equal(t, "ds-env", resolved.DatasetID)
}

func TestResolve_UnsetPlaceholderNamesVariable(t *testing.T) {
	visualPath := writeProject(t, `type: powerbi
datasetId: "${env:CUSTOM_DATASET}"
tenantId: tenant-1
clientId: client-1
clientSecret: secret-1
refreshToken: token-1
`)
	r := &Resolver{LookupEnv: staticEnv(nil)}

	_, err := r.Resolve("sales", visualPath)

	var rerr *ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "CUSTOM_DATASET", rerr.Missing)
}

func TestResolve_MissingFieldNamesField(t *testing.T) {
	visualPath := writeProject(t, `type: powerbi
datasetId: ds-123
tenantId: tenant-1
clientId: client-1
refreshToken: token-1
`)
	r := &Resolver{LookupEnv: staticEnv(nil)}

	_, err := r.Resolve("sales", visualPath)

	var rerr *ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "clientSecret", rerr.Missing)
	assert.Equal(t, "sales", rerr.Datasource)
}

func TestResolve_EnvironmentFallbacks(t *testing.T) {
	visualPath := writeProject(t, "type: powerbi\n")
	r := &Resolver{LookupEnv: staticEnv(map[string]string{
		EnvDatasetID:    "ds-fallback",
		EnvTenantID:     "tenant-fallback",
		EnvClientID:     "client-fallback",
		EnvClientSecret: "secret-fallback",
		EnvRefreshToken: "token-fallback",
		EnvScope:        "custom-scope",
	})}

	resolved, err := r.Resolve("sales", visualPath)
	require.NoError(t, err)

	assert.Equal(t, "ds-fallback", resolved.DatasetID)
	assert.Equal(t, "custom-scope", resolved.Settings.Scope)
}

func TestResolve_UnknownReference(t *testing.T) {
	visualPath := writeProject(t, fullDescriptor)
	r := &Resolver{LookupEnv: staticEnv(nil)}

	_, err := r.Resolve("nonexistent", visualPath)

	var rerr *ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "nonexistent", rerr.Datasource)
}

func TestResolve_PathReference(t *testing.T) {
	visualPath := writeProject(t, fullDescriptor)
	r := &Resolver{LookupEnv: staticEnv(nil)}

	resolved, err := r.Resolve("datasources/sales.yaml", visualPath)
	require.NoError(t, err)
	assert.Equal(t, "ds-123", resolved.DatasetID)
}
