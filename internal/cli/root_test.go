package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVisual(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "hours.yaml")
	doc := `type: matrix
title: Team Hours
rows:
  - "{{ dim.Team }}"
values:
  - id: Hours
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Version(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "praeparo v")
}

func TestRootCmd_RenderWithMockDatasource(t *testing.T) {
	dir := t.TempDir()
	visual := writeVisual(t, dir)
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, "render", visual, "-d", "mock", "-o", outDir, "--formats", "json")
	require.NoError(t, err)

	artifact := filepath.Join(outDir, "hours.json")
	assert.Contains(t, out, artifact)
	assert.FileExists(t, artifact)
}

func TestRootCmd_RenderValidateAcceptsCompleteData(t *testing.T) {
	dir := t.TempDir()
	visual := writeVisual(t, dir)
	outDir := filepath.Join(dir, "out")

	// Mock data carries every declared value, so strict validation passes.
	_, err := execute(t, "render", visual, "-o", outDir, "--formats", "json", "--validate")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(outDir, "hours.json"))
}

func TestRootCmd_RenderMultipleFormats(t *testing.T) {
	dir := t.TempDir()
	visual := writeVisual(t, dir)
	outDir := filepath.Join(dir, "out")

	_, err := execute(t, "render", visual, "-o", outDir, "--formats", "html,csv")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(outDir, "hours.html"))
	assert.FileExists(t, filepath.Join(outDir, "hours.csv"))
}

func TestRootCmd_PlanPrintsDAX(t *testing.T) {
	dir := t.TempDir()
	visual := writeVisual(t, dir)

	out, err := execute(t, "plan", visual)
	require.NoError(t, err)

	assert.Contains(t, out, "EVALUATE")
	assert.Contains(t, out, "SUMMARIZECOLUMNS")
	assert.Contains(t, out, "dim[Team]")
}

func TestRootCmd_PlanWithParameters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "param.yaml")
	doc := `type: matrix
title: Hours
rows:
  - "{{ dim.Team }}"
values:
  - id: Hours
filters:
  - expression: "fact[Region] = \"${region}\""
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	out, err := execute(t, "plan", path, "-p", "region=EMEA")
	require.NoError(t, err)
	assert.Contains(t, out, `fact[Region] = "EMEA"`)
}

func TestRootCmd_RenderMissingDocumentFails(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "render", filepath.Join(dir, "absent.yaml"), "-o", filepath.Join(dir, "out"))
	require.Error(t, err)
}

func TestRootCmd_UnknownFormatRejected(t *testing.T) {
	dir := t.TempDir()
	visual := writeVisual(t, dir)

	_, err := execute(t, "render", visual, "-o", filepath.Join(dir, "out"), "--formats", "tiff")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tiff")
}
