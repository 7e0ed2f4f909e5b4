package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"os/exec"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/praeparo-labs/praeparo/internal/render"
	"github.com/praeparo-labs/praeparo/internal/visual"
)

// Artifact records one emitted output.
type Artifact struct {
	Target string
	Path   string
}

// OutputTarget emits a rendered figure to a destination. Implementations
// distinguish a missing render backend (render.Error) from a destination
// write failure (OutputError).
type OutputTarget interface {
	Name() string
	Emit(figure *render.Figure) (Artifact, error)
}

// HTMLTarget writes a standalone HTML document.
type HTMLTarget struct {
	Path string
}

// Name implements OutputTarget.
func (t *HTMLTarget) Name() string { return "html" }

// Emit implements OutputTarget.
func (t *HTMLTarget) Emit(figure *render.Figure) (Artifact, error) {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString(`<html lang="en"><head><meta charset="utf-8" />`)
	b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1" />`)
	fmt.Fprintf(&b,
		"<style>body{margin:0;padding:0;}table.go-pretty-table th{background:%s;color:%s;text-align:left;}</style>",
		figure.Style.HeaderBackground, figure.Style.HeaderForeground)
	b.WriteString("</head><body>")
	if figure.Title != "" {
		fmt.Fprintf(&b, "<h1>%s</h1>", html.EscapeString(figure.Title))
	}

	if figure.Layout == visual.LayoutHorizontal {
		b.WriteString(`<div style="display:flex;gap:16px;">`)
	}
	for _, tbl := range figure.Tables {
		b.WriteString("<section>")
		if tbl.Title != "" && tbl.Title != figure.Title {
			fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(tbl.Title))
		}
		b.WriteString(tableWriter(tbl).RenderHTML())
		b.WriteString("</section>")
	}
	if figure.Layout == visual.LayoutHorizontal {
		b.WriteString("</div>")
	}
	b.WriteString("</body></html>\n")

	if err := os.WriteFile(t.Path, []byte(b.String()), 0o644); err != nil {
		return Artifact{}, &OutputError{Target: t.Name(), Path: t.Path, Cause: err}
	}
	return Artifact{Target: t.Name(), Path: t.Path}, nil
}

// CSVTarget writes the figure's tables as CSV, blank-line separated.
type CSVTarget struct {
	Path string
}

// Name implements OutputTarget.
func (t *CSVTarget) Name() string { return "csv" }

// Emit implements OutputTarget.
func (t *CSVTarget) Emit(figure *render.Figure) (Artifact, error) {
	sections := make([]string, 0, len(figure.Tables))
	for _, tbl := range figure.Tables {
		sections = append(sections, tableWriter(tbl).RenderCSV())
	}
	content := strings.Join(sections, "\n\n") + "\n"

	if err := os.WriteFile(t.Path, []byte(content), 0o644); err != nil {
		return Artifact{}, &OutputError{Target: t.Name(), Path: t.Path, Cause: err}
	}
	return Artifact{Target: t.Name(), Path: t.Path}, nil
}

// JSONTarget writes the figure model as indented JSON.
type JSONTarget struct {
	Path string
}

// Name implements OutputTarget.
func (t *JSONTarget) Name() string { return "json" }

// Emit implements OutputTarget.
func (t *JSONTarget) Emit(figure *render.Figure) (Artifact, error) {
	raw, err := json.MarshalIndent(figure, "", "  ")
	if err != nil {
		return Artifact{}, &OutputError{Target: t.Name(), Path: t.Path, Cause: err}
	}
	if err := os.WriteFile(t.Path, append(raw, '\n'), 0o644); err != nil {
		return Artifact{}, &OutputError{Target: t.Name(), Path: t.Path, Cause: err}
	}
	return Artifact{Target: t.Name(), Path: t.Path}, nil
}

// DefaultPNGExporter is the binary PNGTarget invokes when none is configured.
const DefaultPNGExporter = "praeparo-export"

// PNGTarget delegates static image export to an external exporter binary,
// feeding it the figure model on stdin. A missing exporter is a render
// backend failure, not a write failure.
type PNGTarget struct {
	Path     string
	Exporter string
}

// Name implements OutputTarget.
func (t *PNGTarget) Name() string { return "png" }

// Emit implements OutputTarget.
func (t *PNGTarget) Emit(figure *render.Figure) (Artifact, error) {
	exporter := t.Exporter
	if exporter == "" {
		exporter = DefaultPNGExporter
	}
	binary, err := exec.LookPath(exporter)
	if err != nil {
		return Artifact{}, &render.Error{
			Reason: fmt.Sprintf("png export requires the %q exporter", exporter),
			Cause:  err,
		}
	}

	raw, err := json.Marshal(figure)
	if err != nil {
		return Artifact{}, &OutputError{Target: t.Name(), Path: t.Path, Cause: err}
	}
	cmd := exec.Command(binary, "--format", "png", "--output", t.Path)
	cmd.Stdin = bytes.NewReader(raw)
	if out, err := cmd.CombinedOutput(); err != nil {
		return Artifact{}, &OutputError{
			Target: t.Name(),
			Path:   t.Path,
			Cause:  fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out))),
		}
	}
	return Artifact{Target: t.Name(), Path: t.Path}, nil
}

func tableWriter(tbl render.Table) table.Writer {
	w := table.NewWriter()
	header := make(table.Row, len(tbl.Headers))
	for i, h := range tbl.Headers {
		header[i] = h
	}
	w.AppendHeader(header)
	for _, row := range tbl.Rows {
		cells := make(table.Row, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		w.AppendRow(cells)
	}
	return w
}
