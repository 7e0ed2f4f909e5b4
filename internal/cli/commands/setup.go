// Package commands implements the praeparo subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/praeparo-labs/praeparo/internal/cli/config"
	"github.com/praeparo-labs/praeparo/internal/pipeline"
)

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// outputTargets builds one target per configured format, writing artifacts
// next to each other under the output directory.
func outputTargets(cfg *config.Config, source string) ([]pipeline.OutputTarget, error) {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	targets := make([]pipeline.OutputTarget, 0, len(cfg.Formats))
	for _, format := range cfg.Formats {
		path := filepath.Join(cfg.OutputDir, stem+"."+strings.ToLower(strings.TrimSpace(format)))
		switch strings.ToLower(strings.TrimSpace(format)) {
		case "html":
			targets = append(targets, &pipeline.HTMLTarget{Path: path})
		case "csv":
			targets = append(targets, &pipeline.CSVTarget{Path: path})
		case "json":
			targets = append(targets, &pipeline.JSONTarget{Path: path})
		case "png":
			targets = append(targets, &pipeline.PNGTarget{Path: path, Exporter: cfg.PNGExporter})
		default:
			return nil, fmt.Errorf("unknown output format %q", format)
		}
	}
	return targets, nil
}
