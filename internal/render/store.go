package render

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"salesforecast/internal/files"
	"salesforecast/internal/forecast"
)

// ChartURLPrefix is where stored charts are served from
const ChartURLPrefix = "/static/charts/"

// DefaultKeepCharts bounds how many chart files stay on disk
const DefaultKeepCharts = 200

// Artifact is a rendered chart saved to disk
type Artifact struct {
	Name        string `json:"name"`
	Path        string `json:"-"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// ChartStore renders charts and keeps the most recent ones on disk
type ChartStore struct {
	renderer Renderer
	store    *files.Store
	keep     int
	logger   *slog.Logger
}

// NewChartStore creates a chart store writing to store. keep <= 0 uses
// DefaultKeepCharts.
func NewChartStore(renderer Renderer, store *files.Store, keep int, logger *slog.Logger) *ChartStore {
	if keep <= 0 {
		keep = DefaultKeepCharts
	}
	return &ChartStore{
		renderer: renderer,
		store:    store,
		keep:     keep,
		logger:   logger.With(slog.String("component", "chart_store")),
	}
}

// Renderer returns the configured renderer
func (c *ChartStore) Renderer() Renderer { return c.renderer }

// Save renders spec and writes it under a fresh name
func (c *ChartStore) Save(ctx context.Context, spec forecast.ChartSpec) (*Artifact, error) {
	start := time.Now()
	data, err := c.renderer.Render(ctx, spec)
	if err != nil {
		return nil, err
	}

	format := c.renderer.Format()
	name := fmt.Sprintf("chart_%s%s", uuid.New().String(), format.Extension())
	name, err = c.store.WriteFile(ctx, name, data)
	if err != nil {
		return nil, fmt.Errorf("store chart: %w", err)
	}
	fullPath, err := c.store.Path(name)
	if err != nil {
		return nil, err
	}

	if removed, err := c.store.Prune(c.keep, name); err != nil {
		c.logger.WarnContext(ctx, "failed to prune old charts", slog.String("error", err.Error()))
	} else if removed > 0 {
		c.logger.DebugContext(ctx, "pruned old charts", slog.Int("removed", removed))
	}

	c.logger.InfoContext(ctx, "chart rendered",
		slog.String("name", name),
		slog.String("format", string(format)),
		slog.Int("size_bytes", len(data)),
		slog.Duration("duration", time.Since(start)))

	return &Artifact{
		Name:        name,
		Path:        fullPath,
		URL:         path.Join(ChartURLPrefix, name),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}
