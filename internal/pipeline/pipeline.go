package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/decadal/internal/cache"
	"github.com/ppiankov/decadal/internal/classify"
	"github.com/ppiankov/decadal/internal/dataset"
	"github.com/ppiankov/decadal/internal/emit"
	"github.com/ppiankov/decadal/internal/model"
	"github.com/ppiankov/decadal/internal/worker"
)

// Pipeline runs load -> classify -> emit for one input
type Pipeline struct {
	fetcher  *Fetcher
	renderer *emit.Renderer
	config   *model.Config
	log      io.Writer
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	renderer, err := emit.NewRenderer(cfg.Output.Dir, cfg.Output.Format, cfg.Output.Indent, cfg.Output.Atomic)
	if err != nil {
		return nil, err
	}

	opts := []FetcherOption{
		WithLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)),
		WithRobots(cfg.HTTP.RespectRobots),
	}
	// Only remote inputs are cached; local runs never start the memory janitor
	if cfg.Cache.Enabled && IsRemote(cfg.Input.Path) {
		opts = append(opts, WithCache(
			cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL),
			cfg.Cache.DiskTTL,
		))
	}

	return &Pipeline{
		fetcher: NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes,
			cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy, opts...),
		renderer: renderer,
		config:   cfg,
		log:      io.Discard,
	}, nil
}

// SetLog directs progress lines to w
func (p *Pipeline) SetLog(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	p.log = w
}

func (p *Pipeline) logf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(p.log, format, args...)
}

func (p *Pipeline) loadOptions() dataset.Options {
	opts := dataset.DefaultOptions()
	opts.Delimiter = p.config.DelimiterRune()
	opts.Encoding = p.config.Input.Encoding
	opts.Trim = p.config.Input.Trim
	return opts
}

// Load reads the configured input, local or remote, into a Dataset
func (p *Pipeline) Load(ctx context.Context) (*model.Dataset, error) {
	source := p.config.Input.Path

	if !IsRemote(source) {
		return dataset.LoadFile(source, p.loadOptions())
	}

	p.logf("⚙️  Fetching %s...\n", source)
	result, err := p.fetcher.FetchWithRetry(ctx, source)
	if err != nil {
		return nil, &model.ParseError{Source: source, Err: err}
	}
	p.logFetch(source, result)

	ds, err := dataset.Load(bytes.NewReader(result.Body), source, p.loadOptions())
	if err == nil || !result.FromCache {
		return ds, err
	}

	// A cached copy that no longer parses is dropped and fetched again
	p.logf("⚠️  Cached copy of %s is unreadable (%v), fetching again\n", source, err)
	if err := p.fetcher.Invalidate(source); err != nil {
		p.logf("⚠️  Could not drop cached copy: %v\n", err)
	}
	result, err = p.fetcher.FetchWithRetry(ctx, source)
	if err != nil {
		return nil, &model.ParseError{Source: source, Err: err}
	}
	p.logFetch(source, result)

	return dataset.Load(bytes.NewReader(result.Body), source, p.loadOptions())
}

func (p *Pipeline) logFetch(source string, result *FetchResult) {
	if result.FromCache {
		p.logf("✓ Using cached copy (%d bytes)\n", len(result.Body))
		return
	}
	p.logf("✓ Downloaded %d bytes\n", len(result.Body))
	if result.FinalURL != "" && result.FinalURL != source {
		p.logf("  Redirected to %s\n", result.FinalURL)
	}
	if strings.HasPrefix(strings.ToLower(result.ContentType), "text/html") {
		p.logf("⚠️  %s served %s, expected delimited text\n", source, result.ContentType)
	}
}

// Targets lists the artifacts of a run: every bucket, then the full dataset
func Targets(ds *model.Dataset, buckets []model.Bucket) []worker.Target {
	targets := make([]worker.Target, 0, len(buckets)+1)
	for _, b := range buckets {
		targets = append(targets, worker.Target{Name: b.Name(), Records: b.Records})
	}
	return append(targets, worker.Target{Name: emit.DataName, Records: ds.Records})
}

// Run executes the full pipeline. Nothing is written unless the whole
// dataset loads and classifies.
func (p *Pipeline) Run(ctx context.Context) (*model.RunReport, error) {
	start := time.Now()

	ds, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	p.logf("✓ Loaded %d records from %s\n", ds.Len(), ds.Source)
	if len(ds.DuplicateFields) > 0 {
		p.logf("⚠️  Duplicate header columns collapsed to one key (right-most wins): %s\n",
			strings.Join(ds.DuplicateFields, ", "))
	}

	buckets, err := classify.Classify(ds)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	batch := worker.NewBatchEmitter(p.renderer, p.config.Output.Workers)
	results := batch.EmitAll(ctx, Targets(ds, buckets))
	if err := worker.FirstError(results); err != nil {
		return nil, fmt.Errorf("emit: %w", err)
	}

	report := &model.RunReport{
		Source:     ds.Source,
		Rows:       ds.Len(),
		Unbucketed: classify.Unbucketed(ds, buckets),
	}
	for _, b := range buckets {
		report.Buckets = append(report.Buckets, model.BucketSummary{
			Name:  b.Name(),
			First: b.Range.First(),
			Last:  b.Range.Last(),
			Count: len(b.Records),
		})
	}
	for _, r := range results {
		report.Artifacts = append(report.Artifacts, r.Artifact)
		p.logf("✓ Wrote %s (%d records)\n", r.Artifact.Path, r.Artifact.Count)
	}
	report.Duration = time.Since(start)

	return report, nil
}
