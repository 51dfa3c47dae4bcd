//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of TelcoETL.
//
// TelcoETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TelcoETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with TelcoETL. If not, see https://www.gnu.org/licenses/.


package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aaronlmathis/telcoetl/config"
	"github.com/aaronlmathis/telcoetl/core"
	"github.com/aaronlmathis/telcoetl/database"
	"github.com/aaronlmathis/telcoetl/logging"
	"github.com/aaronlmathis/telcoetl/readers"
	"github.com/aaronlmathis/telcoetl/transform"
	"github.com/aaronlmathis/telcoetl/writers"
)

// Package pipeline orchestrates one TelcoETL run: extract the raw churn file,
// stage it, and optionally export and load the staged table.
//
// A run moves through
//
//	INIT -> EXTRACTING -> EXTRACTED -> [STAGING -> STAGED] -> [LOADING -> LOADED] -> DONE
//
// and ends in FAILED from any active state. Failures are logged with a message
// for their kind and returned unchanged; there is no retry and no partial success.

// ResolveSourcePath returns cfg.SourcePath when set, otherwise the default raw
// extract under the project root (see ProjectRoot).
func ResolveSourcePath(cfg config.PipelineConfig) string {
	if cfg.SourcePath != "" {
		if readers.IsS3URI(cfg.SourcePath) {
			return cfg.SourcePath
		}
		return filepath.Clean(cfg.SourcePath)
	}
	return filepath.Join(ProjectRoot(cfg), filepath.FromSlash(config.DefaultSourceFile))
}

// ProjectRoot returns cfg.ProjectRoot when set. Otherwise the data layout is
// anchored at the directory of the running binary, so an installed binary
// finds data/raw beside it wherever it is started from. The working directory
// is used only when the executable cannot be located. Under `go run` the binary
// lives in a build cache, so set ETL_PROJECT_ROOT there.
func ProjectRoot(cfg config.PipelineConfig) string {
	if cfg.ProjectRoot != "" {
		return cfg.ProjectRoot
	}
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// ResolveExportPath returns cfg.Export.Path when set, otherwise
// <project_root>/data/staging/<table>.<format>.
func ResolveExportPath(cfg *config.Config) string {
	if cfg.Export.Path != "" {
		return cfg.Export.Path
	}
	root := ProjectRoot(cfg.Pipeline)
	table := cfg.Load.Table
	if table == "" {
		table = "stg_telco_customers"
	}
	return filepath.Join(root, "data", "staging", table+"."+strings.ToLower(cfg.Export.Format))
}

// Result summarizes a run.
type Result struct {
	RunID         string
	State         State
	Source        string
	RowsExtracted int
	RowsStaged    int
	RowsExported  int64
	RowsLoaded    int64
	ExportPath    string
	Extract       time.Duration
	Stage         time.Duration
	Export        time.Duration
	Load          time.Duration
	Total         time.Duration
}

// DBOpener opens a warehouse connection. database.Open satisfies it.
type DBOpener func(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*database.Handle, error)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPreviewWriter sets where the post-extraction preview is written. Nil disables it.
func WithPreviewWriter(w io.Writer) Option {
	return func(p *Pipeline) { p.preview = w }
}

// WithExtractor replaces the default extractor.
func WithExtractor(e *readers.Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithUploader sets the uploader used for s3:// export paths.
func WithUploader(u writers.Uploader) Option {
	return func(p *Pipeline) { p.uploader = u }
}

// WithDBOpener replaces database.Open for the load phase.
func WithDBOpener(open DBOpener) Option {
	return func(p *Pipeline) { p.openDB = open }
}

// WithMetrics records run metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline runs the telco churn ETL once per Run call.
type Pipeline struct {
	cfg       *config.Config
	log       *zap.Logger
	policy    transform.BlankPolicy
	preview   io.Writer
	extractor *readers.Extractor
	uploader  writers.Uploader
	openDB    DBOpener
	metrics   *Metrics

	mu    sync.Mutex
	state State
}

// New creates a Pipeline from cfg. A nil log means the global logger.
func New(cfg *config.Config, log *zap.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, core.NewError(core.KindConfig, "new_pipeline", fmt.Errorf("config is required"))
	}
	policy, err := transform.ParseBlankPolicy(cfg.Pipeline.BlankPolicy)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:     cfg,
		log:     logging.Named(log, "pipeline"),
		policy:  policy,
		openDB:  database.Open,
		metrics: NewMetrics(),
		state:   StateInit,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Metrics returns the metrics recorded by runs of this pipeline.
func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run executes the pipeline. On failure the returned Result is in StateFailed
// and the error is the one raised by the failing phase.
func (p *Pipeline) Run(ctx context.Context) (res *Result, err error) {
	start := time.Now()
	res = &Result{
		RunID:  uuid.New().String(),
		Source: ResolveSourcePath(p.cfg.Pipeline),
	}
	log := p.log.With(zap.String("run_id", res.RunID))

	p.setState(StateInit)
	defer func() {
		res.Total = time.Since(start)
		res.State = p.State()
		p.metrics.observeRun(res.State == StateDone, time.Now())
		if path := p.cfg.Pipeline.MetricsFile; path != "" {
			if werr := p.metrics.WriteTextfile(path); werr != nil {
				log.Warn("failed to write metrics file", zap.String("path", path), zap.Error(werr))
			}
		}
	}()

	log.Info("pipeline started", zap.String("source", res.Source))

	if err := p.prepare(ctx, res.Source); err != nil {
		return res, p.fail(log, "extract", "failed to prepare pipeline", err)
	}

	// Extract
	p.setState(StateExtracting)
	phaseStart := time.Now()
	ds, err := p.extractor.Extract(ctx, res.Source)
	if err != nil {
		return res, p.fail(log, "extract", extractFailureMessage(err), err)
	}
	res.Extract = time.Since(phaseStart)
	res.RowsExtracted = ds.NumRows()
	p.metrics.observePhase("extract", ds.NumRows(), res.Extract)
	p.setState(StateExtracted)

	if err := WritePreview(p.preview, ds, p.cfg.Pipeline.PreviewRows); err != nil {
		log.Warn("failed to write preview", zap.Error(err))
	}

	out := ds
	if p.cfg.Pipeline.Stage {
		p.setState(StateStaging)
		phaseStart = time.Now()
		staged, err := transform.StageTelcoCustomers(ctx, ds,
			transform.WithBlankPolicy(p.policy),
			transform.WithLogger(logging.Named(log, "stage")),
		)
		if err != nil {
			return res, p.fail(log, "stage", stageFailureMessage(err), err)
		}
		res.Stage = time.Since(phaseStart)
		res.RowsStaged = staged.NumRows()
		p.metrics.observePhase("stage", staged.NumRows(), res.Stage)
		p.setState(StateStaged)
		out = staged
	}

	// The export is written here but only published once the load has
	// succeeded; any later failure discards it.
	var pending core.DataSink
	defer func() {
		if pending != nil {
			if aerr := writers.Abort(pending); aerr != nil {
				log.Warn("failed to discard export", zap.String("path", res.ExportPath), zap.Error(aerr))
			}
		}
	}()

	if p.cfg.Export.Format != "" {
		phaseStart = time.Now()
		res.ExportPath = ResolveExportPath(p.cfg)
		sink, n, err := p.export(ctx, out, res.ExportPath)
		if err != nil {
			return res, p.fail(log, "export", "failed to export staged table", err)
		}
		pending = sink
		res.RowsExported = n
		res.Export = time.Since(phaseStart)
	}

	if p.cfg.Pipeline.Load {
		p.setState(StateLoading)
		phaseStart = time.Now()
		n, err := p.load(ctx, log, out)
		if err != nil {
			return res, p.fail(log, "load", loadFailureMessage(err), err)
		}
		res.RowsLoaded = n
		res.Load = time.Since(phaseStart)
		p.metrics.observePhase("load", int(n), res.Load)
		p.setState(StateLoaded)
		log.Info("load complete", zap.String("table", p.cfg.Load.Table), zap.Int64("rows", n))
	}

	if pending != nil {
		phaseStart = time.Now()
		sink := pending
		pending = nil
		if err := writers.Commit(ctx, sink); err != nil {
			return res, p.fail(log, "export", "failed to export staged table", err)
		}
		res.Export += time.Since(phaseStart)
		p.metrics.observePhase("export", int(res.RowsExported), res.Export)
		log.Info("export complete", zap.String("path", res.ExportPath), zap.Int64("rows", res.RowsExported))
	}

	p.setState(StateDone)
	log.Info("pipeline finished",
		zap.Int("rows", out.NumRows()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// prepare builds the extractor and, for s3:// paths, the S3 clients.
func (p *Pipeline) prepare(ctx context.Context, source string) error {
	exportS3 := p.cfg.Export.Format != "" && readers.IsS3URI(ResolveExportPath(p.cfg))
	needS3 := (p.extractor == nil && readers.IsS3URI(source)) || (p.uploader == nil && exportS3)

	var extractorOpts []readers.ExtractorOption
	if needS3 {
		client, err := readers.NewS3Client(ctx, p.cfg.S3)
		if err != nil {
			return err
		}
		extractorOpts = append(extractorOpts, readers.WithS3Client(client))
		if p.uploader == nil {
			p.uploader = writers.NewS3Uploader(client)
		}
	}

	if p.extractor == nil {
		if d := p.cfg.Pipeline.Delimiter; d != "" {
			comma, err := config.Delimiter(d)
			if err != nil {
				return core.NewError(core.KindConfig, "prepare", err)
			}
			extractorOpts = append(extractorOpts, readers.WithCSVOptions(readers.WithCSVComma(comma)))
		}
		p.extractor = readers.NewExtractor(logging.Named(p.log, "extract"), extractorOpts...)
	}
	return nil
}

// export writes ds to a new export sink and returns it uncommitted. On error
// the sink has already been aborted.
func (p *Pipeline) export(ctx context.Context, ds *core.Dataset, path string) (core.DataSink, int64, error) {
	cfg := p.cfg.Export
	cfg.Path = path

	var opts []writers.ExportOption
	if p.uploader != nil {
		opts = append(opts, writers.WithUploader(p.uploader))
	}
	sink, err := writers.NewExportSink(ctx, cfg, ds, opts...)
	if err != nil {
		return nil, 0, err
	}
	n, err := writers.WriteDataset(ctx, sink, ds)
	if err != nil {
		_ = writers.Abort(sink)
		return nil, n, err
	}
	return sink, n, nil
}

// load writes ds into the warehouse. The connection is scoped to this call.
func (p *Pipeline) load(ctx context.Context, log *zap.Logger, ds *core.Dataset) (int64, error) {
	handle, err := p.openDB(ctx, p.cfg.Database, logging.Named(log, "database"))
	if err != nil {
		return 0, err
	}
	defer handle.Close()

	opts := []writers.PostgresLoaderOption{
		writers.WithTableName(p.cfg.Load.Table),
		writers.WithColumns(ds.Columns()),
		writers.WithTruncateTable(p.cfg.Load.Truncate),
		writers.WithCreateTable(p.cfg.Load.CreateTable),
	}
	if p.cfg.Load.Timeout > 0 {
		opts = append(opts, writers.WithQueryTimeout(p.cfg.Load.Timeout))
	}
	loader, err := writers.NewPostgresLoader(handle.DB(), opts...)
	if err != nil {
		return 0, err
	}
	return writers.LoadDataset(ctx, loader, ds)
}

// fail moves to StateFailed, logs msg and returns err unchanged.
func (p *Pipeline) fail(log *zap.Logger, phase, msg string, err error) error {
	kind := core.KindOf(err)
	log.Error(msg,
		zap.String("phase", phase),
		zap.String("kind", string(kind)),
		zap.Stringer("state", p.State()),
		zap.Error(err),
	)
	p.metrics.observeFailure(phase, string(kind))
	p.setState(StateFailed)
	return err
}

func extractFailureMessage(err error) string {
	switch core.KindOf(err) {
	case core.KindNotFound:
		return "source file not found"
	case core.KindEmptyData:
		return "source file is empty"
	case core.KindParse:
		return "failed to parse CSV"
	case core.KindConfig:
		return "invalid source configuration"
	default:
		return "unexpected error during extraction"
	}
}

func stageFailureMessage(err error) string {
	switch core.KindOf(err) {
	case core.KindTypeCoercion:
		return "failed to coerce column type during staging"
	case core.KindSchema:
		return "extracted table is missing required columns"
	default:
		return "unexpected error during staging"
	}
}

func loadFailureMessage(err error) string {
	switch core.KindOf(err) {
	case core.KindConnection:
		return "failed to connect to database"
	case core.KindConfig:
		return "invalid load configuration"
	default:
		return "failed to load staged table"
	}
}
