// Package scrub runs show and clean operations over image files: it reads,
// parses, plans and rewrites each file and publishes the output atomically.
package scrub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"

	"github.com/google/uuid"

	"github.com/ankit-chaubey/image-metadata-surgery/core"
	"github.com/ankit-chaubey/image-metadata-surgery/core/history"
	"github.com/ankit-chaubey/image-metadata-surgery/core/image"
)

// Mode selects the operation.
type Mode int

const (
	ModeShow Mode = iota
	ModeClean
)

func (m Mode) String() string {
	if m == ModeClean {
		return "clean"
	}
	return "show"
}

// Options control a single operation.
type Options struct {
	// Copy writes the cleaned file beside the original (or into OutputDir)
	// instead of replacing it.
	Copy      bool
	DryRun    bool
	OutputDir string
	// Suffix is appended to the file stem in copy mode. Defaults to "_clean".
	Suffix    string
	Overwrite bool
	// XMPProperties decodes XMP packets into individual properties.
	XMPProperties bool
	// Workers bounds Batch concurrency. Zero means one per CPU.
	Workers int
}

// TempFunc creates a temporary file in dir. It matches os.CreateTemp.
type TempFunc func(dir, pattern string) (*os.File, error)

// Engine processes files. It is safe for concurrent use.
type Engine struct {
	logger     *slog.Logger
	history    *history.Log
	createTemp TempFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithHistory records every processed file in h.
func WithHistory(h *history.Log) Option {
	return func(e *Engine) { e.history = h }
}

// WithTempFunc replaces the temporary file factory used for writes.
func WithTempFunc(fn TempFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.createTemp = fn
		}
	}
}

// New returns an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:     slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
		createTemp: os.CreateTemp,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "scrub")
	return e
}

// Process runs one operation on path. Failures are reported in the result,
// never returned.
func (e *Engine) Process(ctx context.Context, path string, mode Mode, opts Options) core.Result {
	return e.process(ctx, uuid.NewString(), path, mode, opts)
}

func (e *Engine) process(ctx context.Context, runID, path string, mode Mode, opts Options) core.Result {
	res := core.Result{InputPath: path, Format: core.FmtUnknown}
	if err := ctx.Err(); err != nil {
		res = skipped(path, err)
		e.finish(runID, mode, opts, res)
		return res
	}

	info, err := os.Stat(path)
	if err != nil {
		res.Fail(fmt.Errorf("stat %s: %w: %v", path, core.ErrIOFailure, err))
		e.finish(runID, mode, opts, res)
		return res
	}
	if !info.Mode().IsRegular() {
		res.Status = core.StatusSkipped
		res.Reason = "not a regular file"
		e.finish(runID, mode, opts, res)
		return res
	}

	if err := e.run(ctx, &res, info, mode, opts); err != nil {
		res.Fail(err)
	}
	e.finish(runID, mode, opts, res)
	return res
}

// run walks one file through parse, decode, plan and write.
func (e *Engine) run(ctx context.Context, res *core.Result, info fs.FileInfo, mode Mode, opts Options) error {
	data, err := os.ReadFile(res.InputPath)
	if err != nil {
		return fmt.Errorf("read %s: %w: %v", res.InputPath, core.ErrIOFailure, err)
	}
	res.Info = core.FileInfo{Size: info.Size(), ModTime: info.ModTime()}

	format, err := core.Detect(data[:min(len(data), core.SniffLen)])
	if err != nil {
		return err
	}
	res.Format = format
	h, err := image.For(format)
	if err != nil {
		return err
	}
	c, err := h.Parse(data)
	if err != nil {
		return err
	}
	if w, ht, err := image.Dimensions(data); err == nil {
		res.Info.Width, res.Info.Height = w, ht
	} else {
		e.logger.Debug("dimensions unavailable", "path", res.InputPath, "error", err)
	}

	decodeOpts := core.DecodeOptions{XMPProperties: opts.XMPProperties}
	res.Record = h.Decode(c, decodeOpts)
	if mode == ModeShow {
		res.Status = core.StatusSuccess
		return nil
	}

	plan := h.Plan(c)
	out, err := h.Rewrite(c, plan)
	if err != nil {
		return err
	}
	after, err := h.Parse(out)
	if err != nil {
		return fmt.Errorf("rewritten output does not parse: %w", err)
	}
	res.Removed = res.Record.Diff(h.Decode(after, decodeOpts))
	res.RemovedTagCount = len(res.Removed)
	res.SizeDelta = int64(len(out) - len(data))
	res.Retained = plan.Retained

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrCanceled, err)
	}
	if opts.DryRun {
		res.Status = core.StatusDryRunPreview
		return nil
	}

	if opts.Copy {
		target, err := TargetPath(res.InputPath, opts)
		if err != nil {
			return err
		}
		if err := e.publishCopy(ctx, target, out, info.Mode().Perm(), opts.Overwrite); err != nil {
			return err
		}
		res.OutputPath = target
		res.Status = core.StatusSuccess
		return nil
	}

	// Nothing to remove: leave the original untouched.
	if plan.Empty() || res.RemovedTagCount == 0 {
		res.Status = core.StatusSuccess
		return nil
	}
	if err := e.replace(ctx, res.InputPath, out, info.Mode().Perm()); err != nil {
		return err
	}
	res.OutputPath = res.InputPath
	res.Status = core.StatusSuccess
	return nil
}

func skipped(path string, err error) core.Result {
	return core.Result{
		InputPath: path,
		Format:    core.FmtUnknown,
		Status:    core.StatusSkipped,
		Kind:      core.KindCanceled,
		Err:       err,
		Reason:    "canceled",
	}
}

// finish logs the outcome and appends it to the history log.
func (e *Engine) finish(runID string, mode Mode, opts Options, res core.Result) {
	attrs := []any{
		"path", res.InputPath,
		"format", string(res.Format),
		"status", res.Status.String(),
		"run_id", runID,
	}
	switch res.Status {
	case core.StatusFailed:
		e.logger.Warn("file failed", append(attrs, "kind", res.Kind.String(), "error", res.Err)...)
	case core.StatusSkipped:
		e.logger.Info("file skipped", append(attrs, "reason", res.Reason)...)
	default:
		if mode == ModeClean {
			attrs = append(attrs, "removed", res.RemovedTagCount, "size_delta", res.SizeDelta)
		} else {
			attrs = append(attrs, "tags", res.Record.Len())
		}
		e.logger.Debug("file processed", attrs...)
	}

	// A dry run leaves no trace on disk.
	if e.history == nil || mode == ModeClean && opts.DryRun {
		return
	}
	entry := history.Entry{
		RunID:   runID,
		Action:  mode.String(),
		File:    res.InputPath,
		Result:  res.Status.String(),
		Details: details(mode, res),
	}
	if err := e.history.Append(entry); err != nil {
		e.logger.Warn("history append failed", "path", e.history.Path(), "error", err)
	}
}

func details(mode Mode, res core.Result) string {
	switch {
	case res.Err != nil && !errors.Is(res.Err, context.Canceled):
		return res.Err.Error()
	case res.Status == core.StatusSkipped:
		return res.Reason
	case mode == ModeClean:
		d := fmt.Sprintf("removed %d tags", res.RemovedTagCount)
		if res.OutputPath != "" && res.OutputPath != res.InputPath {
			d += ", wrote " + res.OutputPath
		}
		return d
	default:
		return fmt.Sprintf("%d tags", res.Record.Len())
	}
}
