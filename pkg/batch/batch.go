// Package batch runs the encode and reconstruct stages over whole
// directories of designs, with bounded concurrency and a machine-readable
// run report.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/codec"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/design"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/grammar"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/kernel"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/label"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/preview"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/recon"
)

// DefaultWorkers bounds pipeline concurrency when Config.Workers is zero.
const DefaultWorkers = 4

// Status classifies the outcome of one file.
type Status string

const (
	StatusOK          Status = "ok"
	StatusMalformed   Status = "malformed"
	StatusUnsupported Status = "unsupported"
	StatusDecodeError Status = "decode_error"
	StatusBuildFailed Status = "build_failed"
	StatusIOError     Status = "io_error"
)

// Config configures a Pipeline. Table and Kernel are required for the
// stages that use them; the Oracle is optional.
type Config struct {
	Workers      int
	Timeout      time.Duration // per-file reconstruction budget
	ArcSegments  int
	PreviewSize  int
	TraceVolumes bool
	Logger       *zap.Logger
	Table        *grammar.Table
	Kernel       kernel.Kernel
	Oracle       label.Oracle
}

// Pipeline runs batch stages.
type Pipeline struct {
	cfg Config
	log *zap.Logger
}

// New returns a Pipeline. A nil logger falls back to a no-op logger and
// a nil table to the embedded default grammar.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Table == nil {
		cfg.Table = grammar.Default()
	}
	return &Pipeline{cfg: cfg, log: cfg.Logger}
}

// FileResult is the per-file record of a batch run.
type FileResult struct {
	File     string        `json:"file"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Verdict  string        `json:"verdict,omitempty"`
	Commands int           `json:"commands,omitempty"`
	Bytes    int           `json:"bytes,omitempty"`
	Volume   float64       `json:"volume,omitempty"`
	Labels   *label.Labels `json:"labels,omitempty"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// Report is the run-level summary. Results preserve input order.
type Report struct {
	RunID          string       `json:"run_id"`
	Stage          string       `json:"stage"`
	GrammarVersion int          `json:"grammar_version"`
	Started        time.Time    `json:"started"`
	Finished       time.Time    `json:"finished"`
	Total          int          `json:"total"`
	Succeeded      int          `json:"succeeded"`
	Results        []FileResult `json:"results"`
}

// WriteJSON writes the report to path as indented JSON.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("batch: marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("batch: write report: %w", err)
	}
	return nil
}

// Encode normalizes, filters, and encodes every input JSON file, writing
// one command sequence text file per supported design into outDir.
func (p *Pipeline) Encode(ctx context.Context, files []string, outDir string) (*Report, error) {
	return p.runStage(ctx, "encode", files, outDir, p.encodeOne)
}

// Reconstruct decodes every input command sequence file and replays it
// through the kernel, writing an STL solid and a PNG preview per design.
// When an oracle is configured, each preview is also labeled.
func (p *Pipeline) Reconstruct(ctx context.Context, files []string, outDir string) (*Report, error) {
	if p.cfg.Kernel == nil {
		return nil, fmt.Errorf("batch: reconstruct requires a kernel")
	}
	return p.runStage(ctx, "reconstruct", files, outDir, p.reconstructOne)
}

func (p *Pipeline) runStage(ctx context.Context, stage string, files []string, outDir string, work func(ctx context.Context, file, outDir string, res *FileResult)) (*Report, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("batch: create output dir: %w", err)
	}

	report := &Report{
		RunID:          uuid.NewString(),
		Stage:          stage,
		GrammarVersion: p.cfg.Table.Version,
		Started:        time.Now(),
		Total:          len(files),
		Results:        make([]FileResult, len(files)),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i, file := range files {
		g.Go(func() error {
			start := time.Now()
			res := &report.Results[i]
			res.File = file
			work(ctx, file, outDir, res)
			res.Elapsed = time.Since(start)
			p.logResult(stage, res)
			return ctx.Err()
		})
	}
	err := g.Wait()
	report.Finished = time.Now()

	for _, r := range report.Results {
		if r.Status == StatusOK {
			report.Succeeded++
		}
	}
	p.log.Info("batch stage finished",
		zap.String("run_id", report.RunID),
		zap.String("stage", stage),
		zap.Int("total", report.Total),
		zap.Int("succeeded", report.Succeeded),
		zap.Duration("elapsed", report.Finished.Sub(report.Started)))
	if err != nil {
		return report, err
	}
	return report, nil
}

func (p *Pipeline) encodeOne(ctx context.Context, file, outDir string, res *FileResult) {
	data, err := os.ReadFile(file)
	if err != nil {
		res.Status, res.Error = StatusIOError, err.Error()
		return
	}
	tree, err := design.Normalize(data)
	if err != nil {
		res.Status, res.Error = classify(err), err.Error()
		return
	}
	if v := p.cfg.Table.Classify(tree); !v.Supported() {
		res.Status = StatusUnsupported
		res.Verdict = v.String()
		return
	}
	out, err := codec.Encode(tree, p.cfg.Table)
	if err != nil {
		res.Status, res.Error = classify(err), err.Error()
		return
	}
	res.Commands = countCommands(out)
	res.Bytes = len(out)
	dst := filepath.Join(outDir, stem(file)+".txt")
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		res.Status, res.Error = StatusIOError, err.Error()
		return
	}
	res.Status = StatusOK
}

func (p *Pipeline) reconstructOne(ctx context.Context, file, outDir string, res *FileResult) {
	data, err := os.ReadFile(file)
	if err != nil {
		res.Status, res.Error = StatusIOError, err.Error()
		return
	}
	tree, err := codec.Decode(data, p.cfg.Table)
	if err != nil {
		res.Status, res.Error = classify(err), err.Error()
		return
	}

	driver := recon.New(p.cfg.Kernel, recon.Options{
		Timeout:      p.cfg.Timeout,
		ArcSegments:  p.cfg.ArcSegments,
		TraceVolumes: p.cfg.TraceVolumes,
		Logger:       p.log,
	})
	built, err := driver.Build(ctx, tree)
	if err != nil {
		res.Status, res.Error = classify(err), err.Error()
		return
	}
	if n := len(built.Traces); n > 0 {
		res.Volume = built.Traces[n-1].Volume
	}

	mesh, err := p.cfg.Kernel.ToMesh(built.Solid)
	if err != nil {
		res.Status, res.Error = StatusBuildFailed, err.Error()
		return
	}
	mesh.Name = stem(file)

	if err := kernel.WriteSTL(mesh, filepath.Join(outDir, mesh.Name+".stl")); err != nil {
		res.Status, res.Error = StatusIOError, err.Error()
		return
	}

	img, err := preview.Render(mesh, preview.Options{Width: p.cfg.PreviewSize, Height: p.cfg.PreviewSize})
	if err != nil {
		res.Status, res.Error = StatusBuildFailed, err.Error()
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		res.Status, res.Error = StatusIOError, err.Error()
		return
	}
	if err := os.WriteFile(filepath.Join(outDir, mesh.Name+".png"), buf.Bytes(), 0o644); err != nil {
		res.Status, res.Error = StatusIOError, err.Error()
		return
	}

	if p.cfg.Oracle != nil {
		labels, err := p.cfg.Oracle.Label(ctx, buf.Bytes())
		if err != nil {
			p.log.Warn("labeling failed", zap.String("file", file), zap.Error(err))
		} else {
			res.Labels = &labels
		}
	}
	res.Status = StatusOK
}

// classify maps pipeline errors onto result statuses by error kind.
func classify(err error) Status {
	var malformed *design.MalformedTreeError
	var unsupported *grammar.UnsupportedFeatureError
	var decodeErr *codec.DecodingError
	var encodeErr *codec.EncodingError
	var buildErr *recon.ReconstructionError
	var timeoutErr *recon.TimeoutError
	switch {
	case errors.As(err, &malformed):
		return StatusMalformed
	case errors.As(err, &unsupported):
		return StatusUnsupported
	case errors.As(err, &decodeErr), errors.As(err, &encodeErr):
		return StatusDecodeError
	case errors.As(err, &buildErr), errors.As(err, &timeoutErr):
		return StatusBuildFailed
	default:
		return StatusBuildFailed
	}
}

// logResult applies the severity policy: malformed inputs are data bugs,
// unsupported designs are expected filtering, build failures are worth a
// warning.
func (p *Pipeline) logResult(stage string, res *FileResult) {
	fields := []zap.Field{
		zap.String("stage", stage),
		zap.String("file", res.File),
		zap.String("status", string(res.Status)),
	}
	if res.Error != "" {
		fields = append(fields, zap.String("error", res.Error))
	}
	switch res.Status {
	case StatusOK:
		p.log.Debug("file processed", fields...)
	case StatusUnsupported:
		p.log.Info("file skipped", fields...)
	case StatusMalformed, StatusIOError:
		p.log.Error("file failed", fields...)
	default:
		p.log.Warn("file failed", fields...)
	}
}

// countCommands counts non-blank command lines.
func countCommands(out []byte) int {
	n := 0
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
