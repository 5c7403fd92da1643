package orchestrator

// #region imports
import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/svg-eval/internal/compose"
	"github.com/danielpatrickdp/svg-eval/internal/dataset"
	"github.com/danielpatrickdp/svg-eval/internal/eval"
	"github.com/danielpatrickdp/svg-eval/internal/render"
	"github.com/danielpatrickdp/svg-eval/internal/sampler"
	"github.com/danielpatrickdp/svg-eval/internal/telemetry"
)

// #endregion

// #region orchestrator-struct

// Options sets how many clips a run covers and where they go.
type Options struct {
	N         int // clips requested; the last batch is rendered whole
	BatchSize int
	Window    sampler.Window
	Compose   compose.Config
	// OutputPath names the GIF for stream position idx.
	OutputPath func(idx int) string
	// MetricsPath, when set, receives a Prometheus textfile after the run.
	MetricsPath string
}

// Orchestrator drives the batch loop: pull a batch, evaluate it, compose
// one grid per clip and render each grid to disk.
type Orchestrator struct {
	source   dataset.Source
	harness  *eval.EvalHarness
	renderer render.Renderer
	recorder *telemetry.Recorder
	opts     Options
	log      *slog.Logger
}

// Summary reports what a run produced.
type Summary struct {
	RunID    string
	Batches  int
	Files    []string
	BestPSNR []float64 // mean PSNR of the selected sample, per file
	BestSSIM []float64 // mean SSIM of the same sample
	Elapsed  time.Duration
}

// #endregion

// #region constructor

// NewOrchestrator creates a fully wired orchestrator. recorder may be nil.
func NewOrchestrator(
	source dataset.Source,
	harness *eval.EvalHarness,
	renderer render.Renderer,
	recorder *telemetry.Recorder,
	opts Options,
	log *slog.Logger,
) (*Orchestrator, error) {
	if opts.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, got %d", opts.BatchSize)
	}
	if opts.OutputPath == nil {
		return nil, fmt.Errorf("output path is required")
	}
	if err := compose.ValidateVisualize(opts.Compose.Visualize, harness.Config().NSamples); err != nil {
		return nil, err
	}
	return &Orchestrator{
		source:   source,
		harness:  harness,
		renderer: renderer,
		recorder: recorder,
		opts:     opts,
		log:      log.With("component", "orchestrator"),
	}, nil
}

// #endregion

// #region run

// Run processes clips 0..N in steps of BatchSize. Files written before an
// error stay on disk.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: uuid.New().String()}
	log := o.log.With("run_id", sum.RunID)
	log.Info("run started", "n", o.opts.N, "batch_size", o.opts.BatchSize,
		"n_past", o.opts.Window.NPast, "n_future", o.opts.Window.NFuture,
		"n_samples", o.harness.Config().NSamples)

	for i := 0; i < o.opts.N; i += o.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := o.runBatch(ctx, i, &sum, log); err != nil {
			return sum, err
		}
		sum.Batches++
	}

	sum.Elapsed = time.Since(start)
	if o.opts.MetricsPath != "" {
		if err := o.recorder.WriteTextfile(o.opts.MetricsPath); err != nil {
			return sum, fmt.Errorf("write metrics: %w", err)
		}
	}
	log.Info("run finished", "files", len(sum.Files), "batches", sum.Batches, "elapsed", sum.Elapsed)
	return sum, nil
}

func (o *Orchestrator) runBatch(ctx context.Context, idx int, sum *Summary, log *slog.Logger) error {
	batch, err := o.source.Next(ctx)
	if err != nil {
		return fmt.Errorf("next batch at %d: %w", idx, err)
	}
	batch.Offset = idx

	res, err := o.harness.Evaluate(ctx, batch)
	if err != nil {
		return fmt.Errorf("evaluate batch at %d: %w", idx, err)
	}
	grids, err := compose.Compose(batch, res, o.opts.Window, o.opts.Compose)
	if err != nil {
		return fmt.Errorf("compose batch at %d: %w", idx, err)
	}

	for _, grid := range grids {
		path := o.opts.OutputPath(grid.Clip)
		if err := o.renderer.Render(grid, path); err != nil {
			return fmt.Errorf("render clip %d: %w", grid.Clip, err)
		}
		o.recorder.BestFidelity(grid.BestScore)
		o.recorder.ClipRendered()
		sum.Files = append(sum.Files, path)
		sum.BestPSNR = append(sum.BestPSNR, grid.BestScore)
		sum.BestSSIM = append(sum.BestSSIM, grid.BestSSIM)
		log.Debug("clip rendered", "clip", grid.Clip, "best", grid.Best,
			"psnr", grid.BestScore, "ssim", grid.BestSSIM, "path", path)
	}
	log.Info("batch done", "offset", idx, "clips", len(grids))
	return nil
}

// #endregion

// #region output-dir

// PrepareOutput creates the directory that will hold the GIFs.
func PrepareOutput(dir string) error {
	if err := os.MkdirAll(filepath.Clean(dir), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

// #endregion
