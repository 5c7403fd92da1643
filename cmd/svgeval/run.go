package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/svg-eval/internal/compose"
	"github.com/danielpatrickdp/svg-eval/internal/dataset"
	"github.com/danielpatrickdp/svg-eval/internal/eval"
	"github.com/danielpatrickdp/svg-eval/internal/logging"
	"github.com/danielpatrickdp/svg-eval/internal/metric"
	"github.com/danielpatrickdp/svg-eval/internal/orchestrator"
	"github.com/danielpatrickdp/svg-eval/internal/render"
	"github.com/danielpatrickdp/svg-eval/internal/rollout"
	"github.com/danielpatrickdp/svg-eval/internal/telemetry"
	"github.com/danielpatrickdp/svg-eval/internal/tensor"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate N clips and write one GIF per clip",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		log := logging.New(level, cfg.LogFormat)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		models, closer, err := openModels(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open model: %w", err)
		}
		defer closer.Close()
		if err := models.Validate(); err != nil {
			return fmt.Errorf("model: %w", err)
		}
		want := tensor.Shape{C: cfg.Channels, H: cfg.ImageWidth, W: cfg.ImageWidth}
		if models.Spec.Frame != want {
			return fmt.Errorf("model expects %s frames, data is configured for %s: %w", models.Spec.Frame, want, rollout.ErrShapeMismatch)
		}

		manifest, err := dataset.OpenManifest(cfg.ManifestPath())
		if err != nil {
			return err
		}
		entries, err := manifest.Entries(cfg.NEval())
		manifest.Close()
		if err != nil {
			return err
		}

		// One generator drives both shuffling and latent sampling.
		rng := rand.New(rand.NewSource(cfg.Seed))
		source, err := dataset.NewSequenceSource(entries, dataset.SourceConfig{
			SeqLen:     cfg.NEval(),
			BatchSize:  cfg.BatchSize,
			ImageWidth: cfg.ImageWidth,
			Channels:   cfg.Channels,
		}, rng)
		if err != nil {
			return err
		}

		rec := telemetry.New()
		engine := rollout.NewEngine(models, cfg.Window, log, rec)
		evalCfg := eval.DefaultEvalConfig()
		evalCfg.NSamples = cfg.NSample
		harness := eval.NewEvalHarness(engine, metric.New(metric.DefaultConfig()), evalCfg, rng, log)

		comp := compose.DefaultConfig()
		comp.Visualize = cfg.Visualize
		if err := orchestrator.PrepareOutput(cfg.GIFDir()); err != nil {
			return err
		}
		orch, err := orchestrator.NewOrchestrator(source, harness,
			render.NewGIFRenderer(comp.Pad, comp.CaptionHeight), rec,
			orchestrator.Options{
				N:           cfg.N,
				BatchSize:   cfg.BatchSize,
				Window:      cfg.Window,
				Compose:     comp,
				OutputPath:  cfg.GIFPath,
				MetricsPath: cfg.MetricsPath(),
			}, log)
		if err != nil {
			return err
		}

		sum, err := orch.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "run %s: wrote %d GIFs to %s in %s\n",
			sum.RunID, len(sum.Files), cfg.GIFDir(), sum.Elapsed.Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

