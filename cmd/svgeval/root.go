package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/svg-eval/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "svgeval",
	Short:         "Sample, score and render stochastic video predictions",
	Long:          `svgeval rolls a pretrained SVG model forward many times per test clip, picks the sample closest to ground truth and writes annotated GIFs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// usageError marks bad command lines so they exit with status 2.
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for a bad command line and 1 for any other failure.
func exitCode(err error) int {
	var ue usageError
	if errors.As(err, &ue) {
		return 2
	}
	return 1
}

func flagError(c *cobra.Command, err error) error {
	return usageError{fmt.Errorf("%w\n%s", err, c.UsageString())}
}

func init() {
	rootCmd.SetFlagErrorFunc(flagError)
	addConfigFlags(rootCmd)
}

// addConfigFlags declares one persistent flag per config field.
func addConfigFlags(cmd *cobra.Command) {
	def := config.Default()
	f := cmd.PersistentFlags()
	f.String("config", "", "YAML config file")
	f.String("backend", def.Backend, "model backend: loom or grpc")
	f.String("model_path", def.ModelPath, "loom model bundle directory")
	f.String("codec_addr", def.CodecAddr, "gRPC model service address")
	f.String("data_root", def.DataRoot, "root directory for data")
	f.String("manifest", "", "SQLite manifest (default <data_root>/manifest.db)")
	f.String("log_dir", def.LogDir, "directory to save generations to")
	f.String("name", def.Name, "suffix appended to output file names")
	f.Int64("seed", def.Seed, "random seed")
	f.Int("batch_size", def.BatchSize, "batch size")
	f.Int("N", def.N, "number of clips to generate")
	f.Int("n_past", def.NPast, "number of frames to condition on")
	f.Int("n_future", def.NFuture, "number of frames to predict")
	f.Int("nsample", def.NSample, "number of samples per clip")
	f.IntSlice("visualize", def.Visualize, "sample indices shown next to the best sample")
	f.Int("image_width", def.ImageWidth, "frame width and height after resizing")
	f.Int("channels", def.Channels, "frame channels: 1 or 3")
	f.String("log_level", def.LogLevel, "debug, info, warn or error")
	f.String("log_format", def.LogFormat, "text or json")
}

// loadConfig reads --config, the environment and then any flag the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	f := cmd.Flags()
	path, _ := f.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	strs := map[string]*string{
		"backend":    &cfg.Backend,
		"model_path": &cfg.ModelPath,
		"codec_addr": &cfg.CodecAddr,
		"data_root":  &cfg.DataRoot,
		"manifest":   &cfg.Manifest,
		"log_dir":    &cfg.LogDir,
		"name":       &cfg.Name,
		"log_level":  &cfg.LogLevel,
		"log_format": &cfg.LogFormat,
	}
	for name, dst := range strs {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	ints := map[string]*int{
		"batch_size":  &cfg.BatchSize,
		"N":           &cfg.N,
		"n_past":      &cfg.NPast,
		"n_future":    &cfg.NFuture,
		"nsample":     &cfg.NSample,
		"image_width": &cfg.ImageWidth,
		"channels":    &cfg.Channels,
	}
	for name, dst := range ints {
		if f.Changed(name) {
			*dst, _ = f.GetInt(name)
		}
	}
	if f.Changed("seed") {
		cfg.Seed, _ = f.GetInt64("seed")
	}
	if f.Changed("visualize") {
		cfg.Visualize, _ = f.GetIntSlice("visualize")
	}
	return cfg, nil
}
