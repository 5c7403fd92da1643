package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/svg-eval/internal/loomnet"
	"github.com/danielpatrickdp/svg-eval/internal/model"
	"github.com/danielpatrickdp/svg-eval/internal/tensor"
)

var initModelCmd = &cobra.Command{
	Use:   "init-model",
	Short: "Write an untrained loom bundle to --model_path for smoke runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		f := cmd.Flags()
		bundle := loomnet.Bundle{
			Spec: model.Spec{
				Frame: tensor.Shape{C: cfg.Channels, H: cfg.ImageWidth, W: cfg.ImageWidth},
			},
		}
		bundle.GDim, _ = f.GetInt("g_dim")
		bundle.ZDim, _ = f.GetInt("z_dim")
		bundle.SkipDim, _ = f.GetInt("skip_dim")
		bundle.PredState, _ = f.GetInt("predictor_state")
		bundle.PostState, _ = f.GetInt("posterior_state")
		bundle.Hidden, _ = f.GetInt("hidden")

		nets, err := loomnet.Random(bundle)
		if err != nil {
			return err
		}
		if err := nets.Save(cfg.ModelPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote bundle to %s\n", cfg.ModelPath)
		return nil
	},
}

func init() {
	f := initModelCmd.Flags()
	f.Int("g_dim", 128, "encoder feature width")
	f.Int("z_dim", 10, "latent width")
	f.Int("skip_dim", 0, "skip-connection width")
	f.Int("predictor_state", 64, "predictor recurrent state width")
	f.Int("posterior_state", 32, "posterior recurrent state width")
	f.Int("hidden", 256, "hidden layer width")
	rootCmd.AddCommand(initModelCmd)
}
