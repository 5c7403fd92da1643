package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the dimensions of the configured model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		models, closer, err := openModels(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open model: %w", err)
		}
		defer closer.Close()

		out, err := yaml.Marshal(models.Spec)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "backend: %s\n%s", cfg.Backend, out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
