package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"phenotune/internal/logger"
)

func newEvaluateCmd(root *rootOptions) *cobra.Command {
	var (
		modelPath string
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a saved model on the test split and write the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			log := logger.GetGlobalLogger().WithField("model", modelPath)

			m, err := loadModel(modelPath)
			if err != nil {
				return err
			}
			data, err := loadSplits(cfg, log)
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = filepath.Join(cfg.Report.OutputDir, "evaluation")
			}
			_, err = writeReport(cfg, outputDir, m, nil, data, cmd.OutOrStdout(), log)
			return err
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "model JSON written by search")
	cmd.Flags().StringVar(&outputDir, "output", "", "report directory")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}
