package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brightpath/tutorsim/internal/churn"
	"github.com/brightpath/tutorsim/internal/export"
	"github.com/brightpath/tutorsim/internal/store"
)

var (
	trainRunID     string
	trainOutputDir string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the churn model on a persisted run and export feature importance",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		runID := trainRunID
		if runID == "" {
			runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 1})
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				return eris.New("train: no persisted runs; run generate --persist first")
			}
			runID = runs[0].ID
		}
		run, err := st.GetRun(ctx, runID)
		if err != nil {
			return err
		}

		tutors, err := st.LoadTutors(ctx, runID)
		if err != nil {
			return err
		}
		aggregates, err := st.LoadAggregates(ctx, runID)
		if err != nil {
			return err
		}

		result, err := churn.Train(tutors, aggregates, run.Seed)
		if err != nil {
			return err
		}
		if result.Skipped {
			zap.L().Warn("train: skipped, no report written", zap.String("run_id", runID))
			return nil
		}

		outputDir := cfg.Train.OutputDir
		if cmd.Flags().Changed("output-dir") {
			outputDir = trainOutputDir
		}
		if err := export.WriteFeatureImportance(outputDir, result.Weights); err != nil {
			return err
		}

		zap.L().Info("train: report written",
			zap.String("run_id", runID),
			zap.String("file", export.ImportanceName),
			zap.Float64("accuracy", result.Accuracy),
			zap.Float64("precision", result.Precision),
			zap.Float64("recall", result.Recall),
		)
		return nil
	},
}

func init() {
	trainCmd.Flags().StringVar(&trainRunID, "run-id", "", "run to train on (default: most recent)")
	trainCmd.Flags().StringVar(&trainOutputDir, "output-dir", "data", "directory for the feature-importance report")
	rootCmd.AddCommand(trainCmd)
}
