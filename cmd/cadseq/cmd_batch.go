package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/batch"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/kernel/sdfx"
	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/label"
)

var (
	batchOutDir  string
	reportPath   string
	labelPreview bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run a stage over a whole directory",
}

var batchEncodeCmd = &cobra.Command{
	Use:   "encode [dir]",
	Short: "Encode every design JSON in a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatchEncode,
}

var batchReconstructCmd = &cobra.Command{
	Use:   "reconstruct [dir]",
	Short: "Reconstruct every command sequence in a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatchReconstruct,
}

func init() {
	batchCmd.PersistentFlags().StringVarP(&batchOutDir, "out", "o", "out", "output directory")
	batchCmd.PersistentFlags().StringVar(&reportPath, "report", "", "write the JSON run report to this path")
	batchReconstructCmd.Flags().BoolVar(&labelPreview, "label", false, "label each preview via the Gemini API")
	batchReconstructCmd.Flags().IntVar(&meshCells, "cells", 0, "marching cubes resolution (default 200)")
	batchCmd.AddCommand(batchEncodeCmd, batchReconstructCmd)
	rootCmd.AddCommand(batchCmd)
}

func runBatchEncode(cmd *cobra.Command, args []string) error {
	files, err := globSorted(args[0], "*.json")
	if err != nil {
		return err
	}
	p, err := newPipeline(cmd.Context(), false)
	if err != nil {
		return err
	}
	report, err := p.Encode(cmd.Context(), files, batchOutDir)
	if err != nil {
		return err
	}
	return finishReport(cmd, report)
}

func runBatchReconstruct(cmd *cobra.Command, args []string) error {
	files, err := globSorted(args[0], "*.txt")
	if err != nil {
		return err
	}
	p, err := newPipeline(cmd.Context(), true)
	if err != nil {
		return err
	}
	report, err := p.Reconstruct(cmd.Context(), files, batchOutDir)
	if err != nil {
		return err
	}
	return finishReport(cmd, report)
}

func newPipeline(ctx context.Context, withKernel bool) (*batch.Pipeline, error) {
	table, err := loadTable()
	if err != nil {
		return nil, err
	}
	cfg := batch.Config{
		Workers: viper.GetInt("workers"),
		Timeout: buildBudget,
		Logger:  logger,
		Table:   table,
	}
	if withKernel {
		cfg.Kernel = sdfx.New(meshCells)
	}
	if labelPreview {
		apiKey := viper.GetString("gemini-api-key")
		if apiKey == "" {
			return nil, fmt.Errorf("no Gemini API key configured (set CADSEQ_GEMINI_API_KEY)")
		}
		oracle, err := label.NewGeminiOracle(ctx, apiKey, labelModel)
		if err != nil {
			return nil, err
		}
		cfg.Oracle = oracle
	}
	return batch.New(cfg), nil
}

func finishReport(cmd *cobra.Command, report *batch.Report) error {
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d/%d succeeded\n",
		report.RunID, report.Succeeded, report.Total)
	if reportPath != "" {
		return report.WriteJSON(reportPath)
	}
	return nil
}

func globSorted(dir, pattern string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files in %s", pattern, dir)
	}
	sort.Strings(files)
	return files, nil
}
