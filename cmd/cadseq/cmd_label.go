package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/label"
)

var labelModel string

var labelCmd = &cobra.Command{
	Use:   "label [preview.png]",
	Short: "Label a rendered part preview via the Gemini API",
	Long: `Sends the preview image to Gemini and prints the structured tag
line plus a one-sentence description. The API key is read from the
CADSEQ_GEMINI_API_KEY environment variable or the gemini-api-key config
entry.`,
	Args: cobra.ExactArgs(1),
	RunE: runLabel,
}

func init() {
	labelCmd.Flags().StringVar(&labelModel, "model", "", "Gemini model (default "+label.DefaultModel+")")
	rootCmd.AddCommand(labelCmd)
}

func runLabel(cmd *cobra.Command, args []string) error {
	apiKey := viper.GetString("gemini-api-key")
	if apiKey == "" {
		return fmt.Errorf("no Gemini API key configured (set CADSEQ_GEMINI_API_KEY)")
	}
	img, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	oracle, err := label.NewGeminiOracle(cmd.Context(), apiKey, labelModel)
	if err != nil {
		return err
	}
	labels, err := oracle.Label(cmd.Context(), img)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), labels.TagLine())
	fmt.Fprintln(cmd.OutOrStdout(), labels.Description)
	return nil
}
