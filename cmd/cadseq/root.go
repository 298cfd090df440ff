package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/grammar"
)

var (
	// Global flags
	verbose     bool
	cfgFile     string
	grammarPath string
	workers     int
	buildBudget time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cadseq",
	Short: "cadseq - parametric CAD command sequence toolkit",
	Long: `cadseq converts parametric CAD design trees between their JSON form and
a compact line-oriented command sequence, and replays command sequences
through a geometry kernel to rebuild the solid.

Single-file stages:
  normalize    canonicalize a design tree JSON file
  encode       normalize, filter, and encode one design to commands
  decode       decode a command sequence back to a design tree
  reconstruct  rebuild the solid from a command sequence
  label        label a rendered preview via the Gemini API

Directory stages:
  batch        run encode or reconstruct over a whole directory`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./cadseq.yaml)")
	rootCmd.PersistentFlags().StringVar(&grammarPath, "grammar", "", "grammar table YAML (default: embedded table)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "batch worker count (default 4)")
	rootCmd.PersistentFlags().DurationVar(&buildBudget, "timeout", 30*time.Second, "per-design reconstruction budget")

	_ = viper.BindPFlag("grammar", rootCmd.PersistentFlags().Lookup("grammar"))
	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
}

// initConfig wires the optional config file and CADSEQ_* environment
// variables into viper. Flags take precedence over both.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("cadseq")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("CADSEQ")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// loadTable returns the configured grammar table, or the embedded default.
func loadTable() (*grammar.Table, error) {
	path := viper.GetString("grammar")
	if path == "" {
		return grammar.Default(), nil
	}
	return grammar.Load(path)
}
