package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/stepbnb/internal/config"
	"github.com/aretw0/stepbnb/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "stepbnb",
	Short: "Step through a branch-and-bound search one node selection at a time",
	Long: `stepbnb pauses a branch-and-bound engine at every node selection and hands
the decision to a policy, to you at the terminal, or to a client over HTTP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("instance", "", "Knapsack instance YAML (overrides the config)")
	rootCmd.PersistentFlags().Uint64("seed", 0, "Seed of the generated instance")
	rootCmd.PersistentFlags().Int("items", 0, "Items of the generated instance")
	rootCmd.PersistentFlags().String("redis", "", "Redis address for traces and locks")
	rootCmd.PersistentFlags().String("trace-dir", "", "Directory for episode traces when Redis is not used")
}

// loadConfig reads --config and applies the flags the user set on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("instance") {
		cfg.Instance.Path, _ = flags.GetString("instance")
	}
	if flags.Changed("seed") {
		cfg.Instance.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("items") {
		cfg.Instance.Items, _ = flags.GetInt("items")
	}
	if flags.Changed("redis") {
		cfg.Server.Redis.Addr, _ = flags.GetString("redis")
	}
	if flags.Changed("trace-dir") {
		cfg.TraceDir, _ = flags.GetString("trace-dir")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(cfg.Level())
}

// interactive reports whether stdin and stdout are both terminals.
func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
