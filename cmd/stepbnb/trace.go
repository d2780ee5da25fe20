package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Inspect recorded episode traces",
	Long: `List and show the decisions recorded in a persistent trace store:
Redis (--redis or server.redis.addr) or a directory (--trace-dir or trace_dir).`,
}

var traceLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recorded episodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, err := persistentStores(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()

		ids, err := stores.traces.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list traces: %w", err)
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No recorded episodes found.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var traceShowCmd = &cobra.Command{
	Use:   "show <episode-id>",
	Short: "Print the decisions of an episode as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, err := persistentStores(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()

		steps, err := stores.traces.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load trace %s: %w", args[0], err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(steps)
	},
}

var traceRmCmd = &cobra.Command{
	Use:   "rm <episode-id>...",
	Short: "Delete recorded episodes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, err := persistentStores(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()

		for _, id := range args {
			if err := stores.traces.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete trace %s: %w", id, err)
			}
		}
		return nil
	},
}

// persistentStores opens Redis or the trace directory; the in-memory store would always be empty here.
func persistentStores(cmd *cobra.Command) (*backends, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Server.Redis.Addr == "" && cfg.TraceDir == "" {
		return nil, errors.New("no trace store: set --redis or --trace-dir")
	}
	return openBackends(cfg, newLogger(cfg)), nil
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.AddCommand(traceLsCmd, traceShowCmd, traceRmCmd)
}
