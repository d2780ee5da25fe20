package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/stepbnb/internal/cli"
	"github.com/aretw0/stepbnb/internal/presentation/tui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run episodes with a built-in node selection policy",
	Long: `Runs one or more episodes on the configured instance. At every node selection
the policy picks the node: depth, breadth, random or decline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		name, _ := cmd.Flags().GetString("policy")
		episodes, _ := cmd.Flags().GetInt("episodes")
		policy, err := cli.ParsePolicy(name, cfg.Instance.Seed)
		if err != nil {
			return err
		}

		stores := openBackends(cfg, logger)
		defer stores.Close()

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		results, err := cli.Run(ctx, cli.RunOptions{
			Config:   cfg,
			Policy:   policy,
			Episodes: episodes,
			Logger:   logger,
			Traces:   stores.traces,
		})
		if len(results) > 0 {
			render := tui.NewPlainRenderer()
			if interactive() {
				render = tui.NewRenderer(100)
			}
			out, rerr := render(cli.Summary(results))
			if rerr != nil {
				out = cli.Summary(results)
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
		}
		if sig := ctx.Signal(); sig != nil {
			logger.Info("Interrupted", "signal", sig)
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("policy", "p", "depth", fmt.Sprintf("Node selection policy %v", cli.Policies))
	runCmd.Flags().IntP("episodes", "n", 1, "Number of episodes")
}
