package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/stepbnb/internal/cli"
	"github.com/aretw0/stepbnb/internal/presentation/tui"
)

var primalCmd = &cobra.Command{
	Use:   "primal",
	Short: "Run one episode answering every primal heuristic call with a built-in policy",
	Long: `Runs one episode in which the engine selects nodes and branches itself while the
policy proposes a solution at every heuristic call: round-down keeps the variables the
LP solution takes whole, none never proposes anything.
Registration parameters come from callbacks.heuristic in the config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		name, _ := cmd.Flags().GetString("policy")
		policy, err := cli.ParseSolutionPolicy(name)
		if err != nil {
			return err
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		res, err := cli.Primal(ctx, cli.PrimalOptions{Config: cfg, Policy: policy, Logger: logger})
		if err != nil {
			return err
		}
		out, rerr := tui.NewPlainRenderer()(cli.Summary([]cli.Result{res}))
		if rerr != nil {
			out = cli.Summary([]cli.Result{res})
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(primalCmd)
	primalCmd.Flags().StringP("policy", "p", "round-down", fmt.Sprintf("Primal policy %v", cli.SolutionPolicies))
}
