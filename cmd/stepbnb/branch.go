package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/stepbnb/internal/cli"
	"github.com/aretw0/stepbnb/internal/presentation/tui"
)

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Run one episode choosing every branching variable with a built-in policy",
	Long: `Runs one episode in which the engine selects nodes itself and the policy picks
the variable to branch on: first or last candidate, or default to defer to the engine.
Registration parameters come from callbacks.branchrule in the config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		name, _ := cmd.Flags().GetString("policy")
		policy, err := cli.ParseVariablePolicy(name)
		if err != nil {
			return err
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		res, err := cli.Branch(ctx, cli.BranchOptions{Config: cfg, Policy: policy, Logger: logger})
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
	rootCmd.AddCommand(branchCmd)
	branchCmd.Flags().StringP("policy", "p", "first", fmt.Sprintf("Branching policy %v", cli.VariablePolicies))
}
