package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/stepbnb/internal/cli"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the search tree of one episode as a Mermaid flowchart",
	Long: `Plays one episode with a built-in policy and prints the resulting search tree.
The nodes the policy chose are highlighted, the last one as current.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		name, _ := cmd.Flags().GetString("policy")
		policy, err := cli.ParsePolicy(name, cfg.Instance.Seed)
		if err != nil {
			return err
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		results, err := cli.Run(ctx, cli.RunOptions{
			Config:   cfg,
			Policy:   policy,
			Episodes: 1,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		if len(results) == 0 || len(results[0].Tree) == 0 {
			return errors.New("the instance was solved without a search tree")
		}
		fmt.Fprint(cmd.OutOrStdout(), cli.Graph(results[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("policy", "p", "depth", fmt.Sprintf("Node selection policy %v", cli.Policies))
}
