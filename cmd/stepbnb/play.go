package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/aretw0/stepbnb"
	"github.com/aretw0/stepbnb/internal/cli"
	"github.com/aretw0/stepbnb/internal/presentation/tui"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Choose every node yourself",
	Long:  `Starts one episode and prompts for the node to process at every node selection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force && !interactive() {
			return errors.New("play needs a terminal (use --force to read choices from a pipe)")
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		stores := openBackends(cfg, logger)
		defer stores.Close()

		profile := termenv.Ascii
		if interactive() {
			profile = termenv.EnvColorProfile()
			tui.PrintBanner(cmd.OutOrStdout(), strings.TrimSpace(stepbnb.Version))
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		res, err := cli.Play(ctx, cli.PlayOptions{
			Config:  cfg,
			Logger:  logger,
			Traces:  stores.traces,
			In:      os.Stdin,
			Out:     cmd.OutOrStdout(),
			Profile: profile,
		})
		if err != nil {
			return err
		}

		out, err := tui.NewRenderer(100)(cli.Summary([]cli.Result{res}))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().Bool("force", false, "Play without a terminal")
}
