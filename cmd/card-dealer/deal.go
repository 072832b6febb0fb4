package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/calvinmclean/carddealer/commands"
)

var dealCmd = &cobra.Command{
	Use:     "deal <command>",
	Short:   "Run a single session, like P3C2, and exit",
	Example: "  card-dealer deal P3C2 --dry-run",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frame := []byte(args[0])
		if len(frame) == 0 || frame[0] != commands.DealCommand.Flag {
			return commands.ErrMalformed
		}

		req, err := commands.ParseRequest(frame[1:])
		if err != nil {
			return err
		}

		c, err := newController(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		// an interrupted session is reported as ABORTED and is not a failure
		_, err = c.Deal(cmd.Context(), req, cmd.OutOrStdout())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(dealCmd)
}
