package main

import (
	"github.com/spf13/cobra"

	"github.com/calvinmclean/carddealer/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Listen for commands on the serial port and run sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newController(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		err = c.RunSerial(cmd.Context())
		if err != nil {
			log := logging.WithComponent("main")
			log.Error().Err(err).Msg("stopped")
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
