package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calvinmclean/carddealer/controller"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the serial ports on this host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := controller.GetSerialPorts()
		if err != nil {
			return err
		}

		for _, p := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
