package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calvinmclean/carddealer/controller"
	"github.com/calvinmclean/carddealer/logging"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "card-dealer",
	Short: "Deal cards to stations with a sweeping servo and a dispenser motor.",
	Long: `Deal cards to stations with a sweeping servo and a dispenser motor. ` +
		`Settings are read from DEALER_ environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("port", "", "serial port for commands, or \"none\" for stdin (overrides DEALER_SERIAL_PORT)")
	rootCmd.PersistentFlags().Bool("dry-run", false, "use the simulator instead of the GPIO pins (overrides DEALER_DRY_RUN)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		os.Exit(1)
	}
}

// newController reads the environment, applies flag overrides and opens the device
func newController(cmd *cobra.Command) (*controller.Controller, error) {
	cfg, err := controller.ParseEnv()
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("port") {
		cfg.SerialPort, _ = cmd.Flags().GetString("port")
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun, _ = cmd.Flags().GetBool("dry-run")
	}

	logging.Configure(cfg.LoggingConfig())

	c, err := controller.New(cfg)
	if err != nil {
		log := logging.WithComponent("main")
		log.Error().Err(err).Msg("initialization failed")
		return nil, err
	}
	return c, nil
}
