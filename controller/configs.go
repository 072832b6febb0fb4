package controller

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/calvinmclean/carddealer"
	"github.com/calvinmclean/carddealer/dealer"
	"github.com/calvinmclean/carddealer/device"
	"github.com/calvinmclean/carddealer/logging"
)

// EnvPrefix is prepended to every environment variable read by ParseEnv
const EnvPrefix = "DEALER_"

// Config has everything needed to run the dealer on a host. The zero value is not usable; use ParseEnv or
// DefaultConfig.
type Config struct {
	// SerialPort is the command link. SerialPortNone reads commands from stdin instead.
	SerialPort string `env:"SERIAL_PORT" envDefault:"/dev/ttyAMA1"`
	BaudRate   int    `env:"BAUD_RATE" envDefault:"115200"`

	// DryRun uses the simulator instead of the GPIO pins
	DryRun bool `env:"DRY_RUN"`

	ServoPin int `env:"SERVO_PIN" envDefault:"12"`
	FeedPin  int `env:"FEED_PIN" envDefault:"18"`
	EjectPin int `env:"EJECT_PIN" envDefault:"19"`

	StationPositions []float64 `env:"STATION_POSITIONS" envDefault:"-60,0,60" envSeparator:","`

	SweepLower    float64       `env:"SWEEP_LOWER" envDefault:"-90"`
	SweepUpper    float64       `env:"SWEEP_UPPER" envDefault:"90"`
	SweepStep     float64       `env:"SWEEP_STEP" envDefault:"1"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"100ms"`
	Tolerance     float64       `env:"TOLERANCE" envDefault:"0.1"`

	FeedDuration  time.Duration `env:"FEED_DURATION" envDefault:"700ms"`
	EjectDuration time.Duration `env:"EJECT_DURATION" envDefault:"500ms"`
	ResetDuration time.Duration `env:"RESET_DURATION" envDefault:"100ms"`
	FeedSpeed     int           `env:"FEED_SPEED" envDefault:"100"`
	EjectSpeed    int           `env:"EJECT_SPEED" envDefault:"100"`
	ResetSpeed    int           `env:"RESET_SPEED" envDefault:"3"`

	MailboxCapacity int `env:"MAILBOX_CAPACITY" envDefault:"1"`

	// ReportAddr is the base URL of a report server. Reporting is off when empty.
	ReportAddr string `env:"REPORT_ADDR"`
	// HTTPAddr is the listen address for /status and /metrics. The server is off when empty.
	HTTPAddr string `env:"HTTP_ADDR"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY"`
}

// ParseEnv reads the Config from DEALER_ environment variables
func ParseEnv() (Config, error) {
	var cfg Config
	err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix})
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// DefaultConfig is the Config used when no environment variables are set
func DefaultConfig() Config {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{
		Prefix:      EnvPrefix,
		Environment: map[string]string{},
	})
	if err != nil {
		panic("invalid default config: " + err.Error())
	}
	return cfg
}

// DealerConfig builds the session settings
func (c Config) DealerConfig() dealer.Config {
	cfg := dealer.DefaultConfig()

	cfg.Sweep.Lower = c.SweepLower
	cfg.Sweep.Upper = c.SweepUpper
	cfg.Sweep.Step = c.SweepStep
	cfg.Sweep.Interval = c.SweepInterval
	cfg.Sweep.Tolerance = c.Tolerance

	cfg.Dispense = dealer.DispenseConfig{
		Stages: []dealer.Stage{
			{Motor: carddealer.MotorFeed, Speed: c.FeedSpeed, Hold: c.FeedDuration},
			{Motor: carddealer.MotorEject, Speed: c.EjectSpeed, Hold: c.EjectDuration},
			{Motor: carddealer.MotorFeed, Speed: c.ResetSpeed, Hold: c.ResetDuration},
		},
	}

	cfg.Positions = append([]float64(nil), c.StationPositions...)
	cfg.MailboxCapacity = c.MailboxCapacity

	return cfg
}

// PinConfig builds the GPIO settings
func (c Config) PinConfig() device.PinConfig {
	cfg := device.DefaultPinConfig()
	cfg.Servo = c.ServoPin
	cfg.Feed = c.FeedPin
	cfg.Eject = c.EjectPin
	return cfg
}

// LoggingConfig builds the logger settings
func (c Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  c.LogLevel,
		Pretty: c.LogPretty,
	}
}
