package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/calvinmclean/carddealer"
	"github.com/calvinmclean/carddealer/commands"
	"github.com/calvinmclean/carddealer/dealer"
	"github.com/calvinmclean/carddealer/device"
	"github.com/calvinmclean/carddealer/logging"
	"github.com/calvinmclean/carddealer/metrics"
	"github.com/calvinmclean/carddealer/report"
)

type hardware interface {
	dealer.Positioner
	dealer.Feeder
	Close() error
}

// Controller runs the card dealer on a host. It owns the device, the dealer and the reporter, and connects
// them to a command link.
type Controller struct {
	cfg      Config
	dealer   *dealer.Dealer
	device   hardware
	reporter *reporter
	log      zerolog.Logger

	// out receives session results. It is only set while Run or Deal is active.
	out atomic.Pointer[syncWriter]

	fatal chan error
}

// NewFromEnv configures logging and creates a Controller from DEALER_ environment variables
func NewFromEnv() (*Controller, error) {
	cfg, err := ParseEnv()
	if err != nil {
		return nil, err
	}

	logging.Configure(cfg.LoggingConfig())

	return New(cfg)
}

// New opens the device and creates a Controller. With DryRun the simulator is used instead of the GPIO.
func New(cfg Config) (*Controller, error) {
	log := logging.WithComponent("device")

	var dev hardware
	if cfg.DryRun {
		dev = device.NewSimulator(log)
	} else {
		rpi, err := device.OpenRPi(cfg.PinConfig(), log)
		if err != nil {
			return nil, err
		}
		dev = rpi
	}

	var client reportClient = noopReportClient{}
	if cfg.ReportAddr != "" {
		client = report.NewClient(cfg.ReportAddr)
	}

	c, err := newController(cfg, dev, client)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	return c, nil
}

func newController(cfg Config, dev hardware, client reportClient) (*Controller, error) {
	c := &Controller{
		cfg:    cfg,
		device: dev,
		log:    logging.WithComponent("controller"),
		fatal:  make(chan error, 1),
	}

	c.reporter = newReporter(client, logging.WithComponent("report"))

	dcfg := cfg.DealerConfig()
	dcfg.Observer = observers{metrics.Observer{}, c.reporter}
	dcfg.OnFinish = c.finished
	dcfg.Logger = logging.WithComponent("dealer")

	d, err := dealer.New(dcfg, dev, dev)
	if err != nil {
		c.reporter.Close()
		return nil, fmt.Errorf("invalid dealer config: %w", err)
	}
	c.dealer = d

	return c, nil
}

// Run reads commands from r and writes replies and session results to w. It returns when r is exhausted
// (after the running session finishes), when ctx is done (after aborting the running session), or when an
// actuator failure ends a session, in which case that error is returned.
func (c *Controller) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	out := &syncWriter{w: w}
	c.out.Store(out)
	defer c.out.Store(nil)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	if c.cfg.HTTPAddr != "" {
		g.Go(func() error {
			return c.serve(gctx, c.cfg.HTTPAddr)
		})
	}

	g.Go(func() error {
		defer cancel()

		loop := commands.Loop{
			Handler: c.dealer,
			Log:     logging.WithComponent("commands"),
			Ignored: func([]byte, error) {
				metrics.IncCommandIgnored()
			},
		}

		err := loop.Run(gctx, r, out)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		c.log.Info().Msg("command input closed")
		c.dealer.Wait()
		return nil
	})

	g.Go(func() error {
		select {
		case err := <-c.fatal:
			return err
		case <-gctx.Done():
			return nil
		}
	})

	err := g.Wait()
	c.dealer.Close()

	if err == nil {
		select {
		case err = <-c.fatal:
		default:
		}
	}

	return err
}

// RunSerial runs the command loop on the configured serial port, or on stdin and stdout for SerialPortNone
func (c *Controller) RunSerial(ctx context.Context) error {
	if c.cfg.SerialPort == SerialPortNone {
		return c.Run(ctx, os.Stdin, os.Stdout)
	}

	port, err := OpenSerial(c.cfg.SerialPort, c.cfg.BaudRate)
	if err != nil {
		return err
	}
	defer port.Close()

	c.log.Info().
		Str("port", c.cfg.SerialPort).
		Int("baud_rate", c.cfg.BaudRate).
		Msg("listening for commands")

	return c.Run(ctx, port, port)
}

// Deal runs a single session and writes its result to w
func (c *Controller) Deal(ctx context.Context, req carddealer.Request, w io.Writer) (dealer.Result, error) {
	c.out.Store(&syncWriter{w: w})
	defer c.out.Store(nil)

	result, err := c.dealer.Run(ctx, req)

	// the error is returned here, so it must not end a later Run
	select {
	case <-c.fatal:
	default:
	}

	return result, err
}

// Status returns the dealer's current state
func (c *Controller) Status() carddealer.Status {
	return c.dealer.Status()
}

// Close aborts any running session, flushes reports and releases the device
func (c *Controller) Close() error {
	c.dealer.Close()
	c.reporter.Close()

	err := c.device.Close()
	if err != nil {
		return fmt.Errorf("error closing device: %w", err)
	}
	return nil
}

func (c *Controller) finished(r dealer.Result) {
	switch {
	case r.Complete():
		c.reply("DONE %s dealt=%d/%d %v", r.Session.ID, r.Dealt, r.Session.Target(), r.Ledger)
	case r.Aborted():
		c.reply("ABORTED %s dealt=%d/%d %v", r.Session.ID, r.Dealt, r.Session.Target(), r.Ledger)
	default:
		c.reply("FAIL %s dealt=%d/%d: %v", r.Session.ID, r.Dealt, r.Session.Target(), r.Err)
	}

	if errors.Is(r.Err, dealer.ErrActuator) {
		select {
		case c.fatal <- r.Err:
		default:
		}
	}
}

func (c *Controller) reply(format string, args ...any) {
	w := c.out.Load()
	if w == nil {
		return
	}
	fmt.Fprintf(w, format+"\n", args...)
}

type syncWriter struct {
	lock sync.Mutex
	w    io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.w.Write(p)
}
