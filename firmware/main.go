//go:build tinygo

package main

import (
	"context"
	"machine"
	"time"

	"github.com/rs/zerolog"

	"github.com/calvinmclean/carddealer/commands"
	"github.com/calvinmclean/carddealer/dealer"
	"github.com/calvinmclean/carddealer/firmware/device"
)

func main() {
	time.Sleep(2 * time.Second)

	servoCfg := device.ServoConfig{
		PWM: machine.PWM3,
		Pin: machine.GP22,
	}
	motorCfg := device.MotorConfig{
		PWM:    machine.PWM0,
		Feed:   machine.GP16,
		Eject:  machine.GP17,
		Period: uint64(time.Millisecond),
	}

	d, err := device.New(servoCfg, motorCfg)
	if err != nil {
		panic(err)
	}

	log := zerolog.New(machine.Serial).Level(zerolog.InfoLevel)

	cfg := dealer.DefaultConfig()
	cfg.Logger = log
	cfg.OnFinish = func(r dealer.Result) {
		if r.Complete() {
			println("DONE", r.Session.ID)
			return
		}
		println("FAIL", r.Session.ID)
	}

	dd, err := dealer.New(cfg, d, d)
	if err != nil {
		panic(err)
	}

	loop := commands.Loop{
		Handler: dd,
		Log:     log,
	}
	err = loop.Run(context.Background(), device.SerialReader{}, machine.Serial)
	if err != nil {
		panic(err)
	}
}
