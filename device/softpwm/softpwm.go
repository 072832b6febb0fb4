// Package softpwm drives a plain GPIO output as a slow PWM signal from a goroutine. It is enough for the
// DC motors of the dispenser, which only need a few speed levels.
package softpwm

import (
	"sync"
	"time"
)

// Range is the largest value accepted by Write. It means always on.
const Range = 100

// DefaultPeriod matches a 100-step range of 100µs pulses
const DefaultPeriod = 10 * time.Millisecond

// Pin toggles an output with the set function so it is high for value/Range of every period
type Pin struct {
	set    func(high bool)
	period time.Duration

	lock  sync.Mutex
	value int

	update chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// New starts driving the output. It starts low.
func New(set func(high bool), period time.Duration) *Pin {
	if period <= 0 {
		period = DefaultPeriod
	}

	p := &Pin{
		set:    set,
		period: period,
		update: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	set(false)

	p.wg.Add(1)
	go p.loop()

	return p
}

// Write sets the duty value, clamped to 0..Range
func (p *Pin) Write(value int) {
	if value < 0 {
		value = 0
	}
	if value > Range {
		value = Range
	}

	p.lock.Lock()
	p.value = value
	p.lock.Unlock()

	select {
	case p.update <- struct{}{}:
	default:
	}
}

// Value returns the last written duty value
func (p *Pin) Value() int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.value
}

// Close stops the goroutine and leaves the output low
func (p *Pin) Close() {
	close(p.done)
	p.wg.Wait()
	p.set(false)
}

func (p *Pin) loop() {
	defer p.wg.Done()

	for {
		value := p.Value()

		switch {
		case value <= 0:
			p.set(false)
			if !p.wait() {
				return
			}
		case value >= Range:
			p.set(true)
			if !p.wait() {
				return
			}
		default:
			high := p.period * time.Duration(value) / Range
			p.set(true)
			if !p.sleep(high) {
				return
			}
			p.set(false)
			if !p.sleep(p.period - high) {
				return
			}
		}
	}
}

// wait blocks until the value changes. It returns false once closed.
func (p *Pin) wait() bool {
	select {
	case <-p.update:
		return true
	case <-p.done:
		return false
	}
}

func (p *Pin) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-p.done:
		return false
	}
}
