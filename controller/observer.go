package controller

import (
	"github.com/calvinmclean/carddealer"
	"github.com/calvinmclean/carddealer/dealer"
)

// observers fans every notification out to each Observer in order
type observers []dealer.Observer

var _ dealer.Observer = observers{}

// SessionStarted implements dealer.Observer.
func (o observers) SessionStarted(s carddealer.Session) {
	for _, obs := range o {
		obs.SessionStarted(s)
	}
}

// SessionFinished implements dealer.Observer.
func (o observers) SessionFinished(r dealer.Result) {
	for _, obs := range o {
		obs.SessionFinished(r)
	}
}

// StationReached implements dealer.Observer.
func (o observers) StationReached(station int, overwrote bool) {
	for _, obs := range o {
		obs.StationReached(station, overwrote)
	}
}

// EventDiscarded implements dealer.Observer.
func (o observers) EventDiscarded(reason string) {
	for _, obs := range o {
		obs.EventDiscarded(reason)
	}
}

// CardDealt implements dealer.Observer.
func (o observers) CardDealt(station int) {
	for _, obs := range o {
		obs.CardDealt(station)
	}
}
