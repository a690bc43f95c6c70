package client

import (
	"errors"
	"log/slog"
	"time"
)

type Config struct {
	Port         uint16        // port announced to trackers
	Timeout      time.Duration // bound on a single tracker exchange
	UseTrackers  bool
	UseDHT       bool
	ShowProgress bool
	NumWant      int          // peers asked of each tracker, 0 for the tracker default
	Logger       *slog.Logger // nil discards
}

var DefaultConfig = Config{
	Port:         6881,
	Timeout:      15 * time.Second,
	UseTrackers:  true,
	UseDHT:       false,
	ShowProgress: true,
	NumWant:      50,
}

func (c Config) Validate() error {
	if !c.UseTrackers && !c.UseDHT {
		return errors.New("enable tracker or dht peer discovery")
	}
	if c.Port == 0 {
		return errors.New("listening port must not be zero")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.NumWant < 0 {
		return errors.New("numwant must not be negative")
	}
	return nil
}
