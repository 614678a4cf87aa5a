package data

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// IVStrategy is one step in the implied-volatility fallback chain. A
// strategy either produces an annualized vol fraction or errors, in which
// case the chain moves on to the next one.
type IVStrategy interface {
	Name() string
	IV(symbol string) (float64, error)
}

// IVChain tries an ordered list of strategies and returns the first value
// together with the name of the strategy that produced it, so the fallback
// step is always visible to the caller instead of buried in fetch logic.
type IVChain struct {
	strategies []IVStrategy
	log        *logrus.Logger
}

// NewIVChain builds a chain from the given strategies, tried in order.
func NewIVChain(log *logrus.Logger, strategies ...IVStrategy) *IVChain {
	return &IVChain{strategies: strategies, log: log}
}

// MarketIV implements IVSource.
func (c *IVChain) MarketIV(symbol string) (IVQuote, error) {
	for _, s := range c.strategies {
		iv, err := s.IV(symbol)
		if err != nil {
			c.log.WithFields(logrus.Fields{
				"symbol":   symbol,
				"strategy": s.Name(),
			}).WithError(err).Debug("IV strategy failed, trying next")
			continue
		}
		c.log.WithFields(logrus.Fields{
			"symbol":   symbol,
			"strategy": s.Name(),
			"iv":       iv,
		}).Debug("IV resolved")
		return IVQuote{Symbol: symbol, IV: iv, Source: s.Name()}, nil
	}
	return IVQuote{}, fmt.Errorf("%w: no IV strategy produced a value for %s", ErrUpstreamUnavailable, symbol)
}

// DefaultIV is the terminal strategy: a fixed annualized vol that always
// succeeds. The canonical chain ends with DefaultIV{IVValue: 0.15}.
type DefaultIV struct {
	IVValue float64
}

func (d DefaultIV) Name() string { return "default" }

func (d DefaultIV) IV(string) (float64, error) {
	return d.IVValue, nil
}
