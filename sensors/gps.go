package sensors

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Position is a location in decimal degrees.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Locator is a positioning receiver.
type Locator interface {
	IsFixed() (bool, error)
	Position() (Position, error)
}

// FixedLocator reports a configured position and always has a fix. It
// stands in for a receiver on hosts without one.
type FixedLocator struct {
	Pos Position
}

func (l FixedLocator) IsFixed() (bool, error)      { return true, nil }
func (l FixedLocator) Position() (Position, error) { return l.Pos, nil }

// ErrNoFix means the receiver did not acquire a position in time.
var ErrNoFix = errors.New("gps: no fix")

// WaitForFix polls l up to attempts times, delay apart, and returns the
// position once the receiver reports a fix. A nil locator yields the zero
// position and no error.
func WaitForFix(ctx context.Context, l Locator, attempts int, delay time.Duration, clk clock.Clock) (Position, error) {
	if l == nil {
		return Position{}, nil
	}
	if clk == nil {
		clk = clock.New()
	}

	fixed, err := l.IsFixed()
	for i := 0; err == nil && !fixed && i < attempts; i++ {
		select {
		case <-ctx.Done():
			return Position{}, ctx.Err()
		case <-clk.After(delay):
		}
		fixed, err = l.IsFixed()
	}
	if err != nil {
		return Position{}, errors.Wrap(err, "gps")
	}
	if !fixed {
		return Position{}, ErrNoFix
	}
	pos, err := l.Position()
	if err != nil {
		return Position{}, errors.Wrap(err, "gps position")
	}
	return pos, nil
}
