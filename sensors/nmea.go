package sensors

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"github.com/adrianmo/go-nmea"
	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
)

// maxSentencesPerCheck bounds how many lines IsFixed reads looking for a
// GGA or RMC sentence. Receivers emit one of each per second among a few
// GSV/GSA lines.
const maxSentencesPerCheck = 32

// NMEALocator reads a GPS receiver speaking NMEA 0183. Reads happen on
// the caller's goroutine, inside IsFixed.
type NMEALocator struct {
	dev io.ReadCloser
	r   *bufio.Reader

	mu    sync.Mutex
	fixed bool
	pos   Position
}

// OpenNMEA opens the serial port at path. baud 0 means 9600.
func OpenNMEA(path string, baud uint) (*NMEALocator, error) {
	if baud == 0 {
		baud = 9600
	}
	dev, err := serial.Open(serial.OpenOptions{
		PortName:        path,
		BaudRate:        baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open gps serial %s", path)
	}
	return NewNMEALocator(dev), nil
}

// NewNMEALocator reads sentences from dev.
func NewNMEALocator(dev io.ReadCloser) *NMEALocator {
	return &NMEALocator{dev: dev, r: bufio.NewReader(dev)}
}

// IsFixed reads up to the next GGA or RMC sentence and reports whether
// it carries a valid fix. Unparseable lines are skipped.
func (l *NMEALocator) IsFixed() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := 0; i < maxSentencesPerCheck; i++ {
		line, err := l.r.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			if l.update(line) {
				return l.fixed, nil
			}
		}
		if err != nil {
			return false, errors.Wrap(err, "read gps serial")
		}
	}
	return l.fixed, nil
}

// update applies a position sentence and reports whether line was one.
func (l *NMEALocator) update(line string) bool {
	s, err := nmea.Parse(line)
	if err != nil {
		return false
	}
	switch m := s.(type) {
	case nmea.GGA:
		l.fixed = m.FixQuality != nmea.Invalid
		l.pos = Position{Latitude: m.Latitude, Longitude: m.Longitude}
	case nmea.RMC:
		l.fixed = m.Validity == nmea.ValidRMC
		l.pos = Position{Latitude: m.Latitude, Longitude: m.Longitude}
	default:
		return false
	}
	return true
}

// Position returns the last fixed position in decimal degrees.
func (l *NMEALocator) Position() (Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.fixed {
		return Position{}, ErrNoFix
	}
	return l.pos, nil
}

func (l *NMEALocator) Close() error {
	return l.dev.Close()
}
