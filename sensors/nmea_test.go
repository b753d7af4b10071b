package sensors

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ggaNoFix = "$GPGGA,123520,4807.038,N,01131.000,E,0,00,0.0,0.0,M,0.0,M,,*76"
	ggaFix   = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	ggaSouth = "$GPGGA,123521,3355.500,S,15112.000,E,2,09,0.8,20.0,M,20.0,M,,*68"
	rmcVoid  = "$GPRMC,123520,V,4807.038,N,01131.000,E,0.0,0.0,230394,003.1,W*7B"
	rmcValid = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
)

func nmeaStream(lines ...string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(strings.Join(lines, "\r\n") + "\r\n"))
}

func TestNMEALocatorGGA(t *testing.T) {
	l := NewNMEALocator(nmeaStream(
		"garbage",
		"$GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,1.3,2.1*39",
		ggaNoFix,
		ggaFix,
	))

	fixed, err := l.IsFixed()
	require.NoError(t, err)
	assert.False(t, fixed)
	_, err = l.Position()
	assert.Equal(t, ErrNoFix, err)

	fixed, err = l.IsFixed()
	require.NoError(t, err)
	assert.True(t, fixed)
	pos, err := l.Position()
	require.NoError(t, err)
	assert.InDelta(t, 48.1173, pos.Latitude, 1e-6)
	assert.InDelta(t, 11.516667, pos.Longitude, 1e-6)

	_, err = l.IsFixed()
	assert.Error(t, err, "stream exhausted")
	assert.NoError(t, l.Close())
}

func TestNMEALocatorRMC(t *testing.T) {
	l := NewNMEALocator(nmeaStream(rmcVoid, rmcValid))

	fixed, err := l.IsFixed()
	require.NoError(t, err)
	assert.False(t, fixed)

	fixed, err = l.IsFixed()
	require.NoError(t, err)
	assert.True(t, fixed)
}

func TestWaitForFixNMEA(t *testing.T) {
	l := NewNMEALocator(nmeaStream(ggaNoFix, rmcVoid, ggaSouth))

	pos, err := WaitForFix(context.Background(), l, 30, time.Millisecond, nil)
	require.NoError(t, err)
	assert.InDelta(t, -33.925, pos.Latitude, 1e-6)
	assert.InDelta(t, 151.2, pos.Longitude, 1e-6)
}

func TestWaitForFixNMEANeverFixed(t *testing.T) {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = ggaNoFix
	}
	l := NewNMEALocator(nmeaStream(lines...))

	_, err := WaitForFix(context.Background(), l, 3, time.Millisecond, nil)
	assert.Equal(t, ErrNoFix, err)
}
