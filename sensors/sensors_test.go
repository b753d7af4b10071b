package sensors

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDHT struct {
	calls       int
	humidity    float64
	temperature float64
	err         error
}

func (f *fakeDHT) ReadRetry(int) (float64, float64, error) {
	f.calls++
	return f.humidity, f.temperature, f.err
}

func TestDHT22ChannelsShareRead(t *testing.T) {
	fake := &fakeDHT{humidity: 40.2, temperature: 21.5}
	d := newDHT22("GPIO4", fake)
	now := time.Unix(1000, 0)
	d.now = func() time.Time { return now }

	temp, hum := d.TemperatureChannel(), d.HumidityChannel()
	assert.True(t, temp.IsAvailable())

	v, err := temp.CurrentValue()
	require.NoError(t, err)
	assert.Equal(t, 21.5, v)
	v, err = hum.CurrentValue()
	require.NoError(t, err)
	assert.Equal(t, 40.2, v)
	assert.Equal(t, 1, fake.calls)

	assert.Equal(t, UnitCelsius, temp.Unit())
	assert.Equal(t, UnitPercent, hum.Unit())
	assert.Equal(t, "DHT22.temperature", temp.Name())

	now = now.Add(dhtMinInterval)
	fake.temperature = 22
	v, err = temp.CurrentValue()
	require.NoError(t, err)
	assert.Equal(t, 22.0, v)
	assert.Equal(t, 2, fake.calls)
}

func TestDHT22Unavailable(t *testing.T) {
	fake := &fakeDHT{err: errors.New("timeout")}
	d := newDHT22("GPIO4", fake)
	d.now = func() time.Time { return time.Unix(1000, 0) }

	ch := d.TemperatureChannel()
	assert.False(t, ch.IsAvailable())
	_, err := ch.CurrentValue()
	assert.True(t, errors.Is(err, ErrDeviceUnavailable))
	assert.Equal(t, 1, fake.calls, "failed read is cached too")
}

func TestSimulatedRanges(t *testing.T) {
	s := NewSimulatedClimate()
	for i := 0; i < 100; i++ {
		data, err := s.Read()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, data.Fields[FieldTemperature], 20.0)
		assert.Less(t, data.Fields[FieldTemperature], 30.0)
		assert.GreaterOrEqual(t, data.Fields[FieldHumidity], 40.0)
		assert.Less(t, data.Fields[FieldHumidity], 80.0)
	}
	assert.True(t, s.HumidityChannel().IsAvailable())

	s.Offline = true
	assert.False(t, s.TemperatureChannel().IsAvailable())
}

func TestFieldChannelMissingField(t *testing.T) {
	s := &Simulated{SensorType: "light", Fields: map[string]Range{"light": {Min: 1, Max: 2}}}
	_, err := NewFieldChannel(s, FieldTemperature, UnitCelsius).CurrentValue()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDeviceUnavailable))
}

type fakeLocator struct {
	fixAfter int
	polls    int
	pos      Position
	err      error
}

func (f *fakeLocator) IsFixed() (bool, error) {
	f.polls++
	if f.err != nil {
		return false, f.err
	}
	return f.polls > f.fixAfter, nil
}

func (f *fakeLocator) Position() (Position, error) { return f.pos, nil }

func TestWaitForFix(t *testing.T) {
	ctx := context.Background()

	l := &fakeLocator{fixAfter: 3, pos: Position{Latitude: 46.204, Longitude: 6.143}}
	pos, err := WaitForFix(ctx, l, 30, time.Millisecond, nil)
	require.NoError(t, err)
	assert.InDelta(t, 46.204, pos.Latitude, 1e-9)
	assert.InDelta(t, 6.143, pos.Longitude, 1e-9)
	assert.Equal(t, 4, l.polls)

	l = &fakeLocator{fixAfter: 100}
	_, err = WaitForFix(ctx, l, 5, time.Millisecond, nil)
	assert.Equal(t, ErrNoFix, err)
	assert.Equal(t, 6, l.polls, "initial check plus one per attempt")

	l = &fakeLocator{err: errors.New("receiver gone")}
	_, err = WaitForFix(ctx, l, 5, time.Millisecond, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, l.polls)

	pos, err = WaitForFix(ctx, nil, 5, time.Millisecond, nil)
	require.NoError(t, err)
	assert.Equal(t, Position{}, pos)

	pos, err = WaitForFix(ctx, FixedLocator{Pos: Position{1, 2}}, 5, time.Hour, nil)
	require.NoError(t, err)
	assert.Equal(t, Position{1, 2}, pos)
}

func TestWaitForFixCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := WaitForFix(ctx, &fakeLocator{fixAfter: 100}, 30, time.Hour, nil)
	assert.Equal(t, context.Canceled, err)
}

func TestDHT22NeedsInit(t *testing.T) {
	d := NewDHT22("GPIO4", "dht22")
	_, err := d.Read()
	assert.True(t, errors.Is(err, ErrDeviceUnavailable))

	fake := &fakeDHT{humidity: 50, temperature: 20}
	d.Dht = fake
	assert.True(t, d.HumidityChannel().IsAvailable())

	require.NoError(t, d.Shutdown())
	assert.False(t, d.HumidityChannel().IsAvailable())
	assert.Equal(t, 1, fake.calls)
}

func TestNopHost(t *testing.T) {
	var h Host = NopHost{}
	assert.NoError(t, h.Init())
	assert.NoError(t, h.Shutdown())
}
