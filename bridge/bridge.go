// Package bridge runs the startup-then-poll sequence: announce the device
// descriptor once, then send one sample per interval while the sensor is
// reachable. Everything happens on the calling goroutine.
package bridge

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Uranury/iot-bridge/iothub"
	"github.com/Uranury/iot-bridge/sensors"
)

// Deliverer sends one envelope upstream. *iothub.Uplink implements it.
type Deliverer interface {
	DeliverJSON(ctx context.Context, v interface{}) error
}

// Sink receives every reading after the hub accepted it. Sink errors are
// logged and never stop the bridge.
type Sink interface {
	Write(ctx context.Context, data *sensors.SensorData) error
}

// Announcer is implemented by sinks that also want the device descriptor.
type Announcer interface {
	Announce(info iothub.DeviceInfo)
}

type Params struct {
	DeviceID       string
	SensorType     string
	PollInterval   time.Duration
	GPSFixAttempts int
	GPSFixDelay    time.Duration
	HostProperties iothub.HostProperties

	Host        sensors.Host
	Locator     sensors.Locator // optional
	Temperature sensors.Channel
	Humidity    sensors.Channel
	Uplink      Deliverer
	Sinks       []Sink

	Clock  clock.Clock
	Logger *zap.SugaredLogger
}

type Bridge struct {
	p      Params
	clock  clock.Clock
	logger *zap.SugaredLogger
}

func New(p Params) *Bridge {
	b := &Bridge{p: p, clock: p.Clock, logger: p.Logger}
	if b.clock == nil {
		b.clock = clock.New()
	}
	if b.logger == nil {
		b.logger = zap.NewNop().Sugar()
	}
	if b.p.Host == nil {
		b.p.Host = sensors.NopHost{}
	}
	return b
}

// Run acquires the sensor host, announces the device and polls until the
// sensor goes away, a send fails or ctx is cancelled. Cancellation is not
// an error. The host is shut down on every return path.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.p.Host.Init(); err != nil {
		return errors.Wrap(err, "init sensor host")
	}
	defer func() {
		if serr := b.p.Host.Shutdown(); serr != nil {
			b.logger.Warnf("sensor host shutdown: %v", serr)
		}
	}()

	pos, err := b.locate(ctx)
	if err != nil {
		return ignoreCanceled(err)
	}
	b.logger.Infof("GPS location is %f %f", pos.Latitude, pos.Longitude)

	if err := b.announce(ctx, pos); err != nil {
		return ignoreCanceled(err)
	}
	return ignoreCanceled(b.poll(ctx))
}

func (b *Bridge) locate(ctx context.Context) (sensors.Position, error) {
	if b.p.Locator == nil {
		return sensors.Position{}, nil
	}
	if fixed, _ := b.p.Locator.IsFixed(); !fixed {
		b.logger.Infof("Wait for GPS fix.")
	}
	pos, err := sensors.WaitForFix(ctx, b.p.Locator, b.p.GPSFixAttempts, b.p.GPSFixDelay, b.clock)
	switch {
	case err == nil:
		return pos, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return sensors.Position{}, err
	case errors.Is(err, sensors.ErrNoFix):
		wait := time.Duration(b.p.GPSFixAttempts) * b.p.GPSFixDelay
		b.logger.Warnf("unable to get GPS fix in %s", wait)
	default:
		b.logger.Warnf("gps: %v", err)
	}
	return sensors.Position{}, nil
}

// announce sends the descriptor. It is sent on every run; the hub treats
// a repeated descriptor as an update.
func (b *Bridge) announce(ctx context.Context, pos sensors.Position) error {
	info := iothub.NewDeviceInfo(b.p.DeviceID, b.p.HostProperties, pos.Latitude, pos.Longitude)
	if err := b.p.Uplink.DeliverJSON(ctx, info); err != nil {
		return errors.Wrap(err, "send device info")
	}
	for _, s := range b.p.Sinks {
		if a, ok := s.(Announcer); ok {
			a.Announce(info)
		}
	}
	return nil
}

func (b *Bridge) poll(ctx context.Context) error {
	temp, hum := b.p.Temperature, b.p.Humidity
	if temp == nil || hum == nil || !temp.IsAvailable() || !hum.IsAvailable() {
		return errors.Wrap(sensors.ErrDeviceUnavailable, "no temperature and humidity sensor connected")
	}

	for temp.IsAvailable() {
		t, err := temp.CurrentValue()
		if err != nil {
			return errors.Wrap(err, "read temperature")
		}
		h, err := hum.CurrentValue()
		if err != nil {
			return errors.Wrap(err, "read humidity")
		}
		b.logger.Infof("Send new value: temperature=%2.1f%s and humidity=%2.1f%s", t, temp.Unit(), h, hum.Unit())

		sample := iothub.Sample{DeviceID: b.p.DeviceID, Temperature: t, Humidity: h}
		if err := b.p.Uplink.DeliverJSON(ctx, sample); err != nil {
			return errors.Wrap(err, "send sample")
		}
		b.publish(ctx, &sensors.SensorData{
			SensorType: b.p.SensorType,
			Fields: map[string]float64{
				sensors.FieldTemperature: t,
				sensors.FieldHumidity:    h,
			},
			Timestamp: b.clock.Now(),
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.clock.After(b.p.PollInterval):
		}
	}
	return errors.Wrap(sensors.ErrDeviceUnavailable, "temperature sensor went offline")
}

func (b *Bridge) publish(ctx context.Context, data *sensors.SensorData) {
	for _, s := range b.p.Sinks {
		if err := s.Write(ctx, data); err != nil {
			b.logger.Warnf("sink %T: %v", s, err)
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
