package sensors

import (
	"sync"
	"time"

	"github.com/MichaelS11/go-dht"
	"github.com/pkg/errors"
)

// dhtMinInterval is the shortest period between two reads the DHT family
// tolerates.
const dhtMinInterval = 2 * time.Second

const dhtReadRetries = 11

// dhtReader is the part of *dht.DHT used here.
type dhtReader interface {
	ReadRetry(maxRetries int) (humidity float64, temperature float64, err error)
}

// DHT22 is a DHT11/DHT22 temperature and humidity sensor on a GPIO pin.
// It is also the Host of the GPIO drivers it needs: Init brings up periph
// and opens the pin.
type DHT22 struct {
	Pin        string
	SensorType string
	Dht        dhtReader

	mu       sync.Mutex
	last     *SensorData
	lastErr  error
	lastRead time.Time
	now      func() time.Time
}

// NewDHT22 describes a sensor on pin; sensorType is "dht22" or "dht11".
// Nothing touches the hardware before Init.
func NewDHT22(pin, sensorType string) *DHT22 {
	return &DHT22{Pin: pin, SensorType: sensorType, now: time.Now}
}

func newDHT22(pin string, r dhtReader) *DHT22 {
	d := NewDHT22(pin, "dht22")
	d.Dht = r
	return d
}

func (d *DHT22) Init() error {
	if err := dht.HostInit(); err != nil {
		return errors.Wrap(err, "gpio host init")
	}
	r, err := dht.NewDHT(d.Pin, dht.Celsius, d.SensorType)
	if err != nil {
		return errors.Wrapf(err, "dht on %s", d.Pin)
	}
	d.mu.Lock()
	d.Dht = r
	d.mu.Unlock()
	return nil
}

// Shutdown forgets the pin. periph keeps no process-wide state to release.
func (d *DHT22) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Dht = nil
	d.last, d.lastErr, d.lastRead = nil, nil, time.Time{}
	return nil
}

func (d *DHT22) Name() string {
	return "DHT22"
}

// Read returns the cached reading when the sensor was read less than
// dhtMinInterval ago.
func (d *DHT22) Read() (*SensorData, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Dht == nil {
		return nil, errors.Wrapf(ErrDeviceUnavailable, "dht on %s not initialized", d.Pin)
	}
	now := d.now()
	if !d.lastRead.IsZero() && now.Sub(d.lastRead) < dhtMinInterval {
		return d.last, d.lastErr
	}

	humidity, temperature, err := d.Dht.ReadRetry(dhtReadRetries)
	d.lastRead = now
	if err != nil {
		d.last, d.lastErr = nil, errors.Wrapf(err, "read dht on %s", d.Pin)
		return nil, d.lastErr
	}

	d.last = &SensorData{
		SensorType: d.SensorType,
		Fields: map[string]float64{
			FieldTemperature: temperature,
			FieldHumidity:    humidity,
		},
		Timestamp: now,
	}
	d.lastErr = nil
	return d.last, nil
}

func (d *DHT22) TemperatureChannel() Channel {
	return NewFieldChannel(d, FieldTemperature, UnitCelsius)
}

func (d *DHT22) HumidityChannel() Channel {
	return NewFieldChannel(d, FieldHumidity, UnitPercent)
}
