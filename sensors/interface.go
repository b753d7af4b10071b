package sensors

import (
	"time"

	"github.com/pkg/errors"
)

// ErrDeviceUnavailable is returned when a sensor cannot be reached, either
// at startup or while polling.
var ErrDeviceUnavailable = errors.New("sensor device unavailable")

// SensorData is the unified data structure for all sensors
type SensorData struct {
	SensorType string             `json:"sensor_type"`
	Fields     map[string]float64 `json:"fields"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Sensor interface that all sensors must implement
type Sensor interface {
	Read() (*SensorData, error)
	Name() string
}

// Channel is a single measured quantity of a sensor.
type Channel interface {
	Name() string
	IsAvailable() bool
	CurrentValue() (float64, error)
	Unit() string
}

// Host brackets access to local hardware. Init must succeed before any
// sensor is read; Shutdown releases whatever Init acquired.
type Host interface {
	Init() error
	Shutdown() error
}

// NopHost is used when no hardware is attached.
type NopHost struct{}

func (NopHost) Init() error     { return nil }
func (NopHost) Shutdown() error { return nil }

// Field names shared by drivers.
const (
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
)

// Units reported by channels.
const (
	UnitCelsius = "°C"
	UnitPercent = "%RH"
)
