package sensors

import (
	"math/rand/v2"
	"time"
)

// Range bounds a simulated field.
type Range struct {
	Min, Max float64
}

// Simulated produces random readings for bench runs without hardware.
type Simulated struct {
	SensorType string
	Fields     map[string]Range
	// Offline makes every read fail, as an unplugged device would.
	Offline bool
}

// NewSimulatedClimate mimics a temperature and humidity module.
func NewSimulatedClimate() *Simulated {
	return &Simulated{
		SensorType: "simulated",
		Fields: map[string]Range{
			FieldTemperature: {Min: 20, Max: 30},
			FieldHumidity:    {Min: 40, Max: 80},
		},
	}
}

func (s *Simulated) Name() string {
	return "Simulated"
}

func (s *Simulated) Read() (*SensorData, error) {
	if s.Offline {
		return nil, ErrDeviceUnavailable
	}
	fields := make(map[string]float64, len(s.Fields))
	for name, r := range s.Fields {
		fields[name] = r.Min + rand.Float64()*(r.Max-r.Min)
	}
	return &SensorData{
		SensorType: s.SensorType,
		Fields:     fields,
		Timestamp:  time.Now(),
	}, nil
}

func (s *Simulated) TemperatureChannel() Channel {
	return NewFieldChannel(s, FieldTemperature, UnitCelsius)
}

func (s *Simulated) HumidityChannel() Channel {
	return NewFieldChannel(s, FieldHumidity, UnitPercent)
}
