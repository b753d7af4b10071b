// Package mirror keeps a local time-series copy of every reading the hub
// accepted.
package mirror

import (
	"context"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/pkg/errors"

	"github.com/Uranury/iot-bridge/sensors"
)

const measurement = "sensor_data"

type Influx struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	deviceID string
}

func NewInflux(url, token, org, bucket, deviceID string) *Influx {
	client := influxdb2.NewClient(url, token)
	return &Influx{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		deviceID: deviceID,
	}
}

// Write stores data as one point tagged with device and sensor.
func (m *Influx) Write(ctx context.Context, data *sensors.SensorData) error {
	p := influxdb2.NewPointWithMeasurement(measurement).
		AddTag("device", m.deviceID).
		AddTag("sensor", data.SensorType).
		SetTime(data.Timestamp)

	for key, value := range data.Fields {
		p.AddField(key, value)
	}

	if err := m.writeAPI.WritePoint(ctx, p); err != nil {
		return errors.Wrap(err, "influx write")
	}
	return nil
}

func (m *Influx) Close() {
	m.client.Close()
}
