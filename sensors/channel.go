package sensors

import (
	"github.com/pkg/errors"
)

// FieldChannel exposes one field of a Sensor as a Channel. Every call goes
// through Read, so drivers that cache readings keep one hardware access
// per poll.
type FieldChannel struct {
	sensor Sensor
	field  string
	unit   string
}

func NewFieldChannel(s Sensor, field, unit string) *FieldChannel {
	return &FieldChannel{sensor: s, field: field, unit: unit}
}

func (c *FieldChannel) Name() string { return c.sensor.Name() + "." + c.field }
func (c *FieldChannel) Unit() string { return c.unit }

func (c *FieldChannel) IsAvailable() bool {
	_, err := c.CurrentValue()
	return err == nil
}

func (c *FieldChannel) CurrentValue() (float64, error) {
	data, err := c.sensor.Read()
	if err != nil {
		return 0, errors.Wrapf(ErrDeviceUnavailable, "%s: %v", c.Name(), err)
	}
	v, ok := data.Fields[c.field]
	if !ok {
		return 0, errors.Errorf("%s: field %q not reported", c.sensor.Name(), c.field)
	}
	return v, nil
}
