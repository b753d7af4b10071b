package iothub

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleJSON(t *testing.T) {
	b, err := Marshal(Sample{DeviceID: "dev1", Temperature: 21.5, Humidity: 40.2})
	require.NoError(t, err)
	assert.Equal(t, samplePayload, string(b))
}

func TestDeviceInfoJSON(t *testing.T) {
	host := HostProperties{SerialNumber: "pi-kitchen", Platform: "Linux", Processor: "armv7l"}
	b, err := Marshal(NewDeviceInfo("dev1", host, 46.2, 6.1))
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &got))

	assert.Equal(t, "DeviceInfo", got["ObjectType"])
	assert.Equal(t, 0.0, got["IsSimulatedDevice"])
	assert.Equal(t, "1.0", got["Version"])
	assert.Equal(t, []interface{}{}, got["Commands"])

	props := got["DeviceProperties"].(map[string]interface{})
	assert.Equal(t, "dev1", props["DeviceID"])
	assert.Equal(t, 1.0, props["HubEnabledState"])
	assert.Equal(t, "normal", props["DeviceState"])
	assert.Nil(t, props["UpdatedTime"])
	assert.Contains(t, props, "UpdatedTime")
	assert.Equal(t, "pi-kitchen", props["SerialNumber"])
	assert.Equal(t, "Linux", props["Platform"])
	assert.Equal(t, "armv7l", props["Processor"])
	assert.Equal(t, "64 MB", props["InstalledRAM"])
	assert.Equal(t, 46.2, props["Latitude"])
	assert.Equal(t, 6.1, props["Longitude"])

	var names []string
	for _, ch := range got["Telemetry"].([]interface{}) {
		f := ch.(map[string]interface{})
		assert.Equal(t, "double", f["Type"])
		assert.Equal(t, f["Name"], f["DisplayName"])
		names = append(names, f["Name"].(string))
	}
	assert.Equal(t, []string{"Temperature", "Lumosity", "Humidity"}, names)
}

func TestDeviceInfoTelemetryNotShared(t *testing.T) {
	a := NewDeviceInfo("a", HostProperties{}, 0, 0)
	a.Telemetry[0].Name = "changed"
	b := NewDeviceInfo("b", HostProperties{}, 0, 0)
	assert.Equal(t, "Temperature", b.Telemetry[0].Name)
}

func TestHostNames(t *testing.T) {
	assert.Equal(t, "Linux", platformName("linux"))
	assert.Equal(t, "plan9", platformName("plan9"))
	assert.Equal(t, "x86_64", processorName("amd64"))
	assert.Equal(t, "aarch64", processorName("arm64"))
	assert.Equal(t, "riscv64", processorName("riscv64"))
}
