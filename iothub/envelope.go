package iothub

import (
	"encoding/json"
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// Fixed descriptor values the remote monitoring dashboard expects.
const (
	objectTypeDeviceInfo = "DeviceInfo"
	descriptorVersion    = "1.0"
	createdTime          = "2016-12-12T20:28:55.5448990Z"
	installedRAM         = "64 MB"
	firmwareVersion      = "1.0"
)

// Manufacturer and ModelNumber are announced in every descriptor.
var (
	Manufacturer = "Uranury"
	ModelNumber  = "iot-bridge"
)

// DeviceInfo is the descriptor announced once per run, before any sample.
type DeviceInfo struct {
	ObjectType        string           `json:"ObjectType"`
	IsSimulatedDevice int              `json:"IsSimulatedDevice"`
	Version           string           `json:"Version"`
	DeviceProperties  DeviceProperties `json:"DeviceProperties"`
	Commands          []Command        `json:"Commands"`
	Telemetry         []TelemetryField `json:"Telemetry"`
}

type DeviceProperties struct {
	DeviceID        string  `json:"DeviceID"`
	HubEnabledState int     `json:"HubEnabledState"`
	CreatedTime     string  `json:"CreatedTime"`
	DeviceState     string  `json:"DeviceState"`
	UpdatedTime     *string `json:"UpdatedTime"`
	Manufacturer    string  `json:"Manufacturer"`
	ModelNumber     string  `json:"ModelNumber"`
	SerialNumber    string  `json:"SerialNumber"`
	FirmwareVersion string  `json:"FirmwareVersion"`
	Platform        string  `json:"Platform"`
	Processor       string  `json:"Processor"`
	InstalledRAM    string  `json:"InstalledRAM"`
	Latitude        float64 `json:"Latitude"`
	Longitude       float64 `json:"Longitude"`
}

// Command is a cloud-to-device command declaration. None are supported.
type Command struct {
	Name string `json:"Name"`
}

// TelemetryField declares one telemetry channel.
type TelemetryField struct {
	Name        string `json:"Name"`
	DisplayName string `json:"DisplayName"`
	Type        string `json:"Type"`
}

// DeclaredTelemetry lists the channels announced in the descriptor.
var DeclaredTelemetry = []TelemetryField{
	{Name: "Temperature", DisplayName: "Temperature", Type: "double"},
	{Name: "Lumosity", DisplayName: "Lumosity", Type: "double"},
	{Name: "Humidity", DisplayName: "Humidity", Type: "double"},
}

// HostProperties describe the machine running the bridge.
type HostProperties struct {
	SerialNumber string
	Platform     string
	Processor    string
}

// LocalHostProperties reads hostname, OS and CPU architecture.
func LocalHostProperties() HostProperties {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}
	return HostProperties{
		SerialNumber: hostname,
		Platform:     platformName(runtime.GOOS),
		Processor:    processorName(runtime.GOARCH),
	}
}

func platformName(goos string) string {
	switch goos {
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	case "windows":
		return "Windows"
	case "freebsd":
		return "FreeBSD"
	}
	return goos
}

func processorName(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "386":
		return "i686"
	case "arm64":
		return "aarch64"
	case "arm":
		return "armv7l"
	}
	return goarch
}

// NewDeviceInfo builds the descriptor. Latitude and longitude are decimal
// degrees, zero when no fix was obtained.
func NewDeviceInfo(deviceID string, host HostProperties, latitude, longitude float64) DeviceInfo {
	telemetry := make([]TelemetryField, len(DeclaredTelemetry))
	copy(telemetry, DeclaredTelemetry)
	return DeviceInfo{
		ObjectType:        objectTypeDeviceInfo,
		IsSimulatedDevice: 0,
		Version:           descriptorVersion,
		DeviceProperties: DeviceProperties{
			DeviceID:        deviceID,
			HubEnabledState: 1,
			CreatedTime:     createdTime,
			DeviceState:     "normal",
			Manufacturer:    Manufacturer,
			ModelNumber:     ModelNumber,
			SerialNumber:    host.SerialNumber,
			FirmwareVersion: firmwareVersion,
			Platform:        host.Platform,
			Processor:       host.Processor,
			InstalledRAM:    installedRAM,
			Latitude:        latitude,
			Longitude:       longitude,
		},
		Commands:  []Command{},
		Telemetry: telemetry,
	}
}

// Sample is one periodic reading.
type Sample struct {
	DeviceID    string  `json:"DeviceID"`
	Temperature float64 `json:"Temperature"`
	Humidity    float64 `json:"Humidity"`
}

func Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "iothub: marshal envelope")
	}
	return b, nil
}
