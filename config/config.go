package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/Uranury/iot-bridge/iothub"
)

type SensorSource string

const (
	SensorDHT       SensorSource = "dht22"
	SensorSimulated SensorSource = "simulated"
)

type Config struct {
	DeviceID  string
	HubHost   string
	AccessKey string

	PollInterval   time.Duration
	GPSFixAttempts int
	GPSFixDelay    time.Duration

	// GPSDevice is the serial port of an NMEA receiver; empty means none.
	GPSDevice string
	GPSBaud   int
	// Latitude and Longitude are used as a fixed GPS position when both are
	// set and no receiver is configured or it cannot be opened.
	Latitude  *float64
	Longitude *float64

	SensorSource SensorSource
	DHTPin       string
	DHTType      string

	MonitorAddr string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	LogLevel string
}

// Args are the positional command line values. Empty ones fall back to
// IOTHUB_DEVICE_ID, IOTHUB_HOST and IOTHUB_ACCESS_KEY.
type Args struct {
	DeviceID  string
	HostName  string
	AccessKey string
}

// LoadDotEnv reads .env files into the environment. A missing file is not
// an error.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	var existing []string
	for _, f := range filenames {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return errors.Wrap(godotenv.Load(existing...), "load env file")
}

func Load(args Args) (Config, error) {
	cfg := Config{
		DeviceID:       firstNonEmpty(args.DeviceID, getEnv("IOTHUB_DEVICE_ID", "")),
		HubHost:        NormalizeHost(firstNonEmpty(args.HostName, getEnv("IOTHUB_HOST", ""))),
		AccessKey:      firstNonEmpty(args.AccessKey, getEnv("IOTHUB_ACCESS_KEY", "")),
		PollInterval:   envDuration("POLL_INTERVAL", 10*time.Second),
		GPSFixAttempts: envInt("GPS_FIX_ATTEMPTS", 30),
		GPSFixDelay:    envDuration("GPS_FIX_DELAY", time.Second),
		GPSDevice:      getEnv("GPS_DEVICE", ""),
		GPSBaud:        envInt("GPS_BAUD", 9600),
		SensorSource:   SensorSource(strings.ToLower(getEnv("SENSOR_SOURCE", string(SensorDHT)))),
		DHTPin:         getEnv("DHT_PIN", "GPIO4"),
		DHTType:        strings.ToLower(getEnv("DHT_TYPE", "dht22")),
		MonitorAddr:    getEnv("MONITOR_ADDR", ""),
		InfluxURL:      getEnv("INFLUX_URL", ""),
		InfluxToken:    getEnv("INFLUX_TOKEN", ""),
		InfluxOrg:      getEnv("INFLUX_ORG", ""),
		InfluxBucket:   getEnv("INFLUX_BUCKET", ""),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
	var err error
	if cfg.Latitude, err = envFloat("GPS_LATITUDE"); err != nil {
		return Config{}, err
	}
	if cfg.Longitude, err = envFloat("GPS_LONGITUDE"); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DeviceID == "" {
		return errors.New("device id is required")
	}
	if c.HubHost == "" {
		return errors.New("iot hub host name is required")
	}
	if c.AccessKey == "" {
		return errors.New("access key is required")
	}
	if c.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL must be > 0")
	}
	if c.GPSFixAttempts < 0 || c.GPSFixDelay < 0 {
		return errors.New("GPS_FIX_ATTEMPTS and GPS_FIX_DELAY must be >= 0")
	}
	if c.GPSBaud <= 0 {
		return errors.New("GPS_BAUD must be > 0")
	}
	if (c.Latitude == nil) != (c.Longitude == nil) {
		return errors.New("GPS_LATITUDE and GPS_LONGITUDE must be set together")
	}
	switch c.SensorSource {
	case SensorDHT:
		if c.DHTPin == "" {
			return errors.New("DHT_PIN is required for dht22 source")
		}
		if c.DHTType != "dht22" && c.DHTType != "dht11" {
			return errors.Errorf("unsupported DHT_TYPE %q", c.DHTType)
		}
	case SensorSimulated:
	default:
		return errors.Errorf("unsupported SENSOR_SOURCE %q", c.SensorSource)
	}
	if c.InfluxURL != "" && (c.InfluxOrg == "" || c.InfluxBucket == "") {
		return errors.New("INFLUX_ORG and INFLUX_BUCKET are required when INFLUX_URL is set")
	}
	return nil
}

// HasFixedPosition reports whether a static GPS position was configured.
func (c Config) HasFixedPosition() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// NormalizeHost appends the public IoT hub domain to bare hub names.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" || strings.HasSuffix(host, iothub.HostSuffix) {
		return host
	}
	return host + iothub.HostSuffix
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// envFloat is strict: a set but malformed coordinate is a configuration
// error rather than a silent 0,0 position.
func envFloat(key string) (*float64, error) {
	v := getEnv(key, "")
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, errors.Errorf("%s: %q is not a number", key, v)
	}
	return &f, nil
}
