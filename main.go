package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Uranury/iot-bridge/bridge"
	"github.com/Uranury/iot-bridge/config"
	"github.com/Uranury/iot-bridge/iothub"
	"github.com/Uranury/iot-bridge/mirror"
	"github.com/Uranury/iot-bridge/monitor"
	"github.com/Uranury/iot-bridge/sensors"
)

const maxArgs = 3

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "iot-bridge",
		Usage:     "forward local sensor readings to an Azure IoT hub",
		ArgsUsage: "DEVICE_ID HOST_NAME ACCESS_KEY",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "load environment from `FILE` when it exists",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}
}

func usageError(c *cli.Context, err error) error {
	return cli.Exit(fmt.Sprintf("%v\n\nusage: %s [flags] %s", err, c.App.Name, c.App.ArgsUsage), 2)
}

func run(c *cli.Context) error {
	if c.NArg() > maxArgs {
		return usageError(c, errors.Errorf("unrecognized arguments: %s", strings.Join(c.Args().Slice()[maxArgs:], " ")))
	}
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return err
	}
	cfg, err := config.Load(config.Args{
		DeviceID:  c.Args().Get(0),
		HostName:  c.Args().Get(1),
		AccessKey: c.Args().Get(2),
	})
	if err != nil {
		return usageError(c, err)
	}

	logger, err := newLogger(cfg.LogLevel, c.Bool("debug"))
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	creds, err := iothub.NewCredentials(cfg.DeviceID, cfg.HubHost, cfg.AccessKey)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	uplink := iothub.NewUplink(iothub.NewClient(creds, nil), iothub.NewSigner(creds, nil))

	host, temperature, humidity := openSensors(cfg)

	var sinks []bridge.Sink
	if cfg.MonitorAddr != "" {
		mon := monitor.New(cfg.MonitorAddr, logger.Named("monitor"))
		mon.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mon.Shutdown(ctx); err != nil {
				logger.Warnf("monitor shutdown: %v", err)
			}
		}()
		sinks = append(sinks, mon)
	}
	if cfg.InfluxURL != "" {
		m := mirror.NewInflux(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, cfg.DeviceID)
		defer m.Close()
		sinks = append(sinks, m)
	}

	locator, closeLocator := openLocator(cfg, logger)
	defer closeLocator()

	b := bridge.New(bridge.Params{
		DeviceID:       cfg.DeviceID,
		SensorType:     string(cfg.SensorSource),
		PollInterval:   cfg.PollInterval,
		GPSFixAttempts: cfg.GPSFixAttempts,
		GPSFixDelay:    cfg.GPSFixDelay,
		HostProperties: iothub.LocalHostProperties(),
		Host:           host,
		Locator:        locator,
		Temperature:    temperature,
		Humidity:       humidity,
		Uplink:         uplink,
		Sinks:          sinks,
		Logger:         logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("bridging %s to %s every %s", cfg.DeviceID, cfg.HubHost, cfg.PollInterval)
	err = b.Run(ctx)
	var rejected *iothub.RejectedError
	switch {
	case err == nil:
	case errors.As(err, &rejected):
		logger.Errorf("unable to contact Azure Iot Hub: %s", rejected.Body)
	case errors.Is(err, sensors.ErrDeviceUnavailable):
		logger.Errorf("%v. Check your sensor wiring.", err)
	default:
		logger.Errorf("%v", err)
	}
	logger.Infof("exiting..")
	if err != nil {
		return cli.Exit("", 1)
	}
	return nil
}

// openSensors picks the sensor backend. The returned host is brought up
// and released by the bridge.
func openSensors(cfg config.Config) (sensors.Host, sensors.Channel, sensors.Channel) {
	if cfg.SensorSource == config.SensorSimulated {
		sim := sensors.NewSimulatedClimate()
		return sensors.NopHost{}, sim.TemperatureChannel(), sim.HumidityChannel()
	}
	d := sensors.NewDHT22(cfg.DHTPin, cfg.DHTType)
	return d, d.TemperatureChannel(), d.HumidityChannel()
}

// openLocator opens the configured NMEA receiver, falling back to the
// fixed position when there is none or it cannot be opened.
func openLocator(cfg config.Config, logger *zap.SugaredLogger) (sensors.Locator, func()) {
	if cfg.GPSDevice != "" {
		gps, err := sensors.OpenNMEA(cfg.GPSDevice, uint(cfg.GPSBaud))
		if err == nil {
			return gps, func() {
				if err := gps.Close(); err != nil {
					logger.Warnf("gps close: %v", err)
				}
			}
		}
		logger.Warnf("%v, using fixed position", err)
	}
	if cfg.HasFixedPosition() {
		return sensors.FixedLocator{Pos: sensors.Position{Latitude: *cfg.Latitude, Longitude: *cfg.Longitude}}, func() {}
	}
	return nil, func() {}
}

func newLogger(level string, debug bool) (*zap.SugaredLogger, error) {
	zcfg := zap.NewProductionConfig()
	if debug {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, errors.Wrapf(err, "LOG_LEVEL %q", level)
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	l, err := zcfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return l.Sugar(), nil
}
