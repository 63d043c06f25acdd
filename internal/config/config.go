// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// DefaultPath is the configuration file the commands load when no -config
// flag is given.
const DefaultPath = "./telescope_config.env"

// Config holds all application configuration values.
type Config struct {
	// Server
	ServerAddress string
	ServerPort    int

	// Site: latitude degrees north, longitude degrees west (LX200 sign),
	// timezone hours added to local time to give UTC.
	SiteLatitude  float64
	SiteLongitude float64
	SiteTimezone  float64

	// Calibration offsets learned by sync, radians.
	OffsetAltitude float64
	OffsetAzimuth  float64

	LogLevel string

	// Sensors
	SensorMode      string // "mpu9250" or "mock"
	IMUSPIDevice    string
	IMUCSPin        string
	MagI2CBus       string
	MagI2CAddr      uint16
	SensorTimeoutMS int

	// MQTT telemetry; empty broker disables it.
	MQTTBroker      string
	MQTTClientID    string
	TopicPointing   string
	TopicEnv        string
	PublishInterval int // milliseconds

	// BMP280 site environment; empty device disables it.
	BMPSPIDevice string

	// GPS; empty port disables it.
	GPSSerialPort string
	GPSBaudRate   int
	GPSSetClock   bool

	// Web Server; port 0 disables it.
	WebServerPort   int
	WebPushInterval int // milliseconds

	// Display
	DisplayI2CBus         string
	DisplayEnabled        bool
	DisplayUpdateInterval int // milliseconds
}

// Sensor modes.
const (
	SensorModeMPU9250 = "mpu9250"
	SensorModeMock    = "mock"
)

// keys lists every recognised key in file order.
var keys = []string{
	"SERVER_ADDRESS", "SERVER_PORT",
	"SITE_LATITUDE", "SITE_LONGITUDE", "SITE_TIMEZONE",
	"OFFSET_ALTITUDE", "OFFSET_AZIMUTH",
	"LOG_LEVEL",
	"SENSOR_MODE", "IMU_SPI_DEVICE", "IMU_CS_PIN", "MAG_I2C_BUS", "MAG_I2C_ADDR", "SENSOR_TIMEOUT_MS",
	"MQTT_BROKER", "MQTT_CLIENT_ID", "TOPIC_POINTING", "TOPIC_ENV", "PUBLISH_INTERVAL",
	"BMP_SPI_DEVICE",
	"GPS_SERIAL_PORT", "GPS_BAUD_RATE", "GPS_SET_CLOCK",
	"WEB_SERVER_PORT", "WEB_PUSH_INTERVAL",
	"DISPLAY_I2C_BUS", "DISPLAY_ENABLED", "DISPLAY_UPDATE_INTERVAL",
}

// Default returns the settings used when no configuration file exists:
// Greenwich, no calibration, SkySafari's default port.
func Default() *Config {
	return &Config{
		ServerAddress:         "0.0.0.0",
		ServerPort:            4030,
		SiteLatitude:          51.0 + 28.0/60 + 38.0/3600,
		SiteLongitude:         0,
		SiteTimezone:          0,
		LogLevel:              "info",
		SensorMode:            SensorModeMPU9250,
		IMUSPIDevice:          "/dev/spidev0.0",
		IMUCSPin:              "8",
		MagI2CBus:             "1",
		MagI2CAddr:            0x1E,
		SensorTimeoutMS:       250,
		MQTTClientID:          "telescope-server",
		TopicPointing:         "telescope/pointing",
		TopicEnv:              "telescope/env",
		PublishInterval:       500,
		GPSBaudRate:           9600,
		WebServerPort:         8080,
		WebPushInterval:       500,
		DisplayI2CBus:         "1",
		DisplayUpdateInterval: 500,
	}
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	return v
}

// Load reads the configuration file and returns a Config struct. A missing
// file is created with Default values.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		if err := Save(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		return cfg, nil
	}

	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	known := make(map[string]bool, len(keys))
	for _, k := range keys {
		known[strings.ToLower(k)] = true
	}
	for _, k := range v.AllKeys() {
		if !known[k] {
			return nil, fmt.Errorf("unknown config key: %q", strings.ToUpper(k))
		}
	}

	cfg := Default()
	if err := cfg.fromViper(v); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// fromViper overrides the defaults with every key present in v.
func (c *Config) fromViper(v *viper.Viper) error {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = strings.TrimSpace(v.GetString(key))
		}
	}
	num := func(key string, dst *int) error {
		if !v.IsSet(key) {
			return nil
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v.GetString(key)), 0, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v.GetString(key), err)
		}
		*dst = int(n)
		return nil
	}
	flt := func(key string, dst *float64) error {
		if !v.IsSet(key) {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v.GetString(key)), 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v.GetString(key), err)
		}
		*dst = f
		return nil
	}
	flag := func(key string, dst *bool) error {
		if !v.IsSet(key) {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v.GetString(key), err)
		}
		*dst = b
		return nil
	}

	str("SERVER_ADDRESS", &c.ServerAddress)
	str("LOG_LEVEL", &c.LogLevel)
	str("SENSOR_MODE", &c.SensorMode)
	str("IMU_SPI_DEVICE", &c.IMUSPIDevice)
	str("IMU_CS_PIN", &c.IMUCSPin)
	str("MAG_I2C_BUS", &c.MagI2CBus)
	str("MQTT_BROKER", &c.MQTTBroker)
	str("MQTT_CLIENT_ID", &c.MQTTClientID)
	str("TOPIC_POINTING", &c.TopicPointing)
	str("TOPIC_ENV", &c.TopicEnv)
	str("BMP_SPI_DEVICE", &c.BMPSPIDevice)
	str("GPS_SERIAL_PORT", &c.GPSSerialPort)
	str("DISPLAY_I2C_BUS", &c.DisplayI2CBus)

	magAddr := int(c.MagI2CAddr)
	for _, step := range []error{
		num("SERVER_PORT", &c.ServerPort),
		flt("SITE_LATITUDE", &c.SiteLatitude),
		flt("SITE_LONGITUDE", &c.SiteLongitude),
		flt("SITE_TIMEZONE", &c.SiteTimezone),
		flt("OFFSET_ALTITUDE", &c.OffsetAltitude),
		flt("OFFSET_AZIMUTH", &c.OffsetAzimuth),
		num("MAG_I2C_ADDR", &magAddr),
		num("SENSOR_TIMEOUT_MS", &c.SensorTimeoutMS),
		num("PUBLISH_INTERVAL", &c.PublishInterval),
		num("GPS_BAUD_RATE", &c.GPSBaudRate),
		flag("GPS_SET_CLOCK", &c.GPSSetClock),
		num("WEB_SERVER_PORT", &c.WebServerPort),
		num("WEB_PUSH_INTERVAL", &c.WebPushInterval),
		flag("DISPLAY_ENABLED", &c.DisplayEnabled),
		num("DISPLAY_UPDATE_INTERVAL", &c.DisplayUpdateInterval),
	} {
		if step != nil {
			return step
		}
	}
	if magAddr < 0 || magAddr > 0x7F {
		return fmt.Errorf("invalid MAG_I2C_ADDR %#x: not a 7-bit address", magAddr)
	}
	c.MagI2CAddr = uint16(magAddr)
	return nil
}

// validate checks ranges and required fields.
func (c *Config) validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT %d out of range", c.ServerPort)
	}
	if c.SiteLatitude < -90 || c.SiteLatitude > 90 {
		return fmt.Errorf("SITE_LATITUDE %g out of range [-90, 90]", c.SiteLatitude)
	}
	if c.SiteLongitude < -360 || c.SiteLongitude > 360 {
		return fmt.Errorf("SITE_LONGITUDE %g out of range [-360, 360]", c.SiteLongitude)
	}
	if c.SiteTimezone < -24 || c.SiteTimezone > 24 {
		return fmt.Errorf("SITE_TIMEZONE %g out of range [-24, 24]", c.SiteTimezone)
	}
	switch c.SensorMode {
	case SensorModeMPU9250:
		if c.IMUSPIDevice == "" {
			return fmt.Errorf("IMU_SPI_DEVICE is required")
		}
		if c.MagI2CBus == "" {
			return fmt.Errorf("MAG_I2C_BUS is required")
		}
	case SensorModeMock:
	default:
		return fmt.Errorf("SENSOR_MODE %q must be %q or %q", c.SensorMode, SensorModeMPU9250, SensorModeMock)
	}
	if c.SensorTimeoutMS <= 0 {
		return fmt.Errorf("SENSOR_TIMEOUT_MS must be positive")
	}
	if c.MQTTBroker != "" && c.PublishInterval <= 0 {
		return fmt.Errorf("PUBLISH_INTERVAL must be positive when MQTT_BROKER is set")
	}
	if c.GPSSerialPort != "" && c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE is required when GPS_SERIAL_PORT is set")
	}
	if c.WebServerPort < 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT %d out of range", c.WebServerPort)
	}
	if c.WebServerPort != 0 && c.WebPushInterval <= 0 {
		return fmt.Errorf("WEB_PUSH_INTERVAL must be positive when WEB_SERVER_PORT is set")
	}
	if c.DisplayEnabled && c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive when DISPLAY_ENABLED is set")
	}
	return nil
}

// Save writes cfg to configPath, replacing any existing file.
func Save(configPath string, cfg *Config) error {
	v := newViper(configPath)
	for k, val := range cfg.values() {
		v.Set(k, val)
	}
	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configPath, err)
	}
	return nil
}

func (c *Config) values() map[string]any {
	return map[string]any{
		"SERVER_ADDRESS":          c.ServerAddress,
		"SERVER_PORT":             c.ServerPort,
		"SITE_LATITUDE":           c.SiteLatitude,
		"SITE_LONGITUDE":          c.SiteLongitude,
		"SITE_TIMEZONE":           c.SiteTimezone,
		"OFFSET_ALTITUDE":         c.OffsetAltitude,
		"OFFSET_AZIMUTH":          c.OffsetAzimuth,
		"LOG_LEVEL":               c.LogLevel,
		"SENSOR_MODE":             c.SensorMode,
		"IMU_SPI_DEVICE":          c.IMUSPIDevice,
		"IMU_CS_PIN":              c.IMUCSPin,
		"MAG_I2C_BUS":             c.MagI2CBus,
		"MAG_I2C_ADDR":            int(c.MagI2CAddr),
		"SENSOR_TIMEOUT_MS":       c.SensorTimeoutMS,
		"MQTT_BROKER":             c.MQTTBroker,
		"MQTT_CLIENT_ID":          c.MQTTClientID,
		"TOPIC_POINTING":          c.TopicPointing,
		"TOPIC_ENV":               c.TopicEnv,
		"PUBLISH_INTERVAL":        c.PublishInterval,
		"BMP_SPI_DEVICE":          c.BMPSPIDevice,
		"GPS_SERIAL_PORT":         c.GPSSerialPort,
		"GPS_BAUD_RATE":           c.GPSBaudRate,
		"GPS_SET_CLOCK":           c.GPSSetClock,
		"WEB_SERVER_PORT":         c.WebServerPort,
		"WEB_PUSH_INTERVAL":       c.WebPushInterval,
		"DISPLAY_I2C_BUS":         c.DisplayI2CBus,
		"DISPLAY_ENABLED":         c.DisplayEnabled,
		"DISPLAY_UPDATE_INTERVAL": c.DisplayUpdateInterval,
	}
}
