package telelink

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

const (
	DefaultBaudRate = 115200
	// LoRa SF7, BW125, CR4/5
	DefaultLinkCeilingBps = 5470

	defaultRxReadTimeout = 2 * time.Second
	defaultTxReadTimeout = time.Second
	defaultStatsInterval = 5 * time.Second
)

type Config struct {
	Link  LinkConfig  `toml:"link"`
	Rates RatesConfig `toml:"rates"`
	CAN   CANConfig   `toml:"can"`
	ECU   ECUConfig   `toml:"ecu"`
	Log   LogConfig   `toml:"log"`
}

// LinkConfig describes the serial/radio channel. An empty Port means the
// device is auto-detected.
type LinkConfig struct {
	Port           string        `toml:"port"`
	Baud           int           `toml:"baud"`
	Markers        bool          `toml:"markers"`
	ReadTimeout    time.Duration `toml:"read_timeout"`
	LinkCeilingBps int           `toml:"link_ceiling_bps"`
	StatsInterval  time.Duration `toml:"stats_interval"`
}

// RatesConfig holds the refresh rate of every tier in Hz.
type RatesConfig struct {
	High   int `toml:"high"`
	Medium int `toml:"medium"`
	Low    int `toml:"low"`
}

type CANConfig struct {
	Enabled   bool   `toml:"enabled"`
	Interface string `toml:"interface"`
}

type ECUConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    string `toml:"port"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	// rotated log file, stderr when empty
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// DefaultConfig returns the reference configuration: 50/10/1 Hz over a
// 115200 baud link with framing markers.
func DefaultConfig() Config {
	return Config{
		Link: LinkConfig{
			Baud:           DefaultBaudRate,
			Markers:        true,
			LinkCeilingBps: DefaultLinkCeilingBps,
			StatsInterval:  defaultStatsInterval,
		},
		Rates: RatesConfig{
			High:   50,
			Medium: 10,
			Low:    1,
		},
		CAN: CANConfig{
			Enabled:   true,
			Interface: "can0",
		},
		ECU: ECUConfig{
			Port: "/dev/obd",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// LoadConfig reads fileName. Relative names are resolved against the
// directory of the running binary.
func LoadConfig(fileName string) (Config, error) {
	if !filepath.IsAbs(fileName) {
		dir, err := filepath.Abs(filepath.Dir(os.Args[0]))
		if err != nil {
			return Config{}, errors.Wrapf(err, "unable to determine binary location")
		}
		fileName = filepath.Join(dir, fileName)
	}
	file, err := os.Open(fileName)
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

func LoadConfigFromReader(configReader io.Reader) (Config, error) {
	configData, err := ioutil.ReadAll(configReader)
	if err != nil {
		return Config{}, errors.Wrap(err, "unable to read config reader")
	}
	config := DefaultConfig()
	if _, err := toml.Decode(string(configData), &config); err != nil {
		return Config{}, errors.Wrap(err, "unable to load telemetry configuration")
	}
	if config.Link.Baud <= 0 {
		config.Link.Baud = DefaultBaudRate
	}
	if _, err := NewScheduler(config.Rates.High, config.Rates.Medium, config.Rates.Low); err != nil {
		return Config{}, err
	}
	return config, nil
}

// ReceiverReadTimeout is the serial read timeout used by the receiver.
func (l LinkConfig) ReceiverReadTimeout() time.Duration {
	if l.ReadTimeout > 0 {
		return l.ReadTimeout
	}
	return defaultRxReadTimeout
}

// TransmitterReadTimeout is the serial read timeout used by the transmitter.
func (l LinkConfig) TransmitterReadTimeout() time.Duration {
	if l.ReadTimeout > 0 {
		return l.ReadTimeout
	}
	return defaultTxReadTimeout
}
