package forwarder

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config enables a forwarder for every section present.
type Config struct {
	UDP  *UDPConfig  `toml:"udp"`
	MQTT *MQTTConfig `toml:"mqtt"`
}

func LoadConfig(fileName string) (*Config, error) {
	if !filepath.IsAbs(fileName) {
		dir, err := filepath.Abs(filepath.Dir(os.Args[0]))
		if err != nil {
			return nil, errors.Wrapf(err, "unable to determine binary location")
		}
		fileName = filepath.Join(dir, fileName)
	}
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

func LoadConfigFromReader(configReader io.Reader) (*Config, error) {
	configData, err := ioutil.ReadAll(configReader)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read config reader")
	}
	config := Config{}
	if _, err := toml.Decode(string(configData), &config); err != nil {
		return nil, errors.Wrapf(err, "unable to load forwarder configuration")
	}
	return &config, nil
}
