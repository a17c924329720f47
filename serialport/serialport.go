// Package serialport opens the radio modem's serial device and finds it among
// the attached USB serial adapters.
package serialport

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

var ErrNoPort = errors.New("no serial port found")

// name fragments of the usual USB serial chipsets on radio modems
var knownChipsets = []string{"CH340", "FTDI", "CP210", "USB", "SERIAL"}

type PortInfo struct {
	Name        string
	Description string
	IsUSB       bool
	VID         string
	PID         string
}

// to allow testing
var listPorts = func() ([]*enumerator.PortDetails, error) {
	return enumerator.GetDetailedPortsList()
}

func List() ([]PortInfo, error) {
	details, err := listPorts()
	if err != nil {
		return nil, errors.Wrap(err, "unable to list serial ports")
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:        d.Name,
			Description: d.Product,
			IsUSB:       d.IsUSB,
			VID:         d.VID,
			PID:         d.PID,
		})
	}
	return ports, nil
}

// Detect returns the first port whose description names a known USB serial
// chipset, else the first port found.
func Detect() (string, error) {
	ports, err := List()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", ErrNoPort
	}
	for _, p := range ports {
		desc := strings.ToUpper(p.Description)
		for _, chipset := range knownChipsets {
			if strings.Contains(desc, chipset) {
				log.WithFields(log.Fields{
					"port":        p.Name,
					"description": p.Description,
				}).Info("detected serial port")
				return p.Name, nil
			}
		}
	}
	log.WithField("port", ports[0].Name).Info("using first available serial port")
	return ports[0].Name, nil
}

// Open opens name as 8N1 at baud. Reads return after readTimeout with no
// bytes and no error when nothing arrived.
func Open(name string, baud int, readTimeout time.Duration) (serial.Port, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open serial port %s", name)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "unable to set read timeout")
	}
	// drop whatever the modem buffered before we were listening
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "unable to reset input buffer")
	}
	return port, nil
}
