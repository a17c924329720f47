package racecan

import (
	"context"
	"encoding/binary"

	"github.com/brutella/can"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	frameEngine     uint32 = 0x100
	frameWheels            = 0x110
	frameSteering          = 0x120
	frameSuspension        = 0x200
	frameIMU               = 0x300
)

var ErrUnknownFrame = errors.New("unknown CAN frame")

// SignalFn receives the signals decoded from one frame.
type SignalFn func(signals map[string]float64)

type CANBus interface {
	SubscribeFunc(can.HandlerFunc)
	ConnectAndPublish() error
	Disconnect() error
}

type Connection struct {
	bus CANBus
	fn  SignalFn
}

// to allow testing
var newBus = func(portName string) (CANBus, error) {
	return can.NewBusForInterfaceWithName(portName)
}

func Connect(portName string) (*Connection, error) {
	bus, err := newBus(portName)
	if err != nil {
		return nil, err
	}

	c := &Connection{
		bus: bus,
	}
	return c, nil
}

// Start subscribes fn to decoded frames and blocks until the bus is
// disconnected or ctx is done.
func (c *Connection) Start(ctx context.Context, fn SignalFn) error {
	c.fn = fn
	c.bus.SubscribeFunc(c.handleFrame)
	log.Info("CAN bus opened and subscribed")

	go func() {
		<-ctx.Done()
		log.Infof("stopping can bus: %v", ctx.Err())
		if err := c.bus.Disconnect(); err != nil {
			log.WithField("err", err).Warn("unable to disconnect canbus after context")
		}
	}()

	return c.bus.ConnectAndPublish()
}

func (c *Connection) Close() error {
	if c.bus == nil {
		return errors.New("can bus not connected")
	}
	return c.bus.Disconnect()
}

func (c *Connection) handleFrame(frame can.Frame) {
	log.WithField("canID", frame.ID).
		WithField("length", frame.Length).
		Debug("received canbus frame")

	signals, err := DecodeFrame(frame)
	if err != nil {
		log.WithField("canID", frame.ID).
			WithField("err", err).
			Debug("dropping canbus frame")
		return
	}
	if c.fn == nil {
		log.WithField("canID", frame.ID).Debug("no callback registered")
		return
	}
	c.fn(signals)
}

// DecodeFrame maps one frame of the car's CAN layout to named signals in
// physical units.
func DecodeFrame(frame can.Frame) (map[string]float64, error) {
	d := frame.Data
	switch frame.ID {
	case frameEngine:
		if err := checkLength(frame, 5); err != nil {
			return nil, err
		}
		return map[string]float64{
			"RPM":        float64(binary.LittleEndian.Uint16(d[0:2])),
			"EngineTemp": float64(int8(d[2])),
			"TPS":        float64(d[3]),
			"Lambda":     float64(d[4]) / 100,
		}, nil
	case frameWheels:
		if err := checkLength(frame, 4); err != nil {
			return nil, err
		}
		return map[string]float64{
			"WheelSpeed_FL": float64(d[0]),
			"WheelSpeed_FR": float64(d[1]),
			"WheelSpeed_RL": float64(d[2]),
			"WheelSpeed_RR": float64(d[3]),
		}, nil
	case frameSteering:
		if err := checkLength(frame, 3); err != nil {
			return nil, err
		}
		return map[string]float64{
			"SteeringAngle": float64(int16(binary.LittleEndian.Uint16(d[0:2]))) / 10,
			"BrakePressure": float64(d[2]) / 5,
		}, nil
	case frameSuspension:
		if err := checkLength(frame, 4); err != nil {
			return nil, err
		}
		return map[string]float64{
			"Suspension_FL": float64(d[0]),
			"Suspension_FR": float64(d[1]),
			"Suspension_RL": float64(d[2]),
			"Suspension_RR": float64(d[3]),
		}, nil
	case frameIMU:
		if err := checkLength(frame, 4); err != nil {
			return nil, err
		}
		return map[string]float64{
			"AccelX": float64(int16(binary.LittleEndian.Uint16(d[0:2]))) / 1000,
			"AccelY": float64(int16(binary.LittleEndian.Uint16(d[2:4]))) / 1000,
		}, nil
	}
	return nil, errors.Wrapf(ErrUnknownFrame, "canID %#x", frame.ID)
}

func checkLength(frame can.Frame, min uint8) error {
	if frame.Length < min {
		return errors.Errorf("incorrect frame size for %#x: %v", frame.ID, frame.Length)
	}
	return nil
}
