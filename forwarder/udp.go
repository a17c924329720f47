package forwarder

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/jd3nn1s/telelink"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type Header struct {
	Type uint8
}

const (
	TypeTelemetry = 1
	TypeStats     = 2
)

// Stats is the wire form of the receiver statistics.
type Stats struct {
	PacketsReceived uint64
	DecodeErrors    uint64
	SuccessRate     float32
	Hz              float32
}

const maxPacketSize = 1 + telelink.PacketSize + 1 + 24

type UDPConfig struct {
	Server   string
	Port     int
	// minimum time between datagrams, defaults to 100ms
	Interval time.Duration
}

type forwardItem struct {
	rec   telelink.TelemetryRecord
	stats telelink.RxStats
}

// UDPForwarder sends the raw 36-byte record and the link statistics to a
// UDP listener, one datagram each.
type UDPForwarder struct {
	Config *UDPConfig

	conn    net.Conn
	fwdChan chan forwardItem
}

func NewUDPForwarder(config *UDPConfig) (*UDPForwarder, error) {
	udp := &UDPForwarder{
		Config:  config,
		fwdChan: make(chan forwardItem, 1),
	}
	if err := udp.connect(); err != nil {
		return nil, err
	}
	return udp, nil
}

func (udp *UDPForwarder) Close() error {
	return udp.conn.Close()
}

func (udp *UDPForwarder) Forward(rec *telelink.TelemetryRecord, stats telelink.RxStats) error {
	select {
	// copy as we're processing it on another go-routine
	case udp.fwdChan <- forwardItem{rec: *rec, stats: stats}:
	default:
		// if channel is full, skip
	}
	return nil
}

func (udp *UDPForwarder) Start(ctx context.Context) error {
	interval := udp.Config.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	limiter := time.NewTicker(interval)
	defer limiter.Stop()
	for {
		select {
		case <-limiter.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case item := <-udp.fwdChan:
			if err := udp.forward(item); err != nil {
				log.Error("unable to forward telemetry to server ", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (udp *UDPForwarder) forward(item forwardItem) error {
	buf := bytes.NewBuffer([]byte{})
	if err := binary.Write(buf, binary.LittleEndian, &Header{Type: TypeTelemetry}); err != nil {
		return errors.Wrap(err, "unable to write udp packet header")
	}
	buf.Write(telelink.Encode(item.rec))
	if _, err := udp.conn.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "unable to write telemetry udp packet")
	}

	buf.Reset()
	if err := binary.Write(buf, binary.LittleEndian, &Header{Type: TypeStats}); err != nil {
		return errors.Wrap(err, "unable to write udp packet header")
	}
	stats := Stats{
		PacketsReceived: item.stats.PacketsReceived,
		DecodeErrors:    item.stats.DecodeErrors,
		SuccessRate:     float32(item.stats.SuccessRate),
		Hz:              float32(item.stats.Hz),
	}
	if err := binary.Write(buf, binary.LittleEndian, &stats); err != nil {
		return errors.Wrap(err, "unable to write stats udp packet")
	}
	_, err := udp.conn.Write(buf.Bytes())
	return errors.Wrap(err, "unable to write stats udp packet")
}

func (udp *UDPForwarder) connect() error {
	writeBufSize := maxPacketSize * 2

	conn, err := net.Dial("udp", fmt.Sprintf("%s:%d",
		udp.Config.Server,
		udp.Config.Port))
	if err != nil {
		return err
	}
	udpConn := conn.(*net.UDPConn)
	if err = udpConn.SetWriteBuffer(writeBufSize); err != nil {
		conn.Close()
		return errors.Wrapf(err, "unable to set OS write buffer to %v", writeBufSize)
	}

	udp.conn = conn
	return nil
}
