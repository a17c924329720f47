package forwarder

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/jd3nn1s/telelink"
	"github.com/stretchr/testify/assert"
)

func TestUDPForwarder(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer pc.Close()
	udpAddr := pc.LocalAddr().(*net.UDPAddr)

	type datagram struct {
		data []byte
		len  int
	}
	dataChan := make(chan datagram, 2)
	go func() {
		for i := 0; i < 2; i++ {
			buffer := make([]byte, 1024)
			assert.NoError(t, pc.SetReadDeadline(time.Now().Add(time.Second*3)))
			n, _, err := pc.ReadFrom(buffer)
			if !assert.NoError(t, err) {
				return
			}
			dataChan <- datagram{data: buffer, len: n}
		}
	}()

	udp, err := NewUDPForwarder(&UDPConfig{
		Server:   "127.0.0.1",
		Port:     udpAddr.Port,
		Interval: 10 * time.Millisecond,
	})
	assert.NoError(t, err)
	defer udp.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = udp.Start(ctx)
	}()

	rec := telelink.TelemetryRecord{
		RPM:           5200,
		SteeringAngle: -12.5,
		BrakePressure: 40,
		AccelX:        -0.523,
		AccelY:        1.5,
		ThrottlePos:   40,
		Lambda:        1.234,
		WheelSpeedFL:  88,
		EngineTemp:    85,
		Timestamp:     1000,
	}
	stats := telelink.RxStats{
		PacketsReceived: 9,
		DecodeErrors:    1,
		SuccessRate:     90,
		Hz:              50,
	}
	assert.NoError(t, udp.Forward(&rec, stats))

	telem := <-dataChan
	assert.Equal(t, 1+telelink.PacketSize, telem.len)
	hdr := Header{}
	rdr := bytes.NewReader(telem.data[:telem.len])
	assert.NoError(t, binary.Read(rdr, binary.LittleEndian, &hdr))
	assert.Equal(t, uint8(TypeTelemetry), hdr.Type)
	recvRec, err := telelink.Decode(telem.data[1:telem.len])
	assert.NoError(t, err)
	assert.Equal(t, rec, recvRec)

	st := <-dataChan
	assert.Equal(t, 25, st.len)
	rdr = bytes.NewReader(st.data[:st.len])
	assert.NoError(t, binary.Read(rdr, binary.LittleEndian, &hdr))
	assert.Equal(t, uint8(TypeStats), hdr.Type)
	recvStats := Stats{}
	assert.NoError(t, binary.Read(rdr, binary.LittleEndian, &recvStats))
	assert.Equal(t, Stats{
		PacketsReceived: 9,
		DecodeErrors:    1,
		SuccessRate:     90,
		Hz:              50,
	}, recvStats)
}

func TestUDPForwardDoesNotBlock(t *testing.T) {
	udp := &UDPForwarder{
		fwdChan: make(chan forwardItem, 1),
	}
	rec := telelink.TelemetryRecord{RPM: 1}
	assert.NoError(t, udp.Forward(&rec, telelink.RxStats{}))
	rec.RPM = 2
	// the channel is full, the second record is skipped
	assert.NoError(t, udp.Forward(&rec, telelink.RxStats{}))
	item := <-udp.fwdChan
	assert.Equal(t, uint16(1), item.rec.RPM)
}

func TestLoadConfigFromReader(t *testing.T) {
	config, err := LoadConfigFromReader(bytes.NewBufferString(`
[udp]
Server = "127.0.0.1"
Port = 5000
Interval = "250ms"

[mqtt]
Broker = "tcp://localhost:1883"
ClientID = "pit"
QoS = 1
`))
	assert.NoError(t, err)
	if assert.NotNil(t, config.UDP) {
		assert.Equal(t, "127.0.0.1", config.UDP.Server)
		assert.Equal(t, 5000, config.UDP.Port)
		assert.Equal(t, 250*time.Millisecond, config.UDP.Interval)
	}
	if assert.NotNil(t, config.MQTT) {
		assert.Equal(t, "tcp://localhost:1883", config.MQTT.Broker)
		assert.Equal(t, "pit", config.MQTT.ClientID)
		assert.Equal(t, byte(1), config.MQTT.QoS)
	}

	config, err = LoadConfigFromReader(bytes.NewBufferString(`
[udp]
Server = "10.0.0.1"
Port = 5000
`))
	assert.NoError(t, err)
	assert.NotNil(t, config.UDP)
	assert.Nil(t, config.MQTT)

	_, err = LoadConfigFromReader(bytes.NewBufferString(`[udp`))
	assert.Error(t, err)
}
