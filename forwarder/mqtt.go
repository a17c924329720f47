package forwarder

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jd3nn1s/telelink"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultMQTTTopic   = "v1/devices/me/telemetry"
	defaultMQTTTimeout = 5 * time.Second
)

type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	// minimum time between publishes, defaults to 1s
	Interval time.Duration
}

// mqttPayload is one timestamped set of key/values, the shape dashboards such
// as ThingsBoard accept on their telemetry topic.
type mqttPayload struct {
	Timestamp int64              `json:"ts"`
	Values    map[string]float64 `json:"values"`
}

// mqttClient is the part of mqtt.Client used by the forwarder.
type mqttClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// to allow testing
var newMQTTClient = func(opts *mqtt.ClientOptions) mqttClient {
	return mqtt.NewClient(opts)
}

// MQTTForwarder publishes the named channels and link statistics as JSON.
type MQTTForwarder struct {
	Config *MQTTConfig

	client  mqttClient
	fwdChan chan forwardItem
}

func NewMQTTForwarder(config *MQTTConfig) (*MQTTForwarder, error) {
	if config.Broker == "" {
		return nil, errors.New("mqtt broker not configured")
	}
	if config.Topic == "" {
		config.Topic = defaultMQTTTopic
	}
	opts := mqtt.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(config.ClientID).
		SetUsername(config.Username).
		SetPassword(config.Password).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.WithField("err", err).Warn("mqtt connection lost")
		})

	client := newMQTTClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultMQTTTimeout) {
		return nil, errors.Errorf("timed out connecting to mqtt broker %s", config.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "unable to connect to mqtt broker %s", config.Broker)
	}
	log.WithField("broker", config.Broker).Info("mqtt connected")

	return &MQTTForwarder{
		Config:  config,
		client:  client,
		fwdChan: make(chan forwardItem, 1),
	}, nil
}

func (m *MQTTForwarder) Close() error {
	m.client.Disconnect(250)
	return nil
}

func (m *MQTTForwarder) Forward(rec *telelink.TelemetryRecord, stats telelink.RxStats) error {
	select {
	case m.fwdChan <- forwardItem{rec: *rec, stats: stats}:
	default:
	}
	return nil
}

func (m *MQTTForwarder) Start(ctx context.Context) error {
	interval := m.Config.Interval
	if interval <= 0 {
		interval = time.Second
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
		case item := <-m.fwdChan:
			if err := m.publish(item); err != nil {
				log.WithField("err", err).Error("unable to publish telemetry")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *MQTTForwarder) publish(item forwardItem) error {
	payload, err := json.Marshal(newMQTTPayload(item, timeNow()))
	if err != nil {
		return errors.Wrap(err, "unable to marshal telemetry")
	}
	token := m.client.Publish(m.Config.Topic, m.Config.QoS, false, payload)
	if !token.WaitTimeout(defaultMQTTTimeout) {
		return errors.Errorf("timed out publishing to %s", m.Config.Topic)
	}
	return errors.Wrapf(token.Error(), "unable to publish to %s", m.Config.Topic)
}

func newMQTTPayload(item forwardItem, now time.Time) mqttPayload {
	values := item.rec.Named()
	values["PacketsReceived"] = float64(item.stats.PacketsReceived)
	values["DecodeErrors"] = float64(item.stats.DecodeErrors)
	values["SuccessRate"] = item.stats.SuccessRate
	values["Hz"] = item.stats.Hz
	return mqttPayload{
		Timestamp: now.UnixNano() / int64(time.Millisecond),
		Values:    values,
	}
}

// to allow testing
var timeNow = time.Now
