package capture

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

const (
	defaultClientID = "streamcap"
	statusOnline    = "online"
	statusOffline   = "offline"
)

// topics lays out the MQTT namespace of one capture:
//
//	<prefix><channel name>   raw frame payloads
//	<prefix>status           retained "online"/"offline"
type topics struct {
	prefix string
	names  func(uint8) string
}

func (t topics) channel(id uint8) string { return t.prefix + t.names(id) }
func (t topics) status() string          { return t.prefix + "status" }

// brokerOptions turns a broker URL such as
// mqtt://user:pw@host:1883/lab/board1?client-id=cap into paho options and
// the capture's topic layout. mqtt:// and a missing scheme mean plain TCP.
// The broker publishes a retained "offline" on the status topic if the
// tool drops off without closing.
func brokerOptions(rawURL string, names func(uint8) string) (*paho.ClientOptions, topics, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, topics{}, err
	}
	if u.Host == "" {
		return nil, topics{}, fmt.Errorf("mqtt url %q has no broker host", rawURL)
	}
	scheme := u.Scheme
	if scheme == "" || scheme == "mqtt" {
		scheme = "tcp"
	}

	t := topics{prefix: strings.Trim(u.Path, "/"), names: names}
	if t.prefix != "" {
		t.prefix += "/"
	}

	clientID := u.Query().Get("client-id")
	if clientID == "" {
		clientID = defaultClientID
	}

	opts := paho.NewClientOptions().
		AddBroker(scheme + "://" + u.Host).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetWill(t.status(), statusOffline, 1, true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	return opts, t, nil
}

// Publisher forwards frames to MQTT, one topic per channel. Payloads are
// the raw frame bytes.
type Publisher struct {
	client paho.Client
	topics topics
	qos    byte
}

// NewPublisher creates a publisher for mc's broker. Channel names come
// from the capture config.
func NewPublisher(mc MQTTConfig, cfg *Config) (*Publisher, error) {
	opts, t, err := brokerOptions(mc.URL, cfg.ChannelName)
	if err != nil {
		return nil, fmt.Errorf("parsing mqtt url: %w", err)
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		glog.Warningf("mqtt connection lost: %v", err)
	})
	return &Publisher{
		client: paho.NewClient(opts),
		topics: t,
		qos:    mc.QoS,
	}, nil
}

// Connect connects to the broker, waiting at most timeout, and marks the
// capture online.
func (p *Publisher) Connect(timeout time.Duration) error {
	token := p.client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connect timed out after %v", timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.client.Publish(p.topics.status(), 1, true, statusOnline)
	return nil
}

// Topic returns the topic a channel is published on.
func (p *Publisher) Topic(channel uint8) string {
	return p.topics.channel(channel)
}

// StatusTopic returns the retained online/offline topic.
func (p *Publisher) StatusTopic() string {
	return p.topics.status()
}

// WriteFrame publishes one frame. At QoS 0 it does not wait for delivery.
func (p *Publisher) WriteFrame(rec Record) error {
	topic := p.topics.channel(rec.Channel)
	token := p.client.Publish(topic, p.qos, false, rec.Payload)
	if glog.V(3) {
		glog.Infof("PUB %q %d bytes", topic, len(rec.Payload))
	}
	if p.qos == 0 {
		return nil
	}
	token.Wait()
	return token.Error()
}

// Close marks the capture offline and disconnects. It implements io.Closer.
func (p *Publisher) Close() error {
	if p.client.IsConnected() {
		p.client.Publish(p.topics.status(), 1, true, statusOffline).WaitTimeout(time.Second)
	}
	p.client.Disconnect(250)
	return nil
}
