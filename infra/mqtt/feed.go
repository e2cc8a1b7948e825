// Package mqtt implements the change-feed transport over MQTT. The remote
// data service republishes appointment table changes on a company-scoped
// topic; this client subscribes and hands decoded events to the reconciler.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kfrancois/fieldsync/core/feed"
	"github.com/kfrancois/fieldsync/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string      `json:"broker"`
	ClientID    string      `json:"client_id"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	TopicPrefix string      `json:"topic_prefix"`
	QoS         byte        `json:"qos"`
	UseTLS      bool        `json:"use_tls"`
	ClientCert  string      `json:"client_cert"`
	ClientKey   string      `json:"client_key"`
	CABundle    string      `json:"ca_bundle"`
	TLSConfig   *tls.Config `json:"-"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "fieldsync"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	return nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// envelope is the wire shape of one change notification.
type envelope struct {
	EventType string    `json:"event_type"`
	New       *feed.Row `json:"new,omitempty"`
	Old       *feed.Row `json:"old,omitempty"`
}

// Feed is a feed.Source backed by a company-scoped MQTT subscription.
// Reconnection is delegated to paho's auto-reconnect.
type Feed struct {
	cli    pahoClient
	topic  string
	events chan feed.Event
	log    logger.Logger

	mu      sync.Mutex
	lastErr string
	closed  bool
}

// NewFeed connects to the broker and subscribes to the appointments topic for
// the given company.
func NewFeed(cfg Config, companyID string) (*Feed, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if companyID == "" {
		return nil, fmt.Errorf("company id is required")
	}

	log := logger.New("mqtt_feed")
	f := &Feed{
		topic:  fmt.Sprintf("%s/%s/appointments", cfg.TopicPrefix, companyID),
		events: make(chan feed.Event, 64),
		log:    log,
	}

	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected, subscribing to %s", f.topic)
		f.setErr("")
		if token := c.Subscribe(f.topic, cfg.QoS, f.onMessage); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
			f.setErr(token.Error().Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
		f.setErr(err.Error())
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	f.cli = c
	return f, nil
}

// Events returns the decoded change-event stream.
func (f *Feed) Events() <-chan feed.Event { return f.events }

// Connected reports whether the broker connection is up.
func (f *Feed) Connected() bool { return f.cli != nil && f.cli.IsConnected() }

// Err returns the last connection error, empty when healthy.
func (f *Feed) Err() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Close unsubscribes and disconnects. The event channel is closed so a
// running reconciler drains and stops.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	// Closed under the same mutex that guards the handler's send, so a
	// handler still in flight can never hit a closed channel.
	close(f.events)
	f.mu.Unlock()
	if f.cli != nil {
		f.cli.Unsubscribe(f.topic).Wait()
		f.cli.Disconnect(250)
	}
	return nil
}

func (f *Feed) setErr(msg string) {
	f.mu.Lock()
	f.lastErr = msg
	f.mu.Unlock()
}

func (f *Feed) onMessage(_ paho.Client, msg paho.Message) {
	var env envelope
	if err := json.Unmarshal(msg.Payload(), &env); err != nil {
		f.log.Errorf("invalid feed payload: %v", err)
		return
	}
	kind, ok := feed.ParseKind(env.EventType)
	if !ok {
		f.log.Debugf("ignoring feed message of type %q", env.EventType)
		return
	}
	// The send stays under the mutex so Close cannot close the channel
	// between the check and the send. The send never blocks, so holding
	// the lock across it is safe.
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.events <- feed.Event{Kind: kind, New: env.New, Old: env.Old}:
	default:
		f.log.Warnf("feed buffer full, dropping %s event", kind)
	}
}
