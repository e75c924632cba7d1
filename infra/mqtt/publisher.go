package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremetrics "github.com/ogatech4real/smart-energy-optimiser/core/metrics"
	"github.com/ogatech4real/smart-energy-optimiser/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
	Retain      bool   `json:"retain"`
	UseTLS      bool   `json:"use_tls"`
	ClientCert  string `json:"client_cert"`
	ClientKey   string `json:"client_key"`
	CABundle    string `json:"ca_bundle"`
	MaxRetries  int    `json:"max_retries"`
	BackoffMS   int    `json:"backoff_ms"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "solar-advisor-" + uuid.NewString()
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "energy/advisory"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// AdvisoryPublisher pushes evaluation results to an MQTT broker so home
// automation consumers (dashboards, Home Assistant) can react to them.
type AdvisoryPublisher struct {
	cli     pahoClient
	cfg     Config
	log     logger.Logger
	backoff time.Duration
}

// NewAdvisoryPublisher connects to the MQTT broker.
func NewAdvisoryPublisher(cfg Config) (*AdvisoryPublisher, error) {
	cfg.SetDefaults()
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

	log := logger.New("mqtt-publisher")
	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected") }
	opts.OnConnectionLost = func(_ paho.Client, err error) { log.Errorf("connection lost: %v", err) }
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) { log.Warnf("reconnecting to MQTT broker") }

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &AdvisoryPublisher{
		cli:     c,
		cfg:     cfg,
		log:     log,
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
	}, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
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

// PublishEvaluation sends the evaluation record as JSON to the
// recommendations topic, retrying with exponential backoff on failure.
func (p *AdvisoryPublisher) PublishEvaluation(ev coremetrics.EvaluationEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	topic := strings.TrimSuffix(p.cfg.TopicPrefix, "/") + "/recommendations"
	var publishErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		token := p.cli.Publish(topic, p.cfg.QoS, p.cfg.Retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.log.Infof("published run %s to %s", ev.RunID, topic)
			return nil
		}
		p.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(p.backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

// Disconnect gracefully closes the MQTT connection.
func (p *AdvisoryPublisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
