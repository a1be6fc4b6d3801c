// Package notify announces door state changes over MQTT.
package notify

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/cluckburg/coopdoor/internal/debug"
	"github.com/cluckburg/coopdoor/internal/logic/door"
)

// Config holds MQTT connection settings. An empty Host disables publishing.
type Config struct {
	Host       string
	Port       int
	Topic      string
	ClientID   string
	CACert     string
	ClientCert string
	ClientKey  string
}

// client is the subset of paho.Client the publisher uses.
type client interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Message is the retained payload published after every maneuver.
type Message struct {
	State       string    `json:"state"`
	Revolutions int       `json:"revolutions"`
	Pattern     string    `json:"pattern"`
	DurationMs  int64     `json:"duration_ms"`
	Time        time.Time `json:"time"`
}

// Publisher publishes door state as a retained MQTT message.
type Publisher struct {
	client  client
	topic   string
	enabled bool
	now     func() time.Time
}

// New creates a publisher. Returns a disabled no-op publisher if host is empty.
func New(cfg Config) (*Publisher, error) {
	p := &Publisher{topic: cfg.Topic, now: time.Now}

	if cfg.Host == "" {
		debug.Info("MQTT disabled (no host configured)")
		return p, nil
	}
	p.enabled = true

	var broker string
	var tlsConfig *tls.Config

	if cfg.CACert != "" || cfg.ClientCert != "" {
		if cfg.Port == 0 {
			cfg.Port = 8883
		}
		broker = fmt.Sprintf("ssl://%s:%d", cfg.Host, cfg.Port)

		var err error
		tlsConfig, err = buildTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("build TLS config: %w", err)
		}
	} else {
		if cfg.Port == 0 {
			cfg.Port = 1883
		}
		broker = fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)
		debug.Verbose("MQTT using non-TLS connection")
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetKeepAlive(60 * time.Second).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			debug.Info("MQTT connection lost: %v", err)
		}).
		SetOnConnectHandler(func(paho.Client) {
			debug.Info("MQTT connection established")
		})

	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}

	paho.ERROR = log.New(os.Stderr, "[MQTT ERROR] ", 0)
	paho.CRITICAL = log.New(os.Stderr, "[MQTT CRIT] ", 0)

	p.client = paho.NewClient(opts)
	return p, nil
}

func buildTLSConfig(cfg Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates in %s", cfg.CACert)
		}
		tlsConfig.RootCAs = caPool
	}

	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Connect connects to the broker. With SetConnectRetry the token completes
// immediately and paho keeps retrying in the background. No-op if disabled.
func (p *Publisher) Connect() error {
	if !p.enabled {
		return nil
	}
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect: %w", token.Error())
	}
	return nil
}

// Disconnect closes the broker connection. No-op if disabled.
func (p *Publisher) Disconnect() {
	if !p.enabled || p.client == nil {
		return
	}
	p.client.Disconnect(250)
}

// Enabled reports whether a broker is configured.
func (p *Publisher) Enabled() bool { return p.enabled }

// ManeuverDone implements door.Observer. Publishing is fire-and-forget: a
// broker outage never holds up the door.
func (p *Publisher) ManeuverDone(state door.State, cmd door.Command, elapsed time.Duration) {
	if !p.enabled {
		return
	}
	payload, err := json.Marshal(Message{
		State:       state.String(),
		Revolutions: cmd.Revolutions,
		Pattern:     cmd.Pattern.Name(),
		DurationMs:  elapsed.Milliseconds(),
		Time:        p.now().UTC(),
	})
	if err != nil {
		debug.Error(fmt.Errorf("encode mqtt message: %w", err))
		return
	}
	p.client.Publish(p.topic, 1, true, payload)
	debug.Live("MQTT published %s to %s", state, p.topic)
}
