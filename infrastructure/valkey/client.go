package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	valkeylib "github.com/valkey-io/valkey-go"
)

const defaultConnectTimeout = 5 * time.Second

type Config struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	// ConnectTimeout acota el ping inicial; 0 usa 5s.
	ConnectTimeout time.Duration
}

// Client es la conexión compartida para locks, límites de respuesta y el fan-out del websocket.
// Todas las claves pasan por Key para respetar el prefijo del despliegue.
type Client struct {
	inner  valkeylib.Client
	prefix string
}

// NewClient conecta y hace ping; un Valkey inalcanzable falla aquí y no en el primer webhook.
func NewClient(cfg Config) (*Client, error) {
	opts := valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
		Password:    cfg.Password,
	}
	inner, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("valkey: connect %s: %w", cfg.Address, err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := inner.Do(ctx, inner.B().Ping().Build()).Error(); err != nil {
		inner.Close()
		return nil, fmt.Errorf("valkey: ping %s (timeout %v): %w", cfg.Address, timeout, err)
	}

	return &Client{inner: inner, prefix: strings.TrimSuffix(cfg.KeyPrefix, ":")}, nil
}

func (c *Client) Close() {
	if c.inner != nil {
		c.inner.Close()
	}
}

// Key une prefix y partes con ":". Key("lock", "t1") -> "azcrm:lock:t1".
func (c *Client) Key(parts ...string) string {
	if c.prefix == "" {
		return strings.Join(parts, ":")
	}
	return strings.Join(append([]string{c.prefix}, parts...), ":")
}

// Ping sirve como health check.
func (c *Client) Ping(ctx context.Context) error {
	return c.inner.Do(ctx, c.inner.B().Ping().Build()).Error()
}

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.inner.Do(ctx, c.inner.B().Publish().Channel(channel).Message(string(payload)).Build()).Error()
}

// Subscribe bloquea entregando cada mensaje de channel a fn hasta que ctx termine.
func (c *Client) Subscribe(ctx context.Context, channel string, fn func(payload []byte)) error {
	logrus.WithField("channel", channel).Debug("[VALKEY] Subscribed")
	return c.inner.Receive(ctx, c.inner.B().Subscribe().Channel(channel).Build(), func(msg valkeylib.PubSubMessage) {
		fn([]byte(msg.Message))
	})
}
