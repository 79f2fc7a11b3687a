package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/newplayman/sbe-data-bridge/internal/metrics"
)

// NATSConfig NATS 连接参数
type NATSConfig struct {
	URL           string
	ClientName    string
	ReconnectWait time.Duration
	MaxReconnects int // -1 表示无限
	DrainTimeout  time.Duration
	Buffer        int
}

// NATSBus 基于 nats.go 的总线，通道名即 subject
type NATSBus struct {
	nc     *nats.Conn
	buffer int
	closed chan struct{}
	drain  time.Duration
}

// NewNATSBus 连接 NATS
func NewNATSBus(cfg NATSConfig) (*NATSBus, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}

	b := &NATSBus{buffer: cfg.Buffer, closed: make(chan struct{}), drain: cfg.DrainTimeout}
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.ClientName),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DrainTimeout(cfg.DrainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			close(b.closed)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}
	b.nc = nc
	return b, nil
}

// Publish 发布到 subject
func (b *NATSBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.nc.Publish(channel, payload)
	metrics.RecordPublish(channel, err)
	if err != nil {
		return fmt.Errorf("nats publish %s: %w", channel, err)
	}
	return nil
}

type natsSub struct {
	sub     *nats.Subscription
	channel string
	ch      chan []byte

	mu     sync.Mutex
	closed bool
	stop   func() bool
}

func (s *natsSub) C() <-chan []byte { return s.ch }

func (s *natsSub) deliver(m *nats.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- m.Data:
	default:
		metrics.RecordDropped(s.channel)
	}
}

func (s *natsSub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.stop != nil {
		s.stop()
	}
	close(s.ch)
	if err := s.sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed && err != nats.ErrBadSubscription {
		return err
	}
	return nil
}

// Subscribe 订阅 subject，ctx 结束时自动取消
func (b *NATSBus) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	s := &natsSub{channel: channel, ch: make(chan []byte, b.buffer)}
	sub, err := b.nc.Subscribe(channel, s.deliver)
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", channel, err)
	}
	s.sub = sub
	s.stop = context.AfterFunc(ctx, func() { _ = s.Close() })
	return s, nil
}

// Close drain 后关闭连接
func (b *NATSBus) Close() error {
	if b.nc.IsClosed() {
		return nil
	}
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return err
	}
	select {
	case <-b.closed:
	case <-time.After(b.drain + time.Second):
		b.nc.Close()
	}
	return nil
}
