package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/newplayman/sbe-data-bridge/internal/integration"
)

// WSConfig WebSocket 连接参数
type WSConfig struct {
	HandshakeTimeout time.Duration // 握手超时
	PingInterval     time.Duration // 心跳间隔（0=不主动发 ping）
	PongWait         time.Duration // 读超时，收到任何帧/ping/pong 都会刷新
	WriteWait        time.Duration // 写超时
	ReadLimit        int64         // 单帧最大字节
}

// DefaultWSConfig 默认配置
func DefaultWSConfig() WSConfig {
	return WSConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     20 * time.Second,
		PongWait:         60 * time.Second,
		WriteWait:        10 * time.Second,
		ReadLimit:        1 << 20,
	}
}

// WSDialer 使用 gorilla/websocket 建立行情连接。
// 重连由 integration.Connector 负责，这里只管单条连接的心跳与超时。
type WSDialer struct {
	cfg    WSConfig
	dialer *websocket.Dialer
}

// NewWSDialer 创建拨号器，零值字段使用默认配置
func NewWSDialer(cfg WSConfig) *WSDialer {
	def := DefaultWSConfig()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}
	return &WSDialer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// Dial 实现 integration.StreamDialer
func (d *WSDialer) Dial(ctx context.Context, url string) (integration.Stream, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("ws dial %s: %w", url, err)
	}

	s := &wsStream{
		conn: conn,
		cfg:  d.cfg,
		url:  url,
		stop: make(chan struct{}),
	}
	conn.SetReadLimit(d.cfg.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(d.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(d.cfg.PongWait))
	})
	// 服务端 ping 必须回 pong，否则 binance 会断开连接
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(d.cfg.PongWait))
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(d.cfg.WriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	if d.cfg.PingInterval > 0 {
		go s.heartbeatLoop()
	}
	return s, nil
}

// wsStream 单条 ws 连接
type wsStream struct {
	conn *websocket.Conn
	cfg  WSConfig
	url  string

	writeMu   sync.Mutex
	closeOnce sync.Once
	stop      chan struct{}
}

// ReadMessage 读取下一帧文本/二进制数据
func (s *wsStream) ReadMessage() ([]byte, error) {
	_, msg, err := s.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	return msg, nil
}

// Close 可重复调用
func (s *wsStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(s.cfg.WriteWait))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// heartbeatLoop 心跳循环，写失败时关闭连接让读端返回错误
func (s *wsStream) heartbeatLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteWait))
			s.writeMu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("url", s.url).Msg("ws heartbeat failed")
				_ = s.conn.Close()
				return
			}
		}
	}
}
