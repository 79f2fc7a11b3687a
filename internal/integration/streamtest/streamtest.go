// Package streamtest 提供可编排的行情连接，用于测试订阅、重连与停止。
package streamtest

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/newplayman/sbe-data-bridge/internal/integration"
)

// ErrDialRefused 模拟连接失败
var ErrDialRefused = errors.New("streamtest: connection refused")

// Stream 内存连接：Push 投递消息，Fail 让下一次读取返回错误，Close 解除阻塞。
type Stream struct {
	URL string

	msgs   chan []byte
	fail   chan error
	closed chan struct{}
	once   sync.Once
}

// NewStream 创建连接
func NewStream(url string) *Stream {
	return &Stream{
		URL:    url,
		msgs:   make(chan []byte, 64),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

// Push 投递一条消息；连接已关闭时返回 false
func (s *Stream) Push(raw []byte) bool {
	select {
	case <-s.closed:
		return false
	case s.msgs <- raw:
		return true
	}
}

// Fail 下一次读取返回 err（模拟传输错误）
func (s *Stream) Fail(err error) {
	select {
	case s.fail <- err:
	default:
	}
}

// ReadMessage 阻塞直到有消息、错误或连接关闭
func (s *Stream) ReadMessage() ([]byte, error) {
	select {
	case raw := <-s.msgs:
		return raw, nil
	case err := <-s.fail:
		return nil, err
	case <-s.closed:
		return nil, io.EOF
	}
}

// Close 关闭连接，可重复调用
func (s *Stream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// Closed 连接是否已关闭
func (s *Stream) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Dialer 记录每次拨号。Script 返回 nil error 时用新建的 Stream 作为连接；
// Script 为空时每次都成功。
type Dialer struct {
	Script func(n int, url string) error

	mu      sync.Mutex
	dials   []string
	streams []*Stream
	notify  chan *Stream
}

// NewDialer 创建拨号器
func NewDialer() *Dialer {
	return &Dialer{notify: make(chan *Stream, 64)}
}

// Failing 永远失败的拨号器
func Failing() *Dialer {
	d := NewDialer()
	d.Script = func(int, string) error { return ErrDialRefused }
	return d
}

// Dial 实现 integration.StreamDialer
func (d *Dialer) Dial(ctx context.Context, url string) (integration.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	n := len(d.dials)
	d.dials = append(d.dials, url)
	script := d.Script
	d.mu.Unlock()

	if script != nil {
		if err := script(n, url); err != nil {
			return nil, err
		}
	}
	s := NewStream(url)
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	select {
	case d.notify <- s:
	default:
	}
	return s, nil
}

// Dials 拨号次数
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

// URLs 拨号过的地址
func (d *Dialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dials...)
}

// Streams 成功建立的连接
func (d *Dialer) Streams() []*Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Stream(nil), d.streams...)
}

// Connected 返回每次成功建立的连接（按顺序）
func (d *Dialer) Connected() <-chan *Stream {
	return d.notify
}
