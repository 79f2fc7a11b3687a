// Package bus 定义控制/数据/错误通道所用的事件总线，并提供 NATS 与进程内两种实现。
package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrClosed 总线已关闭
var ErrClosed = errors.New("bus closed")

// DefaultBuffer 每个订阅的缓冲消息数
const DefaultBuffer = 1024

// Subscription 一个通道上的订阅。C() 在 Close 或总线关闭后被关闭。
type Subscription interface {
	C() <-chan []byte
	Close() error
}

// EventBus 发布/订阅
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	Close() error
}

// Channels 通道名称
type Channels struct {
	Control    string
	Error      string
	DataPrefix string
}

// DefaultChannels 默认通道名
func DefaultChannels() Channels {
	return Channels{
		Control:    "control",
		Error:      "error",
		DataPrefix: "data",
	}
}

// Data 某个交易所的行情通道，如 data.binance_spot
func (c Channels) Data(exchange string) string {
	return c.DataPrefix + "." + exchange
}

// Validate 通道名不能为空且互不相同
func (c Channels) Validate() error {
	if strings.TrimSpace(c.Control) == "" || strings.TrimSpace(c.Error) == "" || strings.TrimSpace(c.DataPrefix) == "" {
		return fmt.Errorf("bus channels must not be empty: %+v", c)
	}
	if c.Control == c.Error || strings.HasPrefix(c.Control, c.DataPrefix+".") || strings.HasPrefix(c.Error, c.DataPrefix+".") {
		return fmt.Errorf("bus channels overlap: %+v", c)
	}
	return nil
}
