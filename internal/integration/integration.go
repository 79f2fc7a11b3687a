// Package integration 管理单个交易所接入的行情订阅：交易对校验、按交易对的
// 成交/K线流任务、断线重连与停止。
package integration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/newplayman/sbe-data-bridge/internal/sbe"
)

// TradeHandler 每笔成交回调（在订阅的 goroutine 中调用）
type TradeHandler func(sbe.TradeBar)

// OHLCVHandler 每根已收盘K线回调
type OHLCVHandler func(sbe.OHLCVBar)

// Stream 一条已建立的行情连接
type Stream interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// StreamDialer 建立行情连接
type StreamDialer interface {
	Dial(ctx context.Context, url string) (Stream, error)
}

// Exchange 交易所差异（端点、报文格式、交易对列表）
type Exchange interface {
	ID() sbe.ExchangeID
	TradeStreamURL(symbol string) string
	KlineStreamURL(symbol string, res sbe.TimeResolution) string
	// ParseTrade 返回 false 表示该消息不是成交事件（如订阅确认），应忽略
	ParseTrade(raw []byte) (sbe.TradeBar, bool, error)
	// ParseKline 返回 false 表示未收盘K线，丢弃
	ParseKline(raw []byte) (sbe.OHLCVBar, bool, error)
	FetchSymbols(ctx context.Context) ([]string, error)
}

// Config 订阅与缓存参数
type Config struct {
	MaxReconnectAttempts int           // 单次断线后的最大重连次数
	ReconnectBackoff     time.Duration // 每次重连前的固定等待
	ReconnectDeadline    time.Duration // 连接存活上限，到期主动重连
	GiveUpAfter          time.Duration // 整个重连过程的总时限（0=不限）
	SymbolCacheTTL       time.Duration
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		MaxReconnectAttempts: 5,
		ReconnectBackoff:     5 * time.Second,
		ReconnectDeadline:    12 * time.Hour,
		SymbolCacheTTL:       7200 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxReconnectAttempts < 0 {
		c.MaxReconnectAttempts = 0
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = def.ReconnectBackoff
	}
	if c.ReconnectDeadline <= 0 {
		c.ReconnectDeadline = def.ReconnectDeadline
	}
	if c.SymbolCacheTTL <= 0 {
		c.SymbolCacheTTL = def.SymbolCacheTTL
	}
	return c
}

// InvalidSymbolsError 批量校验中不存在的交易对
type InvalidSymbolsError struct {
	Symbols []string
}

func (e *InvalidSymbolsError) Error() string {
	return fmt.Sprintf("invalid symbols: %s", strings.Join(e.Symbols, ","))
}

// NotSubscribedError 停止请求中未订阅的交易对
type NotSubscribedError struct {
	Kind    sbe.DataType
	Symbols []string
}

func (e *NotSubscribedError) Error() string {
	return fmt.Sprintf("%s not subscribed: %s", e.Kind, strings.Join(e.Symbols, ","))
}

// ResolutionConflictError K线已按另一周期订阅；同一交易对只维持一条K线流
type ResolutionConflictError struct {
	Symbol    string
	Active    sbe.TimeResolution
	Requested sbe.TimeResolution
}

func (e *ResolutionConflictError) Error() string {
	return fmt.Sprintf("%s already streaming klines at %s, requested %s", e.Symbol, e.Active, e.Requested)
}
