package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newplayman/sbe-data-bridge/internal/integration"
	"github.com/newplayman/sbe-data-bridge/internal/sbe"
)

// ClientConfig Binance 接入参数；空字段使用默认端点与环境变量
type ClientConfig struct {
	RestURL    string
	WSURL      string
	HTTPClient *http.Client
	Timeout    time.Duration // 未注入 HTTPClient 时使用
	RateLimit  float64       // REST 每秒请求数（0=不限）
	Burst      int
	Retry      *RetryConfig
}

// Binance 实现 integration.Exchange
type Binance struct {
	id      sbe.ExchangeID
	ep      Endpoints
	wsURL   string
	fetcher *SymbolFetcher
	parser  *Parser
}

var _ integration.Exchange = (*Binance)(nil)

// NewBinance 根据交易所 ID 构建接入。端点优先级：配置 > 环境变量 > 默认。
func NewBinance(id sbe.ExchangeID, cfg ClientConfig) (*Binance, error) {
	ep, err := EndpointsFor(id)
	if err != nil {
		return nil, err
	}
	env := LoadEnvConfig(ep)
	restURL := pick(cfg.RestURL, env.RestURL)
	wsURL := pick(cfg.WSURL, env.WSEndpoint)

	fetcher := NewSymbolFetcher(restURL, ep.ExchangeInfoPath, cfg.Timeout, cfg.RateLimit, cfg.Burst)
	if cfg.HTTPClient != nil {
		fetcher.HTTPClient = cfg.HTTPClient
	}
	if cfg.Retry != nil {
		fetcher.Retry = *cfg.Retry
	}

	return &Binance{
		id:      id,
		ep:      ep,
		wsURL:   wsURL,
		fetcher: fetcher,
		parser:  NewParser(),
	}, nil
}

// ID 交易所 ID
func (b *Binance) ID() sbe.ExchangeID { return b.id }

// Endpoints 实际使用的端点
func (b *Binance) Endpoints() Endpoints {
	ep := b.ep
	ep.RestURL = b.fetcher.BaseURL
	ep.WSURL = b.wsURL
	return ep
}

// TradeStreamURL <ws>/ws/<symbol>@trade|aggTrade
func (b *Binance) TradeStreamURL(symbol string) string {
	return fmt.Sprintf("%s/ws/%s@%s", b.wsURL, strings.ToLower(symbol), b.ep.Market.TradeStream())
}

// KlineStreamURL <ws>/ws/<symbol>@kline_<interval>
func (b *Binance) KlineStreamURL(symbol string, res sbe.TimeResolution) string {
	return fmt.Sprintf("%s/ws/%s@kline_%s", b.wsURL, strings.ToLower(symbol), res.Interval())
}

// ParseTrade 非成交消息返回 ok=false
func (b *Binance) ParseTrade(raw []byte) (sbe.TradeBar, bool, error) {
	bar, err := b.parser.ParseTrade(raw)
	if errors.Is(err, ErrNotEvent) {
		return sbe.TradeBar{}, false, nil
	}
	if err != nil {
		return sbe.TradeBar{}, false, err
	}
	return bar, true, nil
}

// ParseKline 未收盘或非K线消息返回 ok=false
func (b *Binance) ParseKline(raw []byte) (sbe.OHLCVBar, bool, error) {
	bar, closed, err := b.parser.ParseKline(raw)
	if errors.Is(err, ErrNotEvent) {
		return sbe.OHLCVBar{}, false, nil
	}
	return bar, closed, err
}

// FetchSymbols 拉取 exchangeInfo
func (b *Binance) FetchSymbols(ctx context.Context) ([]string, error) {
	return b.fetcher.FetchSymbols(ctx)
}
