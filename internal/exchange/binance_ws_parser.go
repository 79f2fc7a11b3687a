package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/newplayman/sbe-data-bridge/internal/sbe"
)

// CombinedMessage 对应 binance combined stream 包装。
type CombinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// ErrNotEvent 订阅确认等非行情消息
var ErrNotEvent = errors.New("ws message is not a market event")

// eventHeader 只读取事件类型
type eventHeader struct {
	EventType string `json:"e"`
}

// TradeEvent 现货 trade 与合约 aggTrade 的公共字段
type TradeEvent struct {
	EventType string `json:"e" validate:"required,oneof=trade aggTrade"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s" validate:"required"`
	Price     string `json:"p" validate:"required,numeric"`
	Qty       string `json:"q" validate:"required,numeric"`
	TradeTime int64  `json:"T" validate:"required,gt=0"`
	BuyerMake bool   `json:"m"`
}

// KlineEvent K线推送
type KlineEvent struct {
	EventType string `json:"e" validate:"required,eq=kline"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     Kline  `json:"k" validate:"required"`
}

// Kline K线字段，StartTime/CloseTime 为毫秒
type Kline struct {
	StartTime int64  `json:"t" validate:"required,gt=0"`
	CloseTime int64  `json:"T"`
	Symbol    string `json:"s" validate:"required"`
	Interval  string `json:"i" validate:"required"`
	Open      string `json:"o" validate:"required,numeric"`
	Close     string `json:"c" validate:"required,numeric"`
	High      string `json:"h" validate:"required,numeric"`
	Low       string `json:"l" validate:"required,numeric"`
	Volume    string `json:"v" validate:"required,numeric"`
	Trades    int64  `json:"n"`
	Closed    bool   `json:"x"`
}

// Parser 将交易所 JSON 转换为线上格式的成交/K线
type Parser struct {
	validate *validator.Validate
}

// NewParser 创建解析器
func NewParser() *Parser {
	return &Parser{validate: validator.New()}
}

// unwrap 兼容 combined stream 包装与单流原始报文
func unwrap(raw []byte) ([]byte, string, error) {
	var msg CombinedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, "", err
	}
	payload := raw
	if msg.Stream != "" && len(msg.Data) > 0 {
		payload = msg.Data
	}
	var h eventHeader
	if err := json.Unmarshal(payload, &h); err != nil {
		return nil, "", err
	}
	return payload, h.EventType, nil
}

// ParseTrade 解析 trade/aggTrade 事件。非成交消息返回 ErrNotEvent。
func (p *Parser) ParseTrade(raw []byte) (sbe.TradeBar, error) {
	payload, eventType, err := unwrap(raw)
	if err != nil {
		return sbe.TradeBar{}, err
	}
	if eventType != "trade" && eventType != "aggTrade" {
		return sbe.TradeBar{}, ErrNotEvent
	}

	var ev TradeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return sbe.TradeBar{}, err
	}
	if err := p.validate.Struct(&ev); err != nil {
		return sbe.TradeBar{}, fmt.Errorf("invalid trade event: %w", err)
	}
	price, err := decimal.NewFromString(ev.Price)
	if err != nil {
		return sbe.TradeBar{}, fmt.Errorf("trade price: %w", err)
	}
	qty, err := decimal.NewFromString(ev.Qty)
	if err != nil {
		return sbe.TradeBar{}, fmt.Errorf("trade qty: %w", err)
	}
	return sbe.NewTradeBar(strings.ToUpper(ev.Symbol), time.UnixMilli(ev.TradeTime), price, qty)
}

// ParseKline 解析 kline 事件。closed=false 表示K线尚未收盘。
func (p *Parser) ParseKline(raw []byte) (bar sbe.OHLCVBar, closed bool, err error) {
	payload, eventType, err := unwrap(raw)
	if err != nil {
		return sbe.OHLCVBar{}, false, err
	}
	if eventType != "kline" {
		return sbe.OHLCVBar{}, false, ErrNotEvent
	}

	var ev KlineEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return sbe.OHLCVBar{}, false, err
	}
	if err := p.validate.Struct(&ev); err != nil {
		return sbe.OHLCVBar{}, false, fmt.Errorf("invalid kline event: %w", err)
	}
	if !ev.Kline.Closed {
		return sbe.OHLCVBar{}, false, nil
	}

	k := ev.Kline
	var c sbe.Candle
	for _, f := range []struct {
		name string
		src  string
		dst  *decimal.Decimal
	}{
		{"open", k.Open, &c.Open},
		{"high", k.High, &c.High},
		{"low", k.Low, &c.Low},
		{"close", k.Close, &c.Close},
		{"volume", k.Volume, &c.Volume},
	} {
		v, err := decimal.NewFromString(f.src)
		if err != nil {
			return sbe.OHLCVBar{}, false, fmt.Errorf("kline %s: %w", f.name, err)
		}
		*f.dst = v
	}
	bar, err = sbe.NewOHLCVBar(strings.ToUpper(k.Symbol), time.UnixMilli(k.StartTime), c)
	if err != nil {
		return sbe.OHLCVBar{}, false, err
	}
	return bar, true, nil
}
