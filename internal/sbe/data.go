package sbe

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeBar 单笔成交。Timestamp 为 Unix 微秒。
type TradeBar struct {
	Symbol    string
	Timestamp int64
	Price     Decimal
	Volume    Decimal
}

// NewTradeBar 由交易所解析出的十进制值构造成交记录；mantissa 溢出时返回 EncodeError。
func NewTradeBar(symbol string, ts time.Time, price, volume decimal.Decimal) (TradeBar, error) {
	p, err := FromDecimal(price)
	if err != nil {
		return TradeBar{}, &EncodeError{Field: "price", Err: err}
	}
	v, err := FromDecimal(volume)
	if err != nil {
		return TradeBar{}, &EncodeError{Field: "volume", Err: err}
	}
	return TradeBar{Symbol: symbol, Timestamp: ts.UnixMicro(), Price: p, Volume: v}, nil
}

func (b TradeBar) Type() MessageType { return TradeBarMsg }

// Time 成交时间
func (b TradeBar) Time() time.Time { return time.UnixMicro(b.Timestamp).UTC() }

func (b TradeBar) Encode() ([]byte, error) {
	w := newWriter(TradeBarMsg)
	w.symbol(barSymbolOffset, "symbol_id", b.Symbol)
	w.i64(barTimeOffset, b.Timestamp)
	w.decimal(barFirstDecimal, b.Price)
	w.decimal(barFirstDecimal+DecimalLength, b.Volume)
	return w.bytes()
}

// DecodeTradeBar 解码成交记录
func DecodeTradeBar(buf []byte) (TradeBar, error) {
	if _, err := DecodeHeader(buf, TradeBarMsg); err != nil {
		return TradeBar{}, err
	}
	r := reader{buf: buf}
	r.messageType(TradeBarMsg)
	b := TradeBar{
		Symbol:    r.symbol(barSymbolOffset, "symbol_id"),
		Timestamp: r.i64(barTimeOffset, "date_time"),
		Price:     r.decimal(barFirstDecimal, "price"),
		Volume:    r.decimal(barFirstDecimal+DecimalLength, "volume"),
	}
	if r.err != nil {
		return TradeBar{}, r.err
	}
	return b, nil
}

// OHLCVBar 一根已收盘的 K 线。Timestamp 为 K 线开始时间（Unix 微秒）。
type OHLCVBar struct {
	Symbol    string
	Timestamp int64
	Open      Decimal
	High      Decimal
	Low       Decimal
	Close     Decimal
	Volume    Decimal
}

// Candle 构造 OHLCVBar 所需的十进制字段
type Candle struct {
	Open, High, Low, Close, Volume decimal.Decimal
}

// NewOHLCVBar 由 K 线数据构造；任一字段溢出返回 EncodeError。
func NewOHLCVBar(symbol string, start time.Time, c Candle) (OHLCVBar, error) {
	bar := OHLCVBar{Symbol: symbol, Timestamp: start.UnixMicro()}
	fields := []struct {
		name string
		src  decimal.Decimal
		dst  *Decimal
	}{
		{"open", c.Open, &bar.Open},
		{"high", c.High, &bar.High},
		{"low", c.Low, &bar.Low},
		{"close", c.Close, &bar.Close},
		{"volume", c.Volume, &bar.Volume},
	}
	for _, f := range fields {
		d, err := FromDecimal(f.src)
		if err != nil {
			return OHLCVBar{}, &EncodeError{Field: f.name, Err: err}
		}
		*f.dst = d
	}
	return bar, nil
}

func (b OHLCVBar) Type() MessageType { return OHLCVBarMsg }

// Time K 线开始时间
func (b OHLCVBar) Time() time.Time { return time.UnixMicro(b.Timestamp).UTC() }

func (b OHLCVBar) Encode() ([]byte, error) {
	w := newWriter(OHLCVBarMsg)
	w.symbol(barSymbolOffset, "symbol_id", b.Symbol)
	w.i64(barTimeOffset, b.Timestamp)
	for i, d := range []Decimal{b.Open, b.High, b.Low, b.Close, b.Volume} {
		w.decimal(barFirstDecimal+i*DecimalLength, d)
	}
	return w.bytes()
}

// DecodeOHLCVBar 解码 K 线
func DecodeOHLCVBar(buf []byte) (OHLCVBar, error) {
	if _, err := DecodeHeader(buf, OHLCVBarMsg); err != nil {
		return OHLCVBar{}, err
	}
	r := reader{buf: buf}
	r.messageType(OHLCVBarMsg)
	b := OHLCVBar{
		Symbol:    r.symbol(barSymbolOffset, "symbol_id"),
		Timestamp: r.i64(barTimeOffset, "date_time"),
		Open:      r.decimal(barFirstDecimal, "open"),
		High:      r.decimal(barFirstDecimal+DecimalLength, "high"),
		Low:       r.decimal(barFirstDecimal+2*DecimalLength, "low"),
		Close:     r.decimal(barFirstDecimal+3*DecimalLength, "close"),
		Volume:    r.decimal(barFirstDecimal+4*DecimalLength, "volume"),
	}
	if r.err != nil {
		return OHLCVBar{}, r.err
	}
	return b, nil
}
