package gateway

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newplayman/sbe-data-bridge/internal/sbe"
)

func TestParseSpotTrade(t *testing.T) {
	raw := []byte(`{"e":"trade","E":1672515782136,"s":"BNBBTC","t":12345,"p":"0.00100000","q":"100.5","T":1672515782136,"m":true,"M":true}`)
	bar, err := NewParser().ParseTrade(raw)
	require.NoError(t, err)

	assert.Equal(t, "BNBBTC", bar.Symbol)
	assert.Equal(t, int64(1672515782136000), bar.Timestamp)
	assert.Equal(t, sbe.Decimal{Mantissa: 100000, Scale: 8}, bar.Price)
	assert.Equal(t, sbe.Decimal{Mantissa: 1005, Scale: 1}, bar.Volume)
}

func TestParseFuturesAggTrade(t *testing.T) {
	raw := []byte(`{"e":"aggTrade","E":123456789,"s":"btcusdt","a":5933014,"p":"0.001","q":"100","f":100,"l":105,"T":123456785,"m":true}`)
	bar, err := NewParser().ParseTrade(raw)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", bar.Symbol)
	assert.Equal(t, int64(123456785000), bar.Timestamp)
}

func TestParseCombinedTrade(t *testing.T) {
	raw := []byte(`{"stream":"ethusdt@trade","data":{"e":"trade","E":1,"s":"ETHUSDT","t":1,"p":"2700.10","q":"1.5","T":1700000000000,"m":false}}`)
	bar, err := NewParser().ParseTrade(raw)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", bar.Symbol)
	assert.Equal(t, sbe.Decimal{Mantissa: 270010, Scale: 2}, bar.Price)
}

func TestParseTradeRejectsInvalid(t *testing.T) {
	p := NewParser()

	_, err := p.ParseTrade([]byte(`{"e":"trade","s":"BTCUSDT","p":"abc","q":"1","T":1}`))
	assert.Error(t, err)

	_, err = p.ParseTrade([]byte(`{"e":"trade","s":"BTCUSDT","p":"1","q":"1"}`))
	assert.Error(t, err, "missing trade time")

	_, err = p.ParseTrade([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseNonEvent(t *testing.T) {
	p := NewParser()
	_, err := p.ParseTrade([]byte(`{"result":null,"id":1}`))
	assert.ErrorIs(t, err, ErrNotEvent)

	_, _, err = p.ParseKline([]byte(`{"e":"trade","s":"BTCUSDT","p":"1","q":"1","T":1}`))
	assert.ErrorIs(t, err, ErrNotEvent)
}

const klineFmt = `{"e":"kline","E":1672515782136,"s":"BNBBTC","k":{"t":1672515780000,"T":1672515839999,"s":"BNBBTC","i":"1m","f":100,"L":200,"o":"0.0010","c":"0.0020","h":"0.0025","l":"0.0015","v":"1000","n":100,"x":%s,"q":"1.0000","V":"500","Q":"0.500","B":"123456"}}`

func klineJSON(closed bool) []byte {
	if closed {
		return []byte(fmt.Sprintf(klineFmt, "true"))
	}
	return []byte(fmt.Sprintf(klineFmt, "false"))
}

func TestParseKlineClosed(t *testing.T) {
	bar, closed, err := NewParser().ParseKline(klineJSON(true))
	require.NoError(t, err)
	require.True(t, closed)

	assert.Equal(t, "BNBBTC", bar.Symbol)
	assert.Equal(t, int64(1672515780000000), bar.Timestamp, "bar time is the kline open time")
	assert.Equal(t, sbe.Decimal{Mantissa: 10, Scale: 4}, bar.Open)
	assert.Equal(t, sbe.Decimal{Mantissa: 25, Scale: 4}, bar.High)
	assert.Equal(t, sbe.Decimal{Mantissa: 15, Scale: 4}, bar.Low)
	assert.Equal(t, sbe.Decimal{Mantissa: 20, Scale: 4}, bar.Close)
	assert.Equal(t, sbe.Decimal{Mantissa: 1000, Scale: 0}, bar.Volume)
}

func TestParseKlineOpenIsDiscarded(t *testing.T) {
	_, closed, err := NewParser().ParseKline(klineJSON(false))
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestParseKlineInvalidPrice(t *testing.T) {
	raw := []byte(`{"e":"kline","s":"BNBBTC","k":{"t":1,"s":"BNBBTC","i":"1m","o":"x","c":"1","h":"1","l":"1","v":"1","x":true}}`)
	_, _, err := NewParser().ParseKline(raw)
	assert.Error(t, err)
}
