package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newplayman/sbe-data-bridge/internal/sbe"
)

func TestEndpointsForEveryExchange(t *testing.T) {
	for _, id := range sbe.ExchangeIDs() {
		ep, err := EndpointsFor(id)
		require.NoError(t, err, id.String())
		assert.NotEmpty(t, ep.RestURL)
		assert.NotEmpty(t, ep.WSURL)
		assert.NotEmpty(t, ep.ExchangeInfoPath)
	}
	_, err := EndpointsFor(sbe.NullExchangeID)
	assert.Error(t, err)
}

func TestBinanceStreamURLs(t *testing.T) {
	t.Setenv("BINANCE_WS_ENDPOINT", "")
	t.Setenv("BINANCE_REST_URL", "")

	spot, err := NewBinance(sbe.BinanceSpot, ClientConfig{})
	require.NoError(t, err)
	assert.Equal(t, "wss://stream.binance.com:9443/ws/btcusdt@trade", spot.TradeStreamURL("BTCUSDT"))
	assert.Equal(t, "wss://stream.binance.com:9443/ws/ethusdt@kline_4h", spot.KlineStreamURL("ETHUSDT", sbe.FourHours))

	fut, err := NewBinance(sbe.BinanceUsdMarginFutures, ClientConfig{WSURL: "ws://localhost:9000/"})
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:9000/ws/btcusdt@aggTrade", fut.TradeStreamURL("btcusdt"))
	assert.Equal(t, "ws://localhost:9000/ws/btcusdt@kline_1M", fut.KlineStreamURL("BTCUSDT", sbe.OneMonth))
}

func TestBinanceEnvOverride(t *testing.T) {
	t.Setenv("BINANCE_REST_URL", "http://proxy.local/")
	t.Setenv("BINANCE_WS_ENDPOINT", "ws://proxy.local")

	b, err := NewBinance(sbe.BinanceCoinMarginFutures, ClientConfig{})
	require.NoError(t, err)
	ep := b.Endpoints()
	assert.Equal(t, "http://proxy.local", ep.RestURL)
	assert.Equal(t, "ws://proxy.local", ep.WSURL)
	assert.Equal(t, MarketCoinM, ep.Market)

	b, err = NewBinance(sbe.BinanceCoinMarginFutures, ClientConfig{RestURL: "http://cfg.local"})
	require.NoError(t, err)
	assert.Equal(t, "http://cfg.local", b.Endpoints().RestURL)
}

func TestBinanceParseMapping(t *testing.T) {
	b, err := NewBinance(sbe.BinanceSpot, ClientConfig{})
	require.NoError(t, err)

	_, ok, err := b.ParseTrade([]byte(`{"result":null,"id":1}`))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = b.ParseKline(klineJSON(false))
	require.NoError(t, err)
	assert.False(t, ok)

	bar, ok, err := b.ParseKline(klineJSON(true))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "BNBBTC", bar.Symbol)

	_, _, err = b.ParseTrade([]byte(`{"e":"trade","s":"X","p":"nan","q":"1","T":1}`))
	assert.Error(t, err)
}

func TestBinanceFetchSymbols(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/exchangeInfo", r.URL.Path)
		io.WriteString(w, exchangeInfoBody)
	}))
	defer ts.Close()

	b, err := NewBinance(sbe.BinanceUsdMarginFuturesTestnet, ClientConfig{RestURL: ts.URL, HTTPClient: ts.Client()})
	require.NoError(t, err)
	syms, err := b.FetchSymbols(context.Background())
	require.NoError(t, err)
	assert.Contains(t, syms, "BTCUSDT")
}
