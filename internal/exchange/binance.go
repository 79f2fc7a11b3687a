package gateway

import (
	"fmt"

	"github.com/newplayman/sbe-data-bridge/internal/sbe"
)

// Market Binance 市场类型
type Market int

const (
	MarketSpot  Market = iota // 现货
	MarketUSDM                // U 本位合约
	MarketCoinM               // 币本位合约
)

func (m Market) String() string {
	switch m {
	case MarketUSDM:
		return "usdm"
	case MarketCoinM:
		return "coinm"
	}
	return "spot"
}

// TradeStream 成交流名称：现货逐笔 trade，合约归集 aggTrade
func (m Market) TradeStream() string {
	if m == MarketSpot {
		return "trade"
	}
	return "aggTrade"
}

// Endpoints 单个接入的 REST/WS 端点
type Endpoints struct {
	Market           Market
	Testnet          bool
	RestURL          string
	WSURL            string
	ExchangeInfoPath string
}

var endpoints = map[sbe.ExchangeID]Endpoints{
	sbe.BinanceSpot: {
		Market:           MarketSpot,
		RestURL:          "https://api.binance.com",
		WSURL:            "wss://stream.binance.com:9443",
		ExchangeInfoPath: "/api/v3/exchangeInfo",
	},
	sbe.BinanceSpotTestnet: {
		Market:           MarketSpot,
		Testnet:          true,
		RestURL:          "https://testnet.binance.vision",
		WSURL:            "wss://stream.testnet.binance.vision",
		ExchangeInfoPath: "/api/v3/exchangeInfo",
	},
	sbe.BinanceUsdMarginFutures: {
		Market:           MarketUSDM,
		RestURL:          "https://fapi.binance.com",
		WSURL:            "wss://fstream.binance.com",
		ExchangeInfoPath: "/fapi/v1/exchangeInfo",
	},
	sbe.BinanceUsdMarginFuturesTestnet: {
		Market:           MarketUSDM,
		Testnet:          true,
		RestURL:          "https://testnet.binancefuture.com",
		WSURL:            "wss://stream.binancefuture.com",
		ExchangeInfoPath: "/fapi/v1/exchangeInfo",
	},
	sbe.BinanceCoinMarginFutures: {
		Market:           MarketCoinM,
		RestURL:          "https://dapi.binance.com",
		WSURL:            "wss://dstream.binance.com",
		ExchangeInfoPath: "/dapi/v1/exchangeInfo",
	},
	sbe.BinanceCoinMarginFuturesTestnet: {
		Market:           MarketCoinM,
		Testnet:          true,
		RestURL:          "https://testnet.binancefuture.com",
		WSURL:            "wss://dstream.binancefuture.com",
		ExchangeInfoPath: "/dapi/v1/exchangeInfo",
	},
}

// EndpointsFor 查找交易所的默认端点
func EndpointsFor(id sbe.ExchangeID) (Endpoints, error) {
	ep, ok := endpoints[id]
	if !ok {
		return Endpoints{}, fmt.Errorf("no binance endpoints for exchange %d", uint8(id))
	}
	return ep, nil
}
