package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newplayman/sbe-data-bridge/internal/sbe"
)

func TestBuildRequest(t *testing.T) {
	clientID, symbol, dataType, resolution = 150, "ethusdt", "ohlcv", "4h"

	msg, err := buildRequest("start", sbe.BinanceUsdMarginFutures)
	require.NoError(t, err)
	assert.Equal(t, sbe.StartData{
		ClientID:       150,
		ExchangeID:     sbe.BinanceUsdMarginFutures,
		Symbol:         "ethusdt",
		TimeResolution: sbe.FourHours,
		DataType:       sbe.OHLCVData,
	}, msg)

	msg, err = buildRequest("stopall", sbe.BinanceSpot)
	require.NoError(t, err)
	assert.Equal(t, sbe.StopAllData{ClientID: 150, ExchangeID: sbe.BinanceSpot}, msg)

	resolution = "7m"
	_, err = buildRequest("start", sbe.BinanceSpot)
	assert.Error(t, err)

	dataType = "depth"
	_, err = buildRequest("login", sbe.BinanceSpot)
	assert.Error(t, err)
}
