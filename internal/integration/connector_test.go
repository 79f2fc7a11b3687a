package integration_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newplayman/sbe-data-bridge/internal/integration"
	"github.com/newplayman/sbe-data-bridge/internal/integration/streamtest"
	"github.com/newplayman/sbe-data-bridge/internal/sbe"
)

// fakeExchange 消息格式："trade:<µs>"、"kline:<µs>:open|closed"、其余为非事件消息
type fakeExchange struct {
	symbols []string
	fetches atomic.Int32
}

func (f *fakeExchange) ID() sbe.ExchangeID { return sbe.BinanceSpot }

func (f *fakeExchange) TradeStreamURL(symbol string) string {
	return "ws://fake/" + symbol + "@trade"
}

func (f *fakeExchange) KlineStreamURL(symbol string, res sbe.TimeResolution) string {
	return "ws://fake/" + symbol + "@kline_" + res.Interval()
}

func (f *fakeExchange) ParseTrade(raw []byte) (sbe.TradeBar, bool, error) {
	parts := strings.Split(string(raw), ":")
	if parts[0] != "trade" {
		return sbe.TradeBar{}, false, nil
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return sbe.TradeBar{}, false, err
	}
	return sbe.TradeBar{Symbol: "BTCUSDT", Timestamp: ts}, true, nil
}

func (f *fakeExchange) ParseKline(raw []byte) (sbe.OHLCVBar, bool, error) {
	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 || parts[0] != "kline" {
		return sbe.OHLCVBar{}, false, fmt.Errorf("bad kline %q", raw)
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return sbe.OHLCVBar{}, false, err
	}
	return sbe.OHLCVBar{Symbol: "BTCUSDT", Timestamp: ts}, parts[2] == "closed", nil
}

func (f *fakeExchange) FetchSymbols(context.Context) ([]string, error) {
	f.fetches.Add(1)
	return f.symbols, nil
}

func newConnector(t *testing.T, dialer integration.StreamDialer, cfg integration.Config) (*integration.Connector, *fakeExchange) {
	t.Helper()
	ex := &fakeExchange{symbols: []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}}
	c := integration.NewConnector(ex, dialer, cfg)
	t.Cleanup(c.StopAll)
	return c, ex
}

func fastConfig() integration.Config {
	cfg := integration.DefaultConfig()
	cfg.ReconnectBackoff = time.Millisecond
	return cfg
}

func nextStream(t *testing.T, d *streamtest.Dialer) *streamtest.Stream {
	t.Helper()
	select {
	case s := <-d.Connected():
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no connection established")
		return nil
	}
}

func TestReconnectBudgetEndsStream(t *testing.T) {
	dialer := streamtest.Failing()
	c, _ := newConnector(t, dialer, fastConfig())

	require.NoError(t, c.StartTrade(context.Background(), []string{"BTCUSDT"}, nil))

	// 首次连接 + 5 次重试后退出并删除条目
	require.Eventually(t, func() bool { return !c.IsActive("BTCUSDT", sbe.TradeData) }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 6, dialer.Dials())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 6, dialer.Dials(), "no dial after the stream ended")
	assert.Empty(t, c.Active(sbe.TradeData))
}

func TestReconnectAfterDropCountsFromZero(t *testing.T) {
	dialer := streamtest.NewDialer()
	dialer.Script = func(n int, _ string) error {
		if n < 2 || n > 2 {
			return streamtest.ErrDialRefused
		}
		return nil
	}
	c, _ := newConnector(t, dialer, fastConfig())
	require.NoError(t, c.StartTrade(context.Background(), []string{"BTCUSDT"}, nil))

	s := nextStream(t, dialer)
	s.Fail(errors.New("connection reset by peer"))

	require.Eventually(t, func() bool { return !c.IsActive("BTCUSDT", sbe.TradeData) }, 2*time.Second, 5*time.Millisecond)
	// 2 次失败 + 1 次成功 + 断开后 5 次失败
	assert.Equal(t, 8, dialer.Dials())
}

func TestGiveUpAfterBoundsReconnects(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxReconnectAttempts = 1000
	cfg.ReconnectBackoff = 5 * time.Millisecond
	cfg.GiveUpAfter = 30 * time.Millisecond

	dialer := streamtest.Failing()
	c, _ := newConnector(t, dialer, cfg)
	require.NoError(t, c.StartTrade(context.Background(), []string{"BTCUSDT"}, nil))

	require.Eventually(t, func() bool { return !c.IsActive("BTCUSDT", sbe.TradeData) }, 2*time.Second, 5*time.Millisecond)
	assert.Less(t, dialer.Dials(), 1000)
}

func TestReconnectDeadlineRotatesConnection(t *testing.T) {
	cfg := fastConfig()
	cfg.ReconnectDeadline = 20 * time.Millisecond
	dialer := streamtest.NewDialer()
	c, _ := newConnector(t, dialer, cfg)

	require.NoError(t, c.StartTrade(context.Background(), []string{"BTCUSDT"}, nil))
	first := nextStream(t, dialer)
	nextStream(t, dialer)

	// 主动重连不消耗重连次数，订阅保持
	assert.True(t, first.Closed())
	assert.True(t, c.IsActive("BTCUSDT", sbe.TradeData))
}

func TestStartIsIdempotent(t *testing.T) {
	dialer := streamtest.NewDialer()
	c, _ := newConnector(t, dialer, fastConfig())
	ctx := context.Background()

	require.NoError(t, c.StartTrade(ctx, []string{"BTCUSDT"}, nil))
	nextStream(t, dialer)
	require.NoError(t, c.StartTrade(ctx, []string{"btcusdt"}, nil))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, dialer.Dials())
	assert.Equal(t, []string{"BTCUSDT"}, c.Active(sbe.TradeData))
	assert.Equal(t, []string{"ws://fake/btcusdt@trade"}, dialer.URLs())
}

func TestStartRejectsWholeBatch(t *testing.T) {
	dialer := streamtest.NewDialer()
	c, _ := newConnector(t, dialer, fastConfig())

	err := c.StartTrade(context.Background(), []string{"BTCUSDT", "NOPE", "ethusdt", "bad"}, nil)
	var invalid *integration.InvalidSymbolsError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, []string{"NOPE", "BAD"}, invalid.Symbols)

	assert.Empty(t, c.Active(sbe.TradeData))
	assert.Equal(t, 0, dialer.Dials())
}

func TestStopReportsUnsubscribed(t *testing.T) {
	dialer := streamtest.NewDialer()
	c, _ := newConnector(t, dialer, fastConfig())

	err := c.StopTrade([]string{"BTCUSDT"})
	var notSub *integration.NotSubscribedError
	require.ErrorAs(t, err, &notSub)
	assert.Equal(t, []string{"BTCUSDT"}, notSub.Symbols)

	require.NoError(t, c.StartTrade(context.Background(), []string{"ETHUSDT"}, nil))
	s := nextStream(t, dialer)

	err = c.StopTrade([]string{"ETHUSDT", "SOLUSDT"})
	require.ErrorAs(t, err, &notSub)
	assert.Equal(t, []string{"SOLUSDT"}, notSub.Symbols)
	assert.False(t, c.IsActive("ETHUSDT", sbe.TradeData))
	assert.True(t, s.Closed())
}

func TestTradeAndOHLCVMapsAreIndependent(t *testing.T) {
	dialer := streamtest.NewDialer()
	c, _ := newConnector(t, dialer, fastConfig())
	ctx := context.Background()

	require.NoError(t, c.StartTrade(ctx, []string{"BTCUSDT"}, nil))
	require.NoError(t, c.StartOHLCV(ctx, []string{"BTCUSDT"}, sbe.OneMinute, nil))
	assert.True(t, c.IsActive("BTCUSDT", sbe.TradeData))
	assert.True(t, c.IsActive("BTCUSDT", sbe.OHLCVData))

	require.NoError(t, c.StopOHLCV([]string{"BTCUSDT"}))
	assert.True(t, c.IsActive("BTCUSDT", sbe.TradeData))
	assert.False(t, c.IsActive("BTCUSDT", sbe.OHLCVData))

	err := c.StartOHLCV(ctx, []string{"BTCUSDT"}, sbe.NoTimeResolution, nil)
	assert.ErrorIs(t, err, integration.ErrUnknownResolution)
}

func TestOHLCVResolutionConflict(t *testing.T) {
	dialer := streamtest.NewDialer()
	c, _ := newConnector(t, dialer, fastConfig())
	ctx := context.Background()

	require.NoError(t, c.StartOHLCV(ctx, []string{"ETHUSDT"}, sbe.OneMinute, nil))
	nextStream(t, dialer)

	// 相同周期重复订阅不报错
	require.NoError(t, c.StartOHLCV(ctx, []string{"ethusdt"}, sbe.OneMinute, nil))

	err := c.StartOHLCV(ctx, []string{"BTCUSDT", "ETHUSDT"}, sbe.OneDay, nil)
	var conflict *integration.ResolutionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "ETHUSDT", conflict.Symbol)
	assert.Equal(t, sbe.OneMinute, conflict.Active)
	assert.Equal(t, sbe.OneDay, conflict.Requested)

	// 整批拒绝
	assert.False(t, c.IsActive("BTCUSDT", sbe.OHLCVData))
	assert.True(t, c.IsActive("ETHUSDT", sbe.OHLCVData))
	assert.Equal(t, []string{"ws://fake/ethusdt@kline_1m"}, dialer.URLs())
}

func TestOHLCVForwardsClosedCandlesOnly(t *testing.T) {
	dialer := streamtest.NewDialer()
	c, _ := newConnector(t, dialer, fastConfig())

	var mu sync.Mutex
	var got []int64
	require.NoError(t, c.StartOHLCV(context.Background(), []string{"BTCUSDT"}, sbe.OneMinute, func(b sbe.OHLCVBar) {
		mu.Lock()
		got = append(got, b.Timestamp)
		mu.Unlock()
	}))
	s := nextStream(t, dialer)
	assert.Equal(t, "ws://fake/btcusdt@kline_1m", s.URL)

	for _, m := range []string{"kline:60:open", "kline:60:open", "kline:60:closed", "garbage", "kline:120:open", "kline:120:closed"} {
		require.True(t, s.Push([]byte(m)))
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.StopOHLCV([]string{"BTCUSDT"}))
	s.Push([]byte("kline:180:closed"))
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{60, 120}, got)
}

func TestTradeForwardsEveryEvent(t *testing.T) {
	dialer := streamtest.NewDialer()
	c, _ := newConnector(t, dialer, fastConfig())

	var count atomic.Int32
	require.NoError(t, c.StartTrade(context.Background(), []string{"BTCUSDT"}, func(sbe.TradeBar) {
		count.Add(1)
	}))
	s := nextStream(t, dialer)
	for i := 0; i < 10; i++ {
		s.Push([]byte(fmt.Sprintf("trade:%d", i)))
	}
	s.Push([]byte(`{"result":null,"id":1}`))

	require.Eventually(t, func() bool { return count.Load() == 10 }, time.Second, 5*time.Millisecond)
}

func TestStopAllAndShutdown(t *testing.T) {
	dialer := streamtest.NewDialer()
	c, _ := newConnector(t, dialer, fastConfig())
	ctx := context.Background()

	// 没有订阅时 Shutdown 什么都不做
	c.Shutdown()

	require.NoError(t, c.StartTrade(ctx, []string{"BTCUSDT", "ETHUSDT"}, nil))
	require.NoError(t, c.StartOHLCV(ctx, []string{"SOLUSDT"}, sbe.FiveMinutes, nil))
	for i := 0; i < 3; i++ {
		nextStream(t, dialer)
	}

	c.Shutdown()
	assert.Empty(t, c.Active(sbe.TradeData))
	assert.Empty(t, c.Active(sbe.OHLCVData))
	for _, s := range dialer.Streams() {
		assert.True(t, s.Closed())
	}

	c.StopAll()
}

func TestGetSymbolsUsesCache(t *testing.T) {
	c, ex := newConnector(t, streamtest.NewDialer(), fastConfig())
	ctx := context.Background()

	syms, err := c.GetSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, syms)

	require.NoError(t, c.ValidateSymbols(ctx, []string{"btcusdt"}))
	assert.Equal(t, int32(1), ex.fetches.Load())
}
