package integration

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/newplayman/sbe-data-bridge/internal/metrics"
	"github.com/newplayman/sbe-data-bridge/internal/sbe"
)

// subscription 一个交易对 + 数据类型的流任务
type subscription struct {
	symbol     string // 小写
	kind       sbe.DataType
	resolution sbe.TimeResolution
	url        string
	onTrade    TradeHandler
	onOHLCV    OHLCVHandler

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Connector 单个交易所接入的订阅状态机。成交与K线订阅分别保存在两个 map 中，
// 同一交易对可以同时订阅两种数据。
type Connector struct {
	exchange Exchange
	dialer   StreamDialer
	cfg      Config
	cache    *SymbolCache
	name     string

	mu     sync.RWMutex
	trades map[string]*subscription
	klines map[string]*subscription
}

// NewConnector 创建接入
func NewConnector(exchange Exchange, dialer StreamDialer, cfg Config) *Connector {
	cfg = cfg.withDefaults()
	c := &Connector{
		exchange: exchange,
		dialer:   dialer,
		cfg:      cfg,
		name:     exchange.ID().String(),
		trades:   make(map[string]*subscription),
		klines:   make(map[string]*subscription),
	}
	c.cache = NewSymbolCache(c.fetchSymbols, cfg.SymbolCacheTTL)
	return c
}

// ExchangeID 接入的交易所
func (c *Connector) ExchangeID() sbe.ExchangeID {
	return c.exchange.ID()
}

func (c *Connector) fetchSymbols(ctx context.Context) ([]string, error) {
	start := time.Now()
	symbols, err := c.exchange.FetchSymbols(ctx)
	metrics.RecordSymbolFetch(c.name, time.Since(start), err)
	if err != nil {
		log.Warn().Err(err).Str("exchange", c.name).Msg("拉取交易对失败")
		return nil, err
	}
	log.Debug().Str("exchange", c.name).Int("count", len(symbols)).Msg("交易对列表已刷新")
	return symbols, nil
}

// GetSymbols 返回交易所全部交易对（大写）
func (c *Connector) GetSymbols(ctx context.Context) ([]string, error) {
	return c.cache.Symbols(ctx)
}

// ValidateSymbols 一次性校验整批交易对，任一无效则返回 *InvalidSymbolsError
func (c *Connector) ValidateSymbols(ctx context.Context, symbols []string) error {
	missing, err := c.cache.Missing(ctx, symbols)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &InvalidSymbolsError{Symbols: missing}
	}
	return nil
}

func (c *Connector) table(kind sbe.DataType) map[string]*subscription {
	if kind == OHLCVKind {
		return c.klines
	}
	return c.trades
}

// OHLCVKind / TradeKind 订阅 map 的键
const (
	TradeKind = sbe.TradeData
	OHLCVKind = sbe.OHLCVData
)

// StartTrade 订阅成交。已订阅的交易对静默跳过。
func (c *Connector) StartTrade(ctx context.Context, symbols []string, handler TradeHandler) error {
	return c.start(ctx, symbols, TradeKind, sbe.NoTimeResolution, handler, nil)
}

// StartOHLCV 订阅K线，只转发已收盘的K线。交易对已按其他周期订阅时返回 *ResolutionConflictError。
func (c *Connector) StartOHLCV(ctx context.Context, symbols []string, res sbe.TimeResolution, handler OHLCVHandler) error {
	if !res.Known() {
		return ErrUnknownResolution
	}
	return c.start(ctx, symbols, OHLCVKind, res, nil, handler)
}

// ErrUnknownResolution K线周期不受支持
var ErrUnknownResolution = errors.New("unknown time resolution")

func (c *Connector) start(ctx context.Context, symbols []string, kind sbe.DataType, res sbe.TimeResolution, onTrade TradeHandler, onOHLCV OHLCVHandler) error {
	if err := c.ValidateSymbols(ctx, symbols); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	subs := c.table(kind)
	// 先整体检查周期冲突，冲突时一个也不启动
	if kind == OHLCVKind {
		for _, s := range symbols {
			if cur, ok := subs[strings.ToLower(s)]; ok && cur.resolution != res {
				return &ResolutionConflictError{Symbol: strings.ToUpper(s), Active: cur.resolution, Requested: res}
			}
		}
	}
	for _, s := range symbols {
		key := strings.ToLower(s)
		if _, ok := subs[key]; ok {
			log.Debug().Str("symbol", key).Str("kind", kind.String()).Msg("已订阅，跳过")
			continue
		}
		sub := &subscription{
			symbol:     key,
			kind:       kind,
			resolution: res,
			onTrade:    onTrade,
			onOHLCV:    onOHLCV,
			done:       make(chan struct{}),
		}
		if kind == OHLCVKind {
			sub.url = c.exchange.KlineStreamURL(key, res)
		} else {
			sub.url = c.exchange.TradeStreamURL(key)
		}
		sub.ctx, sub.cancel = context.WithCancel(context.Background())
		subs[key] = sub
		go c.run(sub)
		log.Info().Str("exchange", c.name).Str("symbol", key).Str("kind", kind.String()).Msg("订阅已启动")
	}
	metrics.UpdateActiveStreams(c.name, kind.String(), len(subs))
	return nil
}

// StopTrade 停止成交订阅；未订阅的交易对以 *NotSubscribedError 返回，其余照常停止。
func (c *Connector) StopTrade(symbols []string) error {
	return c.stop(symbols, TradeKind)
}

// StopOHLCV 停止K线订阅
func (c *Connector) StopOHLCV(symbols []string) error {
	return c.stop(symbols, OHLCVKind)
}

func (c *Connector) stop(symbols []string, kind sbe.DataType) error {
	var stopped []*subscription
	var missing []string

	c.mu.Lock()
	subs := c.table(kind)
	for _, s := range symbols {
		key := strings.ToLower(s)
		sub, ok := subs[key]
		if !ok {
			missing = append(missing, strings.ToUpper(s))
			continue
		}
		delete(subs, key)
		stopped = append(stopped, sub)
	}
	metrics.UpdateActiveStreams(c.name, kind.String(), len(subs))
	c.mu.Unlock()

	abort(stopped)
	for _, sub := range stopped {
		log.Info().Str("exchange", c.name).Str("symbol", sub.symbol).Str("kind", kind.String()).Msg("订阅已停止")
	}
	if len(missing) > 0 {
		return &NotSubscribedError{Kind: kind, Symbols: missing}
	}
	return nil
}

// StopAll 停止全部订阅，不会失败
func (c *Connector) StopAll() {
	c.mu.Lock()
	var all []*subscription
	for _, subs := range []map[string]*subscription{c.trades, c.klines} {
		for key, sub := range subs {
			all = append(all, sub)
			delete(subs, key)
		}
	}
	metrics.UpdateActiveStreams(c.name, TradeKind.String(), 0)
	metrics.UpdateActiveStreams(c.name, OHLCVKind.String(), 0)
	c.mu.Unlock()

	abort(all)
	if len(all) > 0 {
		log.Info().Str("exchange", c.name).Int("count", len(all)).Msg("全部订阅已停止")
	}
}

// Shutdown 有订阅时等同 StopAll，否则什么都不做
func (c *Connector) Shutdown() {
	c.mu.RLock()
	n := len(c.trades) + len(c.klines)
	c.mu.RUnlock()
	if n == 0 {
		return
	}
	c.StopAll()
}

// abort 立即取消并等待任务退出，处理中的消息直接丢弃
func abort(subs []*subscription) {
	for _, sub := range subs {
		sub.cancel()
	}
	for _, sub := range subs {
		<-sub.done
	}
}

// Active 返回某类数据当前订阅的交易对（大写、排序）
func (c *Connector) Active(kind sbe.DataType) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	subs := c.table(kind)
	out := make([]string, 0, len(subs))
	for key := range subs {
		out = append(out, strings.ToUpper(key))
	}
	sort.Strings(out)
	return out
}

// IsActive 是否已订阅
func (c *Connector) IsActive(symbol string, kind sbe.DataType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.table(kind)[strings.ToLower(symbol)]
	return ok
}

// remove 任务自行退出时删除自己的条目；条目已被替换则不动
func (c *Connector) remove(sub *subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := c.table(sub.kind)
	if cur, ok := subs[sub.symbol]; ok && cur == sub {
		delete(subs, sub.symbol)
		metrics.UpdateActiveStreams(c.name, sub.kind.String(), len(subs))
	}
}
