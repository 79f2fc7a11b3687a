package integration

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/newplayman/sbe-data-bridge/internal/metrics"
)

// errRotate 连接到达存活上限，主动重连（不计入重连次数）
var errRotate = errors.New("reconnect deadline reached")

// run 订阅主循环。首次连接与断线重连走同一路径：失败后最多重试
// MaxReconnectAttempts 次，每次间隔 ReconnectBackoff；成功建立连接后计数清零。
// 超出次数后任务退出并删除自己的条目，不会自动恢复。
func (c *Connector) run(sub *subscription) {
	defer close(sub.done)
	defer c.remove(sub)

	kind := sub.kind.String()
	logger := log.With().Str("exchange", c.name).Str("symbol", sub.symbol).Str("kind", kind).Logger()

	attempts := 0
	var firstFailure time.Time
	for {
		connected, err := c.consume(sub)
		if sub.ctx.Err() != nil {
			metrics.RecordStreamEnded(c.name, kind, "stopped")
			return
		}
		if connected {
			attempts = 0
			firstFailure = time.Time{}
		}
		if errors.Is(err, errRotate) {
			logger.Info().Msg("连接到达存活上限，主动重连")
			continue
		}
		if firstFailure.IsZero() {
			firstFailure = time.Now()
		}
		if attempts >= c.cfg.MaxReconnectAttempts {
			logger.Error().Err(err).Int("attempts", attempts).Msg("重连次数耗尽，订阅结束")
			metrics.RecordStreamEnded(c.name, kind, "exhausted")
			return
		}
		if c.cfg.GiveUpAfter > 0 && time.Since(firstFailure) >= c.cfg.GiveUpAfter {
			logger.Error().Err(err).Dur("elapsed", time.Since(firstFailure)).Msg("重连超过总时限，订阅结束")
			metrics.RecordStreamEnded(c.name, kind, "exhausted")
			return
		}
		attempts++
		metrics.RecordReconnect(c.name, kind)
		logger.Warn().Err(err).Int("attempt", attempts).Dur("backoff", c.cfg.ReconnectBackoff).Msg("连接断开，等待重连")

		select {
		case <-sub.ctx.Done():
			metrics.RecordStreamEnded(c.name, kind, "stopped")
			return
		case <-time.After(c.cfg.ReconnectBackoff):
		}
	}
}

// consume 建立一次连接并读取直到出错。connected 表示连接曾成功建立。
func (c *Connector) consume(sub *subscription) (connected bool, err error) {
	stream, err := c.dialer.Dial(sub.ctx, sub.url)
	if err != nil {
		return false, err
	}

	// 取消或到达存活上限时关闭连接，阻塞中的读取随之返回
	var rotated atomic.Bool
	stopClose := context.AfterFunc(sub.ctx, func() { _ = stream.Close() })
	deadline := time.AfterFunc(c.cfg.ReconnectDeadline, func() {
		rotated.Store(true)
		_ = stream.Close()
	})
	defer func() {
		deadline.Stop()
		stopClose()
		_ = stream.Close()
	}()

	for {
		raw, err := stream.ReadMessage()
		if err != nil {
			if rotated.Load() {
				return true, errRotate
			}
			return true, err
		}
		if sub.ctx.Err() != nil {
			return true, sub.ctx.Err()
		}
		c.dispatch(sub, raw)
	}
}

func (c *Connector) dispatch(sub *subscription, raw []byte) {
	kind := sub.kind.String()
	metrics.RecordWSMessage(c.name, kind, len(raw))

	if sub.kind == OHLCVKind {
		bar, ok, err := c.exchange.ParseKline(raw)
		if err != nil {
			metrics.RecordParseError(c.name, kind)
			log.Debug().Err(err).Str("symbol", sub.symbol).Msg("K线解析失败")
			return
		}
		if !ok {
			metrics.RecordCandleDiscarded(c.name)
			return
		}
		metrics.RecordBar(c.name, kind)
		if sub.onOHLCV != nil {
			sub.onOHLCV(bar)
		}
		return
	}

	bar, ok, err := c.exchange.ParseTrade(raw)
	if err != nil {
		metrics.RecordParseError(c.name, kind)
		log.Debug().Err(err).Str("symbol", sub.symbol).Msg("成交解析失败")
		return
	}
	if !ok {
		return
	}
	metrics.RecordBar(c.name, kind)
	if sub.onTrade != nil {
		sub.onTrade(bar)
	}
}
