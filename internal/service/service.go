// Package service 处理控制通道上的客户端请求：登录/登出、订阅/取消订阅，
// 并把行情转发到数据通道、把错误发布到错误通道。
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/newplayman/sbe-data-bridge/internal/bus"
	"github.com/newplayman/sbe-data-bridge/internal/integration"
	"github.com/newplayman/sbe-data-bridge/internal/metrics"
	"github.com/newplayman/sbe-data-bridge/internal/sbe"
	"github.com/newplayman/sbe-data-bridge/internal/session"
)

// Config 服务参数
type Config struct {
	Channels    bus.Channels
	MinClientID sbe.ClientID
}

// Service 单个交易所的数据服务
type Service struct {
	cfg        Config
	bus        bus.EventBus
	sessions   *session.Table
	connector  *integration.Connector
	exchangeID sbe.ExchangeID
	dataChan   string

	// 控制消息串行处理
	mu       sync.Mutex
	stopOnce sync.Once
}

// New 创建服务；交易所由 connector 决定
func New(cfg Config, eb bus.EventBus, connector *integration.Connector) *Service {
	if cfg.Channels == (bus.Channels{}) {
		cfg.Channels = bus.DefaultChannels()
	}
	id := connector.ExchangeID()
	return &Service{
		cfg:        cfg,
		bus:        eb,
		sessions:   session.NewTable(cfg.MinClientID),
		connector:  connector,
		exchangeID: id,
		dataChan:   cfg.Channels.Data(id.String()),
	}
}

// Sessions 会话表
func (s *Service) Sessions() *session.Table { return s.sessions }

// DataChannel 行情发布的通道名
func (s *Service) DataChannel() string { return s.dataChan }

// Run 订阅控制通道并逐条处理，直到 ctx 结束
func (s *Service) Run(ctx context.Context) error {
	sub, err := s.bus.Subscribe(ctx, s.cfg.Channels.Control)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.cfg.Channels.Control, err)
	}
	defer sub.Close()
	defer s.Stop()

	log.Info().
		Str("exchange", s.exchangeID.String()).
		Str("control", s.cfg.Channels.Control).
		Str("data", s.dataChan).
		Msg("服务已启动")

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-sub.C():
			if !ok {
				log.Warn().Msg("控制通道已关闭")
				return nil
			}
			s.Dispatch(ctx, raw)
		}
	}
}

// Stop 停止全部订阅并清空会话，可重复调用
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.connector.Shutdown()
		s.sessions.Clear()
		metrics.UpdateLoggedInClients(0)
		log.Info().Str("exchange", s.exchangeID.String()).Msg("服务已停止")
	})
}

// Dispatch 处理一条控制消息。失败的请求恰好产生一条错误消息，成功时不回复。
func (s *Service) Dispatch(ctx context.Context, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, wire, err := sbe.PeekMessageType(raw)
	if err != nil {
		log.Warn().Err(err).Int("len", len(raw)).Msg("无法读取消息头，丢弃")
		return
	}
	metrics.RecordControlMessage(t.String())

	switch t {
	case sbe.ClientLoginMsg, sbe.ClientLogoutMsg, sbe.StartDataMsg, sbe.StopDataMsg, sbe.StopAllDataMsg:
	case sbe.UnknownMessageType:
		log.Warn().Uint16("template_id", wire).Msg("未知消息类型，忽略")
		return
	default:
		log.Debug().Str("type", t.String()).Msg("控制通道上的非请求消息，忽略")
		return
	}

	msg, err := sbe.Decode(raw)
	if err != nil {
		s.malformed(ctx, t, raw, err)
		return
	}

	switch m := msg.(type) {
	case sbe.ClientLogin:
		s.handleLogin(ctx, m)
	case sbe.ClientLogout:
		s.handleLogout(ctx, m)
	case sbe.StartData:
		s.handleStart(ctx, m)
	case sbe.StopData:
		s.handleStop(ctx, m)
	case sbe.StopAllData:
		s.handleStopAll(ctx, m)
	}
}

func (s *Service) malformed(ctx context.Context, t sbe.MessageType, raw []byte, err error) {
	id, ok := sbe.PeekClientID(raw)
	if !ok {
		log.Warn().Err(err).Str("type", t.String()).Msg("消息无法解码且没有 client_id，丢弃")
		return
	}
	log.Warn().Err(err).Str("type", t.String()).Uint16("client_id", uint16(id)).Msg("消息无法解码")
	s.clientError(ctx, id, sbe.ClientMalformedRequest)
}

func (s *Service) handleLogin(ctx context.Context, m sbe.ClientLogin) {
	sess, err := s.sessions.Login(m.ClientID)
	if err != nil {
		s.sessionError(ctx, m.ClientID, err, sbe.ClientLogInError)
		return
	}
	metrics.UpdateLoggedInClients(s.sessions.Count())
	log.Info().
		Uint16("client_id", uint16(m.ClientID)).
		Str("session_id", sess.SessionID.String()).
		Msg("客户端已登录")
}

func (s *Service) handleLogout(ctx context.Context, m sbe.ClientLogout) {
	sess, _ := s.sessions.Get(m.ClientID)
	subs, err := s.sessions.Logout(m.ClientID)
	if err != nil {
		s.sessionError(ctx, m.ClientID, err, sbe.ClientLogOutError)
		return
	}
	metrics.UpdateLoggedInClients(s.sessions.Count())
	// 登出后该客户端已不在会话表中，HeldByOthers 只看其余客户端
	for _, sub := range subs {
		if s.sessions.HeldByOthers(m.ClientID, sub) {
			continue
		}
		if err := s.stopStream(sub); err != nil {
			log.Warn().Err(err).Str("symbol", sub.Symbol).Str("kind", sub.DataType.String()).Msg("登出时停止订阅失败")
		}
	}
	log.Info().
		Uint16("client_id", uint16(m.ClientID)).
		Str("session_id", sess.SessionID.String()).
		Dur("session", time.Since(sess.LoggedInAt)).
		Int("subscriptions", len(subs)).
		Msg("客户端已登出")
}

func (s *Service) handleStart(ctx context.Context, m sbe.StartData) {
	if errType, ok := s.checkRequest(m.ClientID, m.ExchangeID, m.DataType); !ok {
		s.dataError(ctx, m.ClientID, errType)
		return
	}
	if m.DataType == sbe.OHLCVData && !m.TimeResolution.Known() {
		s.dataError(ctx, m.ClientID, sbe.DataTimeResolutionNotKnown)
		return
	}

	symbols := []string{m.Symbol}
	var err error
	if m.DataType == sbe.TradeData {
		err = s.connector.StartTrade(ctx, symbols, s.onTrade)
	} else {
		err = s.connector.StartOHLCV(ctx, symbols, m.TimeResolution, s.onOHLCV)
	}
	if err != nil {
		var invalid *integration.InvalidSymbolsError
		if errors.As(err, &invalid) {
			s.dataError(ctx, m.ClientID, sbe.DataUnavailable)
			return
		}
		var conflict *integration.ResolutionConflictError
		if errors.As(err, &conflict) {
			log.Warn().
				Uint16("client_id", uint16(m.ClientID)).
				Str("symbol", conflict.Symbol).
				Str("active", conflict.Active.String()).
				Str("requested", conflict.Requested.String()).
				Msg("K线已按其他周期订阅")
			s.dataError(ctx, m.ClientID, sbe.DataUnavailable)
			return
		}
		log.Error().Err(err).Str("symbol", m.Symbol).Msg("启动订阅失败")
		s.dataError(ctx, m.ClientID, sbe.DataStartError)
		return
	}

	sub := session.Subscription{Symbol: m.Symbol, DataType: m.DataType}
	if err := s.sessions.AddSubscription(m.ClientID, sub); err != nil {
		s.dataError(ctx, m.ClientID, sbe.DataClientNotLoggedIn)
		return
	}
	log.Info().
		Uint16("client_id", uint16(m.ClientID)).
		Str("symbol", m.Symbol).
		Str("kind", m.DataType.String()).
		Str("resolution", m.TimeResolution.String()).
		Msg("订阅成功")
}

func (s *Service) handleStop(ctx context.Context, m sbe.StopData) {
	if errType, ok := s.checkRequest(m.ClientID, m.ExchangeID, m.DataType); !ok {
		s.dataError(ctx, m.ClientID, errType)
		return
	}

	sub := session.Subscription{Symbol: m.Symbol, DataType: m.DataType}
	if !s.sessions.RemoveSubscription(m.ClientID, sub) {
		s.dataError(ctx, m.ClientID, sbe.DataStopError)
		return
	}
	if s.sessions.HeldByOthers(m.ClientID, sub) {
		log.Info().Uint16("client_id", uint16(m.ClientID)).Str("symbol", m.Symbol).Msg("其他客户端仍持有订阅，保留行情流")
		return
	}
	if err := s.stopStream(sub); err != nil {
		log.Error().Err(err).Str("symbol", m.Symbol).Msg("停止订阅失败")
		s.dataError(ctx, m.ClientID, sbe.DataStopError)
		return
	}
	log.Info().Uint16("client_id", uint16(m.ClientID)).Str("symbol", m.Symbol).Str("kind", m.DataType.String()).Msg("订阅已取消")
}

func (s *Service) handleStopAll(ctx context.Context, m sbe.StopAllData) {
	if m.ExchangeID != s.exchangeID {
		s.dataError(ctx, m.ClientID, sbe.DataWrongExchange)
		return
	}
	if !s.sessions.IsLoggedIn(m.ClientID) {
		s.dataError(ctx, m.ClientID, sbe.DataClientNotLoggedIn)
		return
	}

	var failed bool
	for _, sub := range s.sessions.Subscriptions(m.ClientID) {
		s.sessions.RemoveSubscription(m.ClientID, sub)
		if s.sessions.HeldByOthers(m.ClientID, sub) {
			continue
		}
		if err := s.stopStream(sub); err != nil {
			log.Error().Err(err).Str("symbol", sub.Symbol).Msg("停止订阅失败")
			failed = true
		}
	}
	if failed {
		s.dataError(ctx, m.ClientID, sbe.DataStopAllError)
		return
	}
	log.Info().Uint16("client_id", uint16(m.ClientID)).Msg("客户端全部订阅已取消")
}

// checkRequest 依次检查交易所、登录状态、数据类型
func (s *Service) checkRequest(id sbe.ClientID, ex sbe.ExchangeID, dt sbe.DataType) (sbe.DataErrorType, bool) {
	if ex != s.exchangeID {
		return sbe.DataWrongExchange, false
	}
	if !s.sessions.IsLoggedIn(id) {
		return sbe.DataClientNotLoggedIn, false
	}
	if !dt.Known() {
		return sbe.DataTypeNotKnown, false
	}
	return 0, true
}

// stopStream 行情流已自行结束（重连次数耗尽）不算失败
func (s *Service) stopStream(sub session.Subscription) error {
	var err error
	if sub.DataType == sbe.TradeData {
		err = s.connector.StopTrade([]string{sub.Symbol})
	} else {
		err = s.connector.StopOHLCV([]string{sub.Symbol})
	}
	var notSub *integration.NotSubscribedError
	if errors.As(err, &notSub) {
		log.Debug().Str("symbol", sub.Symbol).Str("kind", sub.DataType.String()).Msg("行情流已结束")
		return nil
	}
	return err
}
