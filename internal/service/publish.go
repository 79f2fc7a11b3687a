package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/newplayman/sbe-data-bridge/internal/metrics"
	"github.com/newplayman/sbe-data-bridge/internal/sbe"
	"github.com/newplayman/sbe-data-bridge/internal/session"
)

func (s *Service) onTrade(bar sbe.TradeBar) {
	s.publishBar(bar, bar.Symbol, sbe.TradeData)
}

func (s *Service) onOHLCV(bar sbe.OHLCVBar) {
	s.publishBar(bar, bar.Symbol, sbe.OHLCVData)
}

// publishBar 在行情流 goroutine 中调用。失败时通知所有持有该订阅的客户端。
func (s *Service) publishBar(msg sbe.Message, symbol string, dt sbe.DataType) {
	ctx := context.Background()
	buf, err := msg.Encode()
	if err != nil {
		log.Error().Err(err).Str("symbol", symbol).Str("kind", dt.String()).Msg("编码行情失败")
		s.notifyHolders(ctx, symbol, dt, sbe.DataEncodingError)
		return
	}
	if err := s.bus.Publish(ctx, s.dataChan, buf); err != nil {
		log.Error().Err(err).Str("symbol", symbol).Str("channel", s.dataChan).Msg("发布行情失败")
		s.notifyHolders(ctx, symbol, dt, sbe.DataSendError)
	}
}

func (s *Service) notifyHolders(ctx context.Context, symbol string, dt sbe.DataType, errType sbe.DataErrorType) {
	for _, id := range s.sessions.Holders(session.Subscription{Symbol: symbol, DataType: dt}) {
		s.dataError(ctx, id, errType)
	}
}

// sessionError 会话表返回的 ClientError 原样回复，其他错误回复 fallback
func (s *Service) sessionError(ctx context.Context, id sbe.ClientID, err error, fallback sbe.ClientErrorType) {
	var ce *session.ClientError
	if errors.As(err, &ce) {
		s.clientError(ctx, id, ce.Type)
		return
	}
	log.Error().Err(err).Uint16("client_id", uint16(id)).Msg("会话操作失败")
	s.clientError(ctx, id, fallback)
}

func (s *Service) clientError(ctx context.Context, id sbe.ClientID, errType sbe.ClientErrorType) {
	s.publishError(ctx, sbe.ClientError{ClientID: id, ErrorType: errType}, errType.String())
}

func (s *Service) dataError(ctx context.Context, id sbe.ClientID, errType sbe.DataErrorType) {
	s.publishError(ctx, sbe.DataError{ClientID: id, ErrorType: errType}, errType.String())
}

func (s *Service) publishError(ctx context.Context, msg sbe.Message, errType string) {
	buf, err := msg.Encode()
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type().String()).Msg("编码错误消息失败")
		return
	}
	if err := s.bus.Publish(ctx, s.cfg.Channels.Error, buf); err != nil {
		log.Error().Err(err).Str("channel", s.cfg.Channels.Error).Msg("发布错误消息失败")
		return
	}
	metrics.RecordErrorPublished(msg.Type().String(), errType)
	log.Debug().Str("type", msg.Type().String()).Str("error", errType).Msg("错误已发布")
}
