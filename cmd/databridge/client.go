package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/newplayman/sbe-data-bridge/internal/sbe"
)

var (
	clientID   uint16
	symbol     string
	dataType   string
	resolution string
	exchange   string
)

var sendCmd = &cobra.Command{
	Use:       "send <login|logout|start|stop|stopall>",
	Short:     "向控制通道发送一条请求",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"login", "logout", "start", "stop", "stopall"},
	RunE:      runSend,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "打印数据通道与错误通道上的消息",
	RunE:  runWatch,
}

func init() {
	sendCmd.Flags().Uint16Var(&clientID, "client", 100, "client_id")
	sendCmd.Flags().StringVar(&symbol, "symbol", "", "交易对，如 BTCUSDT")
	sendCmd.Flags().StringVar(&dataType, "type", "trade", "数据类型 (trade, ohlcv)")
	sendCmd.Flags().StringVar(&resolution, "resolution", "1m", "K线周期 (1m, 5m, 1h, 1d ...)")
	sendCmd.Flags().StringVar(&exchange, "exchange", "", "交易所，默认取配置中的 exchange.name")
	rootCmd.AddCommand(sendCmd, watchCmd)
}

func buildRequest(action string, ex sbe.ExchangeID) (sbe.Message, error) {
	id := sbe.ClientID(clientID)
	dt := sbe.TradeData
	switch strings.ToLower(dataType) {
	case "trade":
	case "ohlcv":
		dt = sbe.OHLCVData
	default:
		return nil, fmt.Errorf("unknown data type %q", dataType)
	}

	switch action {
	case "login":
		return sbe.ClientLogin{ClientID: id}, nil
	case "logout":
		return sbe.ClientLogout{ClientID: id}, nil
	case "start":
		res := sbe.NoTimeResolution
		if dt == sbe.OHLCVData {
			r, err := sbe.ParseTimeResolution(resolution)
			if err != nil {
				return nil, err
			}
			res = r
		}
		return sbe.StartData{ClientID: id, ExchangeID: ex, Symbol: symbol, TimeResolution: res, DataType: dt}, nil
	case "stop":
		return sbe.StopData{ClientID: id, ExchangeID: ex, Symbol: symbol, DataType: dt}, nil
	case "stopall":
		return sbe.StopAllData{ClientID: id, ExchangeID: ex}, nil
	}
	return nil, fmt.Errorf("unknown action %q", action)
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Bus.Driver == "memory" {
		return fmt.Errorf("send 需要跨进程总线，当前 bus.driver=memory")
	}
	ex := cfg.ExchangeID()
	if exchange != "" {
		if ex, err = sbe.ParseExchangeID(exchange); err != nil {
			return err
		}
	}

	msg, err := buildRequest(args[0], ex)
	if err != nil {
		return err
	}
	buf, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("编码请求失败: %w", err)
	}

	eb, err := openBus(cfg)
	if err != nil {
		return err
	}
	defer eb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := eb.Publish(ctx, cfg.Channels().Control, buf); err != nil {
		return err
	}
	log.Info().Str("type", msg.Type().String()).Uint16("client_id", clientID).Msg("请求已发送")
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Bus.Driver == "memory" {
		return fmt.Errorf("watch 需要跨进程总线，当前 bus.driver=memory")
	}
	eb, err := openBus(cfg)
	if err != nil {
		return err
	}
	defer eb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	channels := cfg.Channels()
	dataSub, err := eb.Subscribe(ctx, channels.Data(cfg.ExchangeID().String()))
	if err != nil {
		return err
	}
	errSub, err := eb.Subscribe(ctx, channels.Error)
	if err != nil {
		return err
	}
	log.Info().Str("data", channels.Data(cfg.ExchangeID().String())).Str("error", channels.Error).Msg("开始监听")

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-dataSub.C():
			if !ok {
				return nil
			}
			printMessage(raw)
		case raw, ok := <-errSub.C():
			if !ok {
				return nil
			}
			printMessage(raw)
		}
	}
}

func printMessage(raw []byte) {
	msg, err := sbe.Decode(raw)
	if err != nil {
		log.Warn().Err(err).Int("len", len(raw)).Msg("无法解码")
		return
	}
	switch m := msg.(type) {
	case sbe.TradeBar:
		log.Info().Str("symbol", m.Symbol).Time("time", m.Time()).
			Str("price", m.Price.String()).Str("volume", m.Volume.String()).Msg("trade")
	case sbe.OHLCVBar:
		log.Info().Str("symbol", m.Symbol).Time("time", m.Time()).
			Str("open", m.Open.String()).Str("high", m.High.String()).
			Str("low", m.Low.String()).Str("close", m.Close.String()).
			Str("volume", m.Volume.String()).Msg("ohlcv")
	case sbe.ClientError:
		log.Warn().Uint16("client_id", uint16(m.ClientID)).Str("error", m.ErrorType.String()).Msg("client error")
	case sbe.DataError:
		log.Warn().Uint16("client_id", uint16(m.ClientID)).Str("error", m.ErrorType.String()).Msg("data error")
	default:
		log.Debug().Str("type", msg.Type().String()).Msg("忽略")
	}
}
