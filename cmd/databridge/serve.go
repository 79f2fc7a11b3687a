package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	gateway "github.com/newplayman/sbe-data-bridge/internal/exchange"
	"github.com/newplayman/sbe-data-bridge/internal/integration"
	"github.com/newplayman/sbe-data-bridge/internal/metrics"
	"github.com/newplayman/sbe-data-bridge/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动数据服务",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	exchangeID := cfg.ExchangeID()

	// 单实例锁：同一交易所只允许一个进程
	lockFile := fmt.Sprintf("/tmp/databridge_%s.lock", exchangeID)
	lock, err := os.OpenFile(lockFile, os.O_CREATE|os.O_RDWR, 0o666)
	if err != nil {
		return fmt.Errorf("创建锁文件失败: %w", err)
	}
	if err := syscall.Flock(int(lock.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		lock.Close()
		return fmt.Errorf("已有一个 %s 数据服务在运行", exchangeID)
	}
	defer func() {
		_ = syscall.Flock(int(lock.Fd()), syscall.LOCK_UN)
		lock.Close()
		os.Remove(lockFile)
	}()

	log.Info().
		Str("exchange", exchangeID.String()).
		Str("bus", cfg.Bus.Driver).
		Msg("数据服务启动中...")

	ex, err := gateway.NewBinance(exchangeID, cfg.ClientConfig())
	if err != nil {
		return fmt.Errorf("初始化交易所失败: %w", err)
	}
	ep := ex.Endpoints()
	log.Info().Str("rest", ep.RestURL).Str("ws", ep.WSURL).Bool("testnet", ep.Testnet).Msg("Binance 端点")

	eb, err := openBus(cfg)
	if err != nil {
		return fmt.Errorf("连接事件总线失败: %w", err)
	}
	defer eb.Close()

	connector := integration.NewConnector(ex, gateway.NewWSDialer(cfg.WSConfig()), cfg.IntegrationConfig())
	svc := service.New(service.Config{
		Channels:    cfg.Channels(),
		MinClientID: cfg.MinClientID(),
	}, eb, connector)

	srv, err := metrics.StartServer(cfg.Global.Host, cfg.Global.Port, cfg.Global.Debug)
	if err != nil {
		log.Error().Err(err).Msg("启动监控服务器失败")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 预热交易对缓存，失败不影响启动
	if syms, err := connector.GetSymbols(ctx); err != nil {
		log.Warn().Err(err).Msg("拉取交易对列表失败")
	} else {
		log.Info().Int("symbols", len(syms)).Msg("交易对列表已加载")
	}

	runErr := svc.Run(ctx)
	log.Info().Msg("收到退出信号，正在关闭...")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("关闭监控服务器失败")
		}
	}
	log.Info().Msg("数据服务已关闭")
	return runErr
}
