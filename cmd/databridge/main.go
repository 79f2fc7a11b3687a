package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/newplayman/sbe-data-bridge/internal/bus"
	"github.com/newplayman/sbe-data-bridge/internal/config"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "databridge",
	Short: "SBE 行情数据服务",
	Long: `databridge 在事件总线的控制通道上接收客户端的登录与订阅请求，
从 Binance 拉取成交/K线行情，编码为 SBE 二进制消息后发布到数据通道。`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "配置文件路径（为空时只使用默认值与环境变量）")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "", "日志级别 (debug, info, warn, error)，覆盖配置文件")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogger 设置日志
func setupLogger(level string) {
	// 设置日志格式为人类可读的格式
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})

	if level == "" {
		level = "info"
	}
	if err := config.ApplyLogLevel(level); err != nil {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// loadConfig 读取配置；--log 优先于配置文件中的 log_level
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel == "" {
		_ = config.ApplyLogLevel(cfg.Global.LogLevel)
	}
	return cfg, nil
}

// openBus 按配置创建事件总线
func openBus(cfg *config.Config) (bus.EventBus, error) {
	switch cfg.Bus.Driver {
	case "memory":
		return bus.NewMemoryBus(cfg.Bus.Buffer), nil
	case "nats":
		return bus.NewNATSBus(cfg.NATSConfig())
	}
	return nil, fmt.Errorf("unknown bus driver %q", cfg.Bus.Driver)
}
