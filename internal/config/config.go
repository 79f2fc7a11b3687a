package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/newplayman/sbe-data-bridge/internal/bus"
	gateway "github.com/newplayman/sbe-data-bridge/internal/exchange"
	"github.com/newplayman/sbe-data-bridge/internal/integration"
	"github.com/newplayman/sbe-data-bridge/internal/sbe"
	"github.com/newplayman/sbe-data-bridge/internal/session"
)

// Config 数据服务配置
type Config struct {
	Global   GlobalConfig   `mapstructure:"global"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Bus      BusConfig      `mapstructure:"bus"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Symbols  SymbolsConfig  `mapstructure:"symbols"`
	Session  SessionConfig  `mapstructure:"session"`
}

// GlobalConfig 全局配置
type GlobalConfig struct {
	LogLevel string `mapstructure:"log_level"` // 日志级别（支持热重载）
	Host     string `mapstructure:"host"`      // health/metrics 监听地址
	Port     int    `mapstructure:"port"`      // health/metrics 端口
	Debug    bool   `mapstructure:"debug"`     // gin debug 模式
}

// ExchangeConfig 接入的交易所
type ExchangeConfig struct {
	Name    string `mapstructure:"name"`     // binance_spot / binance_usdm_futures ...
	RestURL string `mapstructure:"rest_url"` // 覆盖默认 REST 端点
	WSURL   string `mapstructure:"ws_url"`   // 覆盖默认 WS 端点
}

// BusConfig 事件总线
type BusConfig struct {
	Driver     string         `mapstructure:"driver"` // nats | memory
	URL        string         `mapstructure:"url"`
	ClientName string         `mapstructure:"client_name"`
	Buffer     int            `mapstructure:"buffer"` // 每个订阅的缓冲条数
	Channels   ChannelsConfig `mapstructure:"channels"`
}

// ChannelsConfig 通道名
type ChannelsConfig struct {
	Control    string `mapstructure:"control"`
	Error      string `mapstructure:"error"`
	DataPrefix string `mapstructure:"data_prefix"`
}

// StreamConfig 行情流
type StreamConfig struct {
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	ReconnectBackoff     time.Duration `mapstructure:"reconnect_backoff"`
	ReconnectDeadline    time.Duration `mapstructure:"reconnect_deadline"` // 连接存活上限
	GiveUpAfter          time.Duration `mapstructure:"give_up_after"`      // 0 = 不限
	HandshakeTimeout     time.Duration `mapstructure:"handshake_timeout"`
	PingInterval         time.Duration `mapstructure:"ping_interval"`
	ReadTimeout          time.Duration `mapstructure:"read_timeout"`
}

// SymbolsConfig 交易对列表拉取
type SymbolsConfig struct {
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	RestTimeout time.Duration `mapstructure:"rest_timeout"`
	RateLimit   float64       `mapstructure:"rate_limit"` // 每秒请求数
	Burst       int           `mapstructure:"burst"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// SessionConfig 会话
type SessionConfig struct {
	MinClientID int `mapstructure:"min_client_id"`
}

var (
	mu           sync.RWMutex
	globalConfig *Config
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", "info")
	v.SetDefault("global.host", "0.0.0.0")
	v.SetDefault("global.port", 8080)

	v.SetDefault("exchange.name", sbe.BinanceSpot.String())

	v.SetDefault("bus.driver", "nats")
	v.SetDefault("bus.url", "nats://127.0.0.1:4222")
	v.SetDefault("bus.client_name", "sbe-data-bridge")
	v.SetDefault("bus.buffer", bus.DefaultBuffer)
	def := bus.DefaultChannels()
	v.SetDefault("bus.channels.control", def.Control)
	v.SetDefault("bus.channels.error", def.Error)
	v.SetDefault("bus.channels.data_prefix", def.DataPrefix)

	ic := integration.DefaultConfig()
	v.SetDefault("stream.max_reconnect_attempts", ic.MaxReconnectAttempts)
	v.SetDefault("stream.reconnect_backoff", ic.ReconnectBackoff)
	v.SetDefault("stream.reconnect_deadline", ic.ReconnectDeadline)
	v.SetDefault("stream.give_up_after", ic.GiveUpAfter)
	ws := gateway.DefaultWSConfig()
	v.SetDefault("stream.handshake_timeout", ws.HandshakeTimeout)
	v.SetDefault("stream.ping_interval", ws.PingInterval)
	v.SetDefault("stream.read_timeout", ws.PongWait)

	v.SetDefault("symbols.cache_ttl", ic.SymbolCacheTTL)
	v.SetDefault("symbols.rest_timeout", 10*time.Second)
	v.SetDefault("symbols.rate_limit", 2.0)
	v.SetDefault("symbols.burst", 1)
	v.SetDefault("symbols.max_retries", gateway.DefaultRetryConfig().MaxRetries)

	v.SetDefault("session.min_client_id", int(session.DefaultMinClientID))
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("DATABRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("global.host", "HOST")
	_ = v.BindEnv("global.port", "PORT")
	_ = v.BindEnv("bus.url", "NATS_URL")
	return v
}

// LoadConfig 读取配置文件（path 为空时只使用默认值和环境变量），
// 并监听文件变化热重载日志级别。
func LoadConfig(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	globalConfig = cfg
	mu.Unlock()

	if path != "" {
		watchConfig(v)
		log.Info().Str("path", path).Msg("配置加载成功")
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return &cfg, nil
}

// GetConfig 当前生效的配置
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

func validateConfig(cfg *Config) error {
	if _, err := zerolog.ParseLevel(cfg.Global.LogLevel); err != nil {
		return fmt.Errorf("log_level 无效: %q", cfg.Global.LogLevel)
	}
	if cfg.Global.Port < 0 || cfg.Global.Port > 65535 {
		return fmt.Errorf("port 必须在 0-65535 之间")
	}

	if _, err := sbe.ParseExchangeID(cfg.Exchange.Name); err != nil {
		return fmt.Errorf("exchange.name: %w", err)
	}

	switch cfg.Bus.Driver {
	case "nats":
		if cfg.Bus.URL == "" {
			return fmt.Errorf("bus.url 不能为空")
		}
	case "memory":
	default:
		return fmt.Errorf("bus.driver 必须是 nats 或 memory，当前 %q", cfg.Bus.Driver)
	}
	if err := cfg.Channels().Validate(); err != nil {
		return err
	}

	if cfg.Stream.MaxReconnectAttempts < 0 {
		return fmt.Errorf("stream.max_reconnect_attempts 必须 >= 0")
	}
	if cfg.Stream.ReconnectBackoff <= 0 {
		return fmt.Errorf("stream.reconnect_backoff 必须 > 0")
	}
	if cfg.Stream.ReconnectDeadline <= 0 {
		return fmt.Errorf("stream.reconnect_deadline 必须 > 0")
	}
	if cfg.Stream.GiveUpAfter < 0 {
		return fmt.Errorf("stream.give_up_after 必须 >= 0")
	}

	if cfg.Symbols.CacheTTL <= 0 {
		return fmt.Errorf("symbols.cache_ttl 必须 > 0")
	}
	if cfg.Symbols.RateLimit < 0 {
		return fmt.Errorf("symbols.rate_limit 必须 >= 0")
	}
	if cfg.Symbols.MaxRetries < 0 {
		return fmt.Errorf("symbols.max_retries 必须 >= 0")
	}

	if cfg.Session.MinClientID < 1 || cfg.Session.MinClientID >= int(sbe.NullClientID) {
		return fmt.Errorf("session.min_client_id 必须在 [1, %d) 之间", sbe.NullClientID)
	}
	return nil
}

// ApplyLogLevel 设置 zerolog 全局日志级别
func ApplyLogLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// watchConfig 只有日志级别支持热重载，其余字段需要重启
func watchConfig(v *viper.Viper) {
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Str("file", e.Name).Msg("检测到配置文件变化，正在重载...")
		reload(v)
	})
	v.WatchConfig()
}

func reload(v *viper.Viper) {
	newCfg, err := decode(v)
	if err != nil {
		log.Error().Err(err).Msg("新配置验证失败，保持旧配置")
		return
	}

	mu.Lock()
	old := globalConfig
	globalConfig = newCfg
	mu.Unlock()

	if old == nil || old.Global.LogLevel != newCfg.Global.LogLevel {
		if err := ApplyLogLevel(newCfg.Global.LogLevel); err == nil {
			log.Info().Str("level", newCfg.Global.LogLevel).Msg("日志级别已更新")
		}
	}
	log.Info().Msg("配置热重载成功")
}

// ExchangeID 配置的交易所
func (c *Config) ExchangeID() sbe.ExchangeID {
	id, _ := sbe.ParseExchangeID(c.Exchange.Name)
	return id
}

// Channels 总线通道名
func (c *Config) Channels() bus.Channels {
	return bus.Channels{
		Control:    c.Bus.Channels.Control,
		Error:      c.Bus.Channels.Error,
		DataPrefix: c.Bus.Channels.DataPrefix,
	}
}

// NATSConfig NATS 连接参数
func (c *Config) NATSConfig() bus.NATSConfig {
	return bus.NATSConfig{
		URL:        c.Bus.URL,
		ClientName: c.Bus.ClientName,
		Buffer:     c.Bus.Buffer,
	}
}

// IntegrationConfig 订阅与缓存参数
func (c *Config) IntegrationConfig() integration.Config {
	return integration.Config{
		MaxReconnectAttempts: c.Stream.MaxReconnectAttempts,
		ReconnectBackoff:     c.Stream.ReconnectBackoff,
		ReconnectDeadline:    c.Stream.ReconnectDeadline,
		GiveUpAfter:          c.Stream.GiveUpAfter,
		SymbolCacheTTL:       c.Symbols.CacheTTL,
	}
}

// WSConfig ws 连接参数
func (c *Config) WSConfig() gateway.WSConfig {
	return gateway.WSConfig{
		HandshakeTimeout: c.Stream.HandshakeTimeout,
		PingInterval:     c.Stream.PingInterval,
		PongWait:         c.Stream.ReadTimeout,
	}
}

// ClientConfig Binance 接入参数
func (c *Config) ClientConfig() gateway.ClientConfig {
	retry := gateway.DefaultRetryConfig()
	retry.MaxRetries = c.Symbols.MaxRetries
	timeout := c.Symbols.RestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return gateway.ClientConfig{
		RestURL:   c.Exchange.RestURL,
		WSURL:     c.Exchange.WSURL,
		Timeout:   timeout,
		RateLimit: c.Symbols.RateLimit,
		Burst:     c.Symbols.Burst,
		Retry:     &retry,
	}
}

// MinClientID 会话最小 client_id
func (c *Config) MinClientID() sbe.ClientID {
	return sbe.ClientID(c.Session.MinClientID)
}
