package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// 订阅指标
	ActiveStreams = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "databridge_active_streams",
			Help: "当前活跃的行情订阅数",
		},
		[]string{"exchange", "kind"},
	)

	StreamReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "databridge_stream_reconnects_total",
			Help: "行情连接重连次数",
		},
		[]string{"exchange", "kind"},
	)

	StreamsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "databridge_streams_ended_total",
			Help: "行情订阅结束次数（stopped/exhausted）",
		},
		[]string{"exchange", "kind", "reason"},
	)

	// 数据指标
	BarsForwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "databridge_bars_forwarded_total",
			Help: "转发的成交/K线数量",
		},
		[]string{"exchange", "kind"},
	)

	CandlesDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "databridge_candles_discarded_total",
			Help: "丢弃的未收盘K线推送",
		},
		[]string{"exchange"},
	)

	ParseErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "databridge_parse_errors_total",
			Help: "交易所消息解析失败次数",
		},
		[]string{"exchange", "kind"},
	)

	WSBytesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "databridge_ws_bytes_received_total",
			Help: "WebSocket接收字节数",
		},
		[]string{"exchange", "kind"},
	)

	// 交易对缓存
	SymbolFetch = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "databridge_symbol_fetch_duration_seconds",
			Help:    "交易对列表拉取耗时",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"exchange", "status"},
	)

	// 控制通道
	ControlMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "databridge_control_messages_total",
			Help: "收到的控制消息",
		},
		[]string{"type"},
	)

	ErrorsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "databridge_errors_published_total",
			Help: "发布的 ClientError/DataError",
		},
		[]string{"message", "error"},
	)

	LoggedInClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "databridge_logged_in_clients",
			Help: "已登录客户端数",
		},
	)

	// 总线
	BusPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "databridge_bus_published_total",
			Help: "总线发布次数",
		},
		[]string{"channel", "status"},
	)

	BusDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "databridge_bus_dropped_total",
			Help: "订阅者处理过慢而丢弃的消息",
		},
		[]string{"channel"},
	)
)

func init() {
	prometheus.MustRegister(
		ActiveStreams,
		StreamReconnects,
		StreamsEnded,
		BarsForwarded,
		CandlesDiscarded,
		ParseErrors,
		WSBytesReceived,
		SymbolFetch,
		ControlMessages,
		ErrorsPublished,
		LoggedInClients,
		BusPublished,
		BusDropped,
	)
}

// UpdateActiveStreams 更新活跃订阅数
func UpdateActiveStreams(exchange, kind string, n int) {
	ActiveStreams.WithLabelValues(exchange, kind).Set(float64(n))
}

// RecordReconnect 记录一次重连
func RecordReconnect(exchange, kind string) {
	StreamReconnects.WithLabelValues(exchange, kind).Inc()
}

// RecordStreamEnded 记录订阅结束
func RecordStreamEnded(exchange, kind, reason string) {
	StreamsEnded.WithLabelValues(exchange, kind, reason).Inc()
}

// RecordWSMessage 记录一条交易所推送
func RecordWSMessage(exchange, kind string, bytes int) {
	WSBytesReceived.WithLabelValues(exchange, kind).Add(float64(bytes))
}

// RecordBar 记录一条转发的数据
func RecordBar(exchange, kind string) {
	BarsForwarded.WithLabelValues(exchange, kind).Inc()
}

// RecordCandleDiscarded 未收盘K线
func RecordCandleDiscarded(exchange string) {
	CandlesDiscarded.WithLabelValues(exchange).Inc()
}

// RecordParseError 记录解析失败
func RecordParseError(exchange, kind string) {
	ParseErrors.WithLabelValues(exchange, kind).Inc()
}

// RecordSymbolFetch 记录交易对拉取
func RecordSymbolFetch(exchange string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	SymbolFetch.WithLabelValues(exchange, status).Observe(d.Seconds())
}

// RecordControlMessage 记录控制消息
func RecordControlMessage(msgType string) {
	ControlMessages.WithLabelValues(msgType).Inc()
}

// RecordErrorPublished 记录发布的错误消息
func RecordErrorPublished(message, errType string) {
	ErrorsPublished.WithLabelValues(message, errType).Inc()
}

// UpdateLoggedInClients 更新已登录客户端数
func UpdateLoggedInClients(n int) {
	LoggedInClients.Set(float64(n))
}

// RecordPublish 记录总线发布结果
func RecordPublish(channel string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	BusPublished.WithLabelValues(channel, status).Inc()
}

// RecordDropped 记录丢弃的总线消息
func RecordDropped(channel string) {
	BusDropped.WithLabelValues(channel).Inc()
}
