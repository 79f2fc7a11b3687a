// Package sbe 实现数据接入客户端与服务之间的定长二进制协议（SBE 风格）。
// 所有整数均为小端序，每种消息的字节长度由其类型静态决定。
package sbe

import "fmt"

// MessageType 消息类型（u16，封闭集合）
type MessageType uint16

const (
	UnknownMessageType MessageType = 0

	ClientLoginMsg  MessageType = 101
	ClientLogoutMsg MessageType = 102

	StartDataMsg   MessageType = 201
	StopDataMsg    MessageType = 202
	StopAllDataMsg MessageType = 203
	OHLCVBarMsg    MessageType = 204
	TradeBarMsg    MessageType = 205

	// 下单相关消息只保留注册项，没有业务实现
	OrderCreateMsg    MessageType = 401
	OrderUpdateMsg    MessageType = 402
	OrderCancelMsg    MessageType = 403
	OrderCancelAllMsg MessageType = 404

	ClientErrorMsg MessageType = 801
	DataErrorMsg   MessageType = 802
)

var messageTypeNames = map[MessageType]string{
	UnknownMessageType: "UnknownMessageType",
	ClientLoginMsg:     "ClientLogin",
	ClientLogoutMsg:    "ClientLogout",
	StartDataMsg:       "StartData",
	StopDataMsg:        "StopData",
	StopAllDataMsg:     "StopAllData",
	OHLCVBarMsg:        "OHLCVBar",
	TradeBarMsg:        "TradeBar",
	OrderCreateMsg:     "OrderCreate",
	OrderUpdateMsg:     "OrderUpdate",
	OrderCancelMsg:     "OrderCancel",
	OrderCancelAllMsg:  "OrderCancelAll",
	ClientErrorMsg:     "ClientError",
	DataErrorMsg:       "DataError",
}

// MessageTypeFromWire 总函数：集合外的值一律映射为 UnknownMessageType，不会 panic。
func MessageTypeFromWire(v uint16) MessageType {
	t := MessageType(v)
	if _, ok := messageTypeNames[t]; ok {
		return t
	}
	return UnknownMessageType
}

// Wire 返回线上编码值
func (t MessageType) Wire() uint16 { return uint16(t) }

// Known 是否属于封闭集合（Unknown 本身不算）
func (t MessageType) Known() bool {
	_, ok := messageTypeNames[t]
	return ok && t != UnknownMessageType
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MessageType(%d)", uint16(t))
}

// ClientID 客户端编号，0xFFFF 为空值
type ClientID uint16

const NullClientID ClientID = 0xFFFF

// NullU8 所有 u8 枚举共用的"未知/无值"哨兵
const NullU8 uint8 = 0xFF

// ExchangeID 交易所接入标识
type ExchangeID uint8

const (
	BinanceSpot                     ExchangeID = 1
	BinanceSpotTestnet              ExchangeID = 2
	BinanceUsdMarginFutures         ExchangeID = 3
	BinanceUsdMarginFuturesTestnet  ExchangeID = 4
	BinanceCoinMarginFutures        ExchangeID = 5
	BinanceCoinMarginFuturesTestnet ExchangeID = 6

	NullExchangeID ExchangeID = ExchangeID(NullU8)
)

var exchangeNames = map[ExchangeID]string{
	BinanceSpot:                     "binance_spot",
	BinanceSpotTestnet:              "binance_spot_testnet",
	BinanceUsdMarginFutures:         "binance_usdm_futures",
	BinanceUsdMarginFuturesTestnet:  "binance_usdm_futures_testnet",
	BinanceCoinMarginFutures:        "binance_coinm_futures",
	BinanceCoinMarginFuturesTestnet: "binance_coinm_futures_testnet",
}

// ExchangeIDFromWire 未知值映射为 NullExchangeID
func ExchangeIDFromWire(v uint8) ExchangeID {
	id := ExchangeID(v)
	if _, ok := exchangeNames[id]; ok {
		return id
	}
	return NullExchangeID
}

// ParseExchangeID 根据配置名（如 binance_spot）查找交易所
func ParseExchangeID(name string) (ExchangeID, error) {
	for id, n := range exchangeNames {
		if n == name {
			return id, nil
		}
	}
	return NullExchangeID, fmt.Errorf("unknown exchange %q", name)
}

// ExchangeIDs 返回所有已知交易所（按编号排序）
func ExchangeIDs() []ExchangeID {
	return []ExchangeID{
		BinanceSpot,
		BinanceSpotTestnet,
		BinanceUsdMarginFutures,
		BinanceUsdMarginFuturesTestnet,
		BinanceCoinMarginFutures,
		BinanceCoinMarginFuturesTestnet,
	}
}

// Known 是否为已知交易所
func (e ExchangeID) Known() bool {
	_, ok := exchangeNames[e]
	return ok
}

func (e ExchangeID) String() string {
	if name, ok := exchangeNames[e]; ok {
		return name
	}
	return "unknown_exchange"
}

// DataType 订阅的数据类型
type DataType uint8

const (
	TradeData    DataType = 1
	OHLCVData    DataType = 2
	NullDataType DataType = DataType(NullU8)
)

// DataTypeFromWire 未知值映射为 NullDataType
func DataTypeFromWire(v uint8) DataType {
	switch DataType(v) {
	case TradeData, OHLCVData:
		return DataType(v)
	}
	return NullDataType
}

// Known 是否为已知数据类型
func (d DataType) Known() bool {
	return d == TradeData || d == OHLCVData
}

func (d DataType) String() string {
	switch d {
	case TradeData:
		return "trade"
	case OHLCVData:
		return "ohlcv"
	}
	return "unknown_data_type"
}

// ClientErrorType 会话级错误
type ClientErrorType uint8

const (
	ClientNotAuthorized    ClientErrorType = 1
	ClientAlreadyLoggedIn  ClientErrorType = 2
	ClientNotLoggedIn      ClientErrorType = 3
	ClientLogInError       ClientErrorType = 4
	ClientLogOutError      ClientErrorType = 5
	ClientShutdownError    ClientErrorType = 6
	ClientMalformedRequest ClientErrorType = 7
	UnknownClientError     ClientErrorType = ClientErrorType(NullU8)
)

var clientErrorNames = map[ClientErrorType]string{
	ClientNotAuthorized:    "ClientNotAuthorized",
	ClientAlreadyLoggedIn:  "ClientAlreadyLoggedIn",
	ClientNotLoggedIn:      "ClientNotLoggedIn",
	ClientLogInError:       "ClientLogInError",
	ClientLogOutError:      "ClientLogOutError",
	ClientShutdownError:    "ClientShutdownError",
	ClientMalformedRequest: "ClientMalformedRequest",
}

// ClientErrorTypeFromWire 未知值映射为 UnknownClientError
func ClientErrorTypeFromWire(v uint8) ClientErrorType {
	t := ClientErrorType(v)
	if _, ok := clientErrorNames[t]; ok {
		return t
	}
	return UnknownClientError
}

func (t ClientErrorType) String() string {
	if name, ok := clientErrorNames[t]; ok {
		return name
	}
	return "UnknownClientError"
}

// DataErrorType 订阅级错误
type DataErrorType uint8

const (
	DataTypeNotKnown           DataErrorType = 1
	DataUnavailable            DataErrorType = 2
	DataEncodingError          DataErrorType = 3
	DataTableNotFound          DataErrorType = 4
	DataSendError              DataErrorType = 5
	DataChannelError           DataErrorType = 6
	DataWrongExchange          DataErrorType = 7
	DataClientNotLoggedIn      DataErrorType = 8
	DataStartError             DataErrorType = 9
	DataStopError              DataErrorType = 10
	DataStopAllError           DataErrorType = 11
	DataTimeResolutionNotKnown DataErrorType = 12
	UnknownDataError           DataErrorType = DataErrorType(NullU8)
)

var dataErrorNames = map[DataErrorType]string{
	DataTypeNotKnown:           "DataTypeNotKnown",
	DataUnavailable:            "DataUnavailable",
	DataEncodingError:          "DataEncodingError",
	DataTableNotFound:          "DataTableNotFound",
	DataSendError:              "DataSendError",
	DataChannelError:           "DataChannelError",
	DataWrongExchange:          "DataWrongExchange",
	DataClientNotLoggedIn:      "DataClientNotLoggedIn",
	DataStartError:             "DataStartError",
	DataStopError:              "DataStopError",
	DataStopAllError:           "DataStopAllError",
	DataTimeResolutionNotKnown: "DataTimeResolutionNotKnown",
}

// DataErrorTypeFromWire 未知值映射为 UnknownDataError
func DataErrorTypeFromWire(v uint8) DataErrorType {
	t := DataErrorType(v)
	if _, ok := dataErrorNames[t]; ok {
		return t
	}
	return UnknownDataError
}

func (t DataErrorType) String() string {
	if name, ok := dataErrorNames[t]; ok {
		return name
	}
	return "UnknownDataError"
}
