package sbe

// Message 所有可编解码消息的公共接口
type Message interface {
	Type() MessageType
	Encode() ([]byte, error)
}

// ClientLogin 客户端登录请求
type ClientLogin struct {
	ClientID ClientID
}

func (m ClientLogin) Type() MessageType { return ClientLoginMsg }

func (m ClientLogin) Encode() ([]byte, error) {
	w := newWriter(ClientLoginMsg)
	w.u16(clientOffset, uint16(m.ClientID))
	return w.bytes()
}

// DecodeClientLogin 解码登录请求
func DecodeClientLogin(buf []byte) (ClientLogin, error) {
	id, err := decodeClientOnly(buf, ClientLoginMsg)
	return ClientLogin{ClientID: id}, err
}

// ClientLogout 客户端登出请求
type ClientLogout struct {
	ClientID ClientID
}

func (m ClientLogout) Type() MessageType { return ClientLogoutMsg }

func (m ClientLogout) Encode() ([]byte, error) {
	w := newWriter(ClientLogoutMsg)
	w.u16(clientOffset, uint16(m.ClientID))
	return w.bytes()
}

// DecodeClientLogout 解码登出请求
func DecodeClientLogout(buf []byte) (ClientLogout, error) {
	id, err := decodeClientOnly(buf, ClientLogoutMsg)
	return ClientLogout{ClientID: id}, err
}

func decodeClientOnly(buf []byte, t MessageType) (ClientID, error) {
	if _, err := DecodeHeader(buf, t); err != nil {
		return 0, err
	}
	r := reader{buf: buf}
	r.messageType(t)
	id := r.u16(clientOffset, "client_id")
	if r.err != nil {
		return 0, r.err
	}
	return ClientID(id), nil
}

// StartData 订阅请求。成交订阅的 TimeResolution 无意义，编码时写入空值哨兵。
type StartData struct {
	ClientID       ClientID
	ExchangeID     ExchangeID
	Symbol         string
	TimeResolution TimeResolution
	DataType       DataType
}

func (m StartData) Type() MessageType { return StartDataMsg }

func (m StartData) Encode() ([]byte, error) {
	res := m.TimeResolution
	if m.DataType == TradeData {
		res = NoTimeResolution
	}
	w := newWriter(StartDataMsg)
	w.u16(clientOffset, uint16(m.ClientID))
	w.u8(exchangeOffset, uint8(m.ExchangeID))
	w.symbol(ctrlSymbolOffset, "symbol_id", m.Symbol)
	w.u8(startResOffset, uint8(res))
	w.u8(startTypeOffset, uint8(m.DataType))
	return w.bytes()
}

// DecodeStartData 解码订阅请求；成交订阅携带的任意周期值都被接受。
func DecodeStartData(buf []byte) (StartData, error) {
	if _, err := DecodeHeader(buf, StartDataMsg); err != nil {
		return StartData{}, err
	}
	r := reader{buf: buf}
	r.messageType(StartDataMsg)
	m := StartData{
		ClientID:       ClientID(r.u16(clientOffset, "client_id")),
		ExchangeID:     ExchangeID(r.u8(exchangeOffset, "exchange_id")),
		Symbol:         r.symbol(ctrlSymbolOffset, "symbol_id"),
		TimeResolution: TimeResolution(r.u8(startResOffset, "time_resolution")),
		DataType:       DataType(r.u8(startTypeOffset, "data_type_id")),
	}
	if r.err != nil {
		return StartData{}, r.err
	}
	return m, nil
}

// StopData 取消订阅请求
type StopData struct {
	ClientID   ClientID
	ExchangeID ExchangeID
	Symbol     string
	DataType   DataType
}

func (m StopData) Type() MessageType { return StopDataMsg }

func (m StopData) Encode() ([]byte, error) {
	w := newWriter(StopDataMsg)
	w.u16(clientOffset, uint16(m.ClientID))
	w.u8(exchangeOffset, uint8(m.ExchangeID))
	w.symbol(ctrlSymbolOffset, "symbol_id", m.Symbol)
	w.u8(stopTypeOffset, uint8(m.DataType))
	return w.bytes()
}

// DecodeStopData 解码取消订阅请求
func DecodeStopData(buf []byte) (StopData, error) {
	if _, err := DecodeHeader(buf, StopDataMsg); err != nil {
		return StopData{}, err
	}
	r := reader{buf: buf}
	r.messageType(StopDataMsg)
	m := StopData{
		ClientID:   ClientID(r.u16(clientOffset, "client_id")),
		ExchangeID: ExchangeID(r.u8(exchangeOffset, "exchange_id")),
		Symbol:     r.symbol(ctrlSymbolOffset, "symbol_id"),
		DataType:   DataType(r.u8(stopTypeOffset, "data_type_id")),
	}
	if r.err != nil {
		return StopData{}, r.err
	}
	return m, nil
}

// StopAllData 取消该客户端在指定交易所的全部订阅
type StopAllData struct {
	ClientID   ClientID
	ExchangeID ExchangeID
}

func (m StopAllData) Type() MessageType { return StopAllDataMsg }

func (m StopAllData) Encode() ([]byte, error) {
	w := newWriter(StopAllDataMsg)
	w.u16(clientOffset, uint16(m.ClientID))
	w.u8(exchangeOffset, uint8(m.ExchangeID))
	return w.bytes()
}

// DecodeStopAllData 解码全部取消请求
func DecodeStopAllData(buf []byte) (StopAllData, error) {
	if _, err := DecodeHeader(buf, StopAllDataMsg); err != nil {
		return StopAllData{}, err
	}
	r := reader{buf: buf}
	r.messageType(StopAllDataMsg)
	m := StopAllData{
		ClientID:   ClientID(r.u16(clientOffset, "client_id")),
		ExchangeID: ExchangeID(r.u8(exchangeOffset, "exchange_id")),
	}
	if r.err != nil {
		return StopAllData{}, r.err
	}
	return m, nil
}

// Decode 按消息头分派到具体解码器。未知类型（包括没有编解码器的下单消息）
// 返回 UnknownType 错误并携带原始 template id，调用方可以忽略或上报。
func Decode(buf []byte) (Message, error) {
	t, raw, err := PeekMessageType(buf)
	if err != nil {
		return nil, err
	}
	switch t {
	case ClientLoginMsg:
		return DecodeClientLogin(buf)
	case ClientLogoutMsg:
		return DecodeClientLogout(buf)
	case StartDataMsg:
		return DecodeStartData(buf)
	case StopDataMsg:
		return DecodeStopData(buf)
	case StopAllDataMsg:
		return DecodeStopAllData(buf)
	case ClientErrorMsg:
		return DecodeClientError(buf)
	case DataErrorMsg:
		return DecodeDataError(buf)
	case TradeBarMsg:
		return DecodeTradeBar(buf)
	case OHLCVBarMsg:
		return DecodeOHLCVBar(buf)
	}
	return nil, &DecodeError{Kind: UnknownType, Field: "template_id", Raw: raw}
}
