package sbe

// 每个 block 以 u16 消息类型回显开头，字段按声明顺序紧密排列。
const (
	msgTypeOffset = HeaderLength
	clientOffset  = msgTypeOffset + 2

	// ClientLogin / ClientLogout
	loginEnd = clientOffset + 2

	// StartData / StopData / StopAllData
	exchangeOffset   = clientOffset + 2
	ctrlSymbolOffset = exchangeOffset + 1
	startResOffset   = ctrlSymbolOffset + SymbolLength
	startTypeOffset  = startResOffset + 1
	startEnd         = startTypeOffset + 1
	stopTypeOffset   = ctrlSymbolOffset + SymbolLength
	stopEnd          = stopTypeOffset + 1
	stopAllEnd       = exchangeOffset + 1

	// ClientError / DataError
	errTypeOffset = clientOffset + 2
	errEnd        = errTypeOffset + 1

	// TradeBar / OHLCVBar
	barSymbolOffset = msgTypeOffset + 2
	barTimeOffset   = barSymbolOffset + SymbolLength
	barFirstDecimal = barTimeOffset + 8
	tradeEnd        = barFirstDecimal + 2*DecimalLength
	ohlcvEnd        = barFirstDecimal + 5*DecimalLength
)

// 消息总长度（含 8 字节消息头）
const (
	ClientLoginLength = loginEnd
	StartDataLength   = startEnd
	StopDataLength    = stopEnd
	StopAllDataLength = stopAllEnd
	ErrorLength       = errEnd
	TradeBarLength    = tradeEnd
	OHLCVBarLength    = ohlcvEnd
)

var blockLengths = map[MessageType]int{
	ClientLoginMsg:  loginEnd - HeaderLength,
	ClientLogoutMsg: loginEnd - HeaderLength,
	StartDataMsg:    startEnd - HeaderLength,
	StopDataMsg:     stopEnd - HeaderLength,
	StopAllDataMsg:  stopAllEnd - HeaderLength,
	ClientErrorMsg:  errEnd - HeaderLength,
	DataErrorMsg:    errEnd - HeaderLength,
	TradeBarMsg:     tradeEnd - HeaderLength,
	OHLCVBarMsg:     ohlcvEnd - HeaderLength,
}
