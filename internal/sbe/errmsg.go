package sbe

import "fmt"

// ClientError 会话级错误通知
type ClientError struct {
	ClientID  ClientID
	ErrorType ClientErrorType
}

func (m ClientError) Type() MessageType { return ClientErrorMsg }

func (m ClientError) Encode() ([]byte, error) {
	w := newWriter(ClientErrorMsg)
	w.u16(clientOffset, uint16(m.ClientID))
	w.u8(errTypeOffset, uint8(m.ErrorType))
	return w.bytes()
}

func (m ClientError) Error() string {
	return fmt.Sprintf("client %d: %s", m.ClientID, m.ErrorType)
}

// DecodeClientError 解码会话错误；未知错误码映射为 UnknownClientError
func DecodeClientError(buf []byte) (ClientError, error) {
	id, v, err := decodeErrorMessage(buf, ClientErrorMsg)
	if err != nil {
		return ClientError{}, err
	}
	return ClientError{ClientID: id, ErrorType: ClientErrorTypeFromWire(v)}, nil
}

// DataError 订阅级错误通知
type DataError struct {
	ClientID  ClientID
	ErrorType DataErrorType
}

func (m DataError) Type() MessageType { return DataErrorMsg }

func (m DataError) Encode() ([]byte, error) {
	w := newWriter(DataErrorMsg)
	w.u16(clientOffset, uint16(m.ClientID))
	w.u8(errTypeOffset, uint8(m.ErrorType))
	return w.bytes()
}

func (m DataError) Error() string {
	return fmt.Sprintf("client %d: %s", m.ClientID, m.ErrorType)
}

// DecodeDataError 解码订阅错误；未知错误码映射为 UnknownDataError
func DecodeDataError(buf []byte) (DataError, error) {
	id, v, err := decodeErrorMessage(buf, DataErrorMsg)
	if err != nil {
		return DataError{}, err
	}
	return DataError{ClientID: id, ErrorType: DataErrorTypeFromWire(v)}, nil
}

func decodeErrorMessage(buf []byte, t MessageType) (ClientID, uint8, error) {
	if _, err := DecodeHeader(buf, t); err != nil {
		return 0, 0, err
	}
	r := reader{buf: buf}
	r.messageType(t)
	id := r.u16(clientOffset, "client_id")
	v := r.u8(errTypeOffset, "error_type")
	if r.err != nil {
		return 0, 0, r.err
	}
	return ClientID(id), v, nil
}
