package sbe

import "encoding/binary"

const (
	// HeaderLength 消息头固定 8 字节
	HeaderLength = 8

	SchemaID      uint16 = 1
	SchemaVersion uint16 = 1
)

// Header 每条消息的前缀：block_length, template_id, schema_id, version
type Header struct {
	BlockLength uint16
	TemplateID  uint16
	SchemaID    uint16
	Version     uint16
}

// Type 模板对应的消息类型（集合外为 Unknown）
func (h Header) Type() MessageType {
	return MessageTypeFromWire(h.TemplateID)
}

// PutHeader 将消息头写入 buf[0:8]；调用方保证 buf 足够长。
func PutHeader(buf []byte, t MessageType, blockLength uint16) {
	binary.LittleEndian.PutUint16(buf[0:], blockLength)
	binary.LittleEndian.PutUint16(buf[2:], uint16(t))
	binary.LittleEndian.PutUint16(buf[4:], SchemaID)
	binary.LittleEndian.PutUint16(buf[6:], SchemaVersion)
}

// EncodeHeader 返回 8 字节消息头
func EncodeHeader(t MessageType, blockLength uint16) []byte {
	buf := make([]byte, HeaderLength)
	PutHeader(buf, t, blockLength)
	return buf
}

// ReadHeader 读取消息头，不校验模板
func ReadHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLength {
		return Header{}, &DecodeError{Kind: Truncated, Field: "header", Need: HeaderLength, Have: len(buf)}
	}
	return Header{
		BlockLength: binary.LittleEndian.Uint16(buf[0:]),
		TemplateID:  binary.LittleEndian.Uint16(buf[2:]),
		SchemaID:    binary.LittleEndian.Uint16(buf[4:]),
		Version:     binary.LittleEndian.Uint16(buf[6:]),
	}, nil
}

// DecodeHeader 读取消息头并校验 template 与期望类型一致、block 长度与类型一致、
// 缓冲区包含完整的 block。只有通过校验后才可以按固定偏移读取字段。
func DecodeHeader(buf []byte, expected MessageType) (Header, error) {
	h, err := ReadHeader(buf)
	if err != nil {
		return h, err
	}
	if MessageTypeFromWire(h.TemplateID) != expected || expected == UnknownMessageType {
		return h, &DecodeError{Kind: TemplateMismatch, Field: "template_id", Expected: expected, Raw: h.TemplateID}
	}
	want, ok := blockLengths[expected]
	if ok && int(h.BlockLength) != want {
		return h, &DecodeError{Kind: BlockLengthMismatch, Field: "block_length", Expected: expected, Need: want, Have: int(h.BlockLength)}
	}
	if need := HeaderLength + int(h.BlockLength); len(buf) < need {
		return h, &DecodeError{Kind: Truncated, Field: "block", Need: need, Have: len(buf)}
	}
	return h, nil
}

// PeekMessageType 读取消息类型，同时返回原始线上值，未知类型的原始字节不会丢失。
func PeekMessageType(buf []byte) (MessageType, uint16, error) {
	h, err := ReadHeader(buf)
	if err != nil {
		return UnknownMessageType, 0, err
	}
	return MessageTypeFromWire(h.TemplateID), h.TemplateID, nil
}

// PeekClientID 控制消息在 block 起始处都带有 client_id；缓冲区不够长时返回 false。
// 用于在整条消息解码失败时仍能把错误回给发送方。
func PeekClientID(buf []byte) (ClientID, bool) {
	if len(buf) < clientOffset+2 {
		return NullClientID, false
	}
	return ClientID(binary.LittleEndian.Uint16(buf[clientOffset:])), true
}
