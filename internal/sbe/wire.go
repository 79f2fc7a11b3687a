package sbe

import (
	"encoding/binary"
	"strings"
)

// SymbolLength 定长 ASCII 交易对字段
const SymbolLength = 20

// PutSymbol 写入大写、NUL 填充的 20 字节交易对。超长直接拒绝，不做截断。
func PutSymbol(buf []byte, off int, symbol string) error {
	for i := 0; i < len(symbol); i++ {
		if symbol[i] >= 0x80 {
			return ErrSymbolNotASCII
		}
	}
	if len(symbol) > SymbolLength {
		return ErrSymbolTooLong
	}
	if off < 0 || len(buf) < off+SymbolLength {
		return ErrBufferTooSmall
	}
	symbol = strings.ToUpper(symbol)
	field := buf[off : off+SymbolLength]
	n := copy(field, symbol)
	for i := n; i < SymbolLength; i++ {
		field[i] = 0
	}
	return nil
}

// ReadSymbol 读取交易对：去掉尾部 NUL/空格并转为大写
func ReadSymbol(buf []byte, off int) (string, error) {
	r := reader{buf: buf}
	s := r.symbol(off, "symbol_id")
	return s, r.err
}

// reader 带边界检查的定长读取器；第一次失败后 err 保持不变，后续读取返回零值但不会越界。
type reader struct {
	buf []byte
	err error
}

func (r *reader) check(off, n int, field string) bool {
	if r.err != nil {
		return false
	}
	if off < 0 || len(r.buf) < off+n {
		r.err = &DecodeError{Kind: Truncated, Field: field, Need: off + n, Have: len(r.buf)}
		return false
	}
	return true
}

func (r *reader) u8(off int, field string) uint8 {
	if !r.check(off, 1, field) {
		return 0
	}
	return r.buf[off]
}

func (r *reader) u16(off int, field string) uint16 {
	if !r.check(off, 2, field) {
		return 0
	}
	return binary.LittleEndian.Uint16(r.buf[off:])
}

func (r *reader) i64(off int, field string) int64 {
	if !r.check(off, 8, field) {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(r.buf[off:]))
}

func (r *reader) decimal(off int, field string) Decimal {
	if !r.check(off, DecimalLength, field) {
		return Decimal{}
	}
	return Decimal{
		Mantissa: int64(binary.LittleEndian.Uint64(r.buf[off:])),
		Scale:    r.buf[off+8],
	}
}

func (r *reader) symbol(off int, field string) string {
	if !r.check(off, SymbolLength, field) {
		return ""
	}
	raw := r.buf[off : off+SymbolLength]
	for _, b := range raw {
		if b >= 0x80 {
			r.err = &DecodeError{Kind: InvalidField, Field: field, Err: ErrSymbolNotASCII}
			return ""
		}
	}
	return strings.ToUpper(strings.TrimRight(string(raw), "\x00 "))
}

// messageType 校验 block 内回显的消息类型
func (r *reader) messageType(expected MessageType) {
	v := r.u16(msgTypeOffset, "message_type")
	if r.err == nil && v != uint16(expected) {
		r.err = &DecodeError{Kind: TemplateMismatch, Field: "message_type", Expected: expected, Raw: v}
	}
}

// writer 定长写入器；缓冲区按消息长度分配，只有字段值本身会导致失败。
type writer struct {
	buf []byte
	err error
}

func newWriter(t MessageType) *writer {
	block := blockLengths[t]
	w := &writer{buf: make([]byte, HeaderLength+block)}
	PutHeader(w.buf, t, uint16(block))
	binary.LittleEndian.PutUint16(w.buf[msgTypeOffset:], uint16(t))
	return w
}

func (w *writer) u8(off int, v uint8) {
	w.buf[off] = v
}

func (w *writer) u16(off int, v uint16) {
	binary.LittleEndian.PutUint16(w.buf[off:], v)
}

func (w *writer) i64(off int, v int64) {
	binary.LittleEndian.PutUint64(w.buf[off:], uint64(v))
}

func (w *writer) symbol(off int, field, s string) {
	if w.err != nil {
		return
	}
	if err := PutSymbol(w.buf, off, s); err != nil {
		w.err = &EncodeError{Field: field, Err: err}
	}
}

func (w *writer) decimal(off int, d Decimal) {
	_ = PutDecimal(w.buf, off, d)
}

func (w *writer) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf, nil
}
