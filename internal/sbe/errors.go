package sbe

import (
	"errors"
	"fmt"
)

// 编码阶段的哨兵错误
var (
	ErrMantissaOverflow = errors.New("decimal mantissa does not fit in int64")
	ErrScaleOverflow    = errors.New("decimal scale out of range [0,254]")
	ErrSymbolTooLong    = errors.New("symbol longer than 20 bytes")
	ErrSymbolNotASCII   = errors.New("symbol contains non-ASCII bytes")
	ErrBufferTooSmall   = errors.New("buffer too small")
)

// DecodeErrorKind 解码失败的类别
type DecodeErrorKind int

const (
	Truncated DecodeErrorKind = iota + 1
	TemplateMismatch
	UnknownType
	BlockLengthMismatch
	InvalidField
)

func (k DecodeErrorKind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case TemplateMismatch:
		return "template mismatch"
	case UnknownType:
		return "unknown message type"
	case BlockLengthMismatch:
		return "block length mismatch"
	case InvalidField:
		return "invalid field"
	}
	return "unknown"
}

// DecodeError 描述哪个字段无法读取；解码失败绝不返回零值替代。
type DecodeError struct {
	Kind     DecodeErrorKind
	Field    string
	Expected MessageType
	Raw      uint16 // 收到的原始 template id（TemplateMismatch/UnknownType）
	Need     int
	Have     int
	Err      error
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case Truncated:
		return fmt.Sprintf("sbe decode %s: truncated buffer, need %d bytes, have %d", e.Field, e.Need, e.Have)
	case TemplateMismatch:
		return fmt.Sprintf("sbe decode: template mismatch, expected %s(%d), got %d", e.Expected, uint16(e.Expected), e.Raw)
	case UnknownType:
		return fmt.Sprintf("sbe decode: unknown message type %d", e.Raw)
	case BlockLengthMismatch:
		return fmt.Sprintf("sbe decode %s: block length %d, expected %d", e.Expected, e.Have, e.Need)
	}
	if e.Err != nil {
		return fmt.Sprintf("sbe decode %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("sbe decode %s: %s", e.Field, e.Kind)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError 编码失败（字段名 + 原因）
type EncodeError struct {
	Field string
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("sbe encode %s: %v", e.Field, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// IsDecodeKind 判断 err 是否为指定类别的解码错误
func IsDecodeKind(err error, kind DecodeErrorKind) bool {
	var de *DecodeError
	return errors.As(err, &de) && de.Kind == kind
}
