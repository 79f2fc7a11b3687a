package sbe

import (
	"encoding/binary"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// DecimalLength mantissa(i64) + scale(u8)
	DecimalLength = 9

	NullMantissa int64 = math.MinInt64
	NullScale    uint8 = 0xFF
	MaxScale     uint8 = 254
)

// Decimal 线上十进制数：Mantissa × 10^-Scale
type Decimal struct {
	Mantissa int64
	Scale    uint8
}

// NullDecimalValue 空值哨兵
var NullDecimalValue = Decimal{Mantissa: NullMantissa, Scale: NullScale}

// IsNull mantissa 或 scale 任一为哨兵即视为"无值"
func (d Decimal) IsNull() bool {
	return d.Mantissa == NullMantissa || d.Scale == NullScale
}

// Value 转为 decimal.Decimal；空值返回 false，绝不以 0 代替。
func (d Decimal) Value() (decimal.Decimal, bool) {
	if d.IsNull() {
		return decimal.Decimal{}, false
	}
	return decimal.New(d.Mantissa, -int32(d.Scale)), true
}

// NullDecimal 转为 decimal.NullDecimal
func (d Decimal) NullDecimal() decimal.NullDecimal {
	v, ok := d.Value()
	return decimal.NullDecimal{Decimal: v, Valid: ok}
}

func (d Decimal) String() string {
	v, ok := d.Value()
	if !ok {
		return "null"
	}
	return v.String()
}

var bigTen = big.NewInt(10)

// FromDecimal 保留原始 scale（不做归一化）。正指数展开到 mantissa、scale 记为 0；
// mantissa 超出 int64（或与空值哨兵冲突）返回 ErrMantissaOverflow。
func FromDecimal(v decimal.Decimal) (Decimal, error) {
	coef := new(big.Int).Set(v.Coefficient())
	exp := v.Exponent()
	if exp > 0 {
		coef.Mul(coef, new(big.Int).Exp(bigTen, big.NewInt(int64(exp)), nil))
		exp = 0
	}
	if -int64(exp) > int64(MaxScale) {
		return Decimal{}, ErrScaleOverflow
	}
	if !coef.IsInt64() || coef.Int64() == NullMantissa {
		return Decimal{}, ErrMantissaOverflow
	}
	return Decimal{Mantissa: coef.Int64(), Scale: uint8(-exp)}, nil
}

// FromNullDecimal Valid=false 编码为空值哨兵
func FromNullDecimal(v decimal.NullDecimal) (Decimal, error) {
	if !v.Valid {
		return NullDecimalValue, nil
	}
	return FromDecimal(v.Decimal)
}

// PutDecimal 在 buf[off:] 写入 9 字节十进制数
func PutDecimal(buf []byte, off int, d Decimal) error {
	if off < 0 || len(buf) < off+DecimalLength {
		return ErrBufferTooSmall
	}
	binary.LittleEndian.PutUint64(buf[off:], uint64(d.Mantissa))
	buf[off+8] = d.Scale
	return nil
}

// ReadDecimal 从 buf[off:] 读取十进制数；越界返回 Truncated 错误。
func ReadDecimal(buf []byte, off int) (Decimal, error) {
	r := reader{buf: buf}
	d := r.decimal(off, "decimal")
	return d, r.err
}
