package sbe

import "fmt"

// TimeResolution K 线周期，NoTimeResolution 表示"无值"（成交订阅不使用该字段）
type TimeResolution uint8

const (
	OneMinute      TimeResolution = 1
	ThreeMinutes   TimeResolution = 2
	FiveMinutes    TimeResolution = 3
	FifteenMinutes TimeResolution = 4
	ThirtyMinutes  TimeResolution = 5
	OneHour        TimeResolution = 6
	TwoHours       TimeResolution = 7
	FourHours      TimeResolution = 8
	SixHours       TimeResolution = 9
	EightHours     TimeResolution = 10
	TwelveHours    TimeResolution = 11
	OneDay         TimeResolution = 12
	ThreeDays      TimeResolution = 13
	OneWeek        TimeResolution = 14
	OneMonth       TimeResolution = 15

	NoTimeResolution TimeResolution = TimeResolution(NullU8)
)

// resolutions 周期 -> Binance interval
var resolutions = map[TimeResolution]string{
	OneMinute:      "1m",
	ThreeMinutes:   "3m",
	FiveMinutes:    "5m",
	FifteenMinutes: "15m",
	ThirtyMinutes:  "30m",
	OneHour:        "1h",
	TwoHours:       "2h",
	FourHours:      "4h",
	SixHours:       "6h",
	EightHours:     "8h",
	TwelveHours:    "12h",
	OneDay:         "1d",
	ThreeDays:      "3d",
	OneWeek:        "1w",
	OneMonth:       "1M",
}

// TimeResolutionFromWire 未知值映射为 NoTimeResolution
func TimeResolutionFromWire(v uint8) TimeResolution {
	r := TimeResolution(v)
	if _, ok := resolutions[r]; ok {
		return r
	}
	return NoTimeResolution
}

// ParseTimeResolution 解析交易所周期字符串（如 "1m"、"4h"）
func ParseTimeResolution(interval string) (TimeResolution, error) {
	for r, iv := range resolutions {
		if iv == interval {
			return r, nil
		}
	}
	return NoTimeResolution, fmt.Errorf("unknown interval %q", interval)
}

// Known 是否为有效周期
func (r TimeResolution) Known() bool {
	_, ok := resolutions[r]
	return ok
}

// Interval 交易所使用的周期字符串
func (r TimeResolution) Interval() string {
	return resolutions[r]
}

func (r TimeResolution) String() string {
	if iv, ok := resolutions[r]; ok {
		return iv
	}
	return "none"
}
