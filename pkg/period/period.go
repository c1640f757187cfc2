// Package period 提供会计期间的边界与按期折算计算。
// 费用引擎、报表生成与期末结算批次都以这里的 Period 作为唯一的期间表示，
// 避免各处自行推算月末/季末产生口径偏差。
package period

import (
	"fmt"
	"time"
)

// Frequency 期间频率
type Frequency int8

const (
	FrequencyMonthly   Frequency = 1 // 月度
	FrequencyQuarterly Frequency = 2 // 季度
	FrequencyAnnual    Frequency = 3 // 年度
)

func (f Frequency) String() string {
	switch f {
	case FrequencyMonthly:
		return "MONTHLY"
	case FrequencyQuarterly:
		return "QUARTERLY"
	case FrequencyAnnual:
		return "ANNUAL"
	default:
		return "UNKNOWN"
	}
}

// ParseFrequency 解析频率字符串。
func ParseFrequency(s string) (Frequency, error) {
	switch s {
	case "MONTHLY":
		return FrequencyMonthly, nil
	case "QUARTERLY":
		return FrequencyQuarterly, nil
	case "ANNUAL":
		return FrequencyAnnual, nil
	default:
		return 0, fmt.Errorf("unknown frequency: %q", s)
	}
}

// PeriodsPerYear 返回每年的期间数，年化费率按此折算到单期。
func (f Frequency) PeriodsPerYear() int64 {
	switch f {
	case FrequencyMonthly:
		return 12
	case FrequencyQuarterly:
		return 4
	default:
		return 1
	}
}

// Period 表示一个闭区间会计期间 [Start, End]，两端均为 UTC 零点日期。
type Period struct {
	Start time.Time
	End   time.Time
}

// Day 将时间规范化为 UTC 零点日期。
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Containing 返回包含给定日期的期间。
func Containing(f Frequency, d time.Time) Period {
	d = Day(d)
	y, m := d.Year(), d.Month()
	switch f {
	case FrequencyMonthly:
		start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(0, 1, -1)}
	case FrequencyQuarterly:
		qm := time.Month((int(m-1)/3)*3 + 1)
		start := time.Date(y, qm, 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(0, 3, -1)}
	default:
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(1, 0, -1)}
	}
}

// Prior 返回同频率下紧邻的上一期间。
func (p Period) Prior(f Frequency) Period {
	return Containing(f, p.Start.AddDate(0, 0, -1))
}

// PriorEnd 返回上一期间的最后一天，即期初估值日。
func (p Period) PriorEnd() time.Time {
	return p.Start.AddDate(0, 0, -1)
}

// Contains 判断日期是否落在期间内（含两端）。
func (p Period) Contains(d time.Time) bool {
	d = Day(d)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Overlaps 判断期间与生效区间 [from, to] 是否有交集。to 为零值时视为开放区间。
func (p Period) Overlaps(from, to time.Time) bool {
	if !from.IsZero() && p.End.Before(Day(from)) {
		return false
	}
	if !to.IsZero() && p.Start.After(Day(to)) {
		return false
	}
	return true
}

// Validate 校验期间边界。
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("period bounds are required")
	}
	if p.End.Before(p.Start) {
		return fmt.Errorf("period end %s before start %s", p.End.Format("2006-01-02"), p.Start.Format("2006-01-02"))
	}
	return nil
}

func (p Period) String() string {
	return fmt.Sprintf("%s~%s", p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"))
}
