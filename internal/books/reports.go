package books

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Distribution buckets the month's non-Sunday days by daily revenue.
// Sunday is only counted when Sundays are part of the report.
type Distribution struct {
	Zero              int `json:"zero"`
	LessThan300       int `json:"less_than_300"`
	Between300And400  int `json:"between_300_and_400"`
	GreaterOrEqual400 int `json:"greater_or_equal_400"`
	Sunday            int `json:"sunday,omitempty"`
}

// DailyStats summarizes one month of revenue entries.
type DailyStats struct {
	OpenDays     int          `json:"open_days"`
	ClosedDays   int          `json:"closed_days"`
	SundayDays   int          `json:"sunday_days"`
	Distribution Distribution `json:"distribution"`
	AverageDaily float64      `json:"average_daily"`
}

// CalculateDailyStats computes the month report. hideSundays excludes Sundays
// from every count; otherwise they land in the dedicated Sunday buckets
// rather than the open/closed split.
func CalculateDailyStats(entries []Revenue, month string, hideSundays bool) (DailyStats, error) {
	year, mon, err := parseMonth(month)
	if err != nil {
		return DailyStats{}, err
	}
	daysInMonth := time.Date(year, time.Month(mon)+1, 0, 0, 0, 0, 0, time.UTC).Day()

	revenueByDay := make(map[int]float64)
	for _, e := range entries {
		if !strings.HasPrefix(e.Date, month) || len(e.Date) < len(month)+2 {
			continue
		}
		day, err := strconv.Atoi(e.Date[len(month)+1:])
		if err != nil {
			continue
		}
		revenueByDay[day] += e.TTC
	}

	stats := DailyStats{}
	for day := 1; day <= daysInMonth; day++ {
		if isSunday(year, mon, day) {
			if !hideSundays {
				stats.SundayDays++
				stats.Distribution.Sunday++
			}
			continue
		}
		revenue, open := revenueByDay[day]
		if open {
			stats.OpenDays++
		} else {
			stats.ClosedDays++
		}
		switch {
		case revenue == 0:
			stats.Distribution.Zero++
		case revenue < 300:
			stats.Distribution.LessThan300++
		case revenue < 400:
			stats.Distribution.Between300And400++
		default:
			stats.Distribution.GreaterOrEqual400++
		}
	}

	var total float64
	for _, r := range revenueByDay {
		total += r
	}
	if stats.OpenDays > 0 {
		stats.AverageDaily = total / float64(stats.OpenDays)
	}
	return stats, nil
}

func parseMonth(month string) (year, mon int, err error) {
	if err := ValidateMonth(month); err != nil {
		return 0, 0, err
	}
	parts := strings.SplitN(month, "-", 2)
	year, _ = strconv.Atoi(parts[0])
	mon, _ = strconv.Atoi(parts[1])
	if mon < 1 || mon > 12 {
		return 0, 0, fmt.Errorf("%w: month out of range", ErrInvalidInput)
	}
	return year, mon, nil
}

func isSunday(year, month, day int) bool {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Weekday() == time.Sunday
}
