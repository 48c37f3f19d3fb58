package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/correlatr/internal/protocol"
)

// parseDate accepts YYYY-MM-DD (UTC midnight) or unix milliseconds. Empty
// means now.
func parseDate(raw string, now time.Time) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.UnixMilli(), nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ms, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, raw, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("date %q: want YYYY-MM-DD or unix milliseconds", raw)
	}
	return day.UnixMilli(), nil
}

// parsePoints reads name=value pairs. The name is everything before the last
// '=' so names may contain '='.
func parsePoints(args []string) ([]protocol.DataPoint, error) {
	points := make([]protocol.DataPoint, 0, len(args))
	for _, arg := range args {
		i := strings.LastIndex(arg, "=")
		if i < 0 {
			return nil, fmt.Errorf("%q: want name=value", arg)
		}
		name, raw := arg[:i], strings.TrimSpace(arg[i+1:])
		if strings.EqualFold(raw, "null") {
			points = append(points, protocol.DataPoint{ColumnName: name, IsNull: true})
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: value is not a number", arg)
		}
		points = append(points, protocol.DataPoint{ColumnName: name, Value: v})
	}
	return points, nil
}
