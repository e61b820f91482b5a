package digest

import (
	"strconv"
	"strings"
)

// DefaultHours 未指定区间时的默认回溯小时数
const DefaultHours = 24

// ParseHours 解析形如 "hours 6" / "days 2" / "week" / "12" 的区间参数，返回小时数
func ParseHours(args []string) int {
	if len(args) == 0 {
		return DefaultHours
	}
	unit := strings.ToLower(strings.TrimSpace(args[0]))

	qty := 1
	if len(args) > 1 {
		if n, err := strconv.Atoi(strings.TrimSpace(args[1])); err == nil {
			qty = n
		}
	}

	switch {
	case strings.HasPrefix(unit, "hour"):
		return qty
	case strings.HasPrefix(unit, "day"):
		return qty * 24
	case strings.HasPrefix(unit, "week"):
		return qty * 24 * 7
	}

	if n, err := strconv.Atoi(unit); err == nil {
		return n
	}
	return DefaultHours
}
