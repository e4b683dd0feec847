package summary

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTimeToSeconds converts a colon-delimited "MM:SS" or "HH:MM:SS" string
// into total seconds, with or without the surrounding brackets of the
// normalized form. Malformed or empty input yields 0; structured parsing must
// never fail outright.
func ParseTimeToSeconds(value string) int {
	value = strings.Trim(strings.TrimSpace(value), "[]")
	fields := strings.Split(value, ":")
	if len(fields) < 2 || len(fields) > 3 {
		return 0
	}

	nums := make([]int, 0, len(fields))
	for _, field := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || n < 0 {
			return 0
		}
		nums = append(nums, n)
	}

	if len(nums) == 3 {
		return nums[0]*3600 + nums[1]*60 + nums[2]
	}
	return nums[0]*60 + nums[1]
}

// NormalizeTimestamp renders a "MM:SS" or "HH:MM:SS" string as "[MM:SS]",
// folding hours into total minutes. Malformed input normalizes to "[00:00]".
func NormalizeTimestamp(value string) string {
	total := ParseTimeToSeconds(value)
	return FormatSeconds(total)
}

// FormatSeconds renders total seconds as "[MM:SS]". Minutes may exceed 59 for
// content longer than an hour.
func FormatSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("[%02d:%02d]", total/60, total%60)
}
