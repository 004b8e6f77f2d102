package ttml

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTime 将 TTML 时间字符串解析为毫秒。
//
// 支持四种格式：
//   - "12.345s"  带 s 后缀的秒数
//   - "HH:MM:SS.mmm"
//   - "MM:SS.mmm"
//   - "SS.mmm"
//
// 小数部分最多三位；带冒号时分钟和秒必须小于 60。
func ParseTime(s string) (int64, error) {
	if stripped, ok := strings.CutSuffix(s, "s"); ok && !strings.Contains(stripped, ":") {
		if stripped == "" || strings.HasPrefix(stripped, ".") || strings.HasSuffix(stripped, ".") {
			return 0, &TimeError{Fragment: s, Reason: "秒格式无效"}
		}
		if strings.HasPrefix(stripped, "-") {
			return 0, &TimeError{Fragment: s, Reason: "时间戳不能为负"}
		}
		seconds, millis, err := parseSecondsField(stripped, s)
		if err != nil {
			return 0, err
		}
		return seconds*1000 + millis, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, &TimeError{Fragment: s, Reason: "包含过多冒号分隔的部分"}
	}

	secondsPart := parts[len(parts)-1]
	if strings.HasPrefix(secondsPart, "-") || strings.HasPrefix(parts[0], "-") {
		return 0, &TimeError{Fragment: s, Reason: "时间戳不能为负"}
	}

	seconds, millis, err := parseSecondsField(secondsPart, s)
	if err != nil {
		return 0, err
	}
	total := seconds*1000 + millis

	if len(parts) >= 2 {
		// 带冒号时秒数必须小于 60
		if seconds >= 60 {
			return 0, &TimeError{Fragment: s, Reason: fmt.Sprintf("秒值 %d 无效 (应 < 60)", seconds)}
		}
		minutesStr := parts[len(parts)-2]
		minutes, err := strconv.ParseInt(minutesStr, 10, 64)
		if err != nil {
			return 0, &TimeError{Fragment: s, Reason: fmt.Sprintf("解析分钟 '%s' 失败", minutesStr)}
		}
		if minutes < 0 || minutes >= 60 {
			return 0, &TimeError{Fragment: s, Reason: fmt.Sprintf("分钟值 %d 无效 (应 < 60)", minutes)}
		}
		total += minutes * 60_000
	}

	if len(parts) == 3 {
		hours, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil || hours < 0 {
			return 0, &TimeError{Fragment: s, Reason: fmt.Sprintf("解析小时 '%s' 失败", parts[0])}
		}
		total += hours * 3_600_000
	}

	return total, nil
}

// parseSecondsField 解析 "SS" 或 "SS.mmm"，返回秒和毫秒。
func parseSecondsField(field, original string) (int64, int64, error) {
	secondsStr, fraction, hasDot := strings.Cut(field, ".")
	if secondsStr == "" {
		return 0, 0, &TimeError{Fragment: original, Reason: "秒部分为空"}
	}
	seconds, err := strconv.ParseInt(secondsStr, 10, 64)
	if err != nil {
		return 0, 0, &TimeError{Fragment: original, Reason: fmt.Sprintf("解析秒 '%s' 失败", secondsStr)}
	}
	if !hasDot {
		return seconds, 0, nil
	}
	millis, err := parseFraction(fraction, original)
	if err != nil {
		return 0, 0, err
	}
	return seconds, millis, nil
}

// parseFraction 解析小数部分：1 位 x100，2 位 x10，3 位不变，
// 其余长度或含非数字字符都是错误。
func parseFraction(fraction, original string) (int64, error) {
	if fraction == "" || len(fraction) > 3 {
		return 0, &TimeError{Fragment: original, Reason: fmt.Sprintf("毫秒部分 '%s' 无效 (只支持最多3位数字)", fraction)}
	}
	for _, c := range fraction {
		if c < '0' || c > '9' {
			return 0, &TimeError{Fragment: original, Reason: fmt.Sprintf("毫秒部分 '%s' 含非数字字符", fraction)}
		}
	}
	value, err := strconv.ParseInt(fraction, 10, 64)
	if err != nil {
		return 0, &TimeError{Fragment: original, Reason: fmt.Sprintf("毫秒部分 '%s' 无法解析", fraction)}
	}
	switch len(fraction) {
	case 1:
		return value * 100, nil
	case 2:
		return value * 10, nil
	default:
		return value, nil
	}
}

// FormatTime 将毫秒格式化为 TTML 时间字符串，是 ParseTime 的逆操作。
// 小时为 0 时省略小时字段，小时和分钟都为 0 时省略分钟字段，
// 毫秒固定输出三位。例如 123456 -> "2:03.456"。
func FormatTime(ms int64) string {
	hours := ms / 3_600_000
	minutes := (ms % 3_600_000) / 60_000
	seconds := (ms % 60_000) / 1000
	millis := ms % 1000

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%03d", hours, minutes, seconds, millis)
	}
	if minutes > 0 {
		return fmt.Sprintf("%d:%02d.%03d", minutes, seconds, millis)
	}
	return fmt.Sprintf("%d.%03d", seconds, millis)
}
