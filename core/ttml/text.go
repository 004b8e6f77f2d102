package ttml

import (
	"strings"
	"unicode"
)

// normalizeWhitespace 把连续空白折叠为单个空格并去掉首尾空白。
func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.Join(fields, " ")
}

// cleanBackgroundParens 去掉背景人声文本两端各一个括号字符
// （半角或全角，不要求成对），然后折叠空白。
func cleanBackgroundParens(s string) string {
	trimmed := strings.TrimSpace(s)
	for _, prefix := range []string{"(", "（"} {
		if rest, ok := strings.CutPrefix(trimmed, prefix); ok {
			trimmed = rest
			break
		}
	}
	for _, suffix := range []string{")", "）"} {
		if rest, ok := strings.CutSuffix(trimmed, suffix); ok {
			trimmed = rest
			break
		}
	}
	return normalizeWhitespace(trimmed)
}

// endsWithWhitespace 判断文本最后一个字符是否为空白。
func endsWithWhitespace(s string) bool {
	return s != strings.TrimRightFunc(s, unicode.IsSpace)
}

// isAllWhitespace 判断文本是否全部由空白组成（且非空）。
func isAllWhitespace(s string) bool {
	return s != "" && strings.TrimSpace(s) == ""
}
