package ttml

import "fmt"

// TimeError 时间戳字符串不符合 TTML 预期格式。
type TimeError struct {
	Fragment string // 出错的时间戳片段
	Reason   string
}

func (e *TimeError) Error() string {
	return fmt.Sprintf("无效的时间格式 '%s': %s", e.Fragment, e.Reason)
}

// SyntaxError 标记级别的 XML 语法或编码错误，解析无法继续。
type SyntaxError struct {
	Offset int64 // 出错位置的字节偏移
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("TTML 语法错误，位置 %d: %v", e.Offset, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// GenerateError 生成 TTML 失败。
type GenerateError struct {
	Reason string
}

func (e *GenerateError) Error() string {
	return fmt.Sprintf("生成 TTML 失败: %s", e.Reason)
}
