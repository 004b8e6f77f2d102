package model

// TimingMode TTML 的计时模式。
type TimingMode string

const (
	// TimingWord 逐字计时，每个音节一个带时间戳的 <span>。
	TimingWord TimingMode = "word"
	// TimingLine 逐行计时，只有 <p> 级别的时间戳。
	TimingLine TimingMode = "line"
)

// ParseOptions 控制 TTML 解析行为。
type ParseOptions struct {
	// DefaultMainLang 等字段在文件内缺失语言信息时兜底。
	DefaultMainLang         string
	DefaultTranslationLang  string
	DefaultRomanizationLang string
	// ForceTimingMode 非空时跳过自动检测，强制按该模式解析。
	ForceTimingMode TimingMode
}

// GenerateOptions 控制 TTML 生成行为。
type GenerateOptions struct {
	TimingMode TimingMode
	// Format 为 true 时输出带缩进换行的格式化 TTML。
	Format bool
	// 语言覆盖，留空时从元数据推断。
	MainLang         string
	TranslationLang  string
	RomanizationLang string
	// StrictPlatformRules 遵循 Apple Music 的格式规则：
	// 翻译写入 <head> 而不是内联 <span>。
	StrictPlatformRules bool
}

// SmoothingOptions 音节时长平滑参数。
type SmoothingOptions struct {
	Factor              float64 // 平滑因子，有效范围 (0, 0.5]
	DurationThresholdMs int64   // 分组的时长差异阈值（毫秒）
	GapThresholdMs      int64   // 分组的间隔阈值（毫秒）
	Iterations          int     // 组内平滑迭代次数
}

// DefaultSmoothingOptions 返回默认的平滑参数。
func DefaultSmoothingOptions() SmoothingOptions {
	return SmoothingOptions{
		Factor:              0.15,
		DurationThresholdMs: 50,
		GapThresholdMs:      100,
		Iterations:          5,
	}
}
