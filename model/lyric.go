package model

// LyricSyllable 逐字歌词中的一个音节，时间均为相对歌曲开始的毫秒数。
type LyricSyllable struct {
	Text          string `json:"text"`
	StartMs       int64  `json:"startMs"`
	EndMs         int64  `json:"endMs"`
	DurationMs    int64  `json:"durationMs"`     // 缓存的 EndMs - StartMs
	EndsWithSpace bool   `json:"endsWithSpace"`  // 序列化时是否要在该音节后补一个空格
}

// TranslationEntry 一行歌词的翻译文本。
type TranslationEntry struct {
	Text string `json:"text"`
	Lang string `json:"lang,omitempty"` // BCP 47 语言代码，可为空
}

// RomanizationEntry 一行歌词的罗马音（或其他音译）。
type RomanizationEntry struct {
	Text   string `json:"text"`
	Lang   string `json:"lang,omitempty"`
	Scheme string `json:"scheme,omitempty"` // 音译方案名称，如 "hepburn"
}

// BackgroundSection 嵌在主歌词行内的背景人声部分，
// 结构与主行相似，可以有自己的音节、翻译和罗马音。
type BackgroundSection struct {
	StartMs       int64               `json:"startMs"`
	EndMs         int64               `json:"endMs"`
	Syllables     []LyricSyllable     `json:"syllables,omitempty"`
	Translations  []TranslationEntry  `json:"translations,omitempty"`
	Romanizations []RomanizationEntry `json:"romanizations,omitempty"`
}

// LyricLine 一行完整的歌词，是整个处理流程的基本单元。
type LyricLine struct {
	StartMs           int64               `json:"startMs"`
	EndMs             int64               `json:"endMs"`
	LineText          string              `json:"lineText,omitempty"` // 整行文本，逐行歌词必填，逐字歌词可由音节重组
	MainSyllables     []LyricSyllable     `json:"mainSyllables,omitempty"`
	Translations      []TranslationEntry  `json:"translations,omitempty"`
	Romanizations     []RomanizationEntry `json:"romanizations,omitempty"`
	Agent             string              `json:"agent,omitempty"`    // 演唱者标识，如 "v1", "v2"
	BackgroundSection *BackgroundSection  `json:"backgroundSection,omitempty"`
	SongPart          string              `json:"songPart,omitempty"` // 歌曲结构标记，如 "Verse", "Chorus"
	ItunesKey         string              `json:"itunesKey,omitempty"` // 如 "L1"，用于关联元数据中的翻译
}

// ParsedDocument 解析器的输出：歌词行、原始元数据和解析警告。
type ParsedDocument struct {
	Lines       []LyricLine         `json:"lines"`
	RawMetadata map[string][]string `json:"rawMetadata"`
	IsLineTimed bool                `json:"isLineTimed"`
	Warnings    []string            `json:"warnings,omitempty"`
}
