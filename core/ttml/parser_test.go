package ttml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ttmlkit/model"
)

const ttHeader = `<tt xmlns="http://www.w3.org/ns/ttml" xmlns:ttm="http://www.w3.org/ns/ttml#metadata" xmlns:itunes="http://music.apple.com/lyric-ttml-internal" xmlns:amll="http://www.example.com/ns/amll" itunes:timing="word">`

func wordDoc(body string) string {
	return ttHeader + "<body>" + body + "</body></tt>"
}

func TestParseWordModeBasic(t *testing.T) {
	doc := wordDoc(`<div begin="0.000" end="5.000"><p begin="1.000" end="3.000">` +
		`<span begin="1.000" end="2.000">Hello</span>` +
		`<span begin="2.000" end="3.000">world</span>` +
		`</p></div>`)

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	assert.False(t, parsed.IsLineTimed)
	require.Len(t, parsed.Lines, 1)

	line := parsed.Lines[0]
	assert.Equal(t, int64(1000), line.StartMs)
	assert.Equal(t, int64(3000), line.EndMs)
	require.Len(t, line.MainSyllables, 2)
	assert.Equal(t, "Hello", line.MainSyllables[0].Text)
	assert.Equal(t, int64(1000), line.MainSyllables[0].StartMs)
	assert.Equal(t, int64(2000), line.MainSyllables[0].EndMs)
	assert.Equal(t, "world", line.MainSyllables[1].Text)
	assert.Equal(t, "Helloworld", line.LineText)
}

func TestParseWhitespaceSpanMergesIntoPreviousSyllable(t *testing.T) {
	doc := wordDoc(`<p begin="1.000" end="2.000">` +
		`<span begin="1.000s" end="1.500s">foo</span>` +
		`<span begin="1.500s" end="1.500s"> </span>` +
		`<span begin="1.500s" end="2.000s">bar</span>` +
		`</p>`)

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	require.Len(t, parsed.Lines, 1)

	syls := parsed.Lines[0].MainSyllables
	require.Len(t, syls, 2, "空格 span 不应产生独立音节")
	assert.Equal(t, "foo", syls[0].Text)
	assert.True(t, syls[0].EndsWithSpace)
	assert.Equal(t, "bar", syls[1].Text)
	assert.Equal(t, "foo bar", parsed.Lines[0].LineText)
}

func TestParseInterSyllableSpaceTextNode(t *testing.T) {
	doc := wordDoc(`<p begin="0.000" end="2.000">` +
		`<span begin="0.000" end="1.000">foo</span> <span begin="1.000" end="2.000">bar</span>` +
		`</p>`)

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	syls := parsed.Lines[0].MainSyllables
	require.Len(t, syls, 2)
	assert.True(t, syls[0].EndsWithSpace)
	assert.Equal(t, "foo bar", parsed.Lines[0].LineText)
}

func TestParseNewlineBetweenSpansIsNotASpace(t *testing.T) {
	doc := wordDoc(`<p begin="0.000" end="2.000">
		<span begin="0.000" end="1.000">foo</span>
		<span begin="1.000" end="2.000">bar</span>
	</p>`)

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	syls := parsed.Lines[0].MainSyllables
	require.Len(t, syls, 2)
	assert.False(t, syls[0].EndsWithSpace, "带换行的缩进空白不是音节间空格")
	assert.Equal(t, "foobar", parsed.Lines[0].LineText)
}

func TestParseTrailingSpaceInsideSpan(t *testing.T) {
	doc := wordDoc(`<p begin="0.000" end="2.000">` +
		`<span begin="0.000" end="1.000">foo </span><span begin="1.000" end="2.000">bar</span>` +
		`</p>`)

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	syls := parsed.Lines[0].MainSyllables
	require.Len(t, syls, 2)
	assert.Equal(t, "foo", syls[0].Text)
	assert.True(t, syls[0].EndsWithSpace)
}

func TestParseReversedSyllableTimestamps(t *testing.T) {
	doc := wordDoc(`<p begin="0.000" end="2.000">` +
		`<span begin="1.500" end="1.200">late</span>` +
		`</p>`)

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	require.Len(t, parsed.Lines, 1)
	syl := parsed.Lines[0].MainSyllables[0]
	assert.Equal(t, int64(1500), syl.StartMs)
	assert.Equal(t, int64(1500), syl.EndMs, "结束时间被钳制到开始时间")

	found := false
	for _, w := range parsed.Warnings {
		if strings.Contains(w, "时间戳无效") {
			found = true
		}
	}
	assert.True(t, found, "应记录时间戳无效的警告")
}

func TestParseTranslationAndRomanization(t *testing.T) {
	doc := wordDoc(`<p begin="0.000" end="2.000">` +
		`<span begin="0.000" end="2.000">你好</span>` +
		`<span ttm:role="x-translation" xml:lang="en">Hello</span>` +
		`<span ttm:role="x-roman" xml:lang="zh-Latn" xml:scheme="pinyin">ni hao</span>` +
		`</p>`)

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	line := parsed.Lines[0]
	require.Len(t, line.Translations, 1)
	assert.Equal(t, "Hello", line.Translations[0].Text)
	assert.Equal(t, "en", line.Translations[0].Lang)
	require.Len(t, line.Romanizations, 1)
	assert.Equal(t, "ni hao", line.Romanizations[0].Text)
	assert.Equal(t, "pinyin", line.Romanizations[0].Scheme)
}

func TestParseAuxiliaryDefaultLanguage(t *testing.T) {
	doc := wordDoc(`<p begin="0.000" end="2.000">` +
		`<span begin="0.000" end="2.000">你好</span>` +
		`<span ttm:role="x-translation">Hello</span>` +
		`</p>`)

	parsed, err := Parse(doc, model.ParseOptions{DefaultTranslationLang: "en"})
	require.NoError(t, err)
	require.Len(t, parsed.Lines[0].Translations, 1)
	assert.Equal(t, "en", parsed.Lines[0].Translations[0].Lang)
}

func TestParseBackgroundSection(t *testing.T) {
	doc := wordDoc(`<p begin="0.000" end="4.000">` +
		`<span begin="0.000" end="2.000">main</span>` +
		`<span ttm:role="x-bg" begin="2.000" end="4.000">` +
		`<span begin="2.000" end="3.000">(ooh</span>` +
		`<span begin="3.000" end="4.000">aah)</span>` +
		`<span ttm:role="x-translation" xml:lang="zh-CN">背景</span>` +
		`</span>` +
		`</p>`)

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	line := parsed.Lines[0]
	require.NotNil(t, line.BackgroundSection)
	bg := line.BackgroundSection
	assert.Equal(t, int64(2000), bg.StartMs)
	assert.Equal(t, int64(4000), bg.EndMs)
	require.Len(t, bg.Syllables, 2)
	assert.Equal(t, "ooh", bg.Syllables[0].Text, "背景音节的括号应被剥掉")
	assert.Equal(t, "aah", bg.Syllables[1].Text)
	require.Len(t, bg.Translations, 1)
	assert.Equal(t, "背景", bg.Translations[0].Text)
}

func TestParseBackgroundDefaultLangNotApplied(t *testing.T) {
	doc := wordDoc(`<p begin="0.000" end="4.000">` +
		`<span begin="0.000" end="2.000">main</span>` +
		`<span ttm:role="x-bg" begin="2.000" end="4.000">` +
		`<span begin="2.000" end="4.000">ooh</span>` +
		`<span ttm:role="x-translation">背景</span>` +
		`</span>` +
		`</p>`)

	parsed, err := Parse(doc, model.ParseOptions{DefaultTranslationLang: "en"})
	require.NoError(t, err)
	bg := parsed.Lines[0].BackgroundSection
	require.NotNil(t, bg)
	require.Len(t, bg.Translations, 1)
	assert.Equal(t, "", bg.Translations[0].Lang, "背景内的辅助 span 不使用默认语言")
}

func TestParseBackgroundBoundsBackfill(t *testing.T) {
	doc := wordDoc(`<p begin="0.000" end="4.000">` +
		`<span begin="0.000" end="1.000">main</span>` +
		`<span ttm:role="x-bg">` +
		`<span begin="1.500" end="2.500">ooh</span>` +
		`<span begin="2.500" end="3.500">aah</span>` +
		`</span>` +
		`</p>`)

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	bg := parsed.Lines[0].BackgroundSection
	require.NotNil(t, bg)
	assert.Equal(t, int64(1500), bg.StartMs)
	assert.Equal(t, int64(3500), bg.EndMs)
}

func TestParseLineModeHeuristic(t *testing.T) {
	doc := `<tt xmlns="http://www.w3.org/ns/ttml"><body>` +
		`<p begin="1.000" end="3.000">整行歌词</p>` +
		`</body></tt>`

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	assert.True(t, parsed.IsLineTimed)
	require.Len(t, parsed.Lines, 1)
	assert.Equal(t, "整行歌词", parsed.Lines[0].LineText)

	found := false
	for _, w := range parsed.Warnings {
		if strings.Contains(w, "切换到逐行歌词模式") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestParseTimingAttrCaseInsensitive(t *testing.T) {
	doc := `<tt xmlns="http://www.w3.org/ns/ttml" itunes:timing="Line"><body>` +
		`<p begin="1.000" end="3.000"><span begin="1.000" end="2.000">词</span></p>` +
		`</body></tt>`

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	assert.True(t, parsed.IsLineTimed)
}

func TestParseForceTimingMode(t *testing.T) {
	doc := ttHeader + `<body><p begin="1.000" end="3.000">plain text</p></body></tt>`

	parsed, err := Parse(doc, model.ParseOptions{ForceTimingMode: model.TimingLine})
	require.NoError(t, err)
	assert.True(t, parsed.IsLineTimed)
	assert.Equal(t, "plain text", parsed.Lines[0].LineText)
}

func TestParseLineModeFromWordStructure(t *testing.T) {
	doc := `<tt xmlns="http://www.w3.org/ns/ttml" itunes:timing="line"><body>` +
		`<p begin="0.000" end="2.000">` +
		`<span begin="0.000" end="1.000">fu</span><span begin="1.000" end="2.000">ture</span>` +
		`</p></body></tt>`

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, "future", parsed.Lines[0].LineText)
}

func TestParseDivSongPartInheritance(t *testing.T) {
	doc := wordDoc(`<div begin="0.000" end="4.000" itunes:song-part="Chorus">` +
		`<p begin="0.000" end="2.000"><span begin="0.000" end="2.000">one</span></p>` +
		`<p begin="2.000" end="4.000" itunes:song-part="Verse"><span begin="2.000" end="4.000">two</span></p>` +
		`</div>`)

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	require.Len(t, parsed.Lines, 2)
	assert.Equal(t, "Chorus", parsed.Lines[0].SongPart)
	assert.Equal(t, "Verse", parsed.Lines[1].SongPart, "p 自身的 song-part 优先于 div")
}

func TestParseAgentAndKey(t *testing.T) {
	doc := wordDoc(`<p begin="0.000" end="2.000" ttm:agent="v2" itunes:key="L7">` +
		`<span begin="0.000" end="2.000">hey</span>` +
		`</p>`)

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, "v2", parsed.Lines[0].Agent)
	assert.Equal(t, "L7", parsed.Lines[0].ItunesKey)
}

func TestParseMetadataSection(t *testing.T) {
	doc := ttHeader + `<head><metadata>` +
		`<ttm:agent type="person" xml:id="v1"><ttm:name type="full">Singer</ttm:name></ttm:agent>` +
		`<ttm:agent type="group" xml:id="v1000"/>` +
		`<amll:meta key="musicName" value="Song"/>` +
		`<amll:meta key="artists" value="Band"/>` +
		`<amll:meta key="ncmMusicId" value="12345"/>` +
		`</metadata></head>` +
		`<body><p begin="0.000" end="2.000"><span begin="0.000" end="2.000">a</span></p></body></tt>`

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	raw := parsed.RawMetadata
	assert.Equal(t, []string{"Song"}, raw["musicName"])
	assert.Equal(t, []string{"Band"}, raw["artists"])
	assert.Equal(t, []string{"12345"}, raw["ncmMusicId"])
	assert.ElementsMatch(t, []string{"v1=Singer", "v1000"}, raw["agent"])
	assert.Equal(t, []string{"person"}, raw["agent-type-v1"])
	assert.Equal(t, []string{"group"}, raw["agent-type-v1000"])
}

func TestParseItunesTranslationBackfill(t *testing.T) {
	doc := ttHeader + `<head><metadata>` +
		`<iTunesMetadata xmlns="http://music.apple.com/lyric-ttml-internal">` +
		`<translations><translation type="subtitle" xml:lang="zh-CN">` +
		`<text for="L1">你好世界</text>` +
		`</translation></translations>` +
		`<songwriters><songwriter>Alice</songwriter><songwriter>Bob</songwriter></songwriters>` +
		`</iTunesMetadata>` +
		`</metadata></head>` +
		`<body><p begin="0.000" end="2.000" itunes:key="L1">` +
		`<span begin="0.000" end="2.000">hello world</span>` +
		`</p></body></tt>`

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	line := parsed.Lines[0]
	require.Len(t, line.Translations, 1)
	assert.Equal(t, "你好世界", line.Translations[0].Text)
	assert.Equal(t, "zh-CN", line.Translations[0].Lang)
	assert.Equal(t, []string{"Alice", "Bob"}, parsed.RawMetadata["songwriters"])
}

func TestParseSyntheticSyllableFromLineText(t *testing.T) {
	// 逐字文档中 p 内只有裸文本时，造一个覆盖整行的音节
	doc := wordDoc(`<p begin="1.000" end="3.000">bare text</p>` +
		`<p begin="3.000" end="5.000"><span begin="3.000" end="5.000">spanned</span></p>`)

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	require.Len(t, parsed.Lines, 2)
	require.Len(t, parsed.Lines[0].MainSyllables, 1)
	syl := parsed.Lines[0].MainSyllables[0]
	assert.Equal(t, "bare text", syl.Text)
	assert.Equal(t, int64(1000), syl.StartMs)
	assert.Equal(t, int64(3000), syl.EndMs)
}

func TestParseDropsEmptyZeroDurationLine(t *testing.T) {
	doc := wordDoc(`<p begin="0.000" end="0.000"></p>` +
		`<p begin="0.000" end="2.000"><span begin="0.000" end="2.000">kept</span></p>`)

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	require.Len(t, parsed.Lines, 1)
	assert.Equal(t, "kept", parsed.Lines[0].LineText)
}

func TestParseFatalTimeError(t *testing.T) {
	doc := wordDoc(`<p begin="0.000" end="2.000">` +
		`<span begin="bogus" end="1.000">x</span>` +
		`</p>`)

	_, err := Parse(doc, model.ParseOptions{})
	require.Error(t, err)
	var timeErr *TimeError
	assert.ErrorAs(t, err, &timeErr)
}

func TestParseFatalSyntaxError(t *testing.T) {
	doc := ttHeader + `<body><p begin="0.000" end="2.000"><span></p></body></tt>`

	_, err := Parse(doc, model.ParseOptions{})
	require.Error(t, err)
	var syntaxErr *SyntaxError
	assert.ErrorAs(t, err, &syntaxErr)
	assert.Greater(t, syntaxErr.Offset, int64(0))
}

func TestParseUntimedSpanIgnoredWithWarning(t *testing.T) {
	doc := wordDoc(`<p begin="0.000" end="2.000">` +
		`<span>no timing</span><span begin="0.000" end="2.000">ok</span>` +
		`</p>`)

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	require.Len(t, parsed.Lines[0].MainSyllables, 1)
	assert.Equal(t, "ok", parsed.Lines[0].MainSyllables[0].Text)

	found := false
	for _, w := range parsed.Warnings {
		if strings.Contains(w, "缺少时间信息") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestParseRootLangRecorded(t *testing.T) {
	doc := `<tt xmlns="http://www.w3.org/ns/ttml" itunes:timing="word" xml:lang="ja"><body>` +
		`<p begin="0.000" end="1.000"><span begin="0.000" end="1.000">詞</span></p>` +
		`</body></tt>`

	parsed, err := Parse(doc, model.ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ja"}, parsed.RawMetadata["xml:lang_root"])
}
