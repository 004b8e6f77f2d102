package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ttmlkit/core/ttml"
	"ttmlkit/model"
)

const completeDoc = `<tt xmlns="http://www.w3.org/ns/ttml" xmlns:ttm="http://www.w3.org/ns/ttml#metadata" xmlns:itunes="http://music.apple.com/lyric-ttml-internal" xmlns:amll="http://www.example.com/ns/amll" itunes:timing="word">` +
	`<head><metadata>` +
	`<amll:meta key="musicName" value="Song"/>` +
	`<amll:meta key="artists" value="Band"/>` +
	`<amll:meta key="album" value="Album"/>` +
	`<amll:meta key="ncmMusicId" value="12345"/>` +
	`</metadata></head><body>` +
	`<p begin="2.000" end="3.000"><span begin="2.000" end="3.000">second</span></p>` +
	`<p begin="0.000" end="1.000"><span begin="0.000" end="1.000">first</span></p>` +
	`</body></tt>`

func TestConvertHappyPath(t *testing.T) {
	result, err := Convert(completeDoc, Options{})
	require.NoError(t, err)

	assert.Contains(t, result.Output, `itunes:timing="word"`)
	assert.Contains(t, result.Output, ">first</span>")
	assert.False(t, result.IsLineTimed)
	assert.Equal(t, []string{"Song"}, result.Metadata["Title"])

	// 行按开始时间重排
	require.Len(t, result.Lines, 2)
	assert.Equal(t, "first", result.Lines[0].LineText)
	assert.Equal(t, "second", result.Lines[1].LineText)
	assert.Less(t, strings.Index(result.Output, ">first</span>"),
		strings.Index(result.Output, ">second</span>"))
}

func TestConvertValidationFailure(t *testing.T) {
	doc := `<tt xmlns="http://www.w3.org/ns/ttml" itunes:timing="word"><body>` +
		`<p begin="0.000" end="1.000"><span begin="0.000" end="1.000">a</span></p>` +
		`</body></tt>`

	_, err := Convert(doc, Options{})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.NotEmpty(t, valErr.Violations)
	assert.Contains(t, err.Error(), "歌词验证未通过")
}

func TestConvertSkipValidation(t *testing.T) {
	doc := `<tt xmlns="http://www.w3.org/ns/ttml" itunes:timing="word"><body>` +
		`<p begin="0.000" end="1.000"><span begin="0.000" end="1.000">a</span></p>` +
		`</body></tt>`

	result, err := Convert(doc, Options{SkipValidation: true})
	require.NoError(t, err)
	assert.Contains(t, result.Output, ">a</span>")
}

func TestConvertParseErrorPropagates(t *testing.T) {
	_, err := Convert("<tt><body><p></body></tt>", Options{SkipValidation: true})
	require.Error(t, err)
	var syntaxErr *ttml.SyntaxError
	assert.ErrorAs(t, err, &syntaxErr)
}

func TestConvertTimingModeInherited(t *testing.T) {
	doc := `<tt xmlns="http://www.w3.org/ns/ttml" itunes:timing="line"><body>` +
		`<p begin="0.000" end="1.000">一行歌词</p>` +
		`</body></tt>`

	result, err := Convert(doc, Options{SkipValidation: true})
	require.NoError(t, err)
	assert.True(t, result.IsLineTimed)
	assert.Contains(t, result.Output, `itunes:timing="line"`, "未指定时沿用源文件的计时模式")
}

func TestConvertWithSmoothing(t *testing.T) {
	doc := `<tt xmlns="http://www.w3.org/ns/ttml" itunes:timing="word"><body>` +
		`<p begin="0.000" end="1.000">` +
		`<span begin="0.000" end="0.190">a</span>` +
		`<span begin="0.190" end="0.400">b</span>` +
		`<span begin="0.400" end="0.595">c</span>` +
		`<span begin="0.595" end="0.800">d</span>` +
		`<span begin="0.800" end="1.000">e</span>` +
		`</p></body></tt>`

	smoothing := model.DefaultSmoothingOptions()
	result, err := Convert(doc, Options{SkipValidation: true, Smoothing: &smoothing})
	require.NoError(t, err)

	syls := result.Lines[0].MainSyllables
	require.Len(t, syls, 5)
	assert.Equal(t, int64(0), syls[0].StartMs)
	assert.Equal(t, int64(1000), syls[4].EndMs)
	assert.NotEqual(t, int64(190), syls[0].EndMs, "平滑应调整锯齿时长")
}

func TestCheckReportsViolationsWithoutFailing(t *testing.T) {
	doc := `<tt xmlns="http://www.w3.org/ns/ttml" itunes:timing="word"><body>` +
		`<p begin="0.000" end="1.000"><span begin="0.000" end="1.000">a</span></p>` +
		`</body></tt>`

	result, err := Check(doc, model.ParseOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Violations)
}

func TestCheckCleanDocument(t *testing.T) {
	result, err := Check(completeDoc, model.ParseOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Violations)
	assert.Equal(t, []string{"Band"}, result.Metadata["Artist"])
}
