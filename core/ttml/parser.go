package ttml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"ttmlkit/model"
)

// 该解析器仅面向 Apple Music / AMLL 风格的 TTML 歌词文件，
// 不适合解析通用的 TTML 字幕文件。

type spanRole int

const (
	roleGeneric spanRole = iota
	roleTranslation
	roleRomanization
	roleBackground
)

// spanContext 记录一个已进入的 <span> 的属性，支持任意嵌套。
type spanContext struct {
	role     spanRole
	lang     string
	scheme   string
	startMs  int64
	endMs    int64
	hasStart bool
	hasEnd   bool
}

// backgroundData 累积当前 <p> 内的背景人声内容。
type backgroundData struct {
	startMs       int64
	endMs         int64
	syllables     []model.LyricSyllable
	translations  []model.TranslationEntry
	romanizations []model.RomanizationEntry
}

// pElementData 累积当前 <p> 元素解析过程中的临时数据。
type pElementData struct {
	startMs       int64
	endMs         int64
	agent         string
	songPart      string
	itunesKey     string
	lineText      strings.Builder
	syllables     []model.LyricSyllable
	translations  []model.TranslationEntry
	romanizations []model.RomanizationEntry
	background    *backgroundData
}

// itunesTranslation 是 <iTunesMetadata> 中按 itunes:key 关联的整行翻译。
type itunesTranslation struct {
	text string
	lang string
}

type parser struct {
	opts        model.ParseOptions
	isLineTimed bool
	lines       []model.LyricLine
	rawMetadata map[string][]string
	warnings    []string

	inBody      bool
	inDiv       bool
	inP         bool
	divSongPart string
	cur         *pElementData
	spanStack   []spanContext
	textBuf     strings.Builder

	// 上一个结束的元素是否是一个音节，用于把音节间的空格
	// 合并进前一个音节而不是产生多余的空格音节。
	lastWasSyllable   bool
	lastSyllableWasBG bool

	// <metadata> 子状态
	inMetadata   bool
	metaStack    []string
	metaTextBuf  strings.Builder
	metaLang     string
	metaFor      string
	curAgentID   string
	curAgentType string
	curAgentName string
	songwriters  []string

	translationMap map[string]itunesTranslation
}

// Parse 解析 TTML 歌词文本。
//
// 时间戳或 XML 语法层面的错误是致命的，直接返回 *TimeError 或
// *SyntaxError；其余可恢复的问题记录为警告随结果返回。
func Parse(content string, opts model.ParseOptions) (*model.ParsedDocument, error) {
	// 预扫描：是否存在带时间戳的 span，辅助判断计时模式
	hasTimedSpans := strings.Contains(content, "<span") && strings.Contains(content, "begin=")

	p := &parser{
		opts:           opts,
		rawMetadata:    make(map[string][]string),
		translationMap: make(map[string]itunesTranslation),
	}

	dec := xml.NewDecoder(strings.NewReader(content))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &SyntaxError{Offset: dec.InputOffset(), Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := p.handleStart(t, hasTimedSpans); err != nil {
				return nil, err
			}
		case xml.EndElement:
			p.handleEnd(t)
		case xml.CharData:
			p.handleText(string(t))
		}
	}

	return &model.ParsedDocument{
		Lines:       p.lines,
		RawMetadata: p.rawMetadata,
		IsLineTimed: p.isLineTimed,
		Warnings:    p.warnings,
	}, nil
}

func (p *parser) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

// attrVal 按本地名查找属性，忽略命名空间前缀，
// 以同时兼容 ttm:agent/agent、ttm:role/role 这类别名。
func attrVal(se xml.StartElement, local string) (string, bool) {
	for _, a := range se.Attr {
		if a.Name.Local == local && a.Name.Space != "xmlns" {
			return a.Value, true
		}
	}
	return "", false
}

func timeAttr(se xml.StartElement, local string) (int64, bool, error) {
	v, ok := attrVal(se, local)
	if !ok {
		return 0, false, nil
	}
	ms, err := ParseTime(v)
	if err != nil {
		return 0, false, err
	}
	return ms, true, nil
}

func (p *parser) handleStart(se xml.StartElement, hasTimedSpans bool) error {
	if p.inMetadata {
		p.handleMetadataStart(se)
		return nil
	}
	if p.inP {
		if se.Name.Local == "span" {
			return p.pushSpan(se)
		}
		return nil
	}

	switch se.Name.Local {
	case "tt":
		p.resolveTimingMode(se, hasTimedSpans)
		if lang, ok := attrVal(se, "lang"); ok && lang != "" {
			p.rawMetadata["xml:lang_root"] = append(p.rawMetadata["xml:lang_root"], lang)
		}
	case "metadata":
		if !p.inBody {
			p.inMetadata = true
			p.metaStack = p.metaStack[:0]
			p.metaStack = append(p.metaStack, "metadata")
		}
	case "body":
		p.inBody = true
	case "div":
		if p.inBody {
			p.inDiv = true
			p.divSongPart, _ = attrVal(se, "song-part")
		}
	case "p":
		if !p.inBody {
			return nil
		}
		start, _, err := timeAttr(se, "begin")
		if err != nil {
			return err
		}
		end, _, err := timeAttr(se, "end")
		if err != nil {
			return err
		}
		agent, _ := attrVal(se, "agent")
		songPart, ok := attrVal(se, "song-part")
		if !ok {
			songPart = p.divSongPart
		}
		key, _ := attrVal(se, "key")

		p.inP = true
		p.cur = &pElementData{
			startMs:   start,
			endMs:     end,
			agent:     agent,
			songPart:  songPart,
			itunesKey: key,
		}
		p.textBuf.Reset()
		p.spanStack = p.spanStack[:0]
		p.lastWasSyllable = false
	}
	return nil
}

func (p *parser) resolveTimingMode(se xml.StartElement, hasTimedSpans bool) {
	if p.opts.ForceTimingMode != "" {
		p.isLineTimed = p.opts.ForceTimingMode == model.TimingLine
		return
	}
	if v, ok := attrVal(se, "timing"); ok {
		p.isLineTimed = strings.EqualFold(strings.TrimSpace(v), string(model.TimingLine))
		return
	}
	if !hasTimedSpans {
		p.isLineTimed = true
		p.warnings = append(p.warnings,
			"未找到带时间戳的 <span> 标签且未指定 itunes:timing 模式，切换到逐行歌词模式。")
	}
}

func (p *parser) pushSpan(se xml.StartElement) error {
	// 进入新的 span 前清空文本缓冲区
	p.textBuf.Reset()

	role := roleGeneric
	if v, ok := attrVal(se, "role"); ok {
		switch v {
		case "x-translation":
			role = roleTranslation
		case "x-roman":
			role = roleRomanization
		case "x-bg":
			role = roleBackground
		}
	}
	lang, _ := attrVal(se, "lang")
	scheme, _ := attrVal(se, "scheme")
	start, hasStart, err := timeAttr(se, "begin")
	if err != nil {
		return err
	}
	end, hasEnd, err := timeAttr(se, "end")
	if err != nil {
		return err
	}

	p.spanStack = append(p.spanStack, spanContext{
		role:     role,
		lang:     lang,
		scheme:   scheme,
		startMs:  start,
		endMs:    end,
		hasStart: hasStart,
		hasEnd:   hasEnd,
	})

	// 背景人声容器：每个 <p> 只有一个累加器
	if role == roleBackground && p.cur != nil && p.cur.background == nil {
		p.cur.background = &backgroundData{startMs: start, endMs: end}
	}
	return nil
}

func (p *parser) handleText(text string) {
	if p.inMetadata {
		p.metaTextBuf.WriteString(text)
		return
	}
	if !p.inP || p.cur == nil {
		return
	}

	// 上一个事件是一个结束的音节，且当前文本为纯空白：
	// 不包含换行时视为音节间的分隔空格，合并进前一个音节。
	if p.lastWasSyllable && isAllWhitespace(text) {
		if !strings.ContainsAny(text, "\n\r") {
			p.markLastSyllableSpace()
		}
		p.lastWasSyllable = false
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	p.lastWasSyllable = false
	if len(p.spanStack) > 0 {
		p.textBuf.WriteString(text)
	} else {
		p.cur.lineText.WriteString(text)
	}
}

// markLastSyllableSpace 给最近一个音节补上 ends_with_space 标志。
func (p *parser) markLastSyllableSpace() {
	var target []model.LyricSyllable
	if p.lastSyllableWasBG {
		if p.cur.background != nil {
			target = p.cur.background.syllables
		}
	} else {
		target = p.cur.syllables
	}
	if len(target) > 0 {
		target[len(target)-1].EndsWithSpace = true
	}
}

func (p *parser) handleEnd(ee xml.EndElement) {
	if p.inMetadata {
		p.handleMetadataEnd(ee)
		return
	}
	if p.inP {
		switch ee.Name.Local {
		case "span":
			p.popSpan()
		case "br":
			p.warnf("在 <p> (%dms-%dms) 中发现并忽略了一个 <br/> 标签。", p.cur.startMs, p.cur.endMs)
		case "p":
			p.finalizeP()
			p.inP = false
			p.spanStack = p.spanStack[:0]
			p.lastWasSyllable = false
		}
		return
	}

	switch ee.Name.Local {
	case "div":
		if p.inDiv {
			p.inDiv = false
			p.divSongPart = ""
		}
	case "body":
		p.inBody = false
	}
}

func (p *parser) popSpan() {
	p.lastWasSyllable = false

	if len(p.spanStack) == 0 {
		return
	}
	ctx := p.spanStack[len(p.spanStack)-1]
	p.spanStack = p.spanStack[:len(p.spanStack)-1]
	text := p.textBuf.String()
	p.textBuf.Reset()

	switch ctx.role {
	case roleGeneric:
		p.finishGenericSpan(ctx, text)
	case roleTranslation, roleRomanization:
		p.finishAuxiliarySpan(ctx, text)
	case roleBackground:
		p.finishBackgroundSpan(ctx, text)
	}
}

// insideBackground 判断当前是否仍处于某个背景人声容器内。
func (p *parser) insideBackground() bool {
	for _, s := range p.spanStack {
		if s.role == roleBackground {
			return true
		}
	}
	return false
}

func (p *parser) finishGenericSpan(ctx spanContext, text string) {
	// 逐行模式下所有 span 文本直接并入行文本
	if p.isLineTimed {
		p.cur.lineText.WriteString(text)
		return
	}

	if !ctx.hasStart || !ctx.hasEnd {
		if strings.TrimSpace(text) != "" {
			p.warnf("逐字模式下，span缺少时间信息，文本 '%s' 被忽略。", strings.TrimSpace(text))
		}
		return
	}
	if text == "" {
		return
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		// 纯空白 span 不产生音节，只给前一个音节补空格标志
		p.markLastSyllableSpace()
		return
	}

	if ctx.startMs > ctx.endMs {
		p.warnf("音节 '%s' 的时间戳无效 (start_ms %d > end_ms %d), 但仍会创建音节。",
			text, ctx.startMs, ctx.endMs)
	}

	wasBG := p.insideBackground()
	var cleaned string
	if wasBG {
		cleaned = cleanBackgroundParens(trimmed)
	} else {
		cleaned = normalizeWhitespace(trimmed)
	}
	end := ctx.endMs
	if end < ctx.startMs {
		end = ctx.startMs
	}
	syl := model.LyricSyllable{
		Text:          cleaned,
		StartMs:       ctx.startMs,
		EndMs:         end,
		DurationMs:    end - ctx.startMs,
		EndsWithSpace: endsWithWhitespace(text),
	}

	if wasBG {
		if p.cur.background == nil {
			return
		}
		p.cur.background.syllables = append(p.cur.background.syllables, syl)
	} else {
		p.cur.syllables = append(p.cur.syllables, syl)
	}
	p.lastWasSyllable = true
	p.lastSyllableWasBG = wasBG
}

func (p *parser) finishAuxiliarySpan(ctx spanContext, text string) {
	normalized := normalizeWhitespace(text)
	if normalized == "" {
		return
	}

	wasBG := p.insideBackground()

	// 语言优先使用 span 自身的 xml:lang；
	// 背景容器内不回落到全局默认语言。
	lang := ctx.lang
	if lang == "" && !wasBG {
		if ctx.role == roleTranslation {
			lang = p.opts.DefaultTranslationLang
		} else {
			lang = p.opts.DefaultRomanizationLang
		}
	}

	switch ctx.role {
	case roleTranslation:
		entry := model.TranslationEntry{Text: normalized, Lang: lang}
		if wasBG {
			if p.cur.background != nil {
				p.cur.background.translations = append(p.cur.background.translations, entry)
			}
		} else {
			p.cur.translations = append(p.cur.translations, entry)
		}
	case roleRomanization:
		entry := model.RomanizationEntry{Text: normalized, Lang: lang, Scheme: ctx.scheme}
		if wasBG {
			if p.cur.background != nil {
				p.cur.background.romanizations = append(p.cur.background.romanizations, entry)
			}
		} else {
			p.cur.romanizations = append(p.cur.romanizations, entry)
		}
	}
}

func (p *parser) finishBackgroundSpan(ctx spanContext, text string) {
	bg := p.cur.background
	if bg == nil {
		return
	}

	// 容器缺少时间戳时，用内部音节的时间范围回填
	if (!ctx.hasStart || !ctx.hasEnd) && len(bg.syllables) > 0 {
		minStart, maxEnd := bg.syllables[0].StartMs, bg.syllables[0].EndMs
		for _, s := range bg.syllables[1:] {
			if s.StartMs < minStart {
				minStart = s.StartMs
			}
			if s.EndMs > maxEnd {
				maxEnd = s.EndMs
			}
		}
		bg.startMs = minStart
		bg.endMs = maxEnd
	}

	// 不规范情况：背景容器直接包含文本而不是嵌套 span
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	if !ctx.hasStart || !ctx.hasEnd {
		p.warnf("<span ttm:role='x-bg'> 直接包含文本 '%s'，但缺少时间信息，忽略。", trimmed)
		return
	}
	if len(bg.syllables) > 0 {
		p.warnf("<span ttm:role='x-bg'> 直接包含文本 '%s'，但其内部已有音节，此直接文本被忽略。", trimmed)
		return
	}
	end := ctx.endMs
	if end < ctx.startMs {
		end = ctx.startMs
	}
	bg.syllables = append(bg.syllables, model.LyricSyllable{
		Text:          normalizeWhitespace(trimmed),
		StartMs:       ctx.startMs,
		EndMs:         end,
		DurationMs:    end - ctx.startMs,
		EndsWithSpace: endsWithWhitespace(text),
	})
	p.lastWasSyllable = true
	p.lastSyllableWasBG = true
}

// joinSyllables 按 ends_with_space 标志重新拼出整行文本。
func joinSyllables(syls []model.LyricSyllable) string {
	var b strings.Builder
	for _, s := range syls {
		b.WriteString(s.Text)
		if s.EndsWithSpace {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// finalizeP 在 </p> 时把累积数据组合成一个 LyricLine。
func (p *parser) finalizeP() {
	cur := p.cur
	p.cur = nil
	if cur == nil {
		return
	}

	// 回填来自 <iTunesMetadata> 的整行翻译，避免与行内翻译重复
	if cur.itunesKey != "" {
		if entry, ok := p.translationMap[cur.itunesKey]; ok {
			dup := false
			for _, t := range cur.translations {
				if t.Text == entry.text {
					dup = true
					break
				}
			}
			if !dup {
				cur.translations = append(cur.translations,
					model.TranslationEntry{Text: entry.text, Lang: entry.lang})
			}
		}
	}

	line := model.LyricLine{
		StartMs:       cur.startMs,
		EndMs:         cur.endMs,
		Agent:         cur.agent,
		SongPart:      cur.songPart,
		ItunesKey:     cur.itunesKey,
		Translations:  cur.translations,
		Romanizations: cur.romanizations,
	}

	if p.isLineTimed {
		p.finalizeLineMode(&line, cur)
	} else {
		p.finalizeWordMode(&line, cur)
	}

	if bg := cur.background; bg != nil &&
		(len(bg.syllables) > 0 || len(bg.translations) > 0 || len(bg.romanizations) > 0) {
		line.BackgroundSection = &model.BackgroundSection{
			StartMs:       bg.startMs,
			EndMs:         bg.endMs,
			Syllables:     bg.syllables,
			Translations:  bg.translations,
			Romanizations: bg.romanizations,
		}
	}

	// 行尾音节不携带空格标志
	if n := len(line.MainSyllables); n > 0 {
		line.MainSyllables[n-1].EndsWithSpace = false
	}
	if bg := line.BackgroundSection; bg != nil {
		if n := len(bg.Syllables); n > 0 {
			bg.Syllables[n-1].EndsWithSpace = false
		}
	}

	// 有文本但没有音节：造一个覆盖整行的音节，供下游平滑和序列化使用
	if len(line.MainSyllables) == 0 && line.LineText != "" && line.EndMs > line.StartMs {
		line.MainSyllables = append(line.MainSyllables, model.LyricSyllable{
			Text:       line.LineText,
			StartMs:    line.StartMs,
			EndMs:      line.EndMs,
			DurationMs: line.EndMs - line.StartMs,
		})
	}

	// 完全空的零时长行直接丢弃
	if len(line.MainSyllables) == 0 && line.LineText == "" &&
		len(line.Translations) == 0 && len(line.Romanizations) == 0 &&
		line.BackgroundSection == nil && line.EndMs <= line.StartMs {
		return
	}

	p.lines = append(p.lines, line)
}

func (p *parser) finalizeLineMode(line *model.LyricLine, cur *pElementData) {
	text := cur.lineText.String()

	// 兼容：p 内没有直接文本但有逐字结构时，用音节拼出行文本
	if strings.TrimSpace(text) == "" && len(cur.syllables) > 0 {
		text = joinSyllables(cur.syllables)
		p.warnf("逐行段落 (%dms-%dms) 的文本来自其内部的逐字结构。", line.StartMs, line.EndMs)
	}
	line.LineText = normalizeWhitespace(text)

	if len(cur.syllables) > 0 {
		p.warnf("在逐行歌词的段落 (%dms-%dms) 中检测到并忽略了 %d 个逐字音节的时间戳。",
			line.StartMs, line.EndMs, len(cur.syllables))
	}
}

func (p *parser) finalizeWordMode(line *model.LyricLine, cur *pElementData) {
	line.MainSyllables = cur.syllables

	// 处理 <p> 内未被 span 包裹的散落文本
	loose := normalizeWhitespace(cur.lineText.String())
	if loose != "" {
		if len(line.MainSyllables) == 0 {
			if line.StartMs > line.EndMs {
				p.warnf("为 <p> 标签内的直接文本 '%s' 创建音节时，时间戳无效 (start_ms %d > end_ms %d).",
					loose, line.StartMs, line.EndMs)
			}
			end := line.EndMs
			if end < line.StartMs {
				end = line.StartMs
			}
			line.MainSyllables = append(line.MainSyllables, model.LyricSyllable{
				Text:       loose,
				StartMs:    line.StartMs,
				EndMs:      end,
				DurationMs: end - line.StartMs,
			})
		} else {
			p.warnf("段落 (%dms-%dms) 包含未被span包裹的文本: '%s'。此文本被忽略。",
				line.StartMs, line.EndMs, loose)
		}
	}

	if len(line.MainSyllables) > 0 {
		line.LineText = strings.TrimRight(joinSyllables(line.MainSyllables), " ")
	}
}

// ---------------------------------------------------------------------------
// <metadata> 子语法
// ---------------------------------------------------------------------------

func (p *parser) handleMetadataStart(se xml.StartElement) {
	local := se.Name.Local
	directChild := len(p.metaStack) == 1

	switch local {
	case "meta":
		key, _ := attrVal(se, "key")
		value, _ := attrVal(se, "value")
		if key != "" {
			p.rawMetadata[key] = append(p.rawMetadata[key], value)
		}
	case "agent":
		p.curAgentID, _ = attrVal(se, "id")
		p.curAgentType, _ = attrVal(se, "type")
		p.curAgentName = ""
	case "name", "songwriter":
		p.metaTextBuf.Reset()
	case "translation":
		p.metaLang, _ = attrVal(se, "lang")
	case "text":
		p.metaFor, _ = attrVal(se, "for")
		p.metaTextBuf.Reset()
	case "iTunesMetadata", "songwriters", "translations":
		// 结构性容器
	default:
		if directChild {
			p.metaTextBuf.Reset()
		}
	}
	p.metaStack = append(p.metaStack, local)
}

func (p *parser) handleMetadataEnd(ee xml.EndElement) {
	local := ee.Name.Local
	if n := len(p.metaStack); n > 0 {
		p.metaStack = p.metaStack[:n-1]
	}
	parent := ""
	if n := len(p.metaStack); n > 0 {
		parent = p.metaStack[n-1]
	}

	switch local {
	case "metadata":
		p.inMetadata = false
		if len(p.songwriters) > 0 {
			p.rawMetadata["songwriters"] = append(p.rawMetadata["songwriters"], p.songwriters...)
			p.songwriters = nil
		}
	case "name":
		if parent == "agent" {
			p.curAgentName = strings.TrimSpace(p.metaTextBuf.String())
		}
	case "agent":
		p.registerAgent()
	case "songwriter":
		if v := strings.TrimSpace(p.metaTextBuf.String()); v != "" {
			p.songwriters = append(p.songwriters, v)
		}
	case "text":
		if p.metaFor != "" {
			p.translationMap[p.metaFor] = itunesTranslation{
				text: p.metaTextBuf.String(),
				lang: p.metaLang,
			}
			p.metaFor = ""
		}
	case "translation":
		p.metaLang = ""
	case "iTunesMetadata", "songwriters", "translations", "meta":
	default:
		// metadata 的其它直接子元素按元素名收进裸元数据表
		if parent == "metadata" {
			if v := normalizeWhitespace(p.metaTextBuf.String()); v != "" {
				p.rawMetadata[local] = append(p.rawMetadata[local], v)
			}
		}
	}
}

// registerAgent 把一条 agent 声明写入裸元数据表。
// 显示名以 "id=name" 形式记录在 "agent" 键下，
// 类型记录在合成键 "agent-type-<id>" 下。
func (p *parser) registerAgent() {
	if p.curAgentID == "" {
		return
	}
	display := p.curAgentID
	if p.curAgentName != "" {
		display = p.curAgentID + "=" + p.curAgentName
	}
	p.rawMetadata["agent"] = append(p.rawMetadata["agent"], display)
	if p.curAgentType != "" {
		key := "agent-type-" + p.curAgentID
		p.rawMetadata[key] = append(p.rawMetadata[key], p.curAgentType)
	}
	p.curAgentID, p.curAgentType, p.curAgentName = "", "", ""
}
