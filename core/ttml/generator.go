package ttml

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"ttmlkit/core/metadata"
	"ttmlkit/model"
)

// 该生成器仅面向 Apple Music / AMLL 风格的 TTML 歌词文件。

const (
	nsTT     = "http://www.w3.org/ns/ttml"
	nsTTM    = "http://www.w3.org/ns/ttml#metadata"
	nsItunes = "http://music.apple.com/lyric-ttml-internal"
	nsAmll   = "http://www.example.com/ns/amll"
)

// amllMetaKeys 是写入 <amll:meta> 的固定键表，顺序即输出顺序。
var amllMetaKeys = []struct {
	attr string
	key  metadata.CanonicalKey
}{
	{"musicName", metadata.KeyTitle},
	{"artists", metadata.KeyArtist},
	{"album", metadata.KeyAlbum},
	{"isrc", metadata.KeyIsrc},
	{"appleMusicId", metadata.KeyAppleMusicID},
	{"ncmMusicId", metadata.KeyNcmMusicID},
	{"spotifyId", metadata.KeySpotifyID},
	{"qqMusicId", metadata.KeyQqMusicID},
	{"ttmlAuthorGithub", metadata.KeyTtmlAuthorGithub},
	{"ttmlAuthorGithubLogin", metadata.KeyTtmlAuthorGithubLogin},
}

// Generate 把歌词行和元数据序列化为 TTML 文本。
// 输出是确定性的：相同输入总是得到字节级相同的结果。
func Generate(lines []model.LyricLine, store *metadata.Store, opts model.GenerateOptions) (string, error) {
	switch opts.TimingMode {
	case "":
		opts.TimingMode = model.TimingWord
	case model.TimingWord, model.TimingLine:
	default:
		return "", &GenerateError{Reason: "未知的计时模式 '" + string(opts.TimingMode) + "'"}
	}

	g := &generator{
		w:     xmlWriter{pretty: opts.Format},
		store: store,
		opts:  opts,
	}
	g.writeRoot(lines)
	return g.w.b.String(), nil
}

type generator struct {
	w     xmlWriter
	store *metadata.Store
	opts  model.GenerateOptions
}

// resolveAgentID 把行上的演唱者标识规整为可用的 agent id。
// 空值和占位值 v0 统一归到默认的 v1。
func resolveAgentID(agent string) string {
	if agent == "" || agent == "v0" {
		return "v1"
	}
	return agent
}

// trailingNumeral 取 id 末尾的数字用于排序，没有数字的排最后。
func trailingNumeral(id string) int64 {
	i := len(id)
	for i > 0 && id[i-1] >= '0' && id[i-1] <= '9' {
		i--
	}
	if i == len(id) {
		return math.MaxInt64
	}
	n, err := strconv.ParseInt(id[i:], 10, 64)
	if err != nil {
		return math.MaxInt64
	}
	return n
}

// referencedAgents 收集头部需要声明的 agent id，按末尾数字排序。
func (g *generator) referencedAgents(lines []model.LyricLine) []string {
	if len(lines) == 0 {
		return nil
	}
	if g.opts.TimingMode == model.TimingLine {
		return []string{"v1"}
	}
	seen := make(map[string]bool)
	var ids []string
	for _, line := range lines {
		id := resolveAgentID(line.Agent)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		ids = append(ids, "v1")
	}
	sort.SliceStable(ids, func(i, j int) bool {
		ni, nj := trailingNumeral(ids[i]), trailingNumeral(ids[j])
		if ni != nj {
			return ni < nj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// agentName 查找 agent 的显示名。
// 先查 "agent" 键下的 "id=name" 记录，再查合成键 "agent-name-<id>"。
func (g *generator) agentName(id string) string {
	for _, entry := range g.store.GetMultiple(metadata.CustomKey("agent")) {
		entryID, name, ok := strings.Cut(entry, "=")
		if ok && entryID == id && name != "" {
			return name
		}
	}
	if name, ok := g.store.GetSingle(metadata.CustomKey("agent-name-" + id)); ok {
		return name
	}
	return ""
}

func (g *generator) agentType(id string) string {
	if t, ok := g.store.GetSingle(metadata.CustomKey("agent-type-" + id)); ok && t != "" {
		return t
	}
	return "person"
}

func (g *generator) writeRoot(lines []model.LyricLine) {
	attrs := []xattr{
		{"xmlns", nsTT},
		{"xmlns:ttm", nsTTM},
		{"xmlns:itunes", nsItunes},
		{"itunes:timing", string(g.opts.TimingMode)},
	}
	needAmll := false
	for _, entry := range amllMetaKeys {
		if g.store.Has(entry.key) {
			needAmll = true
			break
		}
	}
	if needAmll {
		attrs = append(attrs, xattr{"xmlns:amll", nsAmll})
	}
	lang := g.opts.MainLang
	if lang == "" {
		lang, _ = g.store.GetSingle(metadata.KeyLanguage)
	}
	if lang != "" {
		attrs = append(attrs, xattr{"xml:lang", lang})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].k < attrs[j].k })

	g.w.open("tt", attrs)
	g.writeHead(lines)
	g.writeBody(lines)
	g.w.close("tt")
}

func (g *generator) writeHead(lines []model.LyricLine) {
	g.w.open("head", nil)
	g.w.open("metadata", nil)

	for _, id := range g.referencedAgents(lines) {
		attrs := []xattr{{"type", g.agentType(id)}, {"xml:id", id}}
		if name := g.agentName(id); name != "" {
			g.w.open("ttm:agent", attrs)
			g.w.leaf("ttm:name", []xattr{{"type", "full"}}, name)
			g.w.close("ttm:agent")
		} else {
			g.w.empty("ttm:agent", attrs)
		}
	}

	g.writeItunesMetadata(lines)

	for _, entry := range amllMetaKeys {
		for _, value := range g.store.GetMultiple(entry.key) {
			if v := strings.TrimSpace(value); v != "" {
				g.w.empty("amll:meta", []xattr{{"key", entry.attr}, {"value", v}})
			}
		}
	}

	g.w.close("metadata")
	g.w.close("head")
}

// writeItunesMetadata 输出 <iTunesMetadata>：词作者列表，
// 以及严格平台模式下按语言归组的整行翻译。
func (g *generator) writeItunesMetadata(lines []model.LyricLine) {
	var songwriters []string
	for _, sw := range g.store.GetMultiple(metadata.KeySongwriter) {
		if s := strings.TrimSpace(sw); s != "" {
			songwriters = append(songwriters, s)
		}
	}

	type keyedText struct{ key, text string }
	translationsByLang := make(map[string][]keyedText)
	if g.opts.StrictPlatformRules {
		for _, line := range lines {
			if line.ItunesKey == "" {
				continue
			}
			for _, tr := range line.Translations {
				translationsByLang[tr.Lang] = append(translationsByLang[tr.Lang],
					keyedText{line.ItunesKey, tr.Text})
			}
		}
	}

	if len(songwriters) == 0 && len(translationsByLang) == 0 {
		return
	}

	g.w.open("iTunesMetadata", []xattr{{"xmlns", nsItunes}})

	if len(translationsByLang) > 0 {
		langs := make([]string, 0, len(translationsByLang))
		for lang := range translationsByLang {
			langs = append(langs, lang)
		}
		sort.Strings(langs)

		g.w.open("translations", nil)
		for _, lang := range langs {
			attrs := []xattr{{"type", "subtitle"}}
			if lang != "" {
				attrs = append(attrs, xattr{"xml:lang", lang})
			}
			g.w.open("translation", attrs)
			for _, entry := range translationsByLang[lang] {
				if text := normalizeWhitespace(entry.text); text != "" {
					g.w.leaf("text", []xattr{{"for", entry.key}}, text)
				}
			}
			g.w.close("translation")
		}
		g.w.close("translations")
	}

	if len(songwriters) > 0 {
		g.w.open("songwriters", nil)
		for _, sw := range songwriters {
			g.w.leaf("songwriter", nil, sw)
		}
		g.w.close("songwriters")
	}

	g.w.close("iTunesMetadata")
}

// divGroup 同一 song-part 的行构成一个 <div>。
type divGroup struct {
	songPart string
	lines    []model.LyricLine
	minStart int64
	maxEnd   int64
}

func (g *generator) writeBody(lines []model.LyricLine) {
	var bodyDur int64
	for _, line := range lines {
		if line.EndMs > bodyDur {
			bodyDur = line.EndMs
		}
	}
	var attrs []xattr
	if bodyDur > 0 {
		attrs = append(attrs, xattr{"dur", FormatTime(bodyDur)})
	}
	if len(lines) == 0 {
		g.w.empty("body", attrs)
		return
	}
	g.w.open("body", attrs)

	// 按 song-part 归组，组间按组内最早开始时间排序
	groupIndex := make(map[string]int)
	var groups []*divGroup
	for _, line := range lines {
		idx, ok := groupIndex[line.SongPart]
		if !ok {
			idx = len(groups)
			groupIndex[line.SongPart] = idx
			groups = append(groups, &divGroup{
				songPart: line.SongPart,
				minStart: line.StartMs,
				maxEnd:   line.EndMs,
			})
		}
		grp := groups[idx]
		grp.lines = append(grp.lines, line)
		if line.StartMs < grp.minStart {
			grp.minStart = line.StartMs
		}
		if line.EndMs > grp.maxEnd {
			grp.maxEnd = line.EndMs
		}
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].minStart < groups[j].minStart })

	keyCounter := 0
	for _, grp := range groups {
		g.writeDiv(grp, &keyCounter)
	}
	g.w.close("body")
}

func (g *generator) writeDiv(grp *divGroup, keyCounter *int) {
	attrs := []xattr{
		{"begin", FormatTime(grp.minStart)},
		{"end", FormatTime(grp.maxEnd)},
	}
	if grp.songPart != "" {
		attrs = append(attrs, xattr{"itunes:song-part", grp.songPart})
	}
	g.w.open("div", attrs)
	for i := range grp.lines {
		*keyCounter++
		g.writeParagraph(&grp.lines[i], *keyCounter)
	}
	g.w.close("div")
}

func (g *generator) writeParagraph(line *model.LyricLine, key int) {
	attrs := []xattr{
		{"begin", FormatTime(line.StartMs)},
		{"end", FormatTime(line.EndMs)},
		{"itunes:key", "L" + strconv.Itoa(key)},
	}
	lineText := normalizeWhitespace(line.LineText)
	if lineText == "" && len(line.MainSyllables) > 0 {
		lineText = strings.TrimRight(joinSyllables(line.MainSyllables), " ")
		lineText = normalizeWhitespace(lineText)
	}

	if g.opts.TimingMode == model.TimingWord {
		attrs = append(attrs, xattr{"ttm:agent", resolveAgentID(line.Agent)})
	} else if lineText != "" {
		attrs = append(attrs, xattr{"ttm:agent", "v1"})
	}

	g.w.open("p", attrs)

	emitAux := !g.opts.StrictPlatformRules
	hasAux := emitAux && g.hasAuxContent(line.Translations, line.Romanizations)

	if g.opts.TimingMode == model.TimingWord {
		n := len(line.MainSyllables)
		for i, syl := range line.MainSyllables {
			space := syl.EndsWithSpace && (i < n-1 || hasAux)
			g.writeSyllableSpan(syl, space)
		}
	} else if lineText != "" {
		g.w.text(lineText)
	}

	if emitAux {
		g.writeAuxSpans(line.Translations, line.Romanizations)
	}

	if g.opts.TimingMode == model.TimingWord && line.BackgroundSection != nil {
		g.writeBackgroundSection(line.BackgroundSection)
	}

	g.w.close("p")
}

func (g *generator) hasAuxContent(trs []model.TranslationEntry, roms []model.RomanizationEntry) bool {
	for _, t := range trs {
		if normalizeWhitespace(t.Text) != "" {
			return true
		}
	}
	for _, r := range roms {
		if normalizeWhitespace(r.Text) != "" {
			return true
		}
	}
	return false
}

// writeSyllableSpan 输出一个音节。格式化模式下分隔空格放在
// span 文本末尾，紧凑模式下作为 span 之间的文本节点。
func (g *generator) writeSyllableSpan(syl model.LyricSyllable, space bool) {
	end := syl.EndMs
	if end < syl.StartMs {
		end = syl.StartMs
	}
	attrs := []xattr{
		{"begin", FormatTime(syl.StartMs)},
		{"end", FormatTime(end)},
	}
	text := syl.Text
	if space && g.opts.Format {
		text += " "
	}
	g.w.leaf("span", attrs, text)
	if space && !g.opts.Format {
		g.w.rawText(" ")
	}
}

// writeAuxSpans 输出内联的翻译和罗马音 span。
// 语言取生成选项里的覆盖值，否则用条目自带的语言标签。
func (g *generator) writeAuxSpans(trs []model.TranslationEntry, roms []model.RomanizationEntry) {
	for _, tr := range trs {
		text := normalizeWhitespace(tr.Text)
		if text == "" {
			continue
		}
		attrs := []xattr{{"ttm:role", "x-translation"}}
		lang := g.opts.TranslationLang
		if lang == "" {
			lang = tr.Lang
		}
		if lang != "" {
			attrs = append(attrs, xattr{"xml:lang", lang})
		}
		g.w.leaf("span", attrs, text)
	}
	for _, rom := range roms {
		text := normalizeWhitespace(rom.Text)
		if text == "" {
			continue
		}
		attrs := []xattr{{"ttm:role", "x-roman"}}
		lang := g.opts.RomanizationLang
		if lang == "" {
			lang = rom.Lang
		}
		if lang != "" {
			attrs = append(attrs, xattr{"xml:lang", lang})
		}
		if rom.Scheme != "" {
			attrs = append(attrs, xattr{"xml:scheme", rom.Scheme})
		}
		g.w.leaf("span", attrs, text)
	}
}

func (g *generator) writeBackgroundSection(bg *model.BackgroundSection) {
	if len(bg.Syllables) == 0 && bg.EndMs <= bg.StartMs {
		return
	}
	g.w.open("span", []xattr{
		{"ttm:role", "x-bg"},
		{"begin", FormatTime(bg.StartMs)},
		{"end", FormatTime(bg.EndMs)},
	})

	emitAux := !g.opts.StrictPlatformRules
	hasAux := emitAux && g.hasAuxContent(bg.Translations, bg.Romanizations)

	n := len(bg.Syllables)
	for i, syl := range bg.Syllables {
		if syl.Text == "" && syl.EndMs <= syl.StartMs {
			continue
		}
		// 背景人声的括号在解析时被剥掉，输出时补回
		if strings.TrimSpace(syl.Text) != "" {
			switch {
			case n == 1:
				syl.Text = "(" + syl.Text + ")"
			case i == 0:
				syl.Text = "(" + syl.Text
			case i == n-1:
				syl.Text += ")"
			}
		}
		space := syl.EndsWithSpace && (i < n-1 || hasAux)
		g.writeSyllableSpan(syl, space)
	}

	if emitAux {
		g.writeAuxSpans(bg.Translations, bg.Romanizations)
	}

	g.w.close("span")
}

// ---------------------------------------------------------------------------
// 底层 XML 输出
// ---------------------------------------------------------------------------

type xattr struct{ k, v string }

var (
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\"", "&quot;")
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

// xmlWriter 是一个极简的 XML 序列化器。
// pretty 为 true 时每层缩进两个空格，叶子元素保持单行。
type xmlWriter struct {
	b      strings.Builder
	pretty bool
	depth  int
}

func (w *xmlWriter) newline() {
	if !w.pretty {
		return
	}
	if w.b.Len() > 0 {
		w.b.WriteByte('\n')
	}
	for i := 0; i < w.depth; i++ {
		w.b.WriteString("  ")
	}
}

func (w *xmlWriter) writeTag(name string, attrs []xattr, selfClose bool) {
	w.b.WriteByte('<')
	w.b.WriteString(name)
	for _, a := range attrs {
		w.b.WriteByte(' ')
		w.b.WriteString(a.k)
		w.b.WriteString(`="`)
		w.b.WriteString(attrEscaper.Replace(a.v))
		w.b.WriteByte('"')
	}
	if selfClose {
		w.b.WriteByte('/')
	}
	w.b.WriteByte('>')
}

func (w *xmlWriter) open(name string, attrs []xattr) {
	w.newline()
	w.writeTag(name, attrs, false)
	w.depth++
}

func (w *xmlWriter) close(name string) {
	w.depth--
	w.newline()
	w.b.WriteString("</")
	w.b.WriteString(name)
	w.b.WriteByte('>')
}

func (w *xmlWriter) empty(name string, attrs []xattr) {
	w.newline()
	w.writeTag(name, attrs, true)
}

// leaf 输出带文本内容的单行元素。
func (w *xmlWriter) leaf(name string, attrs []xattr, text string) {
	w.newline()
	w.writeTag(name, attrs, false)
	w.b.WriteString(textEscaper.Replace(text))
	w.b.WriteString("</")
	w.b.WriteString(name)
	w.b.WriteByte('>')
}

// text 输出一个独立的文本节点。
func (w *xmlWriter) text(s string) {
	w.newline()
	w.b.WriteString(textEscaper.Replace(s))
}

// rawText 原样输出文本，不换行不缩进，用于紧凑模式下的音节间空格。
func (w *xmlWriter) rawText(s string) {
	w.b.WriteString(textEscaper.Replace(s))
}
