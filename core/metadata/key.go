package metadata

import "strings"

// CanonicalKey 规范化后的元数据键。不同来源的键（如 "title"、
// "musicName"、"TITLE"）都会被归一到同一个规范键，后续的验证和
// 生成逻辑只需要处理规范键。
type CanonicalKey struct {
	kind   keyKind
	custom string // kind == keyCustom 时的小写自定义键名
}

type keyKind int

const (
	keyTitle keyKind = iota
	keyArtist
	keyAlbum
	keyLanguage
	keyOffset
	keySongwriter
	keyNcmMusicID
	keyQqMusicID
	keySpotifyID
	keyAppleMusicID
	keyIsrc
	keyTtmlAuthorGithub
	keyTtmlAuthorGithubLogin
	keyCustom
)

// 预定义的规范键。
var (
	KeyTitle                 = CanonicalKey{kind: keyTitle}
	KeyArtist                = CanonicalKey{kind: keyArtist}
	KeyAlbum                 = CanonicalKey{kind: keyAlbum}
	KeyLanguage              = CanonicalKey{kind: keyLanguage}
	KeyOffset                = CanonicalKey{kind: keyOffset}
	KeySongwriter            = CanonicalKey{kind: keySongwriter}
	KeyNcmMusicID            = CanonicalKey{kind: keyNcmMusicID}
	KeyQqMusicID             = CanonicalKey{kind: keyQqMusicID}
	KeySpotifyID             = CanonicalKey{kind: keySpotifyID}
	KeyAppleMusicID          = CanonicalKey{kind: keyAppleMusicID}
	KeyIsrc                  = CanonicalKey{kind: keyIsrc}
	KeyTtmlAuthorGithub      = CanonicalKey{kind: keyTtmlAuthorGithub}
	KeyTtmlAuthorGithubLogin = CanonicalKey{kind: keyTtmlAuthorGithubLogin}
)

// CustomKey 构造一个自定义键，键名统一转为小写以保证相等性。
func CustomKey(name string) CanonicalKey {
	return CanonicalKey{kind: keyCustom, custom: strings.ToLower(name)}
}

// ResolveKey 将原始键字符串解析为规范键。无法识别的键会以小写
// 形式作为自定义键保留，空字符串返回 false。
func ResolveKey(raw string) (CanonicalKey, bool) {
	switch strings.ToLower(raw) {
	case "title", "musicname":
		return KeyTitle, true
	case "artist", "artists":
		return KeyArtist, true
	case "album":
		return KeyAlbum, true
	case "language", "lang":
		return KeyLanguage, true
	case "offset":
		return KeyOffset, true
	case "songwriter", "songwriters":
		return KeySongwriter, true
	case "ncmmusicid":
		return KeyNcmMusicID, true
	case "qqmusicid":
		return KeyQqMusicID, true
	case "spotifyid":
		return KeySpotifyID, true
	case "applemusicid":
		return KeyAppleMusicID, true
	case "isrc":
		return KeyIsrc, true
	case "ttmlauthorgithub":
		return KeyTtmlAuthorGithub, true
	case "ttmlauthorgithublogin":
		return KeyTtmlAuthorGithubLogin, true
	case "":
		return CanonicalKey{}, false
	default:
		return CustomKey(raw), true
	}
}

// String 返回键的显示名称，自定义键返回其小写键名。
func (k CanonicalKey) String() string {
	switch k.kind {
	case keyTitle:
		return "Title"
	case keyArtist:
		return "Artist"
	case keyAlbum:
		return "Album"
	case keyLanguage:
		return "Language"
	case keyOffset:
		return "Offset"
	case keySongwriter:
		return "Songwriter"
	case keyNcmMusicID:
		return "NcmMusicId"
	case keyQqMusicID:
		return "QqMusicId"
	case keySpotifyID:
		return "SpotifyId"
	case keyAppleMusicID:
		return "AppleMusicId"
	case keyIsrc:
		return "Isrc"
	case keyTtmlAuthorGithub:
		return "TtmlAuthorGithub"
	case keyTtmlAuthorGithubLogin:
		return "TtmlAuthorGithubLogin"
	default:
		return k.custom
	}
}

// IsPublic 判断键是否应当对外输出。Language、Offset 之类的键只在
// 内部流转，自定义键（包括 agent 相关的簿记键）也不对外。
func (k CanonicalKey) IsPublic() bool {
	switch k.kind {
	case keyTitle, keyArtist, keyAlbum,
		keyNcmMusicID, keyQqMusicID, keySpotifyID, keyAppleMusicID,
		keyIsrc, keyTtmlAuthorGithub, keyTtmlAuthorGithubLogin:
		return true
	default:
		return false
	}
}
