package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKeyAliases(t *testing.T) {
	tests := []struct {
		raw  string
		want CanonicalKey
	}{
		{"title", KeyTitle},
		{"musicName", KeyTitle},
		{"MUSICNAME", KeyTitle},
		{"artist", KeyArtist},
		{"artists", KeyArtist},
		{"album", KeyAlbum},
		{"language", KeyLanguage},
		{"lang", KeyLanguage},
		{"offset", KeyOffset},
		{"songwriter", KeySongwriter},
		{"songwriters", KeySongwriter},
		{"ncmMusicId", KeyNcmMusicID},
		{"qqMusicId", KeyQqMusicID},
		{"spotifyId", KeySpotifyID},
		{"appleMusicId", KeyAppleMusicID},
		{"isrc", KeyIsrc},
		{"ttmlAuthorGithub", KeyTtmlAuthorGithub},
		{"ttmlAuthorGithubLogin", KeyTtmlAuthorGithubLogin},
		{"myCustomField", CustomKey("mycustomfield")},
	}
	for _, tt := range tests {
		key, ok := ResolveKey(tt.raw)
		require.True(t, ok, "key %q", tt.raw)
		assert.Equal(t, tt.want, key, "key %q", tt.raw)
	}

	_, ok := ResolveKey("")
	assert.False(t, ok)
}

func TestStoreAddAndGet(t *testing.T) {
	s := NewStore()
	s.Add("title", "  Song  ")
	s.Add("musicName", "Song Two")
	s.Add("artist", "")
	s.Add("artist", "   ")

	v, ok := s.GetSingle(KeyTitle)
	require.True(t, ok)
	assert.Equal(t, "Song", v, "值应去掉首尾空白")
	assert.Equal(t, []string{"Song", "Song Two"}, s.GetMultiple(KeyTitle), "别名键应合并")

	assert.False(t, s.Has(KeyArtist), "空白值应被忽略")
	_, ok = s.GetSingle(KeyArtist)
	assert.False(t, ok)
}

func TestStoreLoadRaw(t *testing.T) {
	s := NewStore()
	s.LoadRaw(map[string][]string{
		"musicName": {"Song"},
		"artists":   {"A", "B"},
		"agent":     {"v1=Singer"},
	})

	assert.True(t, s.Has(KeyTitle))
	assert.Equal(t, []string{"A", "B"}, s.GetMultiple(KeyArtist))
	assert.Equal(t, []string{"v1=Singer"}, s.GetMultiple(CustomKey("agent")))
}

func TestStoreDeduplicateIdempotent(t *testing.T) {
	s := NewStore()
	s.Add("artist", "B")
	s.Add("artists", "A")
	s.Add("artist", "B")
	s.Add("artist", " A ")

	s.Deduplicate()
	first := s.GetMultiple(KeyArtist)
	assert.Equal(t, []string{"A", "B"}, first, "排序去重")

	s.Deduplicate()
	assert.Equal(t, first, s.GetMultiple(KeyArtist), "再次去重结果不变")
}

func TestStoreToPublicMap(t *testing.T) {
	s := NewStore()
	s.Add("musicName", "Song")
	s.Add("ncmMusicId", "12345")
	s.Add("language", "ja")
	s.Add("offset", "150")
	s.Add("agent", "v1=Singer")
	s.Add("agent-type-v1", "person")

	m := s.ToPublicMap()
	assert.Equal(t, []string{"Song"}, m["Title"])
	assert.Equal(t, []string{"12345"}, m["NcmMusicId"])
	assert.NotContains(t, m, "Language", "语言是内部键")
	assert.NotContains(t, m, "Offset")
	assert.NotContains(t, m, "agent")
	assert.NotContains(t, m, "agent-type-v1")
}
