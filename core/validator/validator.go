// Package validator 对解析后的歌词数据做投稿前的完整性检查。
package validator

import (
	"fmt"
	"strings"

	"ttmlkit/core/metadata"
	"ttmlkit/model"
)

// Validate 检查歌词行和元数据的完整性。
// 不会在第一个问题处停下，而是收集所有问题一次性返回；
// 返回空切片表示验证通过。消息面向人类读者，可直接展示。
func Validate(lines []model.LyricLine, store *metadata.Store) []string {
	var errs []string
	validateMetadata(store, &errs)
	validateLines(lines, &errs)
	return errs
}

func validateMetadata(store *metadata.Store, errs *[]string) {
	if !store.Has(metadata.KeyTitle) {
		*errs = append(*errs, "歌词文件中未包含歌曲名称信息 (缺失 musicName 元数据)。")
	}
	if !store.Has(metadata.KeyArtist) {
		*errs = append(*errs, "歌词文件中未包含音乐作者信息 (缺失 artists 元数据)。")
	}
	if !store.Has(metadata.KeyAlbum) {
		*errs = append(*errs, "歌词文件中未包含专辑信息 (缺失 album 元数据)。(注：如果是单曲专辑请和歌曲名称同名)")
	}

	platformKeys := []metadata.CanonicalKey{
		metadata.KeyAppleMusicID,
		metadata.KeyNcmMusicID,
		metadata.KeySpotifyID,
		metadata.KeyQqMusicID,
	}
	hasPlatformID := false
	for _, key := range platformKeys {
		if store.Has(key) {
			hasPlatformID = true
			break
		}
	}
	if !hasPlatformID {
		*errs = append(*errs, "歌词文件中未包含任何音乐平台 ID。")
	}
}

func validateLines(lines []model.LyricLine, errs *[]string) {
	if len(lines) == 0 {
		*errs = append(*errs, "歌词内容为空。")
		return
	}

	hasNonZeroTimestamp := false
	for _, line := range lines {
		if line.StartMs != 0 || line.EndMs != 0 {
			hasNonZeroTimestamp = true
			break
		}
		for _, track := range lineTracks(&line) {
			for _, syl := range track {
				if syl.StartMs != 0 || syl.EndMs != 0 {
					hasNonZeroTimestamp = true
					break
				}
			}
		}
		if hasNonZeroTimestamp {
			break
		}
	}
	if !hasNonZeroTimestamp {
		*errs = append(*errs, "所有歌词的时间戳均为 0。")
	}

	for lineIdx, line := range lines {
		tracks := lineTracks(&line)

		hasContent := false
		for _, track := range tracks {
			for _, syl := range track {
				if strings.TrimSpace(syl.Text) != "" {
					hasContent = true
					break
				}
			}
		}
		if !hasContent {
			*errs = append(*errs, fmt.Sprintf("第 %d 行歌词内容为空。", lineIdx+1))
			continue
		}

		if line.EndMs < line.StartMs {
			*errs = append(*errs, fmt.Sprintf("第 %d 行歌词结束时间 (%d) 小于开始时间 (%d).",
				lineIdx+1, line.EndMs, line.StartMs))
		}

		for trackIdx, track := range tracks {
			for wordIdx, word := range splitWords(track) {
				for sylIdx, syl := range word {
					if strings.TrimSpace(syl.Text) == "" {
						continue
					}
					if syl.EndMs < syl.StartMs {
						*errs = append(*errs, fmt.Sprintf(
							"第 %d 行第 %d 个轨道第 %d 个词第 %d 个音节 '%s' 结束时间 (%d) 小于开始时间 (%d).",
							lineIdx+1, trackIdx+1, wordIdx+1, sylIdx+1,
							syl.Text, syl.EndMs, syl.StartMs))
					}
				}
			}
		}
	}
}

// lineTracks 把一行展开成轨道列表：主唱音节是第一个轨道，
// 背景人声存在时作为第二个轨道。
func lineTracks(line *model.LyricLine) [][]model.LyricSyllable {
	tracks := [][]model.LyricSyllable{line.MainSyllables}
	if line.BackgroundSection != nil {
		tracks = append(tracks, line.BackgroundSection.Syllables)
	}
	return tracks
}

// splitWords 按 ends_with_space 标志把音节序列切成词。
func splitWords(syls []model.LyricSyllable) [][]model.LyricSyllable {
	var words [][]model.LyricSyllable
	var cur []model.LyricSyllable
	for _, syl := range syls {
		cur = append(cur, syl)
		if syl.EndsWithSpace {
			words = append(words, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		words = append(words, cur)
	}
	return words
}
