// Package smoother 平滑逐字歌词的音节时长，
// 减少打轴时手抖造成的时长锯齿。
package smoother

import (
	"math"

	"ttmlkit/model"
)

// Smooth 就地平滑每行主音节的时长。
//
// 行内音节先按时长差异和间隔切分为连续组，组内做扩散平滑，
// 并保持组的总时长和首尾时间戳不变。组间互不影响。
// 因子超出 (0, 0.5] 或迭代次数为 0 时整体不做任何修改。
func Smooth(lines []model.LyricLine, opts model.SmoothingOptions) {
	if opts.Iterations <= 0 || opts.Factor <= 0 || opts.Factor > 0.5 {
		return
	}

	for i := range lines {
		syls := lines[i].MainSyllables
		if len(syls) < 2 {
			continue
		}

		start := 0
		for start < len(syls) {
			end := groupEnd(syls, start, opts)
			if end > start {
				smoothGroup(syls[start:end+1], opts)
			}
			start = end + 1
		}
	}
}

// groupEnd 返回从 start 开始的连续组的最后一个下标。
// 相邻音节时长差超过阈值或间隔超过阈值时断开。
func groupEnd(syls []model.LyricSyllable, start int, opts model.SmoothingOptions) int {
	for i := start; i < len(syls)-1; i++ {
		durA := duration(syls[i])
		durB := duration(syls[i+1])
		diff := durA - durB
		if diff < 0 {
			diff = -diff
		}
		gap := syls[i+1].StartMs - syls[i].EndMs
		if gap < 0 {
			gap = 0
		}
		if diff > opts.DurationThresholdMs || gap > opts.GapThresholdMs {
			return i
		}
	}
	return len(syls) - 1
}

func duration(s model.LyricSyllable) int64 {
	if s.EndMs <= s.StartMs {
		return 0
	}
	return s.EndMs - s.StartMs
}

func smoothGroup(group []model.LyricSyllable, opts model.SmoothingOptions) {
	n := len(group)
	originalStart := group[0].StartMs
	originalEnd := group[n-1].EndMs

	var originalTotal float64
	durations := make([]float64, n)
	for i, s := range group {
		durations[i] = float64(duration(s))
		originalTotal += durations[i]
	}

	gaps := make([]int64, n-1)
	for i := 0; i < n-1; i++ {
		gap := group[i+1].StartMs - group[i].EndMs
		if gap < 0 {
			gap = 0
		}
		gaps[i] = gap
	}

	// 双缓冲迭代扩散，避免原地更新造成的串扰
	f := opts.Factor
	next := make([]float64, n)
	for iter := 0; iter < opts.Iterations; iter++ {
		next[0] = (1-f)*durations[0] + f*durations[1]
		for i := 1; i < n-1; i++ {
			next[i] = (1-2*f)*durations[i] + f*durations[i-1] + f*durations[i+1]
		}
		next[n-1] = (1-f)*durations[n-1] + f*durations[n-2]
		durations, next = next, durations
	}

	// 重新缩放，保证组的总时长不变
	var newTotal float64
	for _, d := range durations {
		newTotal += d
	}
	if newTotal > 1e-6 {
		scale := originalTotal / newTotal
		for i := range durations {
			durations[i] *= scale
		}
	}

	// 从组的原始起点顺序重排时间戳，保留原有间隔
	current := originalStart
	for i := range group {
		group[i].StartMs = current
		group[i].EndMs = current + int64(math.Round(durations[i]))
		if i < len(gaps) {
			current = group[i].EndMs + gaps[i]
		}
	}

	// 末尾对齐原始结束时间，消除舍入漂移
	group[n-1].EndMs = originalEnd

	for i := range group {
		group[i].DurationMs = group[i].EndMs - group[i].StartMs
	}
}
