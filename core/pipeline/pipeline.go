// Package pipeline 把解析、元数据整理、验证、平滑和生成
// 串成一条完整的转换流程，供命令行和 HTTP 接口复用。
package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"ttmlkit/core/metadata"
	"ttmlkit/core/smoother"
	"ttmlkit/core/ttml"
	"ttmlkit/core/validator"
	"ttmlkit/model"
)

// Options 一次转换的全部参数。
type Options struct {
	Parse    model.ParseOptions
	Generate model.GenerateOptions
	// Smoothing 非 nil 时在生成前对音节时长做平滑。
	Smoothing *model.SmoothingOptions
	// SkipValidation 跳过投稿验证，只转换。
	SkipValidation bool
}

// Result 转换的产物。
type Result struct {
	// Output 规范化后的 TTML 文本。
	Output string
	// Warnings 解析过程中记录的非致命问题。
	Warnings []string
	// Metadata 对外可见的元数据（已滤掉内部键）。
	Metadata map[string][]string
	// Lines 排序后的歌词行，供调用方做进一步处理。
	Lines []model.LyricLine
	// IsLineTimed 源文件是否为逐行计时。
	IsLineTimed bool
}

// ValidationError 表示文档未通过投稿验证。
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("歌词验证未通过，共 %d 个问题:\n%s",
		len(e.Violations), strings.Join(e.Violations, "\n"))
}

// Convert 解析 content 并重新生成规范化的 TTML。
//
// 歌词行按开始时间排序后再交给验证器和生成器；
// 验证失败返回 *ValidationError，解析失败返回解析器的致命错误。
func Convert(content string, opts Options) (*Result, error) {
	doc, err := ttml.Parse(content, opts.Parse)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(doc.Lines, func(i, j int) bool {
		return doc.Lines[i].StartMs < doc.Lines[j].StartMs
	})

	store := metadata.NewStore()
	store.LoadRaw(doc.RawMetadata)
	store.Deduplicate()

	if !opts.SkipValidation {
		if violations := validator.Validate(doc.Lines, store); len(violations) > 0 {
			return nil, &ValidationError{Violations: violations}
		}
	}

	if opts.Smoothing != nil {
		smoother.Smooth(doc.Lines, *opts.Smoothing)
	}

	genOpts := opts.Generate
	if genOpts.TimingMode == "" {
		if doc.IsLineTimed {
			genOpts.TimingMode = model.TimingLine
		} else {
			genOpts.TimingMode = model.TimingWord
		}
	}

	output, err := ttml.Generate(doc.Lines, store, genOpts)
	if err != nil {
		return nil, err
	}

	return &Result{
		Output:      output,
		Warnings:    doc.Warnings,
		Metadata:    store.ToPublicMap(),
		Lines:       doc.Lines,
		IsLineTimed: doc.IsLineTimed,
	}, nil
}

// CheckResult 验证流程的产物。
type CheckResult struct {
	// Violations 验证器发现的问题，为空表示通过。
	Violations []string
	// Warnings 解析期记录的非致命问题。
	Warnings []string
	// Metadata 对外可见的元数据。
	Metadata map[string][]string
}

// Check 只做解析和验证，不生成输出。
func Check(content string, parseOpts model.ParseOptions) (*CheckResult, error) {
	doc, err := ttml.Parse(content, parseOpts)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(doc.Lines, func(i, j int) bool {
		return doc.Lines[i].StartMs < doc.Lines[j].StartMs
	})

	store := metadata.NewStore()
	store.LoadRaw(doc.RawMetadata)
	store.Deduplicate()

	return &CheckResult{
		Violations: validator.Validate(doc.Lines, store),
		Warnings:   doc.Warnings,
		Metadata:   store.ToPublicMap(),
	}, nil
}
