package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"ttmlkit/core/pipeline"
	"ttmlkit/logger"
	"ttmlkit/model"

	"github.com/spf13/cobra"
)

var (
	convertInput       string
	convertOutput      string
	convertTimingMode  string
	convertCompact     bool
	convertStrict      bool
	convertSmooth      bool
	convertNoValidate  bool
	convertMetaOut     string
	convertMainLang    string
	convertTransLang   string
	convertRomanLang   string
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "规范化 TTML 歌词文件",
	Long:  `解析输入的 TTML 歌词文件，做投稿验证，按需平滑音节时长，然后重新生成规范化的 TTML 输出。`,
	Run: func(cmd *cobra.Command, args []string) {
		content, err := os.ReadFile(convertInput)
		if err != nil {
			logger.Fatal("读取输入文件失败", logger.String("path", convertInput), logger.ErrorField(err))
		}

		opts := pipeline.Options{
			Parse: model.ParseOptions{
				DefaultMainLang:         cfg.DefaultMainLang,
				DefaultTranslationLang:  cfg.DefaultTranslationLang,
				DefaultRomanizationLang: cfg.DefaultRomanizationLang,
			},
			Generate: model.GenerateOptions{
				TimingMode:          model.TimingMode(convertTimingMode),
				Format:              !convertCompact,
				MainLang:            convertMainLang,
				TranslationLang:     convertTransLang,
				RomanizationLang:    convertRomanLang,
				StrictPlatformRules: convertStrict,
			},
			SkipValidation: convertNoValidate,
		}
		if convertSmooth {
			smoothing := model.SmoothingOptions{
				Factor:              cfg.SmoothingFactor,
				DurationThresholdMs: cfg.SmoothingDurThresholdMs,
				GapThresholdMs:      cfg.SmoothingGapThresholdMs,
				Iterations:          cfg.SmoothingIterations,
			}
			opts.Smoothing = &smoothing
		}

		result, err := pipeline.Convert(string(content), opts)
		if err != nil {
			var vErr *pipeline.ValidationError
			if errors.As(err, &vErr) {
				for _, violation := range vErr.Violations {
					fmt.Fprintln(os.Stderr, violation)
				}
				logger.Fatal("歌词验证未通过", logger.Int("violations", len(vErr.Violations)))
			}
			logger.Fatal("转换失败", logger.ErrorField(err))
		}

		for _, warning := range result.Warnings {
			logger.Warn("解析警告", logger.String("detail", warning))
		}

		if convertOutput == "" || convertOutput == "-" {
			fmt.Println(result.Output)
		} else {
			if err := os.WriteFile(convertOutput, []byte(result.Output), 0644); err != nil {
				logger.Fatal("写入输出文件失败", logger.String("path", convertOutput), logger.ErrorField(err))
			}
			logger.Info("转换完成",
				logger.String("input", convertInput),
				logger.String("output", convertOutput),
				logger.Int("lines", len(result.Lines)),
				logger.Int("warnings", len(result.Warnings)))
		}

		if convertMetaOut != "" {
			data, err := json.MarshalIndent(result.Metadata, "", "  ")
			if err != nil {
				logger.Fatal("序列化元数据失败", logger.ErrorField(err))
			}
			if err := os.WriteFile(convertMetaOut, data, 0644); err != nil {
				logger.Fatal("写入元数据文件失败", logger.String("path", convertMetaOut), logger.ErrorField(err))
			}
		}
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertInput, "input", "i", "", "输入的 TTML 文件路径")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "输出文件路径，留空或 - 输出到标准输出")
	convertCmd.Flags().StringVar(&convertTimingMode, "timing-mode", "", "输出计时模式 (word|line)，留空跟随源文件")
	convertCmd.Flags().BoolVar(&convertCompact, "compact", false, "输出紧凑格式而不是带缩进的格式")
	convertCmd.Flags().BoolVar(&convertStrict, "strict", false, "按 Apple Music 严格规则输出，翻译写入 head")
	convertCmd.Flags().BoolVar(&convertSmooth, "smooth", false, "平滑音节时长")
	convertCmd.Flags().BoolVar(&convertNoValidate, "no-validate", false, "跳过投稿验证")
	convertCmd.Flags().StringVar(&convertMetaOut, "metadata-out", "", "把对外元数据以 JSON 写入该路径")
	convertCmd.Flags().StringVar(&convertMainLang, "main-lang", "", "覆盖输出的主语言")
	convertCmd.Flags().StringVar(&convertTransLang, "translation-lang", "", "覆盖输出的翻译语言")
	convertCmd.Flags().StringVar(&convertRomanLang, "romanization-lang", "", "覆盖输出的罗马音语言")
	_ = convertCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(convertCmd)
}
