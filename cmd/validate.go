package cmd

import (
	"fmt"
	"os"

	"ttmlkit/core/pipeline"
	"ttmlkit/logger"
	"ttmlkit/model"

	"github.com/spf13/cobra"
)

var validateInput string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "检查 TTML 歌词文件是否满足投稿要求",
	Long:  `解析输入的 TTML 歌词文件并运行完整的投稿检查：元数据完整性、歌词内容和时间戳。所有问题一次性列出。`,
	Run: func(cmd *cobra.Command, args []string) {
		content, err := os.ReadFile(validateInput)
		if err != nil {
			logger.Fatal("读取输入文件失败", logger.String("path", validateInput), logger.ErrorField(err))
		}

		result, err := pipeline.Check(string(content), model.ParseOptions{
			DefaultMainLang:         cfg.DefaultMainLang,
			DefaultTranslationLang:  cfg.DefaultTranslationLang,
			DefaultRomanizationLang: cfg.DefaultRomanizationLang,
		})
		if err != nil {
			logger.Fatal("解析失败", logger.String("path", validateInput), logger.ErrorField(err))
		}

		for _, warning := range result.Warnings {
			fmt.Fprintf(os.Stderr, "警告: %s\n", warning)
		}

		if len(result.Violations) > 0 {
			for _, violation := range result.Violations {
				fmt.Println(violation)
			}
			logger.Sync()
			os.Exit(1)
		}

		fmt.Println("验证通过。")
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateInput, "input", "i", "", "输入的 TTML 文件路径")
	_ = validateCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(validateCmd)
}
