package cmd

import (
	"fmt"
	"os"

	"ttmlkit/config"
	"ttmlkit/logger"

	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ttmlkit",
	Short: "ttmlkit 是 TTML 歌词的解析、验证和规范化工具",
	Long:  `ttmlkit 解析 Apple Music / AMLL 风格的 TTML 歌词文件，检查投稿完整性，平滑音节时长，并重新生成规范化的 TTML 输出。`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogPath,
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	},
}

// Execute executes the root command.
func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
