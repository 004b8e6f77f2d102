package cmd

import (
	"ttmlkit/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务",
	Long:  `启动 HTTP 服务，通过 REST API 提供 TTML 歌词的转换和验证能力。`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
