package cmd

import (
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ttmlkit/core/pipeline"
	"ttmlkit/logger"
	"ttmlkit/model"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var (
	watchDir    string
	watchOutDir string
	watchSmooth bool
	watchStrict bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "监听目录并自动规范化其中的 TTML 文件",
	Long:  `监听指定目录，新增或修改的 .ttml 文件会被自动解析、验证并把规范化结果写入输出目录。`,
	Run: func(cmd *cobra.Command, args []string) {
		absDir, _ := filepath.Abs(watchDir)
		absOut, _ := filepath.Abs(watchOutDir)
		if absDir == absOut {
			logger.Fatal("输出目录不能与监听目录相同", logger.String("dir", absDir))
		}
		if err := os.MkdirAll(watchOutDir, 0755); err != nil {
			logger.Fatal("创建输出目录失败", logger.String("path", watchOutDir), logger.ErrorField(err))
		}

		// 先处理目录里已有的文件
		entries, err := os.ReadDir(watchDir)
		if err != nil {
			logger.Fatal("读取监听目录失败", logger.String("path", watchDir), logger.ErrorField(err))
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".ttml") {
				processWatchedFile(filepath.Join(watchDir, entry.Name()))
			}
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			logger.Fatal("创建文件监听器失败", logger.ErrorField(err))
		}
		defer watcher.Close()

		if err := watcher.Add(watchDir); err != nil {
			logger.Fatal("监听目录失败", logger.String("path", watchDir), logger.ErrorField(err))
		}
		logger.Info("开始监听目录", logger.String("dir", watchDir), logger.String("out", watchOutDir))

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		// fsnotify 对一次保存通常会连发 Create/Write 事件，做个简单去重
		lastProcessed := make(map[string]time.Time)

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				if !strings.HasSuffix(event.Name, ".ttml") {
					continue
				}
				if last, seen := lastProcessed[event.Name]; seen && time.Since(last) < 500*time.Millisecond {
					continue
				}
				lastProcessed[event.Name] = time.Now()
				processWatchedFile(event.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("文件监听错误", logger.ErrorField(err))
			case <-stop:
				logger.Info("停止监听")
				return
			}
		}
	},
}

func processWatchedFile(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Error("读取文件失败", logger.String("path", path), logger.ErrorField(err))
		return
	}

	opts := pipeline.Options{
		Parse: model.ParseOptions{
			DefaultMainLang:         cfg.DefaultMainLang,
			DefaultTranslationLang:  cfg.DefaultTranslationLang,
			DefaultRomanizationLang: cfg.DefaultRomanizationLang,
		},
		Generate: model.GenerateOptions{
			Format:              true,
			StrictPlatformRules: watchStrict,
		},
	}
	if watchSmooth {
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
		logger.Error("处理文件失败", logger.String("path", path), logger.ErrorField(err))
		return
	}
	for _, warning := range result.Warnings {
		logger.Warn("解析警告", logger.String("path", path), logger.String("detail", warning))
	}

	outPath := filepath.Join(watchOutDir, filepath.Base(path))
	if err := os.WriteFile(outPath, []byte(result.Output), 0644); err != nil {
		logger.Error("写入输出文件失败", logger.String("path", outPath), logger.ErrorField(err))
		return
	}
	logger.Info("处理完成",
		logger.String("input", path),
		logger.String("output", outPath),
		logger.Int("lines", len(result.Lines)))
}

func init() {
	watchCmd.Flags().StringVarP(&watchDir, "dir", "d", ".", "要监听的目录")
	watchCmd.Flags().StringVarP(&watchOutDir, "out-dir", "o", "out", "规范化结果的输出目录")
	watchCmd.Flags().BoolVar(&watchSmooth, "smooth", false, "平滑音节时长")
	watchCmd.Flags().BoolVar(&watchStrict, "strict", false, "按 Apple Music 严格规则输出")
	rootCmd.AddCommand(watchCmd)
}
