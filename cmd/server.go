package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"note-tracker/app/client"
	"note-tracker/app/config"
	"note-tracker/app/database"
	"note-tracker/app/logger"
	"note-tracker/app/server"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动服务器和任务状态轮询",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		// 创建日志器
		log := logger.New(cfg.Log)
		defer log.Close()

		st, db, err := openStore(cmd.Context(), cfg, log)
		if err != nil {
			log.Fatalf("初始化任务存储失败: %v", err)
		}
		defer database.Close(db)

		if !st.TitlesNormalized() {
			changed := st.NormalizeTitles()
			log.Infof("标题规范化完成，修改了 %d 个任务", changed)
		}

		remote := client.New(cfg.Backend)
		defer remote.Close()

		srv := server.New(cfg, log, st, remote)
		watchConfig(srv, log)

		// 在协程中启动服务器
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("启动服务器失败: %v", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("收到关闭信号，正在关闭服务器...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("服务器关闭失败: %v", err)
		}
		log.Info("服务器已退出")
	},
}

// watchConfig 配置文件变更时调整轮询间隔
func watchConfig(srv *server.Server, log *logger.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := config.Decode()
		if err != nil {
			log.Warnf("重新加载配置失败，保持原配置: %v", err)
			return
		}
		if err := srv.Poller().SetInterval(cfg.Poller.IntervalDuration()); err != nil {
			log.Warnf("调整轮询间隔失败: %v", err)
		}
	})
	viper.WatchConfig()
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
