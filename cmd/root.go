package cmd

import (
	"errors"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "note-tracker",
	Short:   "笔记生成任务跟踪工具",
	Long:    "跟踪提交到 BiliNote 后端的笔记生成任务，在本地保存任务状态和笔记的全部版本",
	Version: "1.0.0",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（默认 ./data/config.yaml 或 ./config.yaml）")
}

// initConfig 读取配置文件和环境变量（如果设置）
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 添加配置文件搜索路径
		viper.AddConfigPath("./data") // 相对于当前工作目录的 data 文件夹
		viper.AddConfigPath(".")      // 当前目录
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("NOTE_TRACKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // 读取匹配的环境变量

	// 没有配置文件时使用默认配置，其他读取错误直接退出
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Println("配置文件读取失败:", err)
			os.Exit(1)
		}
	}
}
