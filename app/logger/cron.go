package logger

import "github.com/robfig/cron/v3"

// cronLogger 将 cron 的日志接口桥接到 zap
type cronLogger struct {
	l *Logger
}

// Cron 返回供 robfig/cron 使用的日志记录器
// cron 的 Info 日志（调度、跳过）较频繁，降为 Debug 级别输出
func (l *Logger) Cron() cron.Logger {
	return cronLogger{l: l}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.sugar.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
