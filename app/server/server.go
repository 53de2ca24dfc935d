package server

import (
	"context"
	"net/http"

	"note-tracker/app/config"
	"note-tracker/app/handler"
	"note-tracker/app/logger"
	"note-tracker/app/middleware"
	"note-tracker/app/service"
	"note-tracker/app/store"

	"github.com/gin-gonic/gin"
)

// Server 表示 HTTP 服务器，同时持有任务状态轮询器
type Server struct {
	Config *config.Config
	Logger *logger.Logger
	gin    *gin.Engine
	http   *http.Server
	poller *service.Poller
	proxy  *handler.ProxyHandler
	tasks  *handler.TaskHandler
}

// New 创建一个新的 Server 实例
func New(cfg *config.Config, log *logger.Logger, st *store.Store, remote service.RemoteTaskService) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(log), middleware.RequestLogger(log.Named("http")), middleware.CORS())
	taskService := service.NewTaskService(st, remote, log.Named("tasks"))

	s := &Server{
		gin: router,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
		Config: cfg,
		Logger: log,
		poller: service.NewPoller(st, remote, cfg.Poller.IntervalDuration(), log.Named("poller")),
		proxy:  handler.NewProxyHandler(cfg.Proxy, log.Named("proxy")),
		tasks:  handler.NewTaskHandler(st, taskService, log.Named("handler")),
	}

	// 设置路由
	s.setupRoutes()

	return s
}

// Handler 返回 HTTP 处理器
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Poller 返回任务状态轮询器
func (s *Server) Poller() *service.Poller {
	return s.poller
}

// Start 启动轮询器和服务器
func (s *Server) Start() error {
	if err := s.poller.Start(); err != nil {
		return err
	}

	s.Logger.Infof("在端口 %s 启动服务器", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown 停止轮询器并关闭服务器
func (s *Server) Shutdown(ctx context.Context) error {
	s.poller.Stop()

	if err := s.proxy.Close(); err != nil {
		s.Logger.Errorf("关闭图片代理客户端失败: %v", err)
	}
	return s.http.Shutdown(ctx)
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes() {
	api := s.gin.Group("/api")

	tasks := api.Group("/tasks")
	{
		tasks.GET("", s.tasks.ListTasks)
		tasks.POST("", s.tasks.GenerateNote)
		tasks.DELETE("", s.tasks.ClearTasks)

		tasks.GET("/current", s.tasks.GetCurrent)
		tasks.PUT("/current", s.tasks.SetCurrent)
		tasks.POST("/normalize-titles", s.tasks.NormalizeTitles)

		tasks.PATCH("/:id", s.tasks.UpdateTask)
		tasks.DELETE("/:id", s.tasks.DeleteTask)
		tasks.POST("/:id/retry", s.tasks.RetryTask)
	}

	api.GET("/proxy-image", s.proxy.ProxyImage)
}
