package handler

import (
	"errors"
	"net/http"

	"note-tracker/app/logger"
	"note-tracker/app/model"
	"note-tracker/app/service"
	"note-tracker/app/store"

	"github.com/gin-gonic/gin"
)

// TaskHandler 任务处理器
type TaskHandler struct {
	store *store.Store
	tasks *service.TaskService
	log   *logger.Logger
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(st *store.Store, tasks *service.TaskService, log *logger.Logger) *TaskHandler {
	return &TaskHandler{
		store: st,
		tasks: tasks,
		log:   log,
	}
}

// UpdateTaskRequest 部分更新请求
// markdown 为字符串时生成新版本，为数组时直接替换版本列表
type UpdateTaskRequest struct {
	Status     *model.TaskStatus           `json:"status"`
	Markdown   *model.Content              `json:"markdown"`
	Transcript *model.Transcript           `json:"transcript"`
	AudioMeta  *model.AudioMeta            `json:"audioMeta"`
	FormData   *model.SubmissionParameters `json:"formData"`
}

// RetryTaskRequest 重试请求，formData 为空时沿用任务保存的参数
type RetryTaskRequest struct {
	FormData *model.SubmissionParameters `json:"formData"`
}

// SetCurrentRequest 设置当前任务请求
type SetCurrentRequest struct {
	TaskID string `json:"task_id"`
}

// ListTasks 获取任务列表
func (h *TaskHandler) ListTasks(c *gin.Context) {
	success(c, h.store.Tasks(), "success")
}

// GenerateNote 创建任务并提交到后端
func (h *TaskHandler) GenerateNote(c *gin.Context) {
	var req model.SubmissionParameters
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.tasks.Generate(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ApiResponse{Code: 0, Message: "任务已提交", Data: task})
}

// UpdateTask 部分更新任务
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	patch := model.TaskPatch{
		Status:     req.Status,
		Transcript: req.Transcript,
		AudioMeta:  req.AudioMeta,
		FormData:   req.FormData,
	}
	if req.Markdown != nil {
		switch req.Markdown.Kind() {
		case model.ContentLegacy:
			body := req.Markdown.Legacy()
			patch.Markdown = &body
		case model.ContentVersioned:
			patch.Versions = req.Markdown.Versions()
		}
	}

	id := c.Param("id")
	if err := h.store.Update(id, patch); err != nil {
		h.writeError(c, err)
		return
	}

	task, _ := h.store.Get(id)
	success(c, task, "更新成功")
}

// DeleteTask 删除任务
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	err := h.tasks.Remove(c.Request.Context(), c.Param("id"))
	var delErr *service.RemoteDeletionError
	if errors.As(err, &delErr) {
		// 本地已删除，提示后端可能未清理
		c.JSON(http.StatusOK, ApiResponse{Code: http.StatusBadGateway, Message: delErr.Error()})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, nil, "删除成功")
}

// ClearTasks 清空所有任务
func (h *TaskHandler) ClearTasks(c *gin.Context) {
	h.store.Clear()
	success(c, nil, "已清空")
}

// RetryTask 重试任务
func (h *TaskHandler) RetryTask(c *gin.Context) {
	var req RetryTaskRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	id := c.Param("id")
	if err := h.tasks.Retry(c.Request.Context(), id, req.FormData); err != nil {
		h.writeError(c, err)
		return
	}

	task, _ := h.store.Get(id)
	success(c, task, "任务已重新提交")
}

// GetCurrent 获取当前任务
func (h *TaskHandler) GetCurrent(c *gin.Context) {
	task, ok := h.store.Current()
	if !ok {
		success(c, nil, "没有选中的任务")
		return
	}
	success(c, task, "success")
}

// SetCurrent 设置当前任务
func (h *TaskHandler) SetCurrent(c *gin.Context) {
	var req SetCurrentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.SetCurrent(req.TaskID); err != nil {
		h.writeError(c, err)
		return
	}
	success(c, gin.H{"task_id": req.TaskID}, "success")
}

// NormalizeTitles 规范化任务标题
func (h *TaskHandler) NormalizeTitles(c *gin.Context) {
	changed := h.store.NormalizeTitles()
	success(c, gin.H{"changed": changed}, "success")
}

// writeError 按错误类型返回对应的状态码
func (h *TaskHandler) writeError(c *gin.Context, err error) {
	var subErr *service.RemoteSubmissionError
	var delErr *service.RemoteDeletionError

	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrTaskExists):
		fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidParameters):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &subErr), errors.As(err, &delErr):
		fail(c, http.StatusBadGateway, err.Error())
	default:
		h.log.Errorf("处理任务请求失败: %v", err)
		fail(c, http.StatusInternalServerError, "服务器内部错误")
	}
}
