// Package client 笔记生成后端（BiliNote）的 HTTP 客户端
package client

import (
	"context"
	"fmt"
	"net/url"

	"note-tracker/app/config"
	"note-tracker/app/model"

	"resty.dev/v3"
)

// APIError 后端返回的错误
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("后端返回错误，状态码: %d, code: %d, 信息: %s", e.StatusCode, e.Code, e.Message)
}

// envelope 后端统一响应格式
type envelope[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

// StatusResult 任务状态查询结果，Result 仅在 SUCCESS 时存在
type StatusResult struct {
	TaskID  string            `json:"task_id"`
	Status  model.TaskStatus  `json:"status"`
	Message string            `json:"message,omitempty"`
	Result  *model.TaskResult `json:"result,omitempty"`
}

type submitRequest struct {
	model.SubmissionParameters
	TaskID string `json:"task_id"`
}

type deleteRequest struct {
	VideoID  string `json:"video_id"`
	Platform string `json:"platform"`
}

// NoteClient 笔记生成后端客户端
type NoteClient struct {
	client *resty.Client
}

// New 创建新的后端客户端
func New(cfg config.BackendConfig) *NoteClient {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetHeader("User-Agent", cfg.UserAgent)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.TimeoutDuration())
	}

	return &NoteClient{client: client}
}

// Close 释放底层连接
func (c *NoteClient) Close() error {
	return c.client.Close()
}

// Submit 提交笔记生成任务，taskID 作为幂等键
func (c *NoteClient) Submit(ctx context.Context, taskID string, params model.SubmissionParameters) error {
	body := submitRequest{SubmissionParameters: params, TaskID: taskID}
	if params.ResolvedMode() == model.SubmissionModeLocal && body.VideoURL == "" {
		// 后端通过 video_url 读取已上传的本地文件
		body.VideoURL = params.FilePath
	}

	var res envelope[map[string]any]
	return c.do(ctx, c.client.R().SetBody(body).SetResult(&res), "POST", "/generate_note", &res.Code, &res.Msg)
}

// Status 查询任务状态
func (c *NoteClient) Status(ctx context.Context, taskID string) (*StatusResult, error) {
	var res envelope[StatusResult]
	path := "/task_status/" + url.PathEscape(taskID)
	if err := c.do(ctx, c.client.R().SetResult(&res), "GET", path, &res.Code, &res.Msg); err != nil {
		return nil, err
	}

	result := res.Data
	if result.Status == "" {
		return nil, fmt.Errorf("任务 %s 的状态响应缺少 status 字段", taskID)
	}
	if result.Status != model.TaskStatusSuccess {
		result.Result = nil
	}
	return &result, nil
}

// Delete 删除后端的任务记录
func (c *NoteClient) Delete(ctx context.Context, videoID, platform string) error {
	var res envelope[any]
	req := c.client.R().SetBody(deleteRequest{VideoID: videoID, Platform: platform}).SetResult(&res)
	return c.do(ctx, req, "POST", "/delete_task", &res.Code, &res.Msg)
}

func (c *NoteClient) do(ctx context.Context, req *resty.Request, method, path string, code *int, msg *string) error {
	resp, err := req.SetContext(ctx).Execute(method, path)
	if err != nil {
		return fmt.Errorf("请求 %s %s 失败: %w", method, path, err)
	}

	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Code: *code, Message: resp.String()}
	}
	if *code != 0 {
		return &APIError{StatusCode: resp.StatusCode(), Code: *code, Message: *msg}
	}
	return nil
}
