package service

import (
	"errors"
	"fmt"
)

// ErrInvalidParameters 提交参数未通过校验
var ErrInvalidParameters = errors.New("提交参数无效")

// RemoteSubmissionError 后端拒绝了创建或重试请求
type RemoteSubmissionError struct {
	TaskID string
	Err    error
}

func (e *RemoteSubmissionError) Error() string {
	return fmt.Sprintf("提交任务 %s 失败: %v", e.TaskID, e.Err)
}

func (e *RemoteSubmissionError) Unwrap() error {
	return e.Err
}

// RemoteDeletionError 本地记录已删除，但后端清理失败
type RemoteDeletionError struct {
	TaskID string
	Err    error
}

func (e *RemoteDeletionError) Error() string {
	return fmt.Sprintf("任务 %s 已从本地删除，但后端删除失败: %v", e.TaskID, e.Err)
}

func (e *RemoteDeletionError) Unwrap() error {
	return e.Err
}
