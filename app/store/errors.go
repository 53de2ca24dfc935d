package store

import "errors"

var (
	// ErrTaskNotFound 任务不存在
	ErrTaskNotFound = errors.New("任务不存在")
	// ErrTaskExists 任务 ID 已存在
	ErrTaskExists = errors.New("任务已存在")
)
