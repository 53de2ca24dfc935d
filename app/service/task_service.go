package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"note-tracker/app/logger"
	"note-tracker/app/model"
	"note-tracker/app/store"

	"github.com/google/uuid"
)

// TaskService 负责任务的乐观创建、重试和删除
type TaskService struct {
	store  *store.Store
	remote RemoteTaskService
	log    *logger.Logger
	newID  func() string
	now    func() time.Time
}

// NewTaskService 创建任务服务
func NewTaskService(st *store.Store, remote RemoteTaskService, log *logger.Logger) *TaskService {
	return &TaskService{
		store:  st,
		remote: remote,
		log:    log,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// Create 在本地插入 PENDING 任务并设为当前任务，不发起任何网络请求
// 调用方负责提交到后端，并在提交失败时调用 Remove 回滚
func (s *TaskService) Create(id, platform string, params model.SubmissionParameters) (model.Task, error) {
	task := model.Task{
		ID:     id,
		Status: model.TaskStatusPending,
		AudioMeta: model.AudioMeta{
			Title:    store.DeriveTitle(params),
			Platform: platform,
			FilePath: params.FilePath,
		},
		FormData:  params.Clone(),
		CreatedAt: s.now(),
		Platform:  platform,
	}

	if err := s.store.Create(task); err != nil {
		return model.Task{}, err
	}
	s.log.Infof("任务已创建: TaskID=%s, 标题: %s", id, task.AudioMeta.Title)
	return task, nil
}

// Generate 校验参数、乐观创建任务并提交到后端，提交失败时移除本地记录
func (s *TaskService) Generate(ctx context.Context, params model.SubmissionParameters) (model.Task, error) {
	if err := params.Validate(); err != nil {
		return model.Task{}, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}

	task, err := s.Create(s.newID(), params.Platform, params)
	if err != nil {
		return model.Task{}, err
	}

	if err := s.remote.Submit(ctx, task.ID, params); err != nil {
		s.log.Errorf("提交任务失败，回滚本地记录: TaskID=%s, 错误: %v", task.ID, err)
		if _, rmErr := s.store.Remove(task.ID); rmErr != nil && !errors.Is(rmErr, store.ErrTaskNotFound) {
			s.log.Errorf("回滚任务失败: TaskID=%s, 错误: %v", task.ID, rmErr)
		}
		return model.Task{}, &RemoteSubmissionError{TaskID: task.ID, Err: err}
	}
	return task, nil
}

// Retry 使用原任务 ID 重新提交任务
// override 为 nil 时使用任务保存的提交参数；提交成功后任务回到 PENDING
func (s *TaskService) Retry(ctx context.Context, id string, override *model.SubmissionParameters) error {
	task, ok := s.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
	}

	params := task.FormData
	if override != nil {
		params = override.Clone()
	}

	// 后端对同一任务 ID 的重复提交没有保护，这里只做提示
	if !task.Status.IsTerminal() {
		s.log.Warnf("任务仍在处理中又被重试，后端可能出现重复任务: TaskID=%s, 状态: %s", id, task.Status)
	}

	if err := s.remote.Submit(ctx, id, params); err != nil {
		s.log.Errorf("重试任务失败: TaskID=%s, 错误: %v", id, err)
		return &RemoteSubmissionError{TaskID: id, Err: err}
	}

	if err := s.store.ResetForRetry(id, params); err != nil {
		return err
	}
	s.log.Infof("任务已重新提交: TaskID=%s", id)
	return nil
}

// Remove 立即删除本地记录，再尽力删除后端记录
// 后端删除失败时返回 RemoteDeletionError，本地记录不会恢复
func (s *TaskService) Remove(ctx context.Context, id string) error {
	removed, err := s.store.Remove(id)
	if err != nil {
		return err
	}

	videoID := removed.AudioMeta.VideoID
	platform := removed.Platform
	if platform == "" {
		platform = removed.FormData.Platform
	}
	if videoID == "" {
		s.log.Infof("任务没有视频 ID，跳过后端删除: TaskID=%s, 平台: %s", id, platform)
		return nil
	}

	if err := s.remote.Delete(ctx, videoID, platform); err != nil {
		s.log.Warnf("后端删除任务失败: TaskID=%s, VideoID=%s, 错误: %v", id, videoID, err)
		return &RemoteDeletionError{TaskID: id, Err: err}
	}
	s.log.Infof("任务已删除: TaskID=%s", id)
	return nil
}
