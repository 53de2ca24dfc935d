package service

import (
	"context"
	"sync"

	"note-tracker/app/client"
	"note-tracker/app/model"
)

// mockRemote 可配置行为的后端替身
type mockRemote struct {
	mu       sync.Mutex
	SubmitFn func(ctx context.Context, taskID string, params model.SubmissionParameters) error
	StatusFn func(ctx context.Context, taskID string) (*client.StatusResult, error)
	DeleteFn func(ctx context.Context, videoID, platform string) error

	submitted []string
	queried   []string
	deleted   []string
}

func (m *mockRemote) Submit(ctx context.Context, taskID string, params model.SubmissionParameters) error {
	m.mu.Lock()
	m.submitted = append(m.submitted, taskID)
	m.mu.Unlock()
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, taskID, params)
	}
	return nil
}

func (m *mockRemote) Status(ctx context.Context, taskID string) (*client.StatusResult, error) {
	m.mu.Lock()
	m.queried = append(m.queried, taskID)
	m.mu.Unlock()
	if m.StatusFn != nil {
		return m.StatusFn(ctx, taskID)
	}
	return &client.StatusResult{TaskID: taskID, Status: model.TaskStatusPending}, nil
}

func (m *mockRemote) Delete(ctx context.Context, videoID, platform string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, videoID+"@"+platform)
	m.mu.Unlock()
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, videoID, platform)
	}
	return nil
}

func (m *mockRemote) Queried() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queried...)
}
