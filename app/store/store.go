// Package store 维护本地任务记录，是远端任务状态在本地的镜像。
//
// 所有变更都基于最新快照重新计算并整体替换任务列表，然后把完整状态写入持久化适配器。
// 后台轮询的结果与用户操作可以任意交错，每个变更在应用时都重新读取当前记录，
// 不依赖异步调用发起前捕获的旧快照。
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"note-tracker/app/logger"
	"note-tracker/app/model"
)

// Persistence 持久化适配器，读写整个任务存储快照
type Persistence interface {
	Load(ctx context.Context) (*model.PersistedState, error)
	Save(ctx context.Context, state model.PersistedState) error
}

// Store 任务记录存储
type Store struct {
	mu               sync.Mutex
	tasks            []model.Task // 按创建时间倒序
	currentID        string
	titlesNormalized bool

	persistence Persistence
	log         *logger.Logger
	now         func() time.Time
}

// New 创建任务存储，persistence 为 nil 时仅保存在内存中
func New(persistence Persistence, log *logger.Logger) *Store {
	return &Store{
		persistence: persistence,
		log:         log,
		now:         time.Now,
	}
}

// Load 从持久化适配器恢复状态，数据原样载入，旧版内容在首次写入时才迁移
func (s *Store) Load(ctx context.Context) error {
	if s.persistence == nil {
		return nil
	}

	state, err := s.persistence.Load(ctx)
	if err != nil {
		return fmt.Errorf("加载任务存储失败: %w", err)
	}
	if state == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(state.Tasks))
	tasks := make([]model.Task, 0, len(state.Tasks))
	for _, t := range state.Tasks {
		if t.ID == "" || seen[t.ID] {
			s.log.Warnf("忽略无效或重复的任务记录: ID=%q", t.ID)
			continue
		}
		seen[t.ID] = true
		tasks = append(tasks, t)
	}

	s.tasks = tasks
	s.currentID = state.CurrentTaskID
	if !seen[s.currentID] {
		s.currentID = ""
	}
	s.titlesNormalized = state.TitlesNormalized
	s.log.Infof("已恢复 %d 个任务", len(tasks))
	return nil
}

// Tasks 返回所有任务的拷贝，最近创建的在前
func (s *Store) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

// Get 按 ID 获取任务
func (s *Store) Get(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		return s.tasks[i].Clone(), true
	}
	return model.Task{}, false
}

// Current 返回当前选中的任务
func (s *Store) Current() (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(s.currentID); i >= 0 {
		return s.tasks[i].Clone(), true
	}
	return model.Task{}, false
}

// CurrentID 返回当前选中的任务 ID，未选中时为空
func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// TitlesNormalized 标题规范化是否已经执行过
func (s *Store) TitlesNormalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.titlesNormalized
}

// Create 插入新任务并设为当前任务
func (s *Store) Create(task model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(task.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = s.now()
	}

	tasks := make([]model.Task, 0, len(s.tasks)+1)
	tasks = append(tasks, task.Clone())
	tasks = append(tasks, s.tasks...)

	s.tasks = tasks
	s.currentID = task.ID
	s.persist()
	return nil
}

// Update 对任务应用部分更新
// 任务已是 SUCCESS 时再次收到 SUCCESS 的更新不做任何修改
func (s *Store) Update(id string, patch model.TaskPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	updated, changed := s.applyPatch(s.tasks[i], patch)
	if !changed {
		return nil
	}
	s.replace(i, updated)
	return nil
}

// Reconcile 应用后端观测到的状态，返回是否产生了变更
//
// 已成功的任务不会被任何对账结果修改：重复的 SUCCESS 不会生成冗余版本，
// 迟到的中间状态也不会让任务退回未完成。
func (s *Store) Reconcile(id string, status model.TaskStatus, result *model.TaskResult) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	current := s.tasks[i]
	if current.Status == model.TaskStatusSuccess || current.Status == status {
		return false, nil
	}

	patch := model.TaskPatch{Status: model.StatusPtr(status)}
	if status == model.TaskStatusSuccess && result != nil {
		markdown := result.Markdown
		patch.Markdown = &markdown
		patch.Transcript = result.Transcript
		patch.AudioMeta = result.AudioMeta
	}

	updated, changed := s.applyPatch(current, patch)
	if !changed {
		return false, nil
	}
	s.replace(i, updated)
	return true, nil
}

// ResetForRetry 重试时将任务重置为 PENDING 并记录本次使用的提交参数
func (s *Store) ResetForRetry(id string, params model.SubmissionParameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	updated := s.tasks[i].Clone()
	updated.Status = model.TaskStatusPending
	updated.FormData = params.Clone()
	s.replace(i, updated)
	return nil
}

// Remove 删除任务并返回被删除的记录，当前任务指向它时一并清空
func (s *Store) Remove(id string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	removed := s.tasks[i]
	tasks := make([]model.Task, 0, len(s.tasks)-1)
	tasks = append(tasks, s.tasks[:i]...)
	tasks = append(tasks, s.tasks[i+1:]...)

	s.tasks = tasks
	if s.currentID == id {
		s.currentID = ""
	}
	s.persist()
	return removed, nil
}

// Clear 清空所有任务
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = nil
	s.currentID = ""
	s.persist()
}

// SetCurrent 设置当前任务，id 为空时取消选中
func (s *Store) SetCurrent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" && s.indexOf(id) < 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	s.currentID = id
	s.persist()
	return nil
}

// NormalizeTitles 规范化所有任务的标题，返回被修改的任务数
func (s *Store) NormalizeTitles() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]model.Task, len(s.tasks))
	changed := 0
	for i, t := range s.tasks {
		if title := normalizeTitle(t); title != t.AudioMeta.Title {
			t = t.Clone()
			t.AudioMeta.Title = title
			changed++
		}
		tasks[i] = t
	}

	s.tasks = tasks
	s.titlesNormalized = true
	s.persist()
	return changed
}

// applyPatch 计算应用更新后的任务，不修改存储
func (s *Store) applyPatch(task model.Task, patch model.TaskPatch) (model.Task, bool) {
	if patch.Status != nil && *patch.Status == model.TaskStatusSuccess && task.Status == model.TaskStatusSuccess {
		return task, false
	}

	updated := task.Clone()
	if patch.Status != nil {
		updated.Status = *patch.Status
	}

	// 版本使用更新前任务上的提交参数
	if patch.Markdown != nil {
		updated.Markdown = model.VersionedContent(AppendVersion(task, *patch.Markdown, s.now()))
	} else if patch.Versions != nil {
		updated.Markdown = model.VersionedContent(patch.Versions)
	}

	if patch.Transcript != nil {
		tr := *patch.Transcript
		updated.Transcript = &tr
	}
	if patch.AudioMeta != nil {
		updated.AudioMeta = mergeAudioMeta(updated.AudioMeta, *patch.AudioMeta)
	}
	if patch.FormData != nil {
		updated.FormData = patch.FormData.Clone()
	}
	return updated, true
}

// mergeAudioMeta 用后端确认的非空字段覆盖本地推测的元信息
func mergeAudioMeta(local, remote model.AudioMeta) model.AudioMeta {
	if remote.Title != "" {
		local.Title = remote.Title
	}
	if remote.Platform != "" {
		local.Platform = remote.Platform
	}
	if remote.Duration > 0 {
		local.Duration = remote.Duration
	}
	if remote.CoverURL != "" {
		local.CoverURL = remote.CoverURL
	}
	if remote.VideoID != "" {
		local.VideoID = remote.VideoID
	}
	if remote.FilePath != "" {
		local.FilePath = remote.FilePath
	}
	if remote.RawInfo != nil {
		local.RawInfo = remote.RawInfo
	}
	return local
}

// replace 整体替换任务列表中第 i 个任务，调用方需持有锁
func (s *Store) replace(i int, task model.Task) {
	tasks := make([]model.Task, len(s.tasks))
	copy(tasks, s.tasks)
	tasks[i] = task

	s.tasks = tasks
	s.persist()
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// persist 写入完整快照，调用方需持有锁
// 写入失败只记录日志，内存中的状态仍然有效，下次写入会带上全部数据
func (s *Store) persist() {
	if s.persistence == nil {
		return
	}

	state := model.PersistedState{
		Tasks:            s.tasks,
		CurrentTaskID:    s.currentID,
		TitlesNormalized: s.titlesNormalized,
	}
	if err := s.persistence.Save(context.Background(), state); err != nil {
		s.log.Errorf("保存任务存储失败: %v", err)
	}
}
