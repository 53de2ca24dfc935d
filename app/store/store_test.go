package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"note-tracker/app/logger"
	"note-tracker/app/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryPersistence 内存中的持久化适配器
type memoryPersistence struct {
	mu     sync.Mutex
	state  *model.PersistedState
	saves  int
	SaveFn func(state model.PersistedState) error
}

func (m *memoryPersistence) Load(ctx context.Context) (*model.PersistedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *memoryPersistence) Save(ctx context.Context, state model.PersistedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.SaveFn != nil {
		if err := m.SaveFn(state); err != nil {
			return err
		}
	}
	m.state = &state
	return nil
}

func newTestStore(t *testing.T) (*Store, *memoryPersistence) {
	t.Helper()
	p := &memoryPersistence{}
	return New(p, logger.Nop()), p
}

func pendingTask(id string) model.Task {
	return model.Task{
		ID:     id,
		Status: model.TaskStatusPending,
		FormData: model.SubmissionParameters{
			VideoURL:  "https://x.test/" + id + ".mp4",
			Platform:  "bilibili",
			Style:     "minimal",
			ModelName: "gpt-4o",
		},
		Platform:  "bilibili",
		AudioMeta: model.AudioMeta{Title: id},
	}
}

func success(body string) *model.TaskResult {
	return &model.TaskResult{Markdown: body}
}

func TestCreate(t *testing.T) {
	s, p := newTestStore(t)

	require.NoError(t, s.Create(pendingTask("a")))
	require.NoError(t, s.Create(pendingTask("b")))

	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "b", tasks[0].ID, "most recently created first")
	assert.Equal(t, "a", tasks[1].ID)
	assert.Equal(t, "b", s.CurrentID())
	assert.False(t, tasks[0].CreatedAt.IsZero())

	require.NotNil(t, p.state)
	assert.Len(t, p.state.Tasks, 2)
	assert.Equal(t, "b", p.state.CurrentTaskID)

	t.Run("duplicate id", func(t *testing.T) {
		err := s.Create(pendingTask("a"))
		assert.ErrorIs(t, err, ErrTaskExists)
		assert.Len(t, s.Tasks(), 2)
	})
}

func TestCreatedAtNeverChanges(t *testing.T) {
	s, _ := newTestStore(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	task := pendingTask("a")
	task.CreatedAt = created
	require.NoError(t, s.Create(task))

	_, err := s.Reconcile("a", model.TaskStatusSuccess, success("A"))
	require.NoError(t, err)
	require.NoError(t, s.ResetForRetry("a", task.FormData))
	s.NormalizeTitles()

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestReconcileScenario(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(pendingTask("T")))

	// 第一次轮询：RUNNING
	changed, err := s.Reconcile("T", model.TaskStatusRunning, nil)
	require.NoError(t, err)
	assert.True(t, changed)
	got, _ := s.Get("T")
	assert.Equal(t, model.TaskStatusRunning, got.Status)

	// 第二次轮询：SUCCESS，内容 A
	changed, err = s.Reconcile("T", model.TaskStatusSuccess, success("A"))
	require.NoError(t, err)
	assert.True(t, changed)
	got, _ = s.Get("T")
	assert.Equal(t, model.TaskStatusSuccess, got.Status)
	versions := got.Markdown.Versions()
	require.Len(t, versions, 1)
	assert.Equal(t, "A", versions[0].Content)

	// 第三次（迟到的重复响应）：SUCCESS，内容 B
	changed, err = s.Reconcile("T", model.TaskStatusSuccess, success("B"))
	require.NoError(t, err)
	assert.False(t, changed)
	got, _ = s.Get("T")
	versions = got.Markdown.Versions()
	require.Len(t, versions, 1)
	assert.Equal(t, "A", versions[0].Content)
}

func TestReconcileNeverRegressesSuccess(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(pendingTask("a")))
	_, err := s.Reconcile("a", model.TaskStatusSuccess, success("A"))
	require.NoError(t, err)

	for _, status := range []model.TaskStatus{model.TaskStatusRunning, model.TaskStatusPending, model.TaskStatusFailed, "TRANSCRIBING"} {
		changed, err := s.Reconcile("a", status, nil)
		require.NoError(t, err)
		assert.False(t, changed, "status %s", status)
	}

	got, _ := s.Get("a")
	assert.Equal(t, model.TaskStatusSuccess, got.Status)
}

func TestReconcileTransitions(t *testing.T) {
	tests := []struct {
		name     string
		from     model.TaskStatus
		incoming model.TaskStatus
		want     model.TaskStatus
	}{
		{"pending to running", model.TaskStatusPending, model.TaskStatusRunning, model.TaskStatusRunning},
		{"pending to failed", model.TaskStatusPending, model.TaskStatusFailed, model.TaskStatusFailed},
		{"pending to success", model.TaskStatusPending, model.TaskStatusSuccess, model.TaskStatusSuccess},
		{"running to failed", model.TaskStatusRunning, model.TaskStatusFailed, model.TaskStatusFailed},
		{"custom progress state recorded verbatim", model.TaskStatusPending, "PARSING", "PARSING"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t)
			task := pendingTask("a")
			task.Status = tt.from
			require.NoError(t, s.Create(task))

			_, err := s.Reconcile("a", tt.incoming, success("body"))
			require.NoError(t, err)

			got, _ := s.Get("a")
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestReconcileFailedAppliesStatusOnly(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(pendingTask("a")))

	_, err := s.Reconcile("a", model.TaskStatusFailed, success("ignored"))
	require.NoError(t, err)

	got, _ := s.Get("a")
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	assert.True(t, got.Markdown.IsEmpty())
}

func TestReconcileSuccessAppliesResult(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(pendingTask("a")))

	result := &model.TaskResult{
		Markdown:   "# note",
		Transcript: &model.Transcript{FullText: "hello", Language: "en", Segments: []model.Segment{{Start: 0, End: 1, Text: "hello"}}},
		AudioMeta:  &model.AudioMeta{Title: "Server Title", VideoID: "BV1xx", Duration: 61},
	}
	_, err := s.Reconcile("a", model.TaskStatusSuccess, result)
	require.NoError(t, err)

	got, _ := s.Get("a")
	assert.Equal(t, "# note", got.Markdown.Latest())
	require.NotNil(t, got.Transcript)
	assert.Equal(t, "hello", got.Transcript.FullText)
	assert.Equal(t, "Server Title", got.AudioMeta.Title)
	assert.Equal(t, "BV1xx", got.AudioMeta.VideoID)
	assert.Equal(t, float64(61), got.AudioMeta.Duration)
}

func TestReconcileUnknownTask(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Reconcile("missing", model.TaskStatusRunning, nil)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestUpdateSuccessIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(pendingTask("a")))

	first := "first"
	require.NoError(t, s.Update("a", model.TaskPatch{Status: model.StatusPtr(model.TaskStatusSuccess), Markdown: &first}))
	before, _ := s.Get("a")

	second := "second"
	require.NoError(t, s.Update("a", model.TaskPatch{Status: model.StatusPtr(model.TaskStatusSuccess), Markdown: &second}))
	after, _ := s.Get("a")

	assert.Equal(t, before.Markdown.Versions(), after.Markdown.Versions())
}

func TestUpdateAppendsVersions(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(pendingTask("a")))

	bodies := []string{"v1", "v2", "v3", "v4"}
	for _, body := range bodies {
		b := body
		require.NoError(t, s.Update("a", model.TaskPatch{Markdown: &b}))
	}

	got, _ := s.Get("a")
	versions := got.Markdown.Versions()
	require.Len(t, versions, len(bodies))
	for i, v := range versions {
		assert.Equal(t, bodies[len(bodies)-1-i], v.Content)
	}
}

func TestUpdateStructuredVersionsMergeDirectly(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(pendingTask("a")))

	versions := []model.ContentVersion{{VerID: "a-1", Content: "x"}, {VerID: "a-0", Content: "y"}}
	require.NoError(t, s.Update("a", model.TaskPatch{Versions: versions}))

	got, _ := s.Get("a")
	assert.Equal(t, versions, got.Markdown.Versions())
}

func TestUpdateUsesStoredParametersForVersion(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(pendingTask("a")))

	body := "content"
	params := model.SubmissionParameters{Platform: "youtube", Style: "academic", ModelName: "other"}
	require.NoError(t, s.Update("a", model.TaskPatch{Markdown: &body, FormData: &params}))

	got, _ := s.Get("a")
	v := got.Markdown.Versions()[0]
	assert.Equal(t, "minimal", v.Style)
	assert.Equal(t, "gpt-4o", v.ModelName)
	assert.Equal(t, "academic", got.FormData.Style)
}

func TestUpdateNotFound(t *testing.T) {
	s, p := newTestStore(t)
	err := s.Update("missing", model.TaskPatch{Status: model.StatusPtr(model.TaskStatusRunning)})
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.Zero(t, p.saves)
}

func TestResetForRetry(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(pendingTask("a")))
	_, err := s.Reconcile("a", model.TaskStatusFailed, nil)
	require.NoError(t, err)

	params := model.SubmissionParameters{VideoURL: "https://x.test/b.mp4", Platform: "youtube", Quality: "slow"}
	require.NoError(t, s.ResetForRetry("a", params))

	got, _ := s.Get("a")
	assert.Equal(t, model.TaskStatusPending, got.Status)
	assert.Equal(t, params, got.FormData)

	assert.ErrorIs(t, s.ResetForRetry("missing", params), ErrTaskNotFound)
}

func TestRemove(t *testing.T) {
	s, p := newTestStore(t)
	require.NoError(t, s.Create(pendingTask("a")))
	require.NoError(t, s.Create(pendingTask("b")))

	removed, err := s.Remove("b")
	require.NoError(t, err)
	assert.Equal(t, "b", removed.ID)
	assert.Empty(t, s.CurrentID(), "current selection cleared")

	tasks := s.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "a", tasks[0].ID)
	assert.Len(t, p.state.Tasks, 1)

	_, err = s.Remove("b")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestRemoveKeepsOtherSelection(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(pendingTask("a")))
	require.NoError(t, s.Create(pendingTask("b")))
	require.NoError(t, s.SetCurrent("a"))

	_, err := s.Remove("b")
	require.NoError(t, err)
	assert.Equal(t, "a", s.CurrentID())
}

func TestSetCurrentAndClear(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(pendingTask("a")))

	assert.ErrorIs(t, s.SetCurrent("missing"), ErrTaskNotFound)
	assert.Equal(t, "a", s.CurrentID())

	require.NoError(t, s.SetCurrent(""))
	_, ok := s.Current()
	assert.False(t, ok)

	require.NoError(t, s.SetCurrent("a"))
	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.ID)

	s.Clear()
	assert.Empty(t, s.Tasks())
	assert.Empty(t, s.CurrentID())
}

func TestLoadRehydratesVerbatim(t *testing.T) {
	p := &memoryPersistence{state: &model.PersistedState{
		Tasks: []model.Task{
			{ID: "legacy", Status: model.TaskStatusSuccess, Markdown: model.LegacyContent("old")},
			{ID: "legacy", Status: model.TaskStatusPending},
			{ID: "", Status: model.TaskStatusPending},
			{ID: "other", Status: model.TaskStatusRunning},
		},
		CurrentTaskID:    "legacy",
		TitlesNormalized: true,
	}}
	s := New(p, logger.Nop())
	require.NoError(t, s.Load(context.Background()))

	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, model.ContentLegacy, tasks[0].Markdown.Kind(), "no bulk migration on load")
	assert.Equal(t, "legacy", s.CurrentID())
	assert.True(t, s.TitlesNormalized())
	assert.Zero(t, p.saves)
}

func TestLegacyContentMigratesOnFirstWrite(t *testing.T) {
	p := &memoryPersistence{state: &model.PersistedState{
		Tasks: []model.Task{{
			ID:       "legacy",
			Status:   model.TaskStatusRunning,
			Markdown: model.LegacyContent("old"),
			FormData: model.SubmissionParameters{Style: "detailed", ModelName: "deepseek"},
		}},
	}}
	s := New(p, logger.Nop())
	require.NoError(t, s.Load(context.Background()))

	_, err := s.Reconcile("legacy", model.TaskStatusSuccess, success("new"))
	require.NoError(t, err)

	got, _ := s.Get("legacy")
	versions := got.Markdown.Versions()
	require.Len(t, versions, 2)
	assert.Equal(t, "new", versions[0].Content)
	assert.Equal(t, "old", versions[1].Content)
	assert.Equal(t, "detailed", versions[1].Style)
	assert.Equal(t, "deepseek", versions[1].ModelName)
}

func TestSaveFailureKeepsMemoryState(t *testing.T) {
	s, p := newTestStore(t)
	p.SaveFn = func(state model.PersistedState) error {
		return errors.New("disk full")
	}

	require.NoError(t, s.Create(pendingTask("a")))
	_, ok := s.Get("a")
	assert.True(t, ok)
}

func TestTasksReturnsCopies(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(pendingTask("a")))

	tasks := s.Tasks()
	tasks[0].Status = model.TaskStatusFailed
	tasks[0].FormData.Format = append(tasks[0].FormData.Format, "toc")

	got, _ := s.Get("a")
	assert.Equal(t, model.TaskStatusPending, got.Status)
	assert.Empty(t, got.FormData.Format)
}

func TestNormalizeTitles(t *testing.T) {
	s, _ := newTestStore(t)

	keep := pendingTask("keep")
	keep.AudioMeta.Title = "  Café notes  "
	legacy := pendingTask("legacy")
	legacy.AudioMeta.Title = "未命名笔记"
	empty := model.Task{ID: "empty", Status: model.TaskStatusPending, FormData: model.SubmissionParameters{Title: "Explicit"}}

	for _, task := range []model.Task{keep, legacy, empty} {
		require.NoError(t, s.Create(task))
	}

	changed := s.NormalizeTitles()
	assert.Equal(t, 3, changed)
	assert.True(t, s.TitlesNormalized())

	got, _ := s.Get("keep")
	assert.Equal(t, "Café notes", got.AudioMeta.Title)
	got, _ = s.Get("legacy")
	assert.Equal(t, "legacy", got.AudioMeta.Title)
	got, _ = s.Get("empty")
	assert.Equal(t, "Explicit", got.AudioMeta.Title)

	assert.Zero(t, s.NormalizeTitles(), "second sweep is a no-op")
}

func TestConcurrentMutations(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(pendingTask("a")))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			body := "x"
			_ = s.Update("a", model.TaskPatch{Markdown: &body})
		}()
		go func() {
			defer wg.Done()
			_ = s.Tasks()
		}()
	}
	wg.Wait()

	got, _ := s.Get("a")
	assert.Len(t, got.Markdown.Versions(), 20)
}
