package model

import (
	"maps"
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "PENDING"
	TaskStatusRunning TaskStatus = "RUNNING"
	TaskStatusSuccess TaskStatus = "SUCCESS"
	TaskStatusFailed  TaskStatus = "FAILED"
)

// IsTerminal 是否为终态（SUCCESS 或 FAILED）
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailed
}

// IsInProgress 是否处于处理中
// 后端返回的非标准状态值（如 PARSING、TRANSCRIBING）原样记录，但都视为处理中
func (s TaskStatus) IsInProgress() bool {
	return !s.IsTerminal() && s != TaskStatusPending
}

// Segment 转写分段
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript 转写结果（源材料）
type Transcript struct {
	FullText string         `json:"full_text"`
	Language string         `json:"language"`
	Raw      map[string]any `json:"raw,omitempty"`
	Segments []Segment      `json:"segments"`
}

// AudioMeta 视频/音频元信息
type AudioMeta struct {
	Title    string         `json:"title"`
	Platform string         `json:"platform"`
	Duration float64        `json:"duration"`
	CoverURL string         `json:"cover_url"`
	VideoID  string         `json:"video_id"`
	FilePath string         `json:"file_path"`
	RawInfo  map[string]any `json:"raw_info,omitempty"`
}

// ContentVersion 笔记内容的一个版本
type ContentVersion struct {
	VerID     string    `json:"ver_id"`
	Content   string    `json:"content"`
	Style     string    `json:"style"`
	ModelName string    `json:"model_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Task 笔记生成任务
type Task struct {
	ID         string               `json:"id"`
	Status     TaskStatus           `json:"status"`
	Markdown   Content              `json:"markdown"`
	Transcript *Transcript          `json:"transcript,omitempty"`
	AudioMeta  AudioMeta            `json:"audioMeta"`
	FormData   SubmissionParameters `json:"formData"`
	CreatedAt  time.Time            `json:"createdAt"`
	Platform   string               `json:"platform"`
}

// Clone 深拷贝任务，避免调用方修改存储中的切片和映射
func (t Task) Clone() Task {
	out := t
	out.Markdown = t.Markdown.Clone()
	if t.Transcript != nil {
		tr := *t.Transcript
		tr.Segments = append([]Segment(nil), t.Transcript.Segments...)
		tr.Raw = maps.Clone(t.Transcript.Raw)
		out.Transcript = &tr
	}
	out.AudioMeta.RawInfo = maps.Clone(t.AudioMeta.RawInfo)
	out.FormData = t.FormData.Clone()
	return out
}

// TaskResult 后端在任务成功时返回的结果
type TaskResult struct {
	Markdown   string      `json:"markdown"`
	Transcript *Transcript `json:"transcript"`
	AudioMeta  *AudioMeta  `json:"audio_meta"`
}

// TaskPatch 任务的部分更新
// Markdown 为纯文本内容时走版本管理；仅提供 Versions 时直接合并
type TaskPatch struct {
	Status     *TaskStatus
	Markdown   *string
	Versions   []ContentVersion
	Transcript *Transcript
	AudioMeta  *AudioMeta
	FormData   *SubmissionParameters
}

// StatusPtr 返回状态指针，便于构造 TaskPatch
func StatusPtr(s TaskStatus) *TaskStatus {
	return &s
}
