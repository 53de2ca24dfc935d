package store

import (
	"time"

	"note-tracker/app/model"

	"github.com/google/uuid"
)

// AppendVersion 将新生成的内容折叠进任务的版本历史，返回新的版本列表（最新在前）
//
// 旧版单值内容会被包装为一个版本保留在新版本之后；
// 版本的 style / model_name 取自任务当前的提交参数。
func AppendVersion(task model.Task, body string, now time.Time) []model.ContentVersion {
	latest := newVersion(task, body, now)

	switch task.Markdown.Kind() {
	case model.ContentVersioned:
		existing := task.Markdown.Versions()
		versions := make([]model.ContentVersion, 0, len(existing)+1)
		versions = append(versions, latest)
		return append(versions, existing...)
	case model.ContentLegacy:
		return []model.ContentVersion{
			latest,
			newVersion(task, task.Markdown.Legacy(), task.CreatedAt),
		}
	}
	return []model.ContentVersion{latest}
}

func newVersion(task model.Task, body string, at time.Time) model.ContentVersion {
	return model.ContentVersion{
		VerID:     task.ID + "-" + uuid.NewString(),
		Content:   body,
		Style:     task.FormData.Style,
		ModelName: task.FormData.ModelName,
		CreatedAt: at,
	}
}
