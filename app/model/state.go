package model

import (
	"time"

	"gorm.io/datatypes"
)

// PersistedState 持久化的任务存储快照
type PersistedState struct {
	Tasks            []Task `json:"tasks"`
	CurrentTaskID    string `json:"currentTaskId"`
	TitlesNormalized bool   `json:"titlesNormalized"`
}

// StateBlob 按名称保存的状态数据
type StateBlob struct {
	Name      string         `gorm:"primaryKey;size:100;comment:状态名称" json:"name"`
	Value     datatypes.JSON `gorm:"comment:状态内容" json:"value"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName 指定表名
func (StateBlob) TableName() string {
	return "state_blobs"
}
