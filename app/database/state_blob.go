package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"note-tracker/app/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatePersistence 将任务存储快照作为一个命名的 JSON 数据块保存在 state_blobs 表中
type StatePersistence struct {
	db  *gorm.DB
	key string
}

// NewStatePersistence 创建状态持久化适配器
func NewStatePersistence(db *gorm.DB, key string) *StatePersistence {
	return &StatePersistence{db: db, key: key}
}

// Load 读取快照，记录不存在时返回 nil
func (p *StatePersistence) Load(ctx context.Context) (*model.PersistedState, error) {
	var blob model.StateBlob
	err := p.db.WithContext(ctx).Where("name = ?", p.key).First(&blob).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取状态 %s 失败: %w", p.key, err)
	}

	var state model.PersistedState
	if len(blob.Value) == 0 {
		return &state, nil
	}
	if err := json.Unmarshal(blob.Value, &state); err != nil {
		return nil, fmt.Errorf("解析状态 %s 失败: %w", p.key, err)
	}
	return &state, nil
}

// Save 整体写入快照
func (p *StatePersistence) Save(ctx context.Context, state model.PersistedState) error {
	if state.Tasks == nil {
		state.Tasks = []model.Task{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("序列化状态 %s 失败: %w", p.key, err)
	}

	blob := model.StateBlob{
		Name:      p.key,
		Value:     datatypes.JSON(data),
		UpdatedAt: time.Now(),
	}
	err = p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&blob).Error
	if err != nil {
		return fmt.Errorf("保存状态 %s 失败: %w", p.key, err)
	}
	return nil
}
