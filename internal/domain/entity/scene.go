// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"time"
)

// SceneStatus 场景状态枚举
type SceneStatus string

const (
	SceneStatusDraft     SceneStatus = "draft"
	SceneStatusGenerated SceneStatus = "generated"
	SceneStatusDeleted   SceneStatus = "deleted"
)

// Scene 视频场景，编排核心的可变实体。
// (Payload, VersionToken) 二元组是唯一真相：消费方只依据 VersionToken
// 变化决定是否重算派生视图，绝不比较 Payload 或回读慢存储做校验。
type Scene struct {
	ID        string `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectID string `json:"project_id" gorm:"type:uuid;index;not null"`
	// Position 当前列表位置（从 1 起），删除后重排；用户可见编号即该位置
	Position int             `json:"position" gorm:"not null"`
	Name     string          `json:"name" gorm:"type:varchar(255);not null"`
	Payload  json.RawMessage `json:"payload" gorm:"type:jsonb;not null"`
	// VersionToken 每实体严格递增的版本号，由状态同步层单写者分配
	VersionToken int64       `json:"version_token" gorm:"not null;default:0"`
	Status       SceneStatus `json:"status" gorm:"type:varchar(16);not null;default:'draft'"`
	// TemplateID 生成该场景所用的模板（如有）
	TemplateID string    `json:"template_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Scene) TableName() string {
	return "scenes"
}

// SceneSummary 场景摘要，供上下文构建使用的只读快照
type SceneSummary struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	Position     int       `json:"position"`
	Name         string    `json:"name"`
	Status       SceneStatus `json:"status"`
	VersionToken int64     `json:"version_token"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summary 生成摘要快照
func (s *Scene) Summary() SceneSummary {
	return SceneSummary{
		ID:           s.ID,
		ProjectID:    s.ProjectID,
		Position:     s.Position,
		Name:         s.Name,
		Status:       s.Status,
		VersionToken: s.VersionToken,
		UpdatedAt:    s.UpdatedAt,
	}
}

// VersionedArtifact 提交结果：实体载荷与版本号的不可分组合
type VersionedArtifact struct {
	EntityID     string          `json:"entity_id"`
	Payload      json.RawMessage `json:"payload"`
	VersionToken int64           `json:"version_token"`
}
