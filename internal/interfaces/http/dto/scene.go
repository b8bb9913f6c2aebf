package dto

import (
	"encoding/json"
	"time"

	"z-video-ai-api/internal/domain/entity"
)

// SceneView 场景列表项视图，只含摘要信息
type SceneView struct {
	ID           string    `json:"id"`
	Position     int       `json:"position"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	VersionToken int64     `json:"version_token"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewSceneView 由摘要构建视图
func NewSceneView(s entity.SceneSummary) *SceneView {
	return &SceneView{
		ID:           s.ID,
		Position:     s.Position,
		Name:         s.Name,
		Status:       string(s.Status),
		VersionToken: s.VersionToken,
		UpdatedAt:    s.UpdatedAt,
	}
}

// SceneDetailView 场景详情视图，携带完整载荷与版本号。
// 消费方据 version_token 变化判断是否重算派生视图。
type SceneDetailView struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"project_id"`
	Position     int             `json:"position"`
	Name         string          `json:"name"`
	Status       string          `json:"status"`
	TemplateID   string          `json:"template_id,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	VersionToken int64           `json:"version_token"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewSceneDetailView 由实体构建详情视图
func NewSceneDetailView(s *entity.Scene) *SceneDetailView {
	return &SceneDetailView{
		ID:           s.ID,
		ProjectID:    s.ProjectID,
		Position:     s.Position,
		Name:         s.Name,
		Status:       string(s.Status),
		TemplateID:   s.TemplateID,
		Payload:      s.Payload,
		VersionToken: s.VersionToken,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}
