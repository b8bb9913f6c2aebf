// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"time"
)

// Project 视频项目
type Project struct {
	ID          string `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID     string `json:"owner_id" gorm:"type:uuid;index;not null"`
	Title       string `json:"title" gorm:"type:varchar(255);not null"`
	Description string `json:"description" gorm:"type:text"`
	// BrandProfile 归一化的品牌/风格画像快照（6 维，0..1），供模板评分使用
	BrandProfile json.RawMessage `json:"brand_profile,omitempty" gorm:"type:jsonb"`
	CreatedAt    time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Project) TableName() string {
	return "projects"
}

// NewProject 创建项目
func NewProject(ownerID, title, description string) *Project {
	now := time.Now()
	return &Project{
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
