// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"time"
)

// PreferenceScope 偏好作用域
type PreferenceScope string

const (
	PreferenceScopeGlobal  PreferenceScope = "global"
	PreferenceScopeProject PreferenceScope = "project"
)

// PreferenceSource 偏好来源
type PreferenceSource string

const (
	PreferenceSourceExplicit PreferenceSource = "explicit"
	PreferenceSourcePattern  PreferenceSource = "pattern"
	PreferenceSourceInferred PreferenceSource = "inferred"
)

// Preference 用户偏好事实。只由偏好学习器或显式陈述写入；
// 永不删除，只做置信度调整或被更高置信度的值覆盖。
type Preference struct {
	ID        string `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectID string `json:"project_id" gorm:"type:uuid;index"`
	UserID    string `json:"user_id" gorm:"type:uuid;index;not null"`
	Key       string `json:"key" gorm:"type:varchar(128);not null;uniqueIndex:idx_pref_scope_key"`
	Value     string `json:"value" gorm:"type:text;not null"`
	// Confidence 置信度，始终在 [0,1] 内
	Confidence float64          `json:"confidence" gorm:"not null"`
	Scope      PreferenceScope  `json:"scope" gorm:"type:varchar(16);not null;uniqueIndex:idx_pref_scope_key"`
	Source     PreferenceSource `json:"source" gorm:"type:varchar(16);not null"`
	CreatedAt  time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Preference) TableName() string {
	return "preferences"
}

// ClampConfidence 将置信度收敛到 [0,1]
func (p *Preference) ClampConfidence() {
	if p.Confidence < 0 {
		p.Confidence = 0
	}
	if p.Confidence > 1 {
		p.Confidence = 1
	}
}

// ImageFact 图片分析事实，由后台分析任务写入记忆库
type ImageFact struct {
	ID        string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectID string          `json:"project_id" gorm:"type:uuid;index;not null"`
	ImageRef  string          `json:"image_ref" gorm:"type:varchar(512);not null"`
	Facts     json.RawMessage `json:"facts" gorm:"type:jsonb;not null"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (ImageFact) TableName() string {
	return "image_facts"
}
