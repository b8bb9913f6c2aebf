// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"time"
)

// ConversationSession 项目内的对话会话
type ConversationSession struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectID string    `json:"project_id" gorm:"type:uuid;index;not null"`
	UserID    string    `json:"user_id" gorm:"type:uuid;index;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (ConversationSession) TableName() string {
	return "conversation_sessions"
}

// NewConversationSession 创建对话会话
func NewConversationSession(projectID, userID string) *ConversationSession {
	now := time.Now()
	return &ConversationSession{
		ProjectID: projectID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ConversationTurn 单轮对话。
// IntroducedSceneID 记录该轮引入的场景：序数引用（"第一个场景"）
// 按对话引入顺序解析，而非存储顺序，两者在删除/乱序创建后会分叉。
type ConversationTurn struct {
	ID               string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID        string          `json:"session_id" gorm:"type:uuid;index;not null"`
	ProjectID        string          `json:"project_id" gorm:"type:uuid;index;not null"`
	Role             Role            `json:"role" gorm:"type:varchar(16);not null"`
	Content          string          `json:"content" gorm:"type:text;not null"`
	IntroducedSceneID string         `json:"introduced_scene_id,omitempty" gorm:"type:uuid"`
	Metadata         json.RawMessage `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt        time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (ConversationTurn) TableName() string {
	return "conversation_turns"
}

// NewConversationTurn 创建对话轮次
func NewConversationTurn(sessionID, projectID string, role Role, content string, metadata json.RawMessage) *ConversationTurn {
	return &ConversationTurn{
		SessionID: sessionID,
		ProjectID: projectID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
}

// Message 请求内传递的对话消息（请求作用域，不落库）
type Message struct {
	Role             Role   `json:"role"`
	Content          string `json:"content"`
	IntroducedSceneID string `json:"introduced_scene_id,omitempty"`
}
