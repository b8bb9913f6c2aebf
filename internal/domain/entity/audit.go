// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/lib/pq"
)

// ToolDecision 工具选择审计记录。
// 复杂度标签是路由决策，必须贯穿到执行路径和审计日志。
type ToolDecision struct {
	ID             string `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectID      string `json:"project_id" gorm:"type:uuid;index;not null"`
	RequestID      string `json:"request_id" gorm:"type:uuid;index;not null"`
	Capability     string `json:"capability" gorm:"type:varchar(32);not null"`
	Complexity     string `json:"complexity,omitempty" gorm:"type:varchar(16)"`
	TargetEntityID string `json:"target_entity_id,omitempty" gorm:"type:uuid"`
	ContextTier    string `json:"context_tier" gorm:"type:varchar(16);not null"`
	// PlanSteps 多步计划时按序记录每一步能力名
	PlanSteps pq.StringArray `json:"plan_steps,omitempty" gorm:"type:text[]"`
	Status    string         `json:"status" gorm:"type:varchar(16);not null"`
	LatencyMs int64          `json:"latency_ms" gorm:"not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

func (ToolDecision) TableName() string {
	return "tool_decisions"
}
