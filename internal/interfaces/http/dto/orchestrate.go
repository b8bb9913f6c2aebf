package dto

import (
	"encoding/json"

	"z-video-ai-api/internal/application/orchestration"
	"z-video-ai-api/internal/domain/entity"
)

// OrchestrateRequest 编排请求
type OrchestrateRequest struct {
	// Prompt 用户指令原文
	Prompt string `json:"prompt" binding:"required"`
	// SessionID 会话 ID，为空时创建新会话
	SessionID string `json:"session_id"`
	// TargetEntityID 显式指定的目标场景（UI 选中态）
	TargetEntityID string `json:"target_entity_id"`
	// History 客户端携带的近期对话，服务端会话记录缺失时的兜底
	History []TurnDTO `json:"history"`
	// AttachedImageRefs 随请求附带的图片引用
	AttachedImageRefs []string `json:"attached_image_refs"`
}

// TurnDTO 单轮对话
type TurnDTO struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// ToOrchestrationRequest 转换为编排层请求
func (r *OrchestrateRequest) ToOrchestrationRequest(projectID, userID string) *orchestration.Request {
	history := make([]entity.Message, 0, len(r.History))
	for _, t := range r.History {
		history = append(history, entity.Message{
			Role:    entity.Role(t.Role),
			Content: t.Content,
		})
	}
	return &orchestration.Request{
		ProjectID:           projectID,
		UserID:              userID,
		SessionID:           r.SessionID,
		Prompt:              r.Prompt,
		TargetEntityID:      r.TargetEntityID,
		ConversationHistory: history,
		AttachedImageRefs:   r.AttachedImageRefs,
	}
}

// OrchestrateResult 同步编排响应
type OrchestrateResult struct {
	RequestID  string        `json:"request_id"`
	SessionID  string        `json:"session_id,omitempty"`
	Capability string        `json:"capability"`
	Complexity string        `json:"complexity,omitempty"`
	Answer     string        `json:"answer,omitempty"`
	Artifact   *ArtifactView `json:"artifact,omitempty"`
}

// ArtifactView 提交产物视图
type ArtifactView struct {
	EntityID     string          `json:"entity_id"`
	VersionToken int64           `json:"version_token"`
	Payload      json.RawMessage `json:"payload"`
}

// NewOrchestrateResult 由编排结果构建响应
func NewOrchestrateResult(req *orchestration.Request, result *orchestration.Result) *OrchestrateResult {
	out := &OrchestrateResult{
		RequestID: req.RequestID,
		SessionID: req.SessionID,
	}
	if result.Selection != nil {
		out.Capability = result.Selection.Capability
		out.Complexity = string(result.Selection.Complexity)
	}
	out.Answer = result.Answer
	if result.Artifact != nil {
		out.Artifact = &ArtifactView{
			EntityID:     result.Artifact.EntityID,
			VersionToken: result.Artifact.VersionToken,
			Payload:      result.Artifact.Payload,
		}
	}
	return out
}
