package dto

import (
	"time"

	"z-video-ai-api/internal/application/template"
	"z-video-ai-api/internal/domain/entity"
)

// TemplateView 模板目录项视图
type TemplateView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Keywords     []string `json:"keywords,omitempty"`
	Requirements []string `json:"requirements,omitempty"`
	Formats      []string `json:"formats,omitempty"`
}

// NewTemplateViews 由目录构建视图
func NewTemplateViews(candidates []template.Candidate) []*TemplateView {
	views := make([]*TemplateView, 0, len(candidates))
	for _, cand := range candidates {
		reqs := make([]string, 0, len(cand.Requirements))
		for _, r := range cand.Requirements {
			reqs = append(reqs, string(r))
		}
		views = append(views, &TemplateView{
			ID:           cand.ID,
			Name:         cand.Name,
			Keywords:     cand.Keywords,
			Requirements: reqs,
			Formats:      cand.Formats,
		})
	}
	return views
}

// ScorePreviewRequest 模板评分预览请求，用于调试评分策略
type ScorePreviewRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	// AvailableContent 可用素材声明，键为素材要求名
	AvailableContent map[string]bool `json:"available_content"`
}

// ScoredTemplateView 评分结果视图，按总分降序
type ScoredTemplateView struct {
	TemplateID          string  `json:"template_id"`
	Total               float64 `json:"total"`
	ProfileMatch        float64 `json:"profile_match"`
	KeywordMatch        float64 `json:"keyword_match"`
	ContentAvailability float64 `json:"content_availability"`
	Reasoning           string  `json:"reasoning"`
}

// NewScoredTemplateViews 由评分结果构建视图
func NewScoredTemplateViews(scored []template.ScoredTemplate) []*ScoredTemplateView {
	views := make([]*ScoredTemplateView, 0, len(scored))
	for _, s := range scored {
		views = append(views, &ScoredTemplateView{
			TemplateID:          s.Candidate.ID,
			Total:               s.Score,
			ProfileMatch:        s.Breakdown.ProfileMatch,
			KeywordMatch:        s.Breakdown.KeywordMatch,
			ContentAvailability: s.Breakdown.ContentAvailability,
			Reasoning:           s.Reasoning,
		})
	}
	return views
}

// ToolDecisionView 工具选择审计视图
type ToolDecisionView struct {
	ID             string    `json:"id"`
	RequestID      string    `json:"request_id"`
	Capability     string    `json:"capability"`
	Complexity     string    `json:"complexity,omitempty"`
	TargetEntityID string    `json:"target_entity_id,omitempty"`
	ContextTier    string    `json:"context_tier"`
	PlanSteps      []string  `json:"plan_steps,omitempty"`
	Status         string    `json:"status"`
	LatencyMs      int64     `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewToolDecisionViews 批量构建审计视图
func NewToolDecisionViews(decisions []*entity.ToolDecision) []*ToolDecisionView {
	views := make([]*ToolDecisionView, 0, len(decisions))
	for _, d := range decisions {
		views = append(views, &ToolDecisionView{
			ID:             d.ID,
			RequestID:      d.RequestID,
			Capability:     d.Capability,
			Complexity:     d.Complexity,
			TargetEntityID: d.TargetEntityID,
			ContextTier:    d.ContextTier,
			PlanSteps:      []string(d.PlanSteps),
			Status:         d.Status,
			LatencyMs:      d.LatencyMs,
			CreatedAt:      d.CreatedAt,
		})
	}
	return views
}
