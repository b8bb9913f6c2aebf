// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"z-video-ai-api/internal/domain/repository"
	"z-video-ai-api/internal/interfaces/http/dto"
)

// DecisionHandler 工具选择审计处理器
type DecisionHandler struct {
	decisions repository.ToolDecisionRepository
}

// NewDecisionHandler 创建审计处理器
func NewDecisionHandler(decisions repository.ToolDecisionRepository) *DecisionHandler {
	return &DecisionHandler{decisions: decisions}
}

// ListDecisions 按时间倒序列出项目内的工具选择审计记录
func (h *DecisionHandler) ListDecisions(c *gin.Context) {
	result, err := h.decisions.ListByProject(c.Request.Context(), c.Param("pid"), parsePagination(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.SuccessWithPage(c, dto.NewToolDecisionViews(result.Items),
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}
