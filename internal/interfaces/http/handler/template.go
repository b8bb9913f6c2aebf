// Package handler 提供 HTTP 请求处理器
package handler

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"

	"z-video-ai-api/internal/application/template"
	"z-video-ai-api/internal/domain/repository"
	"z-video-ai-api/internal/interfaces/http/dto"
)

// TemplateHandler 模板目录与评分预览处理器
type TemplateHandler struct {
	scorer   *template.Scorer
	catalog  *template.Catalog
	projects repository.ProjectRepository
}

// NewTemplateHandler 创建模板处理器
func NewTemplateHandler(scorer *template.Scorer, catalog *template.Catalog, projects repository.ProjectRepository) *TemplateHandler {
	return &TemplateHandler{
		scorer:   scorer,
		catalog:  catalog,
		projects: projects,
	}
}

// ListTemplates 列出模板目录
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	dto.Success(c, dto.NewTemplateViews(h.catalog.Candidates()))
}

// ScorePreview 对项目画像跑一次评分，用于调参与排障。
// 评分是纯函数，预览与真实创建路径给出同样的排序。
func (h *TemplateHandler) ScorePreview(c *gin.Context) {
	var req dto.ScorePreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	project, err := h.projects.GetByID(c.Request.Context(), c.Param("pid"))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	if project == nil {
		dto.NotFound(c, "project not found")
		return
	}

	var profile template.ProfileVector
	if len(project.BrandProfile) > 0 {
		if err := json.Unmarshal(project.BrandProfile, &profile); err != nil {
			dto.BadRequest(c, "project brand profile is malformed")
			return
		}
	}

	available := make(map[template.Requirement]bool, len(req.AvailableContent))
	for k, v := range req.AvailableContent {
		available[template.Requirement(k)] = v
	}

	var keywords []string
	for _, token := range strings.Fields(req.Prompt) {
		if len([]rune(token)) >= 2 {
			keywords = append(keywords, token)
		}
	}

	scored := h.scorer.Score(profile, h.catalog.Candidates(), keywords, available)
	dto.Success(c, dto.NewScoredTemplateViews(scored))
}
