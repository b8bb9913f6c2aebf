// Package handler 提供 HTTP 请求处理器
package handler

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/domain/repository"
	infraredis "z-video-ai-api/internal/infrastructure/persistence/redis"
	"z-video-ai-api/internal/interfaces/http/dto"
	"z-video-ai-api/pkg/logger"
)

// ProjectHandler 项目处理器
type ProjectHandler struct {
	projects repository.ProjectRepository
	cache    *infraredis.Cache
}

// NewProjectHandler 创建项目处理器
func NewProjectHandler(projects repository.ProjectRepository, cache *infraredis.Cache) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		cache:    cache,
	}
}

// ListProjects 列出当前用户的项目
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	pagination := parsePagination(c)

	result, err := h.projects.List(c.Request.Context(), c.GetString("user_id"), pagination)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.SuccessWithPage(c, dto.NewProjectViews(result.Items),
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// CreateProject 创建项目
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	project := entity.NewProject(c.GetString("user_id"), req.Title, req.Description)
	project.ID = uuid.NewString()

	if err := h.projects.Create(c.Request.Context(), project); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Created(c, dto.NewProjectView(project))
}

// GetProject 获取项目详情
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, err := h.projects.GetByID(c.Request.Context(), c.Param("pid"))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	if project == nil {
		dto.NotFound(c, "project not found")
		return
	}
	dto.Success(c, dto.NewProjectView(project))
}

// UpdateProject 更新项目
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	var req dto.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	project, err := h.projects.GetByID(ctx, c.Param("pid"))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	if project == nil {
		dto.NotFound(c, "project not found")
		return
	}

	project.Title = req.Title
	project.Description = req.Description
	if err := h.projects.Update(ctx, project); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.NewProjectView(project))
}

// UpdateBrandProfile 更新品牌画像。
// 画像是模板评分输入，更新后立即失效项目级缓存。
func (h *ProjectHandler) UpdateBrandProfile(c *gin.Context) {
	var req dto.UpdateBrandProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	raw, err := json.Marshal(req.Profile)
	if err != nil {
		dto.BadRequest(c, "invalid profile")
		return
	}

	ctx := c.Request.Context()
	projectID := c.Param("pid")
	if err := h.projects.UpdateBrandProfile(ctx, projectID, raw); err != nil {
		dto.FromError(c, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.InvalidateProject(ctx, projectID); err != nil {
			logger.FromContext(ctx).Warn("failed to invalidate project cache", "error", err)
		}
	}
	dto.NoContent(c)
}

// DeleteProject 删除项目
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Param("pid")

	if err := h.projects.Delete(ctx, projectID); err != nil {
		dto.FromError(c, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.InvalidateProject(ctx, projectID); err != nil {
			logger.FromContext(ctx).Warn("failed to invalidate project cache", "error", err)
		}
	}
	dto.NoContent(c)
}

// parsePagination 解析分页查询参数
func parsePagination(c *gin.Context) repository.Pagination {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return repository.NewPagination(page, pageSize)
}
