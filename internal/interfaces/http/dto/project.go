package dto

import (
	"encoding/json"
	"time"

	"z-video-ai-api/internal/domain/entity"
)

// CreateProjectRequest 创建项目请求
type CreateProjectRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description"`
}

// UpdateProjectRequest 更新项目请求
type UpdateProjectRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description"`
}

// UpdateBrandProfileRequest 更新品牌画像请求。
// 画像是 6 维归一化向量，各维取值 [0,1]。
type UpdateBrandProfileRequest struct {
	Profile []float64 `json:"profile" binding:"required,len=6,dive,gte=0,lte=1"`
}

// ProjectView 项目视图
type ProjectView struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	BrandProfile json.RawMessage `json:"brand_profile,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewProjectView 由实体构建视图
func NewProjectView(p *entity.Project) *ProjectView {
	return &ProjectView{
		ID:           p.ID,
		OwnerID:      p.OwnerID,
		Title:        p.Title,
		Description:  p.Description,
		BrandProfile: p.BrandProfile,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// NewProjectViews 批量构建视图
func NewProjectViews(projects []*entity.Project) []*ProjectView {
	views := make([]*ProjectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, NewProjectView(p))
	}
	return views
}
