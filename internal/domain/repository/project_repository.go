package repository

import (
	"context"
	"encoding/json"

	"z-video-ai-api/internal/domain/entity"
)

// ProjectRepository 项目仓储接口
type ProjectRepository interface {
	Create(ctx context.Context, project *entity.Project) error
	GetByID(ctx context.Context, id string) (*entity.Project, error)
	List(ctx context.Context, ownerID string, pagination Pagination) (*PagedResult[*entity.Project], error)
	Update(ctx context.Context, project *entity.Project) error
	UpdateBrandProfile(ctx context.Context, id string, profile json.RawMessage) error
	Delete(ctx context.Context, id string) error
}

// ToolDecisionRepository 工具选择审计仓储接口
type ToolDecisionRepository interface {
	Record(ctx context.Context, decision *entity.ToolDecision) error
	ListByProject(ctx context.Context, projectID string, pagination Pagination) (*PagedResult[*entity.ToolDecision], error)
}
