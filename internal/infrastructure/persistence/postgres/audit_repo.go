// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/domain/repository"
)

// ToolDecisionRepository 工具选择审计仓储
type ToolDecisionRepository struct {
	client *Client
}

// NewToolDecisionRepository 创建审计仓储
func NewToolDecisionRepository(client *Client) *ToolDecisionRepository {
	return &ToolDecisionRepository{client: client}
}

func (r *ToolDecisionRepository) Record(ctx context.Context, decision *entity.ToolDecision) error {
	ctx, span := tracer.Start(ctx, "postgres.ToolDecisionRepository.Record")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(decision).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to record tool decision: %w", err)
	}
	return nil
}

func (r *ToolDecisionRepository) ListByProject(ctx context.Context, projectID string, pagination repository.Pagination) (*repository.PagedResult[*entity.ToolDecision], error) {
	ctx, span := tracer.Start(ctx, "postgres.ToolDecisionRepository.ListByProject")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.ToolDecision{}).Where("project_id = ?", projectID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count tool decisions: %w", err)
	}

	var decisions []*entity.ToolDecision
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&decisions).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list tool decisions: %w", err)
	}

	return repository.NewPagedResult(decisions, total, pagination), nil
}
