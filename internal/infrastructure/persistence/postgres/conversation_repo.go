// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"z-video-ai-api/internal/domain/entity"
)

// ConversationRepository 对话仓储
type ConversationRepository struct {
	client *Client
}

// NewConversationRepository 创建对话仓储
func NewConversationRepository(client *Client) *ConversationRepository {
	return &ConversationRepository{client: client}
}

func (r *ConversationRepository) CreateSession(ctx context.Context, session *entity.ConversationSession) error {
	ctx, span := tracer.Start(ctx, "postgres.ConversationRepository.CreateSession")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(session).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create conversation session: %w", err)
	}
	return nil
}

func (r *ConversationRepository) GetSession(ctx context.Context, id string) (*entity.ConversationSession, error) {
	ctx, span := tracer.Start(ctx, "postgres.ConversationRepository.GetSession")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var session entity.ConversationSession
	if err := db.First(&session, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get conversation session: %w", err)
	}
	return &session, nil
}

func (r *ConversationRepository) AppendTurn(ctx context.Context, turn *entity.ConversationTurn) error {
	ctx, span := tracer.Start(ctx, "postgres.ConversationRepository.AppendTurn")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(turn).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to append conversation turn: %w", err)
	}
	return nil
}

func (r *ConversationRepository) RecentTurns(ctx context.Context, sessionID string, limit int) ([]*entity.ConversationTurn, error) {
	ctx, span := tracer.Start(ctx, "postgres.ConversationRepository.RecentTurns")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}

	db := getDB(ctx, r.client.db)
	var turns []*entity.ConversationTurn
	if err := db.Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&turns).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list recent turns: %w", err)
	}

	// 倒序取出后恢复时间正序
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (r *ConversationRepository) TurnsIntroducingScenes(ctx context.Context, projectID string) ([]*entity.ConversationTurn, error) {
	ctx, span := tracer.Start(ctx, "postgres.ConversationRepository.TurnsIntroducingScenes")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var turns []*entity.ConversationTurn
	if err := db.Where("project_id = ? AND introduced_scene_id IS NOT NULL AND introduced_scene_id <> ''", projectID).
		Order("created_at ASC").
		Find(&turns).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list scene-introducing turns: %w", err)
	}
	return turns, nil
}

func (r *ConversationRepository) CountTurns(ctx context.Context, sessionID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.ConversationRepository.CountTurns")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var count int64
	if err := db.Model(&entity.ConversationTurn{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count turns: %w", err)
	}
	return count, nil
}
