// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"z-video-ai-api/internal/domain/entity"
)

// PreferenceRepository 偏好仓储
type PreferenceRepository struct {
	client *Client
}

// NewPreferenceRepository 创建偏好仓储
func NewPreferenceRepository(client *Client) *PreferenceRepository {
	return &PreferenceRepository{client: client}
}

func (r *PreferenceRepository) Get(ctx context.Context, projectID, userID, key string) (*entity.Preference, error) {
	ctx, span := tracer.Start(ctx, "postgres.PreferenceRepository.Get")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var pref entity.Preference
	// 项目作用域优先，其次全局作用域
	err := db.Where("user_id = ? AND key = ? AND (project_id = ? OR scope = ?)",
		userID, key, projectID, entity.PreferenceScopeGlobal).
		Order("scope DESC"). // project > global
		First(&pref).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}
	return &pref, nil
}

func (r *PreferenceRepository) Upsert(ctx context.Context, pref *entity.Preference) error {
	ctx, span := tracer.Start(ctx, "postgres.PreferenceRepository.Upsert")
	defer span.End()

	pref.ClampConfidence()

	db := getDB(ctx, r.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value", "confidence", "source", "updated_at",
		}),
	}).Create(pref).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert preference: %w", err)
	}
	return nil
}

func (r *PreferenceRepository) ListByPrefix(ctx context.Context, projectID, userID, prefix string) ([]*entity.Preference, error) {
	ctx, span := tracer.Start(ctx, "postgres.PreferenceRepository.ListByPrefix")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var prefs []*entity.Preference
	query := db.Where("user_id = ? AND (project_id = ? OR scope = ?)",
		userID, projectID, entity.PreferenceScopeGlobal)
	if prefix != "" {
		query = query.Where("key LIKE ?", prefix+"%")
	}
	if err := query.Order("key ASC").Find(&prefs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	return prefs, nil
}

func (r *PreferenceRepository) ListAll(ctx context.Context, projectID, userID string) ([]*entity.Preference, error) {
	return r.ListByPrefix(ctx, projectID, userID, "")
}

// ImageFactRepository 图片事实仓储
type ImageFactRepository struct {
	client *Client
}

// NewImageFactRepository 创建图片事实仓储
func NewImageFactRepository(client *Client) *ImageFactRepository {
	return &ImageFactRepository{client: client}
}

func (r *ImageFactRepository) Create(ctx context.Context, fact *entity.ImageFact) error {
	ctx, span := tracer.Start(ctx, "postgres.ImageFactRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(fact).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create image fact: %w", err)
	}
	return nil
}

func (r *ImageFactRepository) ListByProject(ctx context.Context, projectID string, limit int) ([]*entity.ImageFact, error) {
	ctx, span := tracer.Start(ctx, "postgres.ImageFactRepository.ListByProject")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}

	db := getDB(ctx, r.client.db)
	var facts []*entity.ImageFact
	if err := db.Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(limit).
		Find(&facts).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list image facts: %w", err)
	}
	return facts, nil
}
