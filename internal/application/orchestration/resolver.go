package orchestration

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/domain/repository"
	apperrors "z-video-ai-api/pkg/errors"
)

var resolverTracer = otel.Tracer("orchestration.resolver")

// Resolver 目标实体解析器。固定优先级：
//  1. 请求显式附带的引用
//  2. 序数引用，按实体在对话中的引入顺序解析（不是存储顺序，
//     删除或乱序创建后两者会分叉，用户看到的编号以对话引入为准）
//  3. 无引用时默认最近引入的实体
//
// 解析失败一律上抛 AmbiguousIntent，绝不猜测：静默误路由比显式失败更糟。
type Resolver struct {
	convs repository.ConversationRepository
}

// NewResolver 创建目标解析器
func NewResolver(convs repository.ConversationRepository) *Resolver {
	return &Resolver{convs: convs}
}

// Resolve 解析目标实体 ID。ordinal 为模型识别出的序数（0 表示未指代）。
func (r *Resolver) Resolve(ctx context.Context, req *Request, bundle *ContextBundle, ordinal int) (string, error) {
	ctx, span := resolverTracer.Start(ctx, "resolver.Resolve",
		trace.WithAttributes(attribute.Int("target.ordinal", ordinal)))
	defer span.End()

	// 显式附带的引用优先级最高
	if req.TargetEntityID != "" {
		if !r.exists(bundle, req.TargetEntityID) {
			return "", apperrors.ErrSceneNotFound.WithDetail(
				fmt.Sprintf("attached scene %s does not exist in project", req.TargetEntityID))
		}
		return req.TargetEntityID, nil
	}

	introduced, err := r.introducedOrder(ctx, req.ProjectID, bundle)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	if ordinal > 0 {
		if ordinal > len(introduced) {
			// "编辑第三个"但只有两个实体：必须澄清而非猜测
			return "", apperrors.ErrAmbiguousIntent.WithDetail(
				fmt.Sprintf("ordinal %d out of range, only %d scenes introduced", ordinal, len(introduced)))
		}
		return introduced[ordinal-1], nil
	}

	// 默认取最近引入的实体
	if len(introduced) > 0 {
		return introduced[len(introduced)-1], nil
	}
	return "", apperrors.ErrAmbiguousIntent.WithDetail("no scene to target in this project")
}

// introducedOrder 返回对话引入顺序的场景 ID 列表，
// 已删除的实体从序数空间中剔除（与用户可见编号保持一致）。
func (r *Resolver) introducedOrder(ctx context.Context, projectID string, bundle *ContextBundle) ([]string, error) {
	if r.convs == nil {
		return r.positionOrder(bundle), nil
	}

	turns, err := r.convs.TurnsIntroducingScenes(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scene introduction order: %w", err)
	}

	seen := make(map[string]struct{}, len(turns))
	var order []string
	for _, turn := range turns {
		id := turn.IntroducedSceneID
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if r.exists(bundle, id) {
			order = append(order, id)
		}
	}

	// 对话里从未引入过场景（如场景由模板批量生成）时退回列表位置序
	if len(order) == 0 {
		return r.positionOrder(bundle), nil
	}
	return order, nil
}

func (r *Resolver) positionOrder(bundle *ContextBundle) []string {
	order := make([]string, 0, len(bundle.EntityList))
	for _, s := range bundle.EntityList {
		if s.Status != entity.SceneStatusDeleted {
			order = append(order, s.ID)
		}
	}
	return order
}

func (r *Resolver) exists(bundle *ContextBundle, id string) bool {
	if bundle.TargetEntity != nil && bundle.TargetEntity.ID == id {
		return true
	}
	for _, s := range bundle.EntityList {
		if s.ID == id && s.Status != entity.SceneStatusDeleted {
			return true
		}
	}
	return false
}
