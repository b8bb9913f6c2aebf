package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"z-video-ai-api/internal/application/memory"
	"z-video-ai-api/internal/application/template"
	"z-video-ai-api/internal/config"
	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/domain/repository"
	infraredis "z-video-ai-api/internal/infrastructure/persistence/redis"
	apperrors "z-video-ai-api/pkg/errors"
	"z-video-ai-api/pkg/logger"
)

var builderTracer = otel.Tracer("orchestration.builder")

// ContextBuilder 分档上下文构建器。
// 同一档位内的子拉取全部并发执行，这是请求延迟最大的优化杠杆。
// 上下文是优化而非硬依赖：只有主存储不可达才上抛 ContextUnavailable，
// 其余失败全部就地降级为空子对象。
type ContextBuilder struct {
	scenes   repository.SceneRepository
	projects repository.ProjectRepository
	store    *memory.Store
	cache    *infraredis.Cache
	recall   *memory.Recall
	cfg      config.OrchestrationConfig
	ttl      config.CacheTTLConfig
}

// NewContextBuilder 创建上下文构建器
func NewContextBuilder(
	scenes repository.SceneRepository,
	projects repository.ProjectRepository,
	store *memory.Store,
	cache *infraredis.Cache,
	cfg config.OrchestrationConfig,
	ttl config.CacheTTLConfig,
) *ContextBuilder {
	return &ContextBuilder{
		scenes:   scenes,
		projects: projects,
		store:    store,
		cache:    cache,
		cfg:      cfg,
		ttl:      ttl,
	}
}

// WithSemanticRecall 挂载语义召回。可选依赖，未挂载时 Analytical 档只做词法分析。
func (b *ContextBuilder) WithSemanticRecall(recall *memory.Recall) *ContextBuilder {
	b.recall = recall
	return b
}

// Build 按档位构建上下文包
func (b *ContextBuilder) Build(ctx context.Context, req *Request, tier Tier) (*ContextBundle, error) {
	ctx, span := builderTracer.Start(ctx, "builder.Build",
		trace.WithAttributes(
			attribute.String("context.tier", string(tier)),
			attribute.String("project_id", req.ProjectID),
		))
	defer span.End()

	bundle := &ContextBundle{Tier: tier}

	g, gctx := errgroup.WithContext(ctx)

	// 目标实体：所有档位只要请求带了引用就拉取
	if req.TargetEntityID != "" {
		g.Go(func() error {
			scene, err := b.scenes.GetByID(gctx, req.TargetEntityID)
			if err != nil {
				return apperrors.ErrContextUnavailable.WithError(err)
			}
			if scene != nil {
				summary := scene.Summary()
				bundle.TargetEntity = &summary
			}
			return nil
		})
	}

	switch tier {
	case TierTrivial:
		bundle.RecentHistory = tailMessages(req.ConversationHistory, b.cfg.TrivialHistoryLimit)
	case TierModerate:
		bundle.RecentHistory = tailMessages(req.ConversationHistory, b.cfg.ModerateHistoryLimit)
		b.fetchEntityList(g, gctx, req, bundle)
		b.fetchPreferences(g, gctx, req, bundle)
		b.fetchBrandProfile(g, gctx, req, bundle)
	case TierComplex, TierAnalytical:
		bundle.RecentHistory = tailMessages(req.ConversationHistory, b.cfg.FullHistoryLimit)
		b.fetchEntityList(g, gctx, req, bundle)
		b.fetchPreferences(g, gctx, req, bundle)
		b.fetchBrandProfile(g, gctx, req, bundle)
		b.fetchImageFacts(g, gctx, req, bundle)
		if tier == TierAnalytical {
			b.fetchRelatedFacts(g, gctx, req, bundle)
		}
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if tier == TierAnalytical {
		// 纯内存计算，放在并发拉取之后做
		bundle.Patterns = derivePatterns(bundle.RecentHistory)
	}

	span.SetAttributes(
		attribute.Int("context.entity_count", len(bundle.EntityList)),
		attribute.Int("context.preference_count", len(bundle.Preferences)),
	)
	return bundle, nil
}

// fetchEntityList 场景列表读取：短 TTL 缓存 + 提交即失效，TTL 只是兜底
func (b *ContextBuilder) fetchEntityList(g *errgroup.Group, ctx context.Context, req *Request, bundle *ContextBundle) {
	g.Go(func() error {
		summaries, err := b.loadSceneList(ctx, req.ProjectID)
		if err != nil {
			return apperrors.ErrContextUnavailable.WithError(err)
		}
		bundle.EntityList = summaries
		return nil
	})
}

func (b *ContextBuilder) loadSceneList(ctx context.Context, projectID string) ([]entity.SceneSummary, error) {
	load := func() ([]entity.SceneSummary, error) {
		scenes, err := b.scenes.ListByProject(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("failed to list scenes: %w", err)
		}
		summaries := make([]entity.SceneSummary, 0, len(scenes))
		for _, s := range scenes {
			summaries = append(summaries, s.Summary())
		}
		return summaries, nil
	}

	if b.cache == nil {
		return load()
	}

	data, err := b.cache.GetOrLoadSafe(ctx, "scene_list", infraredis.SceneListKey(projectID),
		b.ttl.SceneList, func() (interface{}, error) {
			return load()
		})
	if err != nil {
		// 缓存层故障退回直查
		logger.FromContext(ctx).Warn("scene list cache read failed, falling back to store", "error", err)
		return load()
	}

	var summaries []entity.SceneSummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		return load()
	}
	return summaries, nil
}

// fetchPreferences 偏好画像读取：长 TTL 缓存。失败降级为空，不失败请求。
func (b *ContextBuilder) fetchPreferences(g *errgroup.Group, ctx context.Context, req *Request, bundle *ContextBundle) {
	g.Go(func() error {
		prefs, err := b.store.List(ctx, req.ProjectID, req.UserID, "")
		if err != nil {
			logger.FromContext(ctx).Warn("preference fetch failed, degrading to empty", "error", err)
			return nil
		}
		bundle.Preferences = prefs
		return nil
	})
}

func (b *ContextBuilder) fetchBrandProfile(g *errgroup.Group, ctx context.Context, req *Request, bundle *ContextBundle) {
	g.Go(func() error {
		project, err := b.projects.GetByID(ctx, req.ProjectID)
		if err != nil || project == nil || len(project.BrandProfile) == 0 {
			if err != nil {
				logger.FromContext(ctx).Warn("brand profile fetch failed, degrading to zero profile", "error", err)
			}
			return nil
		}
		var profile template.ProfileVector
		if err := json.Unmarshal(project.BrandProfile, &profile); err != nil {
			logger.FromContext(ctx).Warn("malformed brand profile, degrading to zero profile", "error", err)
			return nil
		}
		bundle.BrandProfile = profile
		return nil
	})
}

func (b *ContextBuilder) fetchImageFacts(g *errgroup.Group, ctx context.Context, req *Request, bundle *ContextBundle) {
	g.Go(func() error {
		facts, err := b.store.ImageFacts(ctx, req.ProjectID, 50)
		if err != nil {
			logger.FromContext(ctx).Warn("image fact fetch failed, degrading to empty", "error", err)
			return nil
		}
		bundle.ImageFacts = facts
		return nil
	})
}

// fetchRelatedFacts 语义召回相关记忆事实。失败降级为空，不失败请求。
func (b *ContextBuilder) fetchRelatedFacts(g *errgroup.Group, ctx context.Context, req *Request, bundle *ContextBundle) {
	if b.recall == nil {
		return
	}
	g.Go(func() error {
		facts, err := b.recall.RelatedFacts(ctx, req.ProjectID, req.Prompt, 10)
		if err != nil {
			logger.FromContext(ctx).Warn("semantic recall failed, degrading to lexical only", "error", err)
			return nil
		}
		bundle.RelatedFacts = facts
		return nil
	})
}

func tailMessages(history []entity.Message, limit int) []entity.Message {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}

// derivePatterns 提取历史中的重复表达：出现三次及以上的词视为模式
func derivePatterns(history []entity.Message) []string {
	counts := make(map[string]int)
	for _, msg := range history {
		if msg.Role != entity.RoleUser {
			continue
		}
		for _, token := range strings.Fields(strings.ToLower(msg.Content)) {
			if len([]rune(token)) < 2 {
				continue
			}
			counts[token]++
		}
	}

	var patterns []string
	for token, n := range counts {
		if n >= 3 {
			patterns = append(patterns, token)
		}
	}
	sort.Strings(patterns)
	return patterns
}
