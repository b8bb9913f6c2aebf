// Package wire 提供依赖装配
package wire

import (
	"context"
	"fmt"

	"z-video-ai-api/internal/application/learner"
	"z-video-ai-api/internal/application/memory"
	"z-video-ai-api/internal/application/orchestration"
	"z-video-ai-api/internal/application/statesync"
	"z-video-ai-api/internal/application/template"
	"z-video-ai-api/internal/config"
	"z-video-ai-api/internal/infrastructure/embedding"
	"z-video-ai-api/internal/infrastructure/llm"
	"z-video-ai-api/internal/infrastructure/messaging"
	"z-video-ai-api/internal/infrastructure/persistence/milvus"
	"z-video-ai-api/internal/infrastructure/persistence/postgres"
	"z-video-ai-api/internal/infrastructure/persistence/redis"
	"z-video-ai-api/internal/interfaces/http/handler"
	"z-video-ai-api/internal/interfaces/http/router"
	"z-video-ai-api/internal/workflow/pipeline"
	"z-video-ai-api/pkg/logger"
)

// DataLayer 数据层依赖容器
type DataLayer struct {
	PgClient     *postgres.Client
	SceneRepo    *postgres.SceneRepository
	ProjectRepo  *postgres.ProjectRepository
	PrefRepo     *postgres.PreferenceRepository
	FactRepo     *postgres.ImageFactRepository
	ConvRepo     *postgres.ConversationRepository
	DecisionRepo *postgres.ToolDecisionRepository

	RedisClient *redis.Client
	Cache       *redis.Cache
	RateLimiter *redis.RateLimiter
	Producer    *messaging.Producer

	// Milvus 可选：不可达时为 nil，语义召回自动降级
	MilvusClient *milvus.Client
	VectorRepo   *milvus.Repository
}

// InitializeDataLayer 初始化数据层
func InitializeDataLayer(ctx context.Context, cfg *config.Config) (*DataLayer, func(), error) {
	pg, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init postgres: %w", err)
	}

	rds, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		_ = pg.Close()
		return nil, nil, fmt.Errorf("failed to init redis: %w", err)
	}

	dl := &DataLayer{
		PgClient:     pg,
		SceneRepo:    postgres.NewSceneRepository(pg),
		ProjectRepo:  postgres.NewProjectRepository(pg),
		PrefRepo:     postgres.NewPreferenceRepository(pg),
		FactRepo:     postgres.NewImageFactRepository(pg),
		ConvRepo:     postgres.NewConversationRepository(pg),
		DecisionRepo: postgres.NewToolDecisionRepository(pg),
		RedisClient:  rds,
		Cache:        redis.NewCache(rds),
		RateLimiter:  redis.NewRateLimiter(rds),
		Producer:     messaging.NewProducer(rds.Redis(), int64(cfg.Messaging.RedisStream.MaxLen)),
	}

	// Milvus 不可达不阻塞启动
	if cfg.Vector.Enabled {
		mv, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
		if err != nil {
			logger.FromContext(ctx).Warn("milvus unavailable, vector recall disabled", "error", err)
		} else {
			dl.MilvusClient = mv
			dl.VectorRepo = milvus.NewRepository(mv)
		}
	}

	cleanup := func() {
		if dl.MilvusClient != nil {
			_ = dl.MilvusClient.Close()
		}
		_ = rds.Close()
		_ = pg.Close()
	}
	return dl, cleanup, nil
}

// App API 网关的完整装配结果
type App struct {
	Data         *DataLayer
	Store        *memory.Store
	Manager      *statesync.Manager
	Orchestrator *orchestration.Orchestrator
	Router       *router.Router
}

// InitializeApp 装配 API 网关
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	dl, cleanup, err := InitializeDataLayer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	store := memory.NewStore(dl.PrefRepo, dl.FactRepo, dl.Cache, cfg.Cache.TTL)
	manager := statesync.NewManager(dl.SceneRepo, dl.Cache, cfg.Orchestration.CommitRetryOnce)
	scorer := template.NewScorer(&cfg.Scoring)
	catalog := template.DefaultCatalog()

	wf := pipeline.New(llm.NewEinoFactory(cfg))

	builder := orchestration.NewContextBuilder(dl.SceneRepo, dl.ProjectRepo, store, dl.Cache,
		cfg.Orchestration, cfg.Cache.TTL)

	// 语义召回可选：向量索引或 embedder 不可用时 Analytical 档退回词法分析
	if dl.VectorRepo != nil {
		if embedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding); err != nil {
			logger.FromContext(ctx).Warn("embedder unavailable, semantic recall disabled", "error", err)
		} else {
			batch := embedding.NewBatchEmbedder(embedder, cfg.Embedding.BatchSize)
			builder.WithSemanticRecall(memory.NewRecall(batch, dl.VectorRepo))
		}
	}
	resolver := orchestration.NewResolver(dl.ConvRepo)
	selector := orchestration.NewSelector(wf, resolver, cfg.LLM, cfg.Orchestration)

	registry := orchestration.NewRegistry()
	orchestration.NewCapabilities(dl.SceneRepo, manager, scorer, catalog).RegisterAll(registry)

	orch := orchestration.NewOrchestrator(builder, selector, registry, dl.DecisionRepo, dl.Producer)

	handlers := router.Handlers{
		Health:      handler.NewHealthHandler(dl.PgClient, dl.RedisClient, dl.MilvusClient),
		Orchestrate: handler.NewOrchestrateHandler(orch, dl.ConvRepo, cfg.Orchestration),
		Project:     handler.NewProjectHandler(dl.ProjectRepo, dl.Cache),
		Scene:       handler.NewSceneHandler(dl.SceneRepo, manager),
		Memory:      handler.NewMemoryHandler(store, dl.Producer),
		Template:    handler.NewTemplateHandler(scorer, catalog, dl.ProjectRepo),
		Decision:    handler.NewDecisionHandler(dl.DecisionRepo),
	}

	app := &App{
		Data:         dl,
		Store:        store,
		Manager:      manager,
		Orchestrator: orch,
		Router:       router.New(cfg, handlers, dl.RateLimiter),
	}
	return app, cleanup, nil
}

// Worker 后台学习 / 图片分析进程的装配结果
type Worker struct {
	Data     *DataLayer
	Store    *memory.Store
	Learner  *learner.Learner
	Pipeline *pipeline.Pipeline
	// Embedder 可选：不可用时图片事实不做向量索引
	Embedder *embedding.BatchEmbedder
}

// InitializeWorker 装配后台工作进程
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	dl, cleanup, err := InitializeDataLayer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	store := memory.NewStore(dl.PrefRepo, dl.FactRepo, dl.Cache, cfg.Cache.TTL)
	wf := pipeline.New(llm.NewEinoFactory(cfg))

	w := &Worker{
		Data:     dl,
		Store:    store,
		Learner:  learner.NewLearner(store, wf, dl.ConvRepo, cfg.Learner),
		Pipeline: wf,
	}

	// Embedder 不可用时只跳过向量索引，不影响事实落库
	if dl.VectorRepo != nil {
		embedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding)
		if err != nil {
			logger.FromContext(ctx).Warn("embedder unavailable, vector indexing disabled", "error", err)
		} else {
			w.Embedder = embedding.NewBatchEmbedder(embedder, cfg.Embedding.BatchSize)
		}
	}
	return w, cleanup, nil
}

// NewLearnConsumer 创建偏好学习流的消费者
func NewLearnConsumer(dl *DataLayer, cfg *config.Config, name string) *messaging.Consumer {
	return messaging.NewConsumer(dl.RedisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamLearnJobs,
		Group:         messaging.ConsumerGroupLearner,
		ConsumerName:  name,
		BlockTimeout:  cfg.Messaging.RedisStream.BlockTimeout,
		ClaimInterval: cfg.Messaging.RedisStream.ClaimInterval,
		RetryLimit:    cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})
}

// NewImageAnalysisConsumer 创建图片分析流的消费者
func NewImageAnalysisConsumer(dl *DataLayer, cfg *config.Config, name string) *messaging.Consumer {
	return messaging.NewConsumer(dl.RedisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamImageAnalysis,
		Group:         messaging.ConsumerGroupAnalyzer,
		ConsumerName:  name,
		BlockTimeout:  cfg.Messaging.RedisStream.BlockTimeout,
		ClaimInterval: cfg.Messaging.RedisStream.ClaimInterval,
		RetryLimit:    cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})
}
