// Package main 后台学习与图片分析执行器入口（learner-worker）
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"z-video-ai-api/internal/config"
	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/infrastructure/messaging"
	"z-video-ai-api/internal/infrastructure/persistence/milvus"
	"z-video-ai-api/internal/wire"
	wfmodel "z-video-ai-api/internal/workflow/model"
	"z-video-ai-api/pkg/logger"
	"z-video-ai-api/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "learner-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	log := logger.FromContext(ctx)

	// 偏好学习流
	learnConsumer := wire.NewLearnConsumer(worker.Data, cfg, hostnameConsumerName("learner"))
	learnConsumer.RegisterHandler("preference_learn", func(ctx context.Context, msg *messaging.Message) error {
		var job messaging.LearnJobMessage
		if err := msg.UnmarshalPayload(&job); err != nil {
			return err
		}
		return worker.Learner.Learn(ctx, &job)
	})

	// 图片分析流
	imageConsumer := wire.NewImageAnalysisConsumer(worker.Data, cfg, hostnameConsumerName("analyzer"))
	imageConsumer.RegisterHandler("image_analysis", func(ctx context.Context, msg *messaging.Message) error {
		var job messaging.ImageAnalysisMessage
		if err := msg.UnmarshalPayload(&job); err != nil {
			return err
		}
		return analyzeImage(ctx, worker, cfg, &job)
	})

	if err := learnConsumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start learn consumer", err)
	}
	if err := imageConsumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start image consumer", err)
	}

	go learnConsumer.MonitorDLQ(ctx, 100)
	go imageConsumer.MonitorDLQ(ctx, 100)

	log.Info("learner-worker started",
		"learn_stream", string(messaging.StreamLearnJobs),
		"image_stream", string(messaging.StreamImageAnalysis),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down learner-worker...")
	learnConsumer.Stop()
	imageConsumer.Stop()
	log.Info("learner-worker exited")
}

// analyzeImage 调模型提取图片事实，落库后按需写入向量索引
func analyzeImage(ctx context.Context, worker *wire.Worker, cfg *config.Config, job *messaging.ImageAnalysisMessage) error {
	out, err := worker.Pipeline.AnalyzeImage(ctx, &wfmodel.ImageAnalysisInput{
		Provider: cfg.LLM.DefaultProvider,
		ImageURL: job.ImageURL,
	})
	if err != nil {
		return fmt.Errorf("failed to analyze image: %w", err)
	}
	if len(out.Facts) == 0 {
		return nil
	}

	raw, err := json.Marshal(out.Facts)
	if err != nil {
		return fmt.Errorf("failed to marshal image facts: %w", err)
	}

	// 以消息携带的 ImageID 作主键，重投递时幂等
	fact := &entity.ImageFact{
		ID:        job.ImageID,
		ProjectID: job.ProjectID,
		ImageRef:  job.ImageURL,
		Facts:     raw,
	}
	if err := worker.Store.PutImageFact(ctx, fact); err != nil {
		return fmt.Errorf("failed to store image fact: %w", err)
	}

	indexFacts(ctx, worker, fact, out.Facts)
	return nil
}

// indexFacts 向量索引尽力而为：事实已落库，索引失败只记日志
func indexFacts(ctx context.Context, worker *wire.Worker, fact *entity.ImageFact, items []wfmodel.ImageFactItem) {
	if worker.Embedder == nil || worker.Data.VectorRepo == nil {
		return
	}

	texts := make([]string, 0, len(items))
	for _, item := range items {
		texts = append(texts, item.Content)
	}

	vectors, err := worker.Embedder.Embed(ctx, texts)
	if err != nil {
		logger.FromContext(ctx).Warn("failed to embed image facts", "error", err)
		return
	}

	now := time.Now().Unix()
	memFacts := make([]*milvus.MemoryFact, 0, len(items))
	for i, item := range items {
		if i >= len(vectors) {
			break
		}
		memFacts = append(memFacts, &milvus.MemoryFact{
			ID:          uuid.NewString(),
			Vector:      vectors[i],
			ProjectID:   fact.ProjectID,
			RefID:       fact.ID,
			FactType:    item.Kind,
			CreatedAt:   now,
			TextContent: item.Content,
		})
	}

	if err := worker.Data.VectorRepo.InsertFacts(ctx, fact.ProjectID, memFacts); err != nil {
		logger.FromContext(ctx).Warn("failed to index image facts", "error", err)
	}
}

func hostnameConsumerName(role string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = uuid.NewString()[:8]
	}
	return role + "-" + host
}
