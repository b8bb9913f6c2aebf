package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"z-video-ai-api/internal/config"
	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/infrastructure/persistence/milvus"
	"z-video-ai-api/internal/infrastructure/persistence/postgres"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. 迁移 PostgreSQL 表结构
	pg, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer func() { _ = pg.Close() }()

	fmt.Println("Migrating database schema...")
	if err := pg.DB().AutoMigrate(
		&entity.Project{},
		&entity.Scene{},
		&entity.Preference{},
		&entity.ImageFact{},
		&entity.ConversationSession{},
		&entity.ConversationTurn{},
		&entity.ToolDecision{},
	); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}
	fmt.Println("Database schema migrated")

	// 3. 初始化 Milvus 集合（未启用或不可达时跳过，向量召回走降级路径）
	if cfg.Vector.Enabled {
		mv, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
		if err != nil {
			fmt.Printf("Milvus unavailable, skipping collection setup: %v\n", err)
		} else {
			defer func() { _ = mv.Close() }()
			fmt.Println("Ensuring Milvus memory_facts collection...")
			if err := milvus.NewRepository(mv).EnsureMemoryFactsCollection(ctx); err != nil {
				log.Fatalf("failed to ensure milvus collection: %v", err)
			}
			fmt.Println("Milvus collection ready")
		}
	} else {
		fmt.Println("Vector store disabled, skipping Milvus setup")
	}

	fmt.Println("Bootstrap completed successfully")
}
