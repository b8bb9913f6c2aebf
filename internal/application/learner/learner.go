// Package learner 实现偏好学习器：离请求路径的后台进程，
// 从对话中提炼偏好信号并按置信度规则写回记忆库。
package learner

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-video-ai-api/internal/application/memory"
	"z-video-ai-api/internal/config"
	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/domain/repository"
	"z-video-ai-api/internal/infrastructure/messaging"
	wfmodel "z-video-ai-api/internal/workflow/model"
	"z-video-ai-api/pkg/logger"
	"z-video-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("application.learner")

// PreferenceExtractor 学习器对 LLM 提取流程的最小依赖
type PreferenceExtractor interface {
	ExtractPreferences(ctx context.Context, in *wfmodel.PreferenceExtractInput) (*wfmodel.PreferenceExtractOutput, error)
}

// Learner 偏好学习器。尽力而为：任何失败只记日志，绝不影响原始请求。
type Learner struct {
	store     *memory.Store
	extractor PreferenceExtractor
	convs     repository.ConversationRepository
	cfg       config.LearnerConfig
}

// NewLearner 创建偏好学习器
func NewLearner(
	store *memory.Store,
	extractor PreferenceExtractor,
	convs repository.ConversationRepository,
	cfg config.LearnerConfig,
) *Learner {
	return &Learner{
		store:     store,
		extractor: extractor,
		convs:     convs,
		cfg:       cfg,
	}
}

// Learn 处理一条学习任务。
// 历史轮次不足或超过成本上限时直接跳过；信号逐条应用置信度规则。
func (l *Learner) Learn(ctx context.Context, job *messaging.LearnJobMessage) error {
	ctx, span := tracer.Start(ctx, "learner.Learn",
		trace.WithAttributes(
			attribute.String("job_id", job.JobID),
			attribute.String("project_id", job.ProjectID),
			attribute.Int("turn_count", job.TurnCount),
		))
	defer span.End()

	log := logger.FromContext(ctx)

	if job.TurnCount < l.cfg.MinTurns {
		log.Debug("skipping learn job, not enough turns", "turn_count", job.TurnCount)
		metrics.LearnerJobsTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	if l.cfg.MaxTurns > 0 && job.TurnCount > l.cfg.MaxTurns {
		log.Debug("skipping learn job, history too large", "turn_count", job.TurnCount)
		metrics.LearnerJobsTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	historyBlock, err := l.buildHistoryBlock(ctx, job.SessionID)
	if err != nil {
		// 历史读取失败时仅凭当前发言分析
		log.Warn("failed to load conversation history for learning", "error", err)
		historyBlock = ""
	}

	out, err := l.extractor.ExtractPreferences(ctx, &wfmodel.PreferenceExtractInput{
		Utterance:    job.Utterance,
		HistoryBlock: historyBlock,
	})
	if err != nil {
		metrics.LearnerJobsTotal.WithLabelValues("failed").Inc()
		return err
	}

	for i := range out.Signals {
		if err := l.applySignal(ctx, job.ProjectID, job.UserID, &out.Signals[i]); err != nil {
			log.Warn("failed to apply preference signal",
				"key", out.Signals[i].Key, "error", err)
		}
	}

	metrics.LearnerJobsTotal.WithLabelValues("ok").Inc()
	return nil
}

// applySignal 应用单条信号的置信度规则：
//   - 矛盾信号：对被矛盾偏好做固定减量，永不删除；新值按一次性指令丢弃
//   - 显式陈述：以固定初始置信度写入
//   - 行为模式：重复不足则丢弃；已有同键偏好做增量强化，否则按重复次数起算
//
// 低于发布阈值的证据直接丢弃，不落库。
func (l *Learner) applySignal(ctx context.Context, projectID, userID string, sig *wfmodel.PreferenceSignal) error {
	if contradicted := strings.TrimSpace(sig.Contradicts); contradicted != "" {
		return l.applyContradiction(ctx, projectID, userID, contradicted)
	}

	existing, err := l.store.Get(ctx, projectID, userID, sig.Key)
	if err != nil {
		return err
	}

	var confidence float64
	var source entity.PreferenceSource

	switch sig.Kind {
	case "explicit":
		confidence = l.cfg.ExplicitConfidence
		source = entity.PreferenceSourceExplicit
	default:
		if sig.Repeats < l.cfg.PatternMinRepeats {
			return nil
		}
		if existing != nil {
			// 模式再次出现：在既有置信度上做固定增量
			confidence = existing.Confidence + l.cfg.ReinforceIncrement
		} else {
			// 首次发布：初始值按出现次数累加增量
			confidence = l.cfg.PatternConfidence + l.cfg.ReinforceIncrement*float64(sig.Repeats-1)
		}
		source = entity.PreferenceSourcePattern
	}

	if confidence > 1 {
		confidence = 1
	}
	if confidence < l.cfg.PublishThreshold {
		return nil
	}

	pref := &entity.Preference{
		ProjectID:  projectID,
		UserID:     userID,
		Key:        sig.Key,
		Value:      sig.Value,
		Confidence: confidence,
		Scope:      entity.PreferenceScopeProject,
		Source:     source,
	}
	if existing != nil {
		pref.ID = existing.ID
		pref.Scope = existing.Scope
	}

	if err := l.store.Put(ctx, pref); err != nil {
		return err
	}
	metrics.PreferencesPublished.Inc()
	return nil
}

// applyContradiction 显式矛盾：固定减量，保留记录
func (l *Learner) applyContradiction(ctx context.Context, projectID, userID, key string) error {
	existing, err := l.store.Get(ctx, projectID, userID, key)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	existing.Confidence -= l.cfg.ContradictionDecrement
	existing.ClampConfidence()
	return l.store.Put(ctx, existing)
}

func (l *Learner) buildHistoryBlock(ctx context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" || l.convs == nil {
		return "", nil
	}
	turns, err := l.convs.RecentTurns(ctx, sessionID, l.cfg.MaxTurns)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, turn := range turns {
		sb.WriteString(string(turn.Role))
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
