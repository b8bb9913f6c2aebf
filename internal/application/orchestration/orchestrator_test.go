package orchestration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-video-ai-api/internal/application/memory"
	"z-video-ai-api/internal/application/statesync"
	"z-video-ai-api/internal/application/template"
	"z-video-ai-api/internal/config"
	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/domain/repository"
	"z-video-ai-api/internal/infrastructure/messaging"
	wfmodel "z-video-ai-api/internal/workflow/model"
	apperrors "z-video-ai-api/pkg/errors"
)

type fakeDecisionRepo struct {
	mu        sync.Mutex
	decisions []*entity.ToolDecision
}

func (f *fakeDecisionRepo) Record(ctx context.Context, d *entity.ToolDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, d)
	return nil
}

func (f *fakeDecisionRepo) ListByProject(ctx context.Context, projectID string, p repository.Pagination) (*repository.PagedResult[*entity.ToolDecision], error) {
	return nil, nil
}

func (f *fakeDecisionRepo) last() *entity.ToolDecision {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.decisions) == 0 {
		return nil
	}
	return f.decisions[len(f.decisions)-1]
}

type fakeLearnScheduler struct {
	jobs chan *messaging.LearnJobMessage
}

func newFakeLearnScheduler() *fakeLearnScheduler {
	return &fakeLearnScheduler{jobs: make(chan *messaging.LearnJobMessage, 4)}
}

func (f *fakeLearnScheduler) PublishLearnJob(ctx context.Context, job *messaging.LearnJobMessage) (string, error) {
	f.jobs <- job
	return job.JobID, nil
}

type orchFixture struct {
	scenes    *countingSceneRepo
	decisions *fakeDecisionRepo
	learner   *fakeLearnScheduler
	orch      *Orchestrator
}

func newOrchFixture(t *testing.T, classifier IntentClassifier, introduced ...string) *orchFixture {
	t.Helper()

	scenes := newCountingSceneRepo()
	store := memory.NewStore(&countingPrefRepo{}, &countingFactRepo{}, nil, config.CacheTTLConfig{})
	builder := NewContextBuilder(scenes, &fakeProjectRepo{}, store, nil, testOrchConfig(), config.CacheTTLConfig{})

	resolver := NewResolver(&fakeConvRepo{introduced: introduced})
	selector := NewSelector(classifier, resolver, config.LLMConfig{DefaultProvider: "openai"},
		config.OrchestrationConfig{SelectorTimeout: time.Second})

	manager := statesync.NewManager(scenes, nil, true)
	scorer := template.NewScorer(&config.ScoringConfig{
		Weights: config.ScoringWeights{ProfileMatch: 0.6, KeywordMatch: 0.25, ContentAvailability: 0.15},
	})
	registry := NewRegistry()
	NewCapabilities(scenes, manager, scorer, template.DefaultCatalog()).RegisterAll(registry)

	decisions := &fakeDecisionRepo{}
	learner := newFakeLearnScheduler()

	return &orchFixture{
		scenes:    scenes,
		decisions: decisions,
		learner:   learner,
		orch:      NewOrchestrator(builder, selector, registry, decisions, learner),
	}
}

func TestRunCreateSceneEndToEnd(t *testing.T) {
	classifier := &fakeClassifier{out: &wfmodel.IntentClassifyOutput{
		Candidates: []wfmodel.IntentCandidate{
			{Capability: CapabilityCreateScene, Confidence: 0.95},
		},
	}}
	fx := newOrchFixture(t, classifier)

	req := &Request{
		ProjectID: "p1",
		UserID:    "u1",
		SessionID: "sess-1",
		Prompt:    "做一个产品展示视频",
		ConversationHistory: []entity.Message{
			{Role: entity.RoleUser, Content: "你好"},
			{Role: entity.RoleAssistant, Content: "需要什么"},
		},
	}
	progress := NewProgressStream(16)

	result, err := fx.orch.Run(context.Background(), req, progress)
	require.NoError(t, err)
	require.NotNil(t, result.Artifact)
	assert.Equal(t, int64(1), result.Artifact.VersionToken)

	events := drain(progress)
	require.NotEmpty(t, events)
	assert.Equal(t, EventToolSelected, events[0].Type)
	assert.Equal(t, EventDone, events[len(events)-1].Type)

	var committed bool
	for _, ev := range events {
		if ev.Type == EventArtifactCommitted {
			committed = true
			assert.Equal(t, result.Artifact.EntityID, ev.EntityID)
		}
	}
	assert.True(t, committed)

	// 审计记录必须携带能力与档位
	decision := fx.decisions.last()
	require.NotNil(t, decision)
	assert.Equal(t, CapabilityCreateScene, decision.Capability)
	assert.Equal(t, "ok", decision.Status)
	assert.Equal(t, []string{CapabilityCreateScene}, []string(decision.PlanSteps))

	// 学习任务异步投递
	select {
	case job := <-fx.learner.jobs:
		assert.Equal(t, "p1", job.ProjectID)
		assert.Equal(t, 2, job.TurnCount)
	case <-time.After(time.Second):
		t.Fatal("learn job was not scheduled")
	}
}

func TestRunEditIncrementsVersionToken(t *testing.T) {
	classifier := &fakeClassifier{out: &wfmodel.IntentClassifyOutput{
		Candidates: []wfmodel.IntentCandidate{
			{Capability: CapabilityEditScene, Complexity: "surgical", Confidence: 0.9},
		},
	}}
	fx := newOrchFixture(t, classifier, "s1")
	fx.scenes.add(&entity.Scene{
		ID: "s1", ProjectID: "p1", Position: 1,
		Payload: []byte(`{"prompt":"初版"}`), Status: entity.SceneStatusDraft,
	})

	req := &Request{ProjectID: "p1", UserID: "u1", Prompt: "change the text color to blue"}
	result, err := fx.orch.Run(context.Background(), req, nil)
	require.NoError(t, err)
	require.NotNil(t, result.Artifact)
	assert.Equal(t, "s1", result.Artifact.EntityID)
	assert.Equal(t, int64(1), result.Artifact.VersionToken)

	// 复杂度标签贯穿到审计
	decision := fx.decisions.last()
	require.NotNil(t, decision)
	assert.Equal(t, string(ComplexitySurgical), decision.Complexity)
	assert.Equal(t, "s1", decision.TargetEntityID)

	// 再编辑一次版本号继续递增
	result2, err := fx.orch.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result2.Artifact.VersionToken)
}

func TestRunAmbiguousIntentEmitsFailedTerminal(t *testing.T) {
	classifier := &fakeClassifier{out: &wfmodel.IntentClassifyOutput{
		Ambiguous: true,
		Reason:    "目标不明",
	}}
	fx := newOrchFixture(t, classifier, "s1")

	progress := NewProgressStream(16)
	_, err := fx.orch.Run(context.Background(), &Request{ProjectID: "p1", Prompt: "改一下"}, progress)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAmbiguousIntent))

	events := drain(progress)
	require.NotEmpty(t, events)
	assert.Equal(t, EventFailed, events[len(events)-1].Type)

	decision := fx.decisions.last()
	require.NotNil(t, decision)
	assert.Equal(t, string(apperrors.CodeAmbiguousIntent), decision.Status)
}

func TestRunDeleteSceneProducesNoArtifact(t *testing.T) {
	classifier := &fakeClassifier{out: &wfmodel.IntentClassifyOutput{
		Candidates: []wfmodel.IntentCandidate{
			{Capability: CapabilityDeleteScene, Confidence: 0.9},
		},
	}}
	fx := newOrchFixture(t, classifier, "s1")
	fx.scenes.add(&entity.Scene{ID: "s1", ProjectID: "p1", Position: 1, Status: entity.SceneStatusDraft})

	result, err := fx.orch.Run(context.Background(), &Request{ProjectID: "p1", Prompt: "删掉这个场景"}, nil)
	require.NoError(t, err)
	assert.Nil(t, result.Artifact)

	scene, err := fx.scenes.GetByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, entity.SceneStatusDeleted, scene.Status)
}
