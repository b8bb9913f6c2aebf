package orchestration

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-video-ai-api/internal/application/memory"
	"z-video-ai-api/internal/config"
	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/domain/repository"
)

type countingSceneRepo struct {
	mu     sync.Mutex
	scenes map[string]*entity.Scene
	lists  atomic.Int64
	gets   atomic.Int64
}

func newCountingSceneRepo() *countingSceneRepo {
	return &countingSceneRepo{scenes: make(map[string]*entity.Scene)}
}

func (f *countingSceneRepo) add(s *entity.Scene) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scenes[s.ID] = s
}

func (f *countingSceneRepo) Create(ctx context.Context, s *entity.Scene) error {
	f.add(s)
	return nil
}

func (f *countingSceneRepo) GetByID(ctx context.Context, id string) (*entity.Scene, error) {
	f.gets.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.scenes[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (f *countingSceneRepo) ListByProject(ctx context.Context, projectID string) ([]*entity.Scene, error) {
	f.lists.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Scene
	for _, s := range f.scenes {
		if s.ProjectID == projectID && s.Status != entity.SceneStatusDeleted {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *countingSceneRepo) UpdatePayload(ctx context.Context, id string, payload json.RawMessage, expectedToken, newToken int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.scenes[id]
	if !ok || s.VersionToken != expectedToken {
		return &repository.VersionConflictError{EntityID: id, ExpectedToken: expectedToken}
	}
	s.Payload = payload
	s.VersionToken = newToken
	return nil
}

func (f *countingSceneRepo) MarkDeleted(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.scenes[id]; ok {
		s.Status = entity.SceneStatusDeleted
	}
	return nil
}


type countingPrefRepo struct {
	listAll atomic.Int64
	prefs   []*entity.Preference
	err     error
}

func (f *countingPrefRepo) Get(ctx context.Context, projectID, userID, key string) (*entity.Preference, error) {
	return nil, nil
}
func (f *countingPrefRepo) Upsert(ctx context.Context, pref *entity.Preference) error { return nil }
func (f *countingPrefRepo) ListByPrefix(ctx context.Context, projectID, userID, prefix string) ([]*entity.Preference, error) {
	f.listAll.Add(1)
	return f.prefs, f.err
}
func (f *countingPrefRepo) ListAll(ctx context.Context, projectID, userID string) ([]*entity.Preference, error) {
	f.listAll.Add(1)
	return f.prefs, f.err
}

type countingFactRepo struct {
	lists atomic.Int64
}

func (f *countingFactRepo) Create(ctx context.Context, fact *entity.ImageFact) error { return nil }
func (f *countingFactRepo) ListByProject(ctx context.Context, projectID string, limit int) ([]*entity.ImageFact, error) {
	f.lists.Add(1)
	return nil, nil
}

type fakeProjectRepo struct {
	project *entity.Project
}

func (f *fakeProjectRepo) Create(ctx context.Context, p *entity.Project) error { return nil }
func (f *fakeProjectRepo) GetByID(ctx context.Context, id string) (*entity.Project, error) {
	return f.project, nil
}
func (f *fakeProjectRepo) List(ctx context.Context, ownerID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Project], error) {
	return nil, nil
}
func (f *fakeProjectRepo) Update(ctx context.Context, p *entity.Project) error { return nil }
func (f *fakeProjectRepo) UpdateBrandProfile(ctx context.Context, id string, profile json.RawMessage) error {
	return nil
}
func (f *fakeProjectRepo) Delete(ctx context.Context, id string) error { return nil }

func testOrchConfig() config.OrchestrationConfig {
	return config.OrchestrationConfig{
		TrivialHistoryLimit:  2,
		ModerateHistoryLimit: 5,
		FullHistoryLimit:     100,
		ProgressBufferSize:   16,
	}
}

func newTestBuilder(scenes *countingSceneRepo, prefs *countingPrefRepo, facts *countingFactRepo, project *entity.Project) *ContextBuilder {
	store := memory.NewStore(prefs, facts, nil, config.CacheTTLConfig{})
	return NewContextBuilder(scenes, &fakeProjectRepo{project: project}, store, nil, testOrchConfig(), config.CacheTTLConfig{})
}

func history(n int) []entity.Message {
	var msgs []entity.Message
	for i := 0; i < n; i++ {
		msgs = append(msgs, entity.Message{Role: entity.RoleUser, Content: "msg"})
	}
	return msgs
}

func TestBuildTrivialFetchesOnlyTargetAndShortHistory(t *testing.T) {
	scenes := newCountingSceneRepo()
	scenes.add(&entity.Scene{ID: "s1", ProjectID: "p1", Position: 1, Status: entity.SceneStatusDraft})
	prefs := &countingPrefRepo{}
	facts := &countingFactRepo{}
	b := newTestBuilder(scenes, prefs, facts, nil)

	req := &Request{ProjectID: "p1", UserID: "u1", TargetEntityID: "s1", ConversationHistory: history(10)}
	bundle, err := b.Build(context.Background(), req, TierTrivial)
	require.NoError(t, err)

	require.NotNil(t, bundle.TargetEntity)
	assert.Equal(t, "s1", bundle.TargetEntity.ID)
	assert.Len(t, bundle.RecentHistory, 2)

	// Trivial 档绝不拉偏好、实体列表或图片事实
	assert.Zero(t, prefs.listAll.Load())
	assert.Zero(t, facts.lists.Load())
	assert.Zero(t, scenes.lists.Load())
}

func TestBuildModerateFetchesListAndPreferences(t *testing.T) {
	scenes := newCountingSceneRepo()
	scenes.add(&entity.Scene{ID: "s1", ProjectID: "p1", Position: 1, Status: entity.SceneStatusDraft})
	prefs := &countingPrefRepo{prefs: []*entity.Preference{
		{Key: "style.tone", Value: "minimal", Confidence: 0.9},
	}}
	facts := &countingFactRepo{}
	b := newTestBuilder(scenes, prefs, facts, nil)

	req := &Request{ProjectID: "p1", UserID: "u1", ConversationHistory: history(10)}
	bundle, err := b.Build(context.Background(), req, TierModerate)
	require.NoError(t, err)

	assert.Len(t, bundle.EntityList, 1)
	assert.Len(t, bundle.Preferences, 1)
	assert.Len(t, bundle.RecentHistory, 5)
	// Moderate 档不拉图片事实
	assert.Zero(t, facts.lists.Load())
}

func TestBuildComplexIncludesImageFactsAndBrandProfile(t *testing.T) {
	scenes := newCountingSceneRepo()
	prefs := &countingPrefRepo{}
	facts := &countingFactRepo{}
	project := &entity.Project{
		ID:           "p1",
		BrandProfile: json.RawMessage(`[0.6,0.7,0.3,0.5,0.6,0.8]`),
	}
	b := newTestBuilder(scenes, prefs, facts, project)

	req := &Request{ProjectID: "p1", UserID: "u1"}
	bundle, err := b.Build(context.Background(), req, TierComplex)
	require.NoError(t, err)

	assert.Equal(t, int64(1), facts.lists.Load())
	assert.InDelta(t, 0.6, bundle.BrandProfile[0], 1e-9)
	assert.InDelta(t, 0.8, bundle.BrandProfile[5], 1e-9)
}

func TestBuildAnalyticalDerivesRecurringPatterns(t *testing.T) {
	scenes := newCountingSceneRepo()
	b := newTestBuilder(scenes, &countingPrefRepo{}, &countingFactRepo{}, nil)

	msgs := []entity.Message{
		{Role: entity.RoleUser, Content: "make the animation smooth"},
		{Role: entity.RoleUser, Content: "smooth transitions please"},
		{Role: entity.RoleUser, Content: "keep everything smooth"},
		{Role: entity.RoleAssistant, Content: "smooth smooth smooth"},
	}
	req := &Request{ProjectID: "p1", UserID: "u1", ConversationHistory: msgs}
	bundle, err := b.Build(context.Background(), req, TierAnalytical)
	require.NoError(t, err)

	// 助手消息不参与模式统计
	assert.Contains(t, bundle.Patterns, "smooth")
	assert.NotContains(t, bundle.Patterns, "transitions")
}

func TestBuildDegradesWhenPreferenceStoreFails(t *testing.T) {
	scenes := newCountingSceneRepo()
	b := newTestBuilder(scenes, &countingPrefRepo{err: assert.AnError}, &countingFactRepo{}, nil)

	req := &Request{ProjectID: "p1", UserID: "u1"}
	bundle, err := b.Build(context.Background(), req, TierModerate)
	require.NoError(t, err)
	assert.Empty(t, bundle.Preferences)
}

func TestBuildSeesFreshEntityListAfterMutation(t *testing.T) {
	scenes := newCountingSceneRepo()
	scenes.add(&entity.Scene{ID: "s1", ProjectID: "p1", Position: 1, Status: entity.SceneStatusDraft})
	b := newTestBuilder(scenes, &countingPrefRepo{}, &countingFactRepo{}, nil)

	req := &Request{ProjectID: "p1", UserID: "u1"}
	first, err := b.Build(context.Background(), req, TierModerate)
	require.NoError(t, err)
	require.Len(t, first.EntityList, 1)

	require.NoError(t, scenes.MarkDeleted(context.Background(), "s1"))

	second, err := b.Build(context.Background(), req, TierModerate)
	require.NoError(t, err)
	assert.Empty(t, second.EntityList, "entity list must never be stale after a commit")
}
