package learner

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-video-ai-api/internal/application/memory"
	"z-video-ai-api/internal/config"
	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/infrastructure/messaging"
	wfmodel "z-video-ai-api/internal/workflow/model"
)

type fakePrefRepo struct {
	mu    sync.Mutex
	prefs map[string]*entity.Preference
}

func newFakePrefRepo() *fakePrefRepo {
	return &fakePrefRepo{prefs: make(map[string]*entity.Preference)}
}

func prefKey(projectID, userID, key string) string {
	return fmt.Sprintf("%s/%s/%s", projectID, userID, key)
}

func (f *fakePrefRepo) Get(ctx context.Context, projectID, userID, key string) (*entity.Preference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prefs[prefKey(projectID, userID, key)]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakePrefRepo) Upsert(ctx context.Context, pref *entity.Preference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *pref
	f.prefs[prefKey(pref.ProjectID, pref.UserID, pref.Key)] = &cp
	return nil
}

func (f *fakePrefRepo) ListByPrefix(ctx context.Context, projectID, userID, prefix string) ([]*entity.Preference, error) {
	return nil, nil
}

func (f *fakePrefRepo) ListAll(ctx context.Context, projectID, userID string) ([]*entity.Preference, error) {
	return nil, nil
}

type fakeFactRepo struct{}

func (fakeFactRepo) Create(ctx context.Context, fact *entity.ImageFact) error { return nil }
func (fakeFactRepo) ListByProject(ctx context.Context, projectID string, limit int) ([]*entity.ImageFact, error) {
	return nil, nil
}

// fakeExtractor 返回预置信号，记录被调用次数
type fakeExtractor struct {
	signals []wfmodel.PreferenceSignal
	calls   int
}

func (f *fakeExtractor) ExtractPreferences(ctx context.Context, in *wfmodel.PreferenceExtractInput) (*wfmodel.PreferenceExtractOutput, error) {
	f.calls++
	return &wfmodel.PreferenceExtractOutput{Signals: f.signals}, nil
}

func testLearnerConfig() config.LearnerConfig {
	return config.LearnerConfig{
		MinTurns:               2,
		MaxTurns:               200,
		ExplicitConfidence:     0.9,
		PatternConfidence:      0.6,
		PatternMinRepeats:      3,
		ReinforceIncrement:     0.1,
		ContradictionDecrement: 0.2,
		PublishThreshold:       0.5,
	}
}

func newTestLearner(repo *fakePrefRepo, extractor *fakeExtractor) *Learner {
	store := memory.NewStore(repo, fakeFactRepo{}, nil, config.CacheTTLConfig{})
	return NewLearner(store, extractor, nil, testLearnerConfig())
}

func learnJob(turns int, utterance string) *messaging.LearnJobMessage {
	return &messaging.LearnJobMessage{
		JobID:     "job-1",
		UserID:    "user-1",
		ProjectID: "proj-1",
		Utterance: utterance,
		TurnCount: turns,
	}
}

func TestLearnSkipsBelowMinTurns(t *testing.T) {
	repo := newFakePrefRepo()
	extractor := &fakeExtractor{}
	l := newTestLearner(repo, extractor)

	require.NoError(t, l.Learn(context.Background(), learnJob(1, "随便说说")))
	assert.Zero(t, extractor.calls, "single-turn conversations must not trigger extraction")
}

func TestLearnExplicitStatement(t *testing.T) {
	repo := newFakePrefRepo()
	extractor := &fakeExtractor{signals: []wfmodel.PreferenceSignal{
		{Key: "style.tone", Value: "minimal", Kind: "explicit", Repeats: 1},
	}}
	l := newTestLearner(repo, extractor)

	require.NoError(t, l.Learn(context.Background(), learnJob(3, "我一直想要极简风格")))

	pref, err := repo.Get(context.Background(), "proj-1", "user-1", "style.tone")
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.Equal(t, 0.9, pref.Confidence)
	assert.Equal(t, entity.PreferenceSourceExplicit, pref.Source)
}

func TestLearnPatternAfterThreeRepeats(t *testing.T) {
	repo := newFakePrefRepo()
	extractor := &fakeExtractor{signals: []wfmodel.PreferenceSignal{
		{Key: "animation.style", Value: "smooth", Kind: "pattern", Repeats: 3},
	}}
	l := newTestLearner(repo, extractor)

	require.NoError(t, l.Learn(context.Background(), learnJob(6, "动画要流畅一点")))

	pref, err := repo.Get(context.Background(), "proj-1", "user-1", "animation.style")
	require.NoError(t, err)
	require.NotNil(t, pref)
	// 连续三次同类请求后发布，置信度不低于 0.7
	assert.GreaterOrEqual(t, pref.Confidence, 0.7)
	assert.Equal(t, entity.PreferenceSourcePattern, pref.Source)
}

func TestLearnPatternBelowMinRepeatsDiscarded(t *testing.T) {
	repo := newFakePrefRepo()
	extractor := &fakeExtractor{signals: []wfmodel.PreferenceSignal{
		{Key: "animation.style", Value: "smooth", Kind: "pattern", Repeats: 2},
	}}
	l := newTestLearner(repo, extractor)

	require.NoError(t, l.Learn(context.Background(), learnJob(4, "动画要流畅一点")))

	pref, err := repo.Get(context.Background(), "proj-1", "user-1", "animation.style")
	require.NoError(t, err)
	assert.Nil(t, pref)
}

func TestLearnReinforcesExistingPattern(t *testing.T) {
	repo := newFakePrefRepo()
	require.NoError(t, repo.Upsert(context.Background(), &entity.Preference{
		ProjectID:  "proj-1",
		UserID:     "user-1",
		Key:        "animation.style",
		Value:      "smooth",
		Confidence: 0.8,
		Scope:      entity.PreferenceScopeProject,
		Source:     entity.PreferenceSourcePattern,
	}))
	extractor := &fakeExtractor{signals: []wfmodel.PreferenceSignal{
		{Key: "animation.style", Value: "smooth", Kind: "pattern", Repeats: 4},
	}}
	l := newTestLearner(repo, extractor)

	require.NoError(t, l.Learn(context.Background(), learnJob(8, "动画还是要流畅")))

	pref, err := repo.Get(context.Background(), "proj-1", "user-1", "animation.style")
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.InDelta(t, 0.9, pref.Confidence, 1e-9)
}

func TestLearnConfidenceCappedAtOne(t *testing.T) {
	repo := newFakePrefRepo()
	require.NoError(t, repo.Upsert(context.Background(), &entity.Preference{
		ProjectID:  "proj-1",
		UserID:     "user-1",
		Key:        "animation.style",
		Value:      "smooth",
		Confidence: 0.95,
		Scope:      entity.PreferenceScopeProject,
		Source:     entity.PreferenceSourcePattern,
	}))
	extractor := &fakeExtractor{signals: []wfmodel.PreferenceSignal{
		{Key: "animation.style", Value: "smooth", Kind: "pattern", Repeats: 5},
	}}
	l := newTestLearner(repo, extractor)

	require.NoError(t, l.Learn(context.Background(), learnJob(10, "还是流畅动画")))

	pref, err := repo.Get(context.Background(), "proj-1", "user-1", "animation.style")
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.LessOrEqual(t, pref.Confidence, 1.0)
}

func TestLearnContradictionDecrementsNeverDeletes(t *testing.T) {
	repo := newFakePrefRepo()
	require.NoError(t, repo.Upsert(context.Background(), &entity.Preference{
		ProjectID:  "proj-1",
		UserID:     "user-1",
		Key:        "style.tone",
		Value:      "minimal",
		Confidence: 0.9,
		Scope:      entity.PreferenceScopeProject,
		Source:     entity.PreferenceSourceExplicit,
	}))
	// 一次性指令与既有偏好矛盾：既有偏好减量，本次取值不落库
	extractor := &fakeExtractor{signals: []wfmodel.PreferenceSignal{
		{Key: "style.tone", Value: "maximal", Kind: "explicit", Repeats: 1, Contradicts: "style.tone"},
	}}
	l := newTestLearner(repo, extractor)

	require.NoError(t, l.Learn(context.Background(), learnJob(5, "这次改成繁复风格")))

	pref, err := repo.Get(context.Background(), "proj-1", "user-1", "style.tone")
	require.NoError(t, err)
	require.NotNil(t, pref, "contradicted preferences are decremented, never deleted")
	assert.InDelta(t, 0.7, pref.Confidence, 1e-9)
	assert.Equal(t, "minimal", pref.Value, "one-off instructions must not overwrite the stored value")
}

func TestLearnContradictionFloorsAtZero(t *testing.T) {
	repo := newFakePrefRepo()
	require.NoError(t, repo.Upsert(context.Background(), &entity.Preference{
		ProjectID:  "proj-1",
		UserID:     "user-1",
		Key:        "style.tone",
		Value:      "minimal",
		Confidence: 0.1,
		Scope:      entity.PreferenceScopeProject,
		Source:     entity.PreferenceSourcePattern,
	}))
	extractor := &fakeExtractor{signals: []wfmodel.PreferenceSignal{
		{Key: "style.tone", Value: "maximal", Kind: "explicit", Repeats: 1, Contradicts: "style.tone"},
	}}
	l := newTestLearner(repo, extractor)

	require.NoError(t, l.Learn(context.Background(), learnJob(5, "换个风格")))

	pref, err := repo.Get(context.Background(), "proj-1", "user-1", "style.tone")
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.Equal(t, 0.0, pref.Confidence)
}
