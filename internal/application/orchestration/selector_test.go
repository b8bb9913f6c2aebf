package orchestration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-video-ai-api/internal/config"
	wfmodel "z-video-ai-api/internal/workflow/model"
	apperrors "z-video-ai-api/pkg/errors"
)

type fakeClassifier struct {
	out   *wfmodel.IntentClassifyOutput
	err   error
	delay time.Duration
}

func (f *fakeClassifier) ClassifyIntent(ctx context.Context, in *wfmodel.IntentClassifyInput) (*wfmodel.IntentClassifyOutput, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.out, f.err
}

func newTestSelector(classifier IntentClassifier, introduced ...string) *Selector {
	resolver := NewResolver(&fakeConvRepo{introduced: introduced})
	return NewSelector(classifier, resolver, config.LLMConfig{DefaultProvider: "openai"},
		config.OrchestrationConfig{SelectorTimeout: 200 * time.Millisecond})
}

func TestSelectSurgicalEditOnSingleScene(t *testing.T) {
	classifier := &fakeClassifier{out: &wfmodel.IntentClassifyOutput{
		Candidates: []wfmodel.IntentCandidate{
			{Capability: CapabilityEditScene, Complexity: "surgical", Confidence: 0.95},
		},
	}}
	sel := newTestSelector(classifier, "s1")

	req := &Request{ProjectID: "p1", Prompt: "change the text color to blue"}
	selection, err := sel.Select(context.Background(), req, bundleWithScenes("s1"))
	require.NoError(t, err)

	assert.Equal(t, CapabilityEditScene, selection.Capability)
	assert.Equal(t, ComplexitySurgical, selection.Complexity)
	assert.Equal(t, "s1", selection.TargetEntityID)
}

func TestSelectStructuralRedesign(t *testing.T) {
	classifier := &fakeClassifier{out: &wfmodel.IntentClassifyOutput{
		Candidates: []wfmodel.IntentCandidate{
			{Capability: CapabilityEditScene, Complexity: "structural", Confidence: 0.9},
		},
	}}
	sel := newTestSelector(classifier, "s1")

	req := &Request{ProjectID: "p1", Prompt: "completely redesign this with a modern layout"}
	selection, err := sel.Select(context.Background(), req, bundleWithScenes("s1"))
	require.NoError(t, err)
	assert.Equal(t, ComplexityStructural, selection.Complexity)
}

func TestSelectFallsBackToHeuristicComplexity(t *testing.T) {
	// 模型没给出合法复杂度标签时退回词法启发式
	classifier := &fakeClassifier{out: &wfmodel.IntentClassifyOutput{
		Candidates: []wfmodel.IntentCandidate{
			{Capability: CapabilityEditScene, Complexity: "", Confidence: 0.8},
		},
	}}
	sel := newTestSelector(classifier, "s1")

	req := &Request{ProjectID: "p1", Prompt: "change the title color to red"}
	selection, err := sel.Select(context.Background(), req, bundleWithScenes("s1"))
	require.NoError(t, err)
	assert.Equal(t, ComplexitySurgical, selection.Complexity)
}

func TestSelectAmbiguousIntentSurfaces(t *testing.T) {
	classifier := &fakeClassifier{out: &wfmodel.IntentClassifyOutput{
		Ambiguous: true,
		Reason:    "无法判断目标场景",
	}}
	sel := newTestSelector(classifier, "s1")

	_, err := sel.Select(context.Background(), &Request{ProjectID: "p1", Prompt: "改一下"}, bundleWithScenes("s1"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAmbiguousIntent))
}

func TestSelectTimeoutBecomesNoCapabilityMatch(t *testing.T) {
	classifier := &fakeClassifier{
		out:   &wfmodel.IntentClassifyOutput{},
		delay: time.Second,
	}
	sel := newTestSelector(classifier, "s1")

	_, err := sel.Select(context.Background(), &Request{ProjectID: "p1", Prompt: "做个视频"}, bundleWithScenes("s1"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNoCapabilityMatch))
}

func TestSelectClassifierErrorBecomesNoCapabilityMatch(t *testing.T) {
	classifier := &fakeClassifier{err: assert.AnError}
	sel := newTestSelector(classifier, "s1")

	_, err := sel.Select(context.Background(), &Request{ProjectID: "p1", Prompt: "做个视频"}, bundleWithScenes("s1"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNoCapabilityMatch))
}

func TestSelectNoSilentMisrouteOnAmbiguousOrdinal(t *testing.T) {
	// 只有两个场景却要求"编辑第三个"：上抛 AmbiguousIntent 而非猜测
	classifier := &fakeClassifier{out: &wfmodel.IntentClassifyOutput{
		Candidates: []wfmodel.IntentCandidate{
			{Capability: CapabilityEditScene, Complexity: "creative", TargetOrdinal: 3, Confidence: 0.9},
		},
	}}
	sel := newTestSelector(classifier, "s1", "s2")

	req := &Request{ProjectID: "p1", Prompt: "edit the third one"}
	_, err := sel.Select(context.Background(), req, bundleWithScenes("s1", "s2"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAmbiguousIntent))
}

func TestSelectCreateNeedsNoTarget(t *testing.T) {
	classifier := &fakeClassifier{out: &wfmodel.IntentClassifyOutput{
		Candidates: []wfmodel.IntentCandidate{
			{Capability: CapabilityCreateScene, Confidence: 0.9},
		},
	}}
	sel := newTestSelector(classifier)

	selection, err := sel.Select(context.Background(), &Request{ProjectID: "p1", Prompt: "做一个产品展示视频"}, &ContextBundle{})
	require.NoError(t, err)
	assert.Equal(t, CapabilityCreateScene, selection.Capability)
	assert.Empty(t, selection.TargetEntityID)
}
