package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-video-ai-api/internal/config"
)

func testScoringConfig() *config.ScoringConfig {
	return &config.ScoringConfig{
		Weights: config.ScoringWeights{
			ProfileMatch:        0.6,
			KeywordMatch:        0.25,
			ContentAvailability: 0.15,
		},
		Penalties: map[string]float64{
			"logo":         0.3,
			"social_proof": 0.2,
			"product_shot": 0.4,
		},
		KeywordCap: 3,
	}
}

func TestScoreOrderingByProfileDistance(t *testing.T) {
	scorer := NewScorer(testScoringConfig())

	candidates := []Candidate{
		{ID: "A", TargetProfile: ProfileVector{0.6, 0.7, 0.3, 0.5, 0.6, 0.8}},
		{ID: "B", TargetProfile: ProfileVector{0.4, 0.8, 0.7, 0.3, 0.4, 0.6}},
	}
	profile := ProfileVector{0.75, 0.7, 0.2, 0.8, 0.5, 0.85}

	results := scorer.Score(profile, candidates, nil, map[Requirement]bool{})
	require.Len(t, results, 2)

	// A 画像距离更近，排在 B 前
	assert.Equal(t, "A", results[0].Candidate.ID)
	assert.Equal(t, "B", results[1].Candidate.ID)
	assert.Greater(t, results[0].Score, results[1].Score)

	// 无关键词命中且内容齐备时，总分不低于 profileMatch * 0.6
	assert.GreaterOrEqual(t, results[0].Score, results[0].Breakdown.ProfileMatch*0.6)
	assert.InDelta(t, 0.8833, results[0].Breakdown.ProfileMatch, 0.001)
	assert.InDelta(t, 0.7, results[1].Breakdown.ProfileMatch, 0.001)
}

func TestScoreDeterminism(t *testing.T) {
	scorer := NewScorer(testScoringConfig())

	candidates := DefaultCatalog().Candidates()
	profile := ProfileVector{0.5, 0.6, 0.4, 0.7, 0.3, 0.5}
	keywords := []string{"产品", "展示"}
	available := map[Requirement]bool{RequirementLogo: true}

	first := scorer.Score(profile, candidates, keywords, available)
	for i := 0; i < 10; i++ {
		again := scorer.Score(profile, candidates, keywords, available)
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].Candidate.ID, again[j].Candidate.ID)
			assert.Equal(t, first[j].Score, again[j].Score)
		}
	}
}

func TestScoreBounds(t *testing.T) {
	scorer := NewScorer(testScoringConfig())

	// 极端输入：画像全 0 对全 1，要求全部缺失，关键词全命中
	candidates := []Candidate{
		{
			ID:            "extreme",
			TargetProfile: ProfileVector{1, 1, 1, 1, 1, 1},
			Keywords:      []string{"a", "b", "c", "d", "e"},
			Requirements:  []Requirement{RequirementLogo, RequirementSocialProof, RequirementProductShot, RequirementCallToAction},
		},
	}
	results := scorer.Score(ProfileVector{}, candidates, []string{"a", "b", "c", "d", "e"}, nil)
	require.Len(t, results, 1)

	b := results[0].Breakdown
	for _, v := range []float64{b.ProfileMatch, b.KeywordMatch, b.ContentAvailability, results[0].Score} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.Equal(t, 0.0, b.ProfileMatch)
	assert.Equal(t, 1.0, b.KeywordMatch)
	// 罚分和超过 1 时内容可用性取下限 0
	assert.Equal(t, 0.0, b.ContentAvailability)
}

func TestKeywordMatchCap(t *testing.T) {
	scorer := NewScorer(testScoringConfig())
	cand := Candidate{ID: "kw", Keywords: []string{"a", "b", "c", "d", "e", "f"}}

	// 命中 3 个即满分，更多命中不再加分
	three := scorer.Score(ProfileVector{}, []Candidate{cand}, []string{"a", "b", "c"}, nil)
	six := scorer.Score(ProfileVector{}, []Candidate{cand}, []string{"a", "b", "c", "d", "e", "f"}, nil)
	assert.Equal(t, 1.0, three[0].Breakdown.KeywordMatch)
	assert.Equal(t, 1.0, six[0].Breakdown.KeywordMatch)

	one := scorer.Score(ProfileVector{}, []Candidate{cand}, []string{"a"}, nil)
	assert.InDelta(t, 1.0/3.0, one[0].Breakdown.KeywordMatch, 0.001)
}

func TestScoreEmptyCandidates(t *testing.T) {
	scorer := NewScorer(testScoringConfig())
	results := scorer.Score(ProfileVector{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}, nil, nil, nil)
	assert.Empty(t, results)
}

func TestStableTieBreakByCatalogOrder(t *testing.T) {
	scorer := NewScorer(testScoringConfig())

	// 两个完全相同画像的候选必然同分，顺序保持目录序
	same := ProfileVector{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	candidates := []Candidate{
		{ID: "first", TargetProfile: same},
		{ID: "second", TargetProfile: same},
	}
	results := scorer.Score(same, candidates, nil, nil)
	require.Len(t, results, 2)
	assert.Equal(t, results[0].Score, results[1].Score)
	assert.Equal(t, "first", results[0].Candidate.ID)
	assert.Equal(t, "second", results[1].Candidate.ID)
}
