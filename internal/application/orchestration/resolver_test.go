package orchestration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-video-ai-api/internal/domain/entity"
	apperrors "z-video-ai-api/pkg/errors"
)

type fakeConvRepo struct {
	// introduced 按对话时间正序排列的 (turn, sceneID)
	introduced []string
}

func (f *fakeConvRepo) CreateSession(ctx context.Context, s *entity.ConversationSession) error {
	return nil
}
func (f *fakeConvRepo) GetSession(ctx context.Context, id string) (*entity.ConversationSession, error) {
	return nil, nil
}
func (f *fakeConvRepo) AppendTurn(ctx context.Context, t *entity.ConversationTurn) error { return nil }
func (f *fakeConvRepo) RecentTurns(ctx context.Context, sessionID string, limit int) ([]*entity.ConversationTurn, error) {
	return nil, nil
}
func (f *fakeConvRepo) CountTurns(ctx context.Context, sessionID string) (int64, error) {
	return 0, nil
}

func (f *fakeConvRepo) TurnsIntroducingScenes(ctx context.Context, projectID string) ([]*entity.ConversationTurn, error) {
	var turns []*entity.ConversationTurn
	for _, id := range f.introduced {
		turns = append(turns, &entity.ConversationTurn{IntroducedSceneID: id})
	}
	return turns, nil
}

func bundleWithScenes(ids ...string) *ContextBundle {
	b := &ContextBundle{}
	for i, id := range ids {
		b.EntityList = append(b.EntityList, entity.SceneSummary{
			ID:       id,
			Position: i + 1,
			Status:   entity.SceneStatusDraft,
		})
	}
	return b
}

func TestResolveAttachedReferenceWinsOverOrdinal(t *testing.T) {
	r := NewResolver(&fakeConvRepo{introduced: []string{"s1", "s2"}})
	req := &Request{ProjectID: "p1", TargetEntityID: "s2"}

	id, err := r.Resolve(context.Background(), req, bundleWithScenes("s1", "s2"), 1)
	require.NoError(t, err)
	assert.Equal(t, "s2", id)
}

func TestResolveOrdinalByIntroductionOrder(t *testing.T) {
	// 存储顺序 s1,s2,s3 但对话先引入 s3："第一个场景"指 s3
	r := NewResolver(&fakeConvRepo{introduced: []string{"s3", "s1", "s2"}})
	req := &Request{ProjectID: "p1"}

	id, err := r.Resolve(context.Background(), req, bundleWithScenes("s1", "s2", "s3"), 1)
	require.NoError(t, err)
	assert.Equal(t, "s3", id)
}

func TestResolveAmbiguousOrdinalNeverGuesses(t *testing.T) {
	// 只有两个实体却要"第三个"：必须澄清，绝不猜测
	r := NewResolver(&fakeConvRepo{introduced: []string{"s1", "s2"}})
	req := &Request{ProjectID: "p1"}

	_, err := r.Resolve(context.Background(), req, bundleWithScenes("s1", "s2"), 3)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAmbiguousIntent))
}

func TestResolveDefaultsToMostRecentlyIntroduced(t *testing.T) {
	r := NewResolver(&fakeConvRepo{introduced: []string{"s1", "s2"}})
	req := &Request{ProjectID: "p1"}

	id, err := r.Resolve(context.Background(), req, bundleWithScenes("s1", "s2"), 0)
	require.NoError(t, err)
	assert.Equal(t, "s2", id)
}

func TestResolveSkipsDeletedScenesInOrdinalSpace(t *testing.T) {
	// s1 已删除："第一个场景"应解析到 s2
	r := NewResolver(&fakeConvRepo{introduced: []string{"s1", "s2"}})
	req := &Request{ProjectID: "p1"}
	bundle := bundleWithScenes("s2")

	id, err := r.Resolve(context.Background(), req, bundle, 1)
	require.NoError(t, err)
	assert.Equal(t, "s2", id)
}

func TestResolveEmptyProject(t *testing.T) {
	r := NewResolver(&fakeConvRepo{})
	req := &Request{ProjectID: "p1"}

	_, err := r.Resolve(context.Background(), req, &ContextBundle{}, 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAmbiguousIntent))
}

func TestResolveAttachedReferenceMustExist(t *testing.T) {
	r := NewResolver(&fakeConvRepo{introduced: []string{"s1"}})
	req := &Request{ProjectID: "p1", TargetEntityID: "missing"}

	_, err := r.Resolve(context.Background(), req, bundleWithScenes("s1"), 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSceneNotFound))
}
