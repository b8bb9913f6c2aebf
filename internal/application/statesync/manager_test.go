package statesync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/domain/repository"
	apperrors "z-video-ai-api/pkg/errors"
)

// fakeSceneRepo 线程安全的内存场景仓储，记录每次成功写入的版本号历史
// 以及仓储调用顺序
type fakeSceneRepo struct {
	mu      sync.Mutex
	scenes  map[string]*entity.Scene
	history map[string][]int64
	ops     []string
	// failNext 下一次条件更新强制返回版本冲突
	failNext bool
}

func newFakeSceneRepo() *fakeSceneRepo {
	return &fakeSceneRepo{
		scenes:  make(map[string]*entity.Scene),
		history: make(map[string][]int64),
	}
}

func (f *fakeSceneRepo) seed(id, projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scenes[id] = &entity.Scene{
		ID:        id,
		ProjectID: projectID,
		Position:  1,
		Payload:   json.RawMessage(`{}`),
		Status:    entity.SceneStatusDraft,
	}
}

func (f *fakeSceneRepo) Create(ctx context.Context, scene *entity.Scene) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scenes[scene.ID] = scene
	return nil
}

func (f *fakeSceneRepo) GetByID(ctx context.Context, id string) (*entity.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "GetByID")
	s, ok := f.scenes[id]
	if !ok || s.Status == entity.SceneStatusDeleted {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSceneRepo) ListByProject(ctx context.Context, projectID string) ([]*entity.Scene, error) {
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

func (f *fakeSceneRepo) UpdatePayload(ctx context.Context, id string, payload json.RawMessage, expectedToken, newToken int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "UpdatePayload")
	if f.failNext {
		f.failNext = false
		return &repository.VersionConflictError{EntityID: id, ExpectedToken: expectedToken}
	}
	s, ok := f.scenes[id]
	if !ok || s.VersionToken != expectedToken {
		return &repository.VersionConflictError{EntityID: id, ExpectedToken: expectedToken}
	}
	s.Payload = payload
	s.VersionToken = newToken
	f.history[id] = append(f.history[id], newToken)
	return nil
}

func (f *fakeSceneRepo) MarkDeleted(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "MarkDeleted")
	if s, ok := f.scenes[id]; ok {
		s.Status = entity.SceneStatusDeleted
	}
	return nil
}

// lastOp 最近一次仓储调用的名称，用于断言提交后不再回读
func (f *fakeSceneRepo) lastOp() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ops) == 0 {
		return ""
	}
	return f.ops[len(f.ops)-1]
}

func TestCommitVersionMonotonicityUnderConcurrency(t *testing.T) {
	repo := newFakeSceneRepo()
	repo.seed("scene-1", "proj-1")
	mgr := NewManager(repo, nil, true)

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := json.RawMessage(fmt.Sprintf(`{"rev":%d}`, i))
			// 同实体在途变更会被 Busy 拒绝，调用方重试直到成功
			for {
				_, err := mgr.Commit(context.Background(), "scene-1", payload)
				if err == nil {
					return
				}
				if !apperrors.IsCode(err, apperrors.CodeEntityBusy) {
					t.Errorf("unexpected commit error: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	history := repo.history["scene-1"]
	require.Len(t, history, n)
	for i := 1; i < len(history); i++ {
		assert.Greater(t, history[i], history[i-1], "version tokens must be strictly increasing")
	}
	assert.Equal(t, int64(n), history[len(history)-1])
}

func TestCommitBusyOnInFlightMutation(t *testing.T) {
	repo := newFakeSceneRepo()
	repo.seed("scene-1", "proj-1")
	mgr := NewManager(repo, nil, true)

	// 手工占住实体锁，模拟在途变更
	require.NoError(t, mgr.acquire("scene-1"))
	defer mgr.release("scene-1")

	_, err := mgr.Commit(context.Background(), "scene-1", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeEntityBusy))
}

func TestCommitRetriesConflictExactlyOnce(t *testing.T) {
	repo := newFakeSceneRepo()
	repo.seed("scene-1", "proj-1")
	mgr := NewManager(repo, nil, true)

	// 第一次条件更新冲突，重试一次后成功
	repo.failNext = true
	artifact, err := mgr.Commit(context.Background(), "scene-1", json.RawMessage(`{"v":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), artifact.VersionToken)

	// 关闭重试时冲突直接按 Busy 上抛
	mgrNoRetry := NewManager(repo, nil, false)
	repo.failNext = true
	_, err = mgrNoRetry.Commit(context.Background(), "scene-1", json.RawMessage(`{"v":2}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeEntityBusy))
}

func TestCommitDoesNotRereadAfterSuccess(t *testing.T) {
	repo := newFakeSceneRepo()
	repo.seed("scene-1", "proj-1")
	mgr := NewManager(repo, nil, true)

	artifact, err := mgr.Commit(context.Background(), "scene-1", json.RawMessage(`{"v":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), artifact.VersionToken)

	// 条件更新成功即为终态：它必须是本次提交最后一次仓储调用
	assert.Equal(t, "UpdatePayload", repo.lastOp())
	assert.Equal(t, []string{"GetByID", "UpdatePayload"}, repo.ops)
}

func TestCommitUnknownEntity(t *testing.T) {
	repo := newFakeSceneRepo()
	mgr := NewManager(repo, nil, true)

	_, err := mgr.Commit(context.Background(), "missing", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSceneNotFound))
}

func TestDeleteDoesNotRereadAfterMark(t *testing.T) {
	repo := newFakeSceneRepo()
	repo.seed("scene-1", "proj-1")
	mgr := NewManager(repo, nil, true)

	require.NoError(t, mgr.Delete(context.Background(), "scene-1"))
	assert.Equal(t, "MarkDeleted", repo.lastOp())

	// 重复删除幂等，不再触发标记
	require.NoError(t, mgr.Delete(context.Background(), "scene-1"))
	assert.Equal(t, []string{"GetByID", "MarkDeleted", "GetByID"}, repo.ops)
}

func TestObserveReturnsPayloadTokenPair(t *testing.T) {
	repo := newFakeSceneRepo()
	repo.seed("scene-1", "proj-1")
	mgr := NewManager(repo, nil, true)

	committed, err := mgr.Commit(context.Background(), "scene-1", json.RawMessage(`{"text":"hello"}`))
	require.NoError(t, err)

	observed, err := mgr.Observe(context.Background(), "scene-1")
	require.NoError(t, err)
	assert.Equal(t, committed.VersionToken, observed.VersionToken)
	assert.JSONEq(t, string(committed.Payload), string(observed.Payload))
}

func TestObserveUnknownEntity(t *testing.T) {
	repo := newFakeSceneRepo()
	mgr := NewManager(repo, nil, true)

	_, err := mgr.Observe(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSceneNotFound))
}

func TestDifferentEntitiesCommitIndependently(t *testing.T) {
	repo := newFakeSceneRepo()
	repo.seed("scene-a", "proj-1")
	repo.seed("scene-b", "proj-1")
	mgr := NewManager(repo, nil, true)

	// 占住 a 的锁不影响 b 的提交
	require.NoError(t, mgr.acquire("scene-a"))
	defer mgr.release("scene-a")

	_, err := mgr.Commit(context.Background(), "scene-b", json.RawMessage(`{}`))
	assert.NoError(t, err)
}
