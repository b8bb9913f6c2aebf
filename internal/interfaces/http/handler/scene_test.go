package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-video-ai-api/internal/application/statesync"
	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/domain/repository"
	"z-video-ai-api/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSceneRepo struct {
	mu     sync.Mutex
	scenes map[string]*entity.Scene
}

func newFakeSceneRepo(scenes ...*entity.Scene) *fakeSceneRepo {
	f := &fakeSceneRepo{scenes: make(map[string]*entity.Scene)}
	for _, s := range scenes {
		f.scenes[s.ID] = s
	}
	return f
}

func (f *fakeSceneRepo) Create(ctx context.Context, s *entity.Scene) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scenes[s.ID] = s
	return nil
}

func (f *fakeSceneRepo) GetByID(ctx context.Context, id string) (*entity.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.scenes[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
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
	s, ok := f.scenes[id]
	if !ok || s.VersionToken != expectedToken {
		return &repository.VersionConflictError{EntityID: id, ExpectedToken: expectedToken}
	}
	s.Payload = payload
	s.VersionToken = newToken
	return nil
}

func (f *fakeSceneRepo) MarkDeleted(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.scenes[id]; ok {
		s.Status = entity.SceneStatusDeleted
	}
	return nil
}


func newSceneRouter(repo *fakeSceneRepo) *gin.Engine {
	h := NewSceneHandler(repo, statesync.NewManager(repo, nil, true))

	r := gin.New()
	r.GET("/v1/projects/:pid/scenes", h.ListScenes)
	r.GET("/v1/scenes/:sid", h.GetScene)
	r.GET("/v1/scenes/:sid/observe", h.ObserveScene)
	r.DELETE("/v1/scenes/:sid", h.DeleteScene)
	return r
}

func TestListScenesReturnsSummaries(t *testing.T) {
	repo := newFakeSceneRepo(
		&entity.Scene{ID: "s1", ProjectID: "p1", Position: 1, Name: "开场", VersionToken: 3, Status: entity.SceneStatusDraft},
		&entity.Scene{ID: "s2", ProjectID: "other", Position: 1, Status: entity.SceneStatusDraft},
	)
	r := newSceneRouter(repo)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/projects/p1/scenes", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response[[]*dto.SceneView]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "s1", resp.Data[0].ID)
	assert.Equal(t, int64(3), resp.Data[0].VersionToken)
}

func TestGetSceneHidesDeleted(t *testing.T) {
	repo := newFakeSceneRepo(
		&entity.Scene{ID: "s1", ProjectID: "p1", Status: entity.SceneStatusDeleted},
	)
	r := newSceneRouter(repo)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/scenes/s1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestObserveSceneReturnsVersionedArtifact(t *testing.T) {
	repo := newFakeSceneRepo(
		&entity.Scene{ID: "s1", ProjectID: "p1", Payload: json.RawMessage(`{"prompt":"v2"}`), VersionToken: 2, Status: entity.SceneStatusDraft},
	)
	r := newSceneRouter(repo)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/scenes/s1/observe", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response[*dto.ArtifactView]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Data.VersionToken)
	assert.JSONEq(t, `{"prompt":"v2"}`, string(resp.Data.Payload))
}

func TestObserveMissingSceneReturns404(t *testing.T) {
	r := newSceneRouter(newFakeSceneRepo())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/scenes/nope/observe", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSceneGoesThroughStateSync(t *testing.T) {
	repo := newFakeSceneRepo(
		&entity.Scene{ID: "s1", ProjectID: "p1", Status: entity.SceneStatusDraft},
	)
	r := newSceneRouter(repo)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/scenes/s1", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	scene, err := repo.GetByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, entity.SceneStatusDeleted, scene.Status)
}
