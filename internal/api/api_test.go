package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/framelight/previz-server/internal/adapters"
	"github.com/framelight/previz-server/internal/app"
	"github.com/framelight/previz-server/internal/db/models"
	"github.com/framelight/previz-server/internal/db/repository"
	"github.com/framelight/previz-server/internal/pipeline"
	"github.com/framelight/previz-server/internal/registry"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

type fakeAssetRepo struct {
	assets map[string]*models.Asset
}

func newFakeAssetRepo(assets ...*models.Asset) *fakeAssetRepo {
	r := &fakeAssetRepo{assets: make(map[string]*models.Asset)}
	for _, a := range assets {
		r.assets[a.ID.String()] = a
	}
	return r
}

func (r *fakeAssetRepo) Create(_ context.Context, a *models.Asset) (*models.Asset, error) {
	r.assets[a.ID.String()] = a
	return a, nil
}

func (r *fakeAssetRepo) GetByID(_ context.Context, id string) (*models.Asset, error) {
	a, ok := r.assets[id]
	if !ok {
		return nil, repository.ErrAssetNotFound
	}
	return a, nil
}

func (r *fakeAssetRepo) UpdateByID(_ context.Context, id string, a *models.Asset) (*models.Asset, error) {
	r.assets[id] = a
	return a, nil
}

func (r *fakeAssetRepo) DeleteByID(_ context.Context, id string) error {
	delete(r.assets, id)
	return nil
}

func (r *fakeAssetRepo) WithTx(*bun.Tx) repository.IAssetRepository { return r }

func (r *fakeAssetRepo) ResolveRoot(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	return r.GetByID(ctx, id.String())
}

func (r *fakeAssetRepo) ListLineage(ctx context.Context, id uuid.UUID) ([]models.Asset, error) {
	root, err := r.GetByID(ctx, id.String())
	if err != nil {
		return nil, err
	}

	lineage := []models.Asset{*root}
	for _, a := range r.assets {
		if a.ParentAssetID != nil && *a.ParentAssetID == root.ID {
			lineage = append(lineage, *a)
		}
	}
	return lineage, nil
}

func (r *fakeAssetRepo) NextIteration(ctx context.Context, id uuid.UUID) (int, error) {
	lineage, err := r.ListLineage(ctx, id)
	if err != nil {
		return 0, err
	}

	max := 0
	for _, a := range lineage {
		if a.Iteration > max {
			max = a.Iteration
		}
	}
	return max + 1, nil
}

func (r *fakeAssetRepo) CreateChild(ctx context.Context, parentID uuid.UUID, child *models.Asset) (*models.Asset, error) {
	next, err := r.NextIteration(ctx, parentID)
	if err != nil {
		return nil, err
	}

	child.ID = uuid.Must(uuid.NewRandom())
	child.ParentAssetID = &parentID
	child.Iteration = next
	r.assets[child.ID.String()] = child
	return child, nil
}

func (r *fakeAssetRepo) DeleteWithChildren(_ context.Context, id uuid.UUID) error {
	for key, a := range r.assets {
		if a.ParentAssetID != nil && *a.ParentAssetID == id {
			delete(r.assets, key)
		}
	}
	delete(r.assets, id.String())
	return nil
}

func (r *fakeAssetRepo) ListByStatus(_ context.Context, status models.AssetStatus) ([]models.Asset, error) {
	var out []models.Asset
	for _, a := range r.assets {
		if a.Status == status {
			out = append(out, *a)
		}
	}
	return out, nil
}

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, adapters.GenerateRequest) (*adapters.GenerateResult, error) {
	return &adapters.GenerateResult{
		APIAvailable: true,
		Images:       []adapters.GeneratedImage{{Url: "http://files/out.png"}},
	}, nil
}

type stubMirror struct{}

func (stubMirror) Mirror(_ context.Context, img adapters.GeneratedImage) (string, string, error) {
	return img.Url, img.Url + "?thumb", nil
}

func newTestRouter(t *testing.T, repo repository.IAssetRepository) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := registry.NewDefaultRegistry()
	resolver := adapters.NewStaticDispatcher(
		map[string]adapters.Generator{"flux-2": stubGenerator{}},
		nil, nil,
	)

	a := &app.App{
		Logger:          zap.NewNop(),
		Registry:        reg,
		AssetRepository: repo,
		Pipeline:        pipeline.NewController(repo, resolver, reg, stubMirror{}, zap.NewNop()),
	}

	r := gin.New()
	wrap := func(f func(c *gin.Context)) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set("app", a)
			f(c)
		}
	}

	r.GET("/assets/:id", wrap(GetAsset))
	r.DELETE("/assets/:id", wrap(DeleteAsset))
	r.GET("/assets/:id/iterations", wrap(ListIterations))
	r.POST("/assets/:id/iterate", wrap(IterateAsset))
	r.POST("/assets/:id/generate", wrap(GenerateFromPlan))
	r.POST("/assets/:id/pipeline", wrap(RunPipeline))
	r.GET("/models", wrap(ListModels))
	r.GET("/models/:id", wrap(GetModel))

	return r
}

func TestGetAssetNotFound(t *testing.T) {
	router := newTestRouter(t, newFakeAssetRepo())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/assets/"+uuid.NewString(), nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetAssetBadID(t *testing.T) {
	router := newTestRouter(t, newFakeAssetRepo())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/assets/not-a-uuid", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGenerateWithoutPlanReturns400(t *testing.T) {
	subject := &models.Asset{
		ID:        uuid.Must(uuid.NewRandom()),
		Iteration: 1,
		Url:       "http://files/subject.png",
		Status:    models.AssetStatusUnreviewed,
	}
	repo := newFakeAssetRepo(subject)
	router := newTestRouter(t, repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/assets/"+subject.ID.String()+"/generate", bytes.NewBufferString(`{}`))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "plan") {
		t.Errorf("error should mention the missing plan: %s", w.Body.String())
	}
	if len(repo.assets) != 1 {
		t.Error("no asset should be created on a rejected generate")
	}
}

func TestGenerateWithStoredPlan(t *testing.T) {
	subject := &models.Asset{
		ID:        uuid.Must(uuid.NewRandom()),
		Iteration: 1,
		Url:       "http://files/subject.png",
		Status:    models.AssetStatusUnreviewed,
		Refinement: json.RawMessage(`{
			"use_as_reference": false,
			"reasoning": "ok",
			"recommended_model": "flux-2",
			"refined_prompt": "a harbor at dusk"
		}`),
	}
	repo := newFakeAssetRepo(subject)
	router := newTestRouter(t, repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/assets/"+subject.ID.String()+"/generate", bytes.NewBufferString(`{}`))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var outcome pipeline.GenerateOutcome
	if err := json.Unmarshal(w.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if outcome.Model != "flux-2" {
		t.Errorf("model = %q", outcome.Model)
	}
	if len(outcome.Assets) != 1 || outcome.Assets[0].Iteration != 2 {
		t.Fatalf("generated = %+v", outcome.Assets)
	}
}

func TestRunPipelineRejectsBadStepModels(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"unknown refine model", `{"prompt":"harbor at dusk","model":"flux-2","refine_model":"no-such-model"}`, http.StatusNotFound},
		{"refine model cannot edit", `{"prompt":"harbor at dusk","model":"flux-2","refine_model":"seedream-3"}`, http.StatusBadRequest},
		{"unknown upscale model", `{"prompt":"harbor at dusk","model":"flux-2","upscale":true,"upscale_model":"no-such-model"}`, http.StatusNotFound},
		{"upscale model cannot upscale", `{"prompt":"harbor at dusk","model":"flux-2","upscale":true,"upscale_model":"flux-2"}`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			subject := &models.Asset{
				ID:        uuid.Must(uuid.NewRandom()),
				Iteration: 1,
				Url:       "http://files/subject.png",
				Status:    models.AssetStatusUnreviewed,
			}
			repo := newFakeAssetRepo(subject)
			router := newTestRouter(t, repo)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/assets/"+subject.ID.String()+"/pipeline", bytes.NewBufferString(tc.body))
			router.ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d: %s", w.Code, tc.want, w.Body.String())
			}
			// The run must be rejected before the generate step, so no
			// child asset may exist.
			if len(repo.assets) != 1 {
				t.Errorf("repo holds %d assets, want the subject only", len(repo.assets))
			}
		})
	}
}

func TestListIterations(t *testing.T) {
	subject := &models.Asset{
		ID:        uuid.Must(uuid.NewRandom()),
		Iteration: 1,
		Url:       "http://files/subject.png",
		Status:    models.AssetStatusUnreviewed,
	}
	child := &models.Asset{
		ID:            uuid.Must(uuid.NewRandom()),
		ParentAssetID: &subject.ID,
		Iteration:     2,
		Url:           "http://files/child.png",
		Status:        models.AssetStatusUnreviewed,
	}
	router := newTestRouter(t, newFakeAssetRepo(subject, child))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/assets/"+subject.ID.String()+"/iterations", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Iterations []models.Asset `json:"iterations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Iterations) != 2 {
		t.Errorf("iterations = %d, want 2", len(body.Iterations))
	}
}

func TestIterateAsset(t *testing.T) {
	subject := &models.Asset{
		ID:        uuid.Must(uuid.NewRandom()),
		Iteration: 1,
		Url:       "http://files/subject.png",
		Status:    models.AssetStatusUnreviewed,
	}
	repo := newFakeAssetRepo(subject)
	router := newTestRouter(t, repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/assets/"+subject.ID.String()+"/iterate",
		bytes.NewBufferString(`{"image_url": "http://files/manual.png", "source_model": "midjourney-v7"}`))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var created models.Asset
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Iteration != 2 {
		t.Errorf("iteration = %d, want 2", created.Iteration)
	}
	if created.ParentAssetID == nil || *created.ParentAssetID != subject.ID {
		t.Error("new member should be parented to the subject")
	}

	// Missing image_url is rejected before any insert.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/assets/"+subject.ID.String()+"/iterate", bytes.NewBufferString(`{}`))
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestDeleteAsset(t *testing.T) {
	subject := &models.Asset{
		ID:        uuid.Must(uuid.NewRandom()),
		Iteration: 1,
		Url:       "http://files/subject.png",
		Status:    models.AssetStatusUnreviewed,
	}
	child := &models.Asset{
		ID:            uuid.Must(uuid.NewRandom()),
		ParentAssetID: &subject.ID,
		Iteration:     2,
		Url:           "http://files/child.png",
		Status:        models.AssetStatusUnreviewed,
	}
	repo := newFakeAssetRepo(subject, child)
	router := newTestRouter(t, repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/assets/"+subject.ID.String(), nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if len(repo.assets) != 0 {
		t.Errorf("asset and child should be gone, %d remain", len(repo.assets))
	}
}

func TestModelsEndpoints(t *testing.T) {
	router := newTestRouter(t, newFakeAssetRepo())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models/flux-2", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
