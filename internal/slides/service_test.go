package slides

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/studio/internal/generation"
	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/internal/realtime"
	"github.com/aura-webinar/studio/internal/webinars"
	"github.com/aura-webinar/studio/internal/workspace"
	"github.com/aura-webinar/studio/pkg/redis"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeDeck struct {
	release chan struct{}
	err     error
	req     generation.SlideRequest
}

func (f *fakeDeck) GenerateSlides(ctx context.Context, req generation.SlideRequest, progress generation.ProgressFunc) ([]models.Slide, error) {
	f.req = req
	deck := []models.Slide{
		{ID: uuid.New(), Type: models.SlideIntro, Title: "Welcome", OrderIndex: 0},
		{ID: uuid.New(), Type: models.SlideAgenda, Title: "Agenda", OrderIndex: 1},
		{ID: uuid.New(), Type: models.SlideContent, Title: "Pricing", OrderIndex: 2},
	}
	progress(generation.Progress{Slides: []models.Slide{}, Total: 3})
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	for i := range deck {
		progress(generation.Progress{Slides: deck[:i+1], CurrentIndex: i + 1, Total: 3})
	}
	return deck, nil
}

type memSlides struct {
	mu        sync.Mutex
	slides    map[uuid.UUID][]models.Slide
	kb        *models.KnowledgeBase
	scripting map[uuid.UUID]bool
}

func newMemSlides() *memSlides {
	return &memSlides{slides: map[uuid.UUID][]models.Slide{}, scripting: map[uuid.UUID]bool{}}
}

func (m *memSlides) List(_ context.Context, id uuid.UUID) ([]models.Slide, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Slide{}, m.slides[id]...), nil
}

func (m *memSlides) Replace(_ context.Context, id uuid.UUID, list []models.Slide) ([]models.Slide, error) {
	if err := models.ValidateSlideOrder(list); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slides[id] = append([]models.Slide{}, list...)
	return list, nil
}

func (m *memSlides) Update(_ context.Context, id, slideID uuid.UUID, p Patch) (*models.Slide, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.slides[id] {
		if s.ID == slideID {
			if p.Title != nil {
				m.slides[id][i].Title = *p.Title
			}
			cp := m.slides[id][i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memSlides) Get(context.Context, uuid.UUID) (*models.KnowledgeBase, error) { return m.kb, nil }

func (m *memSlides) Topics(_ context.Context, id uuid.UUID) ([]models.Topic, error) {
	return []models.Topic{{WebinarID: id, Name: "Pricing", Description: "How to price"}}, nil
}

func (m *memSlides) SetScriptingCompleted(_ context.Context, id uuid.UUID, done bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripting[id] = done
	return nil
}

type events struct {
	mu   sync.Mutex
	list []string
}

func (e *events) Publish(topic, event string, _ interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, topic+" "+event)
}

func (e *events) count(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, s := range e.list {
		if len(s) >= len(event) && s[len(s)-len(event):] == event {
			n++
		}
	}
	return n
}

type harness struct {
	svc   *Service
	deck  *fakeDeck
	store *memSlides
	locks *workspace.Locker
	ev    *events
	w     *models.Webinar
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	kv := redis.NewMemoryKV()
	h := &harness{
		deck:  &fakeDeck{},
		store: newMemSlides(),
		locks: workspace.NewLocker(kv, time.Minute),
		ev:    &events{},
		w:     &models.Webinar{ID: uuid.New(), UserID: uuid.New()},
	}
	h.store.kb = &models.KnowledgeBase{WebinarSummary: models.WebinarSummary{Topics: []string{"Pricing"}}}
	h.svc = NewService(Config{
		Generator: h.deck,
		Store:     h.store,
		Sources:   h.store,
		Webinars:  h.store,
		Locks:     h.locks,
		KV:        kv,
		Notifier:  h.ev,
	})
	t.Cleanup(h.svc.Close)
	return h
}

func TestStartRunsInBackgroundAndStoresDeck(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.deck.release = make(chan struct{})
	h.store.scripting[h.w.ID] = true

	snap, err := h.svc.Start(ctx, h.w)
	require.NoError(t, err)
	assert.Equal(t, RunRunning, snap.Status)

	_, err = h.svc.Start(ctx, h.w)
	assert.ErrorIs(t, err, workspace.ErrBusy)

	close(h.deck.release)
	h.svc.wg.Wait()

	got, err := h.svc.Status(ctx, h.w.ID)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, got.Status)
	assert.Len(t, got.Slides, 3)
	assert.Equal(t, 3, got.CurrentIndex)

	stored, _ := h.store.List(ctx, h.w.ID)
	assert.Len(t, stored, 3)
	assert.False(t, h.store.scripting[h.w.ID])
	assert.Equal(t, "How to price", h.deck.req.TopicDetails[0].Description)

	assert.Equal(t, 4, h.ev.count(realtime.EventSlidesProgress))
	assert.Equal(t, 1, h.ev.count(realtime.EventSlidesCompleted))

	held, err := h.locks.Held(ctx, h.w.ID)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestStartRecordsFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.deck.err = &generation.Error{Op: "generate slides", Message: "the generation service is unavailable"}

	_, err := h.svc.Start(ctx, h.w)
	require.NoError(t, err)
	h.svc.wg.Wait()

	got, err := h.svc.Status(ctx, h.w.ID)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, got.Status)
	assert.Equal(t, "the generation service is unavailable", got.Error)
	assert.Equal(t, 1, h.ev.count(realtime.EventSlidesFailed))

	stored, _ := h.store.List(ctx, h.w.ID)
	assert.Empty(t, stored)
}

func TestStartNeedsKnowledgeBase(t *testing.T) {
	h := newHarness(t)
	h.store.kb = nil
	_, err := h.svc.Start(context.Background(), h.w)
	assert.ErrorIs(t, err, ErrNoKnowledgeBase)
}

func TestStatusIdleWithoutRun(t *testing.T) {
	h := newHarness(t)
	got, err := h.svc.Status(context.Background(), h.w.ID)
	require.NoError(t, err)
	assert.Equal(t, RunIdle, got.Status)
}

func TestSaveReopensScripting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.w.ScriptingCompleted = true
	h.store.scripting[h.w.ID] = true
	script := "Hello"

	_, err := h.svc.Save(ctx, h.w, []models.Slide{{Type: models.SlideIntro, OrderIndex: 1}})
	assert.ErrorIs(t, err, models.ErrSlideOrder)

	_, err = h.svc.Save(ctx, h.w, []models.Slide{{Type: models.SlideIntro, OrderIndex: 0, Script: &script}})
	require.NoError(t, err)
	assert.True(t, h.store.scripting[h.w.ID])

	_, err = h.svc.Save(ctx, h.w, []models.Slide{
		{Type: models.SlideIntro, OrderIndex: 0, Script: &script},
		{Type: models.SlideContent, OrderIndex: 1},
	})
	require.NoError(t, err)
	assert.False(t, h.store.scripting[h.w.ID])
}

func router(h *harness) *gin.Engine {
	hd := NewHandler(h.svc, h.store, nil)
	r := gin.New()
	g := r.Group("/webinars/:id", func(c *gin.Context) { c.Set(webinars.ContextWebinar, h.w) })
	g.POST("/slides/generate", hd.Generate)
	g.GET("/slides/generation", hd.Generation)
	g.GET("/slides", hd.List)
	g.PUT("/slides", hd.Save)
	g.PATCH("/slides/:slideId", hd.Update)
	return r
}

func call(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerGenerateAndEdit(t *testing.T) {
	h := newHarness(t)
	r := router(h)
	base := "/webinars/" + h.w.ID.String()

	w := call(r, http.MethodPost, base+"/slides/generate", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	h.svc.wg.Wait()

	w = call(r, http.MethodGet, base+"/slides/generation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)

	w = call(r, http.MethodPut, base+"/slides", SaveRequest{Slides: []SlideInput{{Type: "bogus"}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(r, http.MethodPut, base+"/slides", SaveRequest{Slides: []SlideInput{{Type: models.SlideIntro, OrderIndex: 3}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	stored, _ := h.store.List(context.Background(), h.w.ID)
	title := "Hello"
	w = call(r, http.MethodPatch, base+"/slides/"+stored[0].ID.String(), Patch{Title: &title})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hello")

	w = call(r, http.MethodPatch, base+"/slides/"+uuid.NewString(), Patch{Title: &title})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerGenerateBusy(t *testing.T) {
	h := newHarness(t)
	r := router(h)
	release, err := h.locks.Acquire(context.Background(), workspace.KindSlides, h.w.ID)
	require.NoError(t, err)
	defer release(context.Background())

	assert.Equal(t, http.StatusConflict, call(r, http.MethodPost, "/webinars/"+h.w.ID.String()+"/slides/generate", nil).Code)
}

func TestHandlerEditRefusedDuringRun(t *testing.T) {
	h := newHarness(t)
	r := router(h)
	base := "/webinars/" + h.w.ID.String()
	require.Equal(t, http.StatusAccepted, call(r, http.MethodPost, base+"/slides/generate", nil).Code)
	h.svc.wg.Wait()
	stored, _ := h.store.List(context.Background(), h.w.ID)
	require.NotEmpty(t, stored)

	release, err := h.locks.Acquire(context.Background(), workspace.KindSlides, h.w.ID)
	require.NoError(t, err)

	title := "Edited mid-run"
	w := call(r, http.MethodPatch, base+"/slides/"+stored[0].ID.String(), Patch{Title: &title})
	assert.Equal(t, http.StatusConflict, w.Code)
	after, _ := h.store.List(context.Background(), h.w.ID)
	assert.NotEqual(t, title, after[0].Title)

	release(context.Background())
	w = call(r, http.MethodPatch, base+"/slides/"+stored[0].ID.String(), Patch{Title: &title})
	assert.Equal(t, http.StatusOK, w.Code)
}
