package scripts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/studio/internal/generation"
	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/internal/slides"
	"github.com/aura-webinar/studio/internal/webinars"
	"github.com/aura-webinar/studio/internal/workflow"
	"github.com/aura-webinar/studio/internal/workspace"
	"github.com/aura-webinar/studio/pkg/redis"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeGen struct {
	gotIndex int
	err      error
}

func (f *fakeGen) GenerateScript(_ context.Context, list []models.Slide, index int, _ *models.KnowledgeBase) (string, error) {
	f.gotIndex = index
	if f.err != nil {
		return "", f.err
	}
	return "Script for " + list[index].Title, nil
}

type deck struct {
	mu     sync.Mutex
	slides []models.Slide
	done   bool
}

func (d *deck) List(context.Context, uuid.UUID) ([]models.Slide, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Slide{}, d.slides...), nil
}

func (d *deck) SetScript(_ context.Context, _ uuid.UUID, id uuid.UUID, script *string) (*models.Slide, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.slides {
		if d.slides[i].ID == id {
			d.slides[i].Script = script
			cp := d.slides[i]
			return &cp, nil
		}
	}
	return nil, slides.ErrNotFound
}

func (d *deck) Get(context.Context, uuid.UUID) (*models.KnowledgeBase, error) {
	return &models.KnowledgeBase{}, nil
}

func (d *deck) SetScriptingCompleted(_ context.Context, _ uuid.UUID, done bool) error {
	d.done = done
	return nil
}

func setup(t *testing.T) (*Service, *fakeGen, *deck, *workspace.Locker, *models.Webinar) {
	t.Helper()
	theme := uuid.New()
	w := &models.Webinar{ID: uuid.New(), UserID: uuid.New(), ThemeID: &theme}
	d := &deck{slides: []models.Slide{
		{ID: uuid.New(), Title: "Welcome", Type: models.SlideIntro, OrderIndex: 0},
		{ID: uuid.New(), Title: "Agenda", Type: models.SlideAgenda, OrderIndex: 1},
	}}
	g := &fakeGen{}
	locks := workspace.NewLocker(redis.NewMemoryKV(), time.Minute)
	return NewService(g, d, d, d, locks, nil), g, d, locks, w
}

func TestGenerateStoresScript(t *testing.T) {
	svc, g, d, _, w := setup(t)

	sl, err := svc.Generate(context.Background(), w, d.slides[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, g.gotIndex)
	require.True(t, sl.HasScript())
	assert.Equal(t, "Script for Agenda", *sl.Script)

	_, err = svc.Generate(context.Background(), w, uuid.New())
	assert.ErrorIs(t, err, slides.ErrNotFound)
}

func TestGenerateRefusedWhileStepLocked(t *testing.T) {
	svc, _, d, _, w := setup(t)
	w.ThemeID = nil

	_, err := svc.Generate(context.Background(), w, d.slides[0].ID)
	assert.ErrorIs(t, err, workflow.ErrStepLocked)
	_, err = svc.Put(context.Background(), w, d.slides[0].ID, "hi")
	assert.ErrorIs(t, err, workflow.ErrStepLocked)
}

func TestGenerateRefusedWhileBusy(t *testing.T) {
	svc, _, d, locks, w := setup(t)
	ctx := context.Background()
	release, err := locks.Acquire(ctx, workspace.KindScript, w.ID)
	require.NoError(t, err)
	defer release(ctx)

	_, err = svc.Generate(ctx, w, d.slides[0].ID)
	assert.ErrorIs(t, err, workspace.ErrBusy)
}

func TestCompleteRequiresEveryScript(t *testing.T) {
	svc, _, d, _, w := setup(t)
	ctx := context.Background()

	_, err := svc.Put(ctx, w, d.slides[0].ID, "  Hello  ")
	require.NoError(t, err)
	assert.Equal(t, "Hello", *d.slides[0].Script)

	err = svc.Complete(ctx, w)
	assert.ErrorIs(t, err, ErrMissingScripts)
	assert.False(t, d.done)

	_, err = svc.Put(ctx, w, d.slides[1].ID, "There")
	require.NoError(t, err)
	require.NoError(t, svc.Complete(ctx, w))
	assert.True(t, d.done)

	// Clearing a script reopens the step.
	w.ScriptingCompleted = true
	_, err = svc.Put(ctx, w, d.slides[1].ID, " ")
	require.NoError(t, err)
	assert.Nil(t, d.slides[1].Script)
	assert.False(t, d.done)
}

func TestHandlerStatuses(t *testing.T) {
	svc, g, d, _, w := setup(t)
	h := NewHandler(svc, nil)
	r := gin.New()
	grp := r.Group("/webinars/:id", func(c *gin.Context) { c.Set(webinars.ContextWebinar, w) })
	grp.POST("/slides/:slideId/script/generate", h.Generate)
	grp.PUT("/slides/:slideId/script", h.Put)
	grp.POST("/scripting/complete", h.Complete)
	base := "/webinars/" + w.ID.String()

	do := func(method, path, body string) int {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, base+"/slides/nope/script/generate", ""))
	assert.Equal(t, http.StatusOK, do(http.MethodPost, base+"/slides/"+d.slides[0].ID.String()+"/script/generate", ""))
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, base+"/scripting/complete", ""))

	g.err = &generation.Error{Op: "generate script", Message: "the generated output could not be understood", Err: generation.ErrMalformedOutput}
	assert.Equal(t, http.StatusUnprocessableEntity, do(http.MethodPost, base+"/slides/"+d.slides[1].ID.String()+"/script/generate", ""))

	assert.Equal(t, http.StatusOK, do(http.MethodPut, base+"/slides/"+d.slides[1].ID.String()+"/script", `{"script":"Done"}`))
	assert.Equal(t, http.StatusOK, do(http.MethodPost, base+"/scripting/complete", ""))
}
