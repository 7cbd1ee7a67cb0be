package assembly_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/assembly"
	"lectern/internal/deck"
	"lectern/internal/engine"
	"lectern/internal/history"
	"lectern/internal/narration"
	"lectern/internal/progress"
	"lectern/internal/render"
	"lectern/internal/retry"
	"lectern/internal/services"
	"lectern/internal/stage"
	"lectern/internal/storage"
	"lectern/internal/templates"
	"lectern/internal/testsupport"
)

type stubRenderer struct {
	calls atomic.Int32
	hook  func(ctx context.Context, number int)
}

func (s *stubRenderer) Render(ctx context.Context, slide deck.Slide, _ templates.Template, number int) (render.Result, error) {
	s.calls.Add(1)
	if s.hook != nil {
		s.hook(ctx, number)
	}
	if err := ctx.Err(); err != nil {
		return render.Result{}, err
	}
	return render.Result{
		Ref: fmt.Sprintf("https://storage.test/slides/%03d.png", number),
		PNG: []byte("png:" + slide.Title),
	}, nil
}

// cancelingEngine cancels the run from inside the slideshow encode.
type cancelingEngine struct {
	*testsupport.MemoryEngine
	cancel context.CancelFunc
}

func (c *cancelingEngine) Exec(ctx context.Context, _ []string) error {
	c.cancel()
	<-ctx.Done()
	return ctx.Err()
}

type harness struct {
	speech   *testsupport.Speech
	renderer *stubRenderer
	engine   *testsupport.MemoryEngine
	store    *testsupport.MemoryStore
	history  *history.Store
	probes   []stage.Probe

	mu     sync.Mutex
	events []progress.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return &harness{
		speech:   &testsupport.Speech{},
		renderer: &stubRenderer{},
		engine:   testsupport.NewMemoryEngine(),
		store:    testsupport.NewMemoryStore(),
		history:  testsupport.MustOpenHistory(t, cfg),
	}
}

func (h *harness) generator(t *testing.T, eng engine.Engine) *assembly.Generator {
	t.Helper()
	deps := assembly.Deps{
		Narrator: narration.New(h.speech, narration.Options{MaxChunkChars: 40}, nil),
		Renderer: h.renderer,
		Engine:   eng,
		Store:    h.store,
		Probes:   h.probes,
		Recorder: h.history,
	}
	g, err := assembly.New(deps, assembly.Options{
		Limits:         deck.Limits{MaxSlides: 50, MinScriptChars: 10},
		SlideChunkSize: 2,
		DefaultVoice:   "professional-female",
		Progress:       []progress.Option{progress.WithInterval(0)},
	})
	require.NoError(t, err)
	return g
}

func (h *harness) sink(event progress.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *harness) recorded() []progress.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]progress.Event(nil), h.events...)
}

func marketingDeck() deck.Deck {
	slides := []deck.Slide{
		{ID: "intro", Type: deck.TypeTitle, Title: "Digital Marketing"},
		{ID: "seo", Title: "Search", Points: []string{"Keywords", "Backlinks"}},
		{ID: "social", Title: "Social", Points: []string{"Reach", "Engagement"}},
		{ID: "email", Title: "Email", Points: []string{"Segmentation"}},
		{ID: "ads", Title: "Paid Ads", Points: []string{"Budget", "Targeting"}},
		{ID: "wrap", Type: deck.TypeConclusion, Title: "Thank You"},
	}
	return deck.Deck{
		Topic:           "Digital Marketing",
		Audience:        "Small business owners",
		DurationMinutes: 60,
		TemplateID:      "modern-business",
		Script:          "Welcome to the webinar. Today we cover search. Then social media. Finally email.",
		Slides:          slides,
	}
}

func defaultOptions() deck.GenerationOptions {
	return deck.GenerationOptions{
		Quality:    deck.QualityMedium,
		Format:     deck.FormatMP4,
		Resolution: deck.Resolution1080p,
		FPS:        30,
	}
}

func stagesEntered(events []progress.Event) []progress.Stage {
	var stages []progress.Stage
	for _, ev := range events {
		if len(stages) == 0 || stages[len(stages)-1] != ev.Stage {
			stages = append(stages, ev.Stage)
		}
	}
	return stages
}

func assertMonotonic(t *testing.T, events []progress.Event) {
	t.Helper()
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Percent, events[i-1].Percent, "event %d regressed", i)
	}
}

func countComplete(events []progress.Event) int {
	n := 0
	for _, ev := range events {
		if ev.Stage == progress.StageComplete {
			n++
		}
	}
	return n
}

var allStages = []progress.Stage{
	progress.StagePreparing,
	progress.StageGeneratingAudio,
	progress.StageCreatingSlides,
	progress.StageAssemblingVideo,
	progress.StageFinalizing,
	progress.StageComplete,
}

func TestGenerateEncodesVideo(t *testing.T) {
	h := newHarness(t)
	g := h.generator(t, h.engine)

	artifact, err := g.Generate(context.Background(), marketingDeck(), defaultOptions(), h.sink)
	require.NoError(t, err)

	assert.Equal(t, assembly.ProvenanceEncoded, artifact.Provenance)
	assert.False(t, artifact.Degraded())
	assert.Equal(t, "video/mp4", artifact.ContentType)
	assert.InDelta(t, 3600, artifact.DurationSeconds, 0.5)
	assert.Empty(t, artifact.NarrationGaps)

	key := storage.ObjectPath(artifact.RunID, "video", "final.mp4")
	assert.Equal(t, "https://storage.test/"+key, artifact.URL)
	obj, ok := h.store.Object(key)
	require.True(t, ok)
	assert.Equal(t, int64(len(obj.Data)), artifact.SizeBytes)
	assert.Contains(t, string(obj.Data), "container(final.mp4)<-slideshow.mp4+narration.mp3")

	execs := h.engine.Execs()
	require.Len(t, execs, 2)
	assert.Contains(t, execs[0], "slides.ffconcat")
	assert.Contains(t, execs[1], "-shortest")

	files, err := h.engine.ListFiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files, "workspace files must be removed after a run")
	assert.Equal(t, int32(6), h.renderer.calls.Load())

	events := h.recorded()
	assert.Equal(t, allStages, stagesEntered(events))
	assertMonotonic(t, events)
	assert.Equal(t, 1, countComplete(events))
	assert.Equal(t, 100.0, events[len(events)-1].Percent)

	run, err := h.history.Get(context.Background(), artifact.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, history.StatusCompleted, run.Status)
	assert.Equal(t, artifact.URL, run.ArtifactURL)
	assert.Equal(t, "encoded", run.Provenance)
}

func TestGenerateUsesDefaultVoice(t *testing.T) {
	h := newHarness(t)
	g := h.generator(t, h.engine)

	d := marketingDeck()
	d.Voice = ""
	_, err := g.Generate(context.Background(), d, defaultOptions(), nil)
	require.NoError(t, err)

	calls := h.speech.Calls()
	require.NotEmpty(t, calls)
	want := narration.ResolveVoice("professional-female")
	for _, call := range calls {
		assert.Equal(t, want, call.Voice)
	}
}

func TestGenerateFallsBackToPlaceholderWhenEngineUnavailable(t *testing.T) {
	h := newHarness(t)
	h.engine.LoadErr = errors.New("wasm runtime missing")
	g := h.generator(t, h.engine)

	artifact, err := g.Generate(context.Background(), marketingDeck(), defaultOptions(), h.sink)
	require.NoError(t, err)

	assert.Equal(t, assembly.ProvenancePlaceholder, artifact.Provenance)
	assert.True(t, artifact.Degraded())
	assert.Equal(t, assembly.PlaceholderContentType, artifact.ContentType)
	assert.Equal(t, assembly.EstimateSize(artifact.DurationSeconds, deck.Resolution1080p, deck.QualityMedium), artifact.SizeBytes)
	assert.Empty(t, h.engine.Execs())

	obj, ok := h.store.Object(storage.ObjectPath(artifact.RunID, "video", "placeholder.json"))
	require.True(t, ok)
	assert.Contains(t, string(obj.Data), `"kind": "lectern.placeholder-video"`)
	assert.Contains(t, string(obj.Data), "wasm runtime missing")

	events := h.recorded()
	assert.Equal(t, allStages, stagesEntered(events))
	assertMonotonic(t, events)
}

func TestGenerateFallsBackWhenEncodeFails(t *testing.T) {
	h := newHarness(t)
	h.engine.ExecErr = errors.New("encoder crashed")
	h.engine.FailExecAt = 2
	g := h.generator(t, h.engine)

	artifact, err := g.Generate(context.Background(), marketingDeck(), defaultOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, assembly.ProvenancePlaceholder, artifact.Provenance)
	assert.Len(t, h.engine.Execs(), 2)

	files, err := h.engine.ListFiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.GreaterOrEqual(t, h.engine.PeakFiles(), 9)
}

func TestGenerateRejectsEmptyDeckBeforeCallingCollaborators(t *testing.T) {
	h := newHarness(t)
	g := h.generator(t, h.engine)

	d := marketingDeck()
	d.Slides = nil
	_, err := g.Generate(context.Background(), d, defaultOptions(), h.sink)
	require.Error(t, err)

	var runErr *assembly.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, progress.StagePreparing, runErr.Stage)
	assert.ErrorIs(t, err, services.ErrValidation)
	assert.Empty(t, h.speech.Calls())
	assert.Zero(t, h.renderer.calls.Load())
	assert.Zero(t, h.store.Uploads())
	assert.Zero(t, countComplete(h.recorded()))

	run, getErr := h.history.Get(context.Background(), runErr.RunID)
	require.NoError(t, getErr)
	require.NotNil(t, run)
	assert.Equal(t, history.StatusFailed, run.Status)
	assert.Equal(t, "preparing", run.Stage)
}

func TestGenerateRejectsInvalidOptions(t *testing.T) {
	h := newHarness(t)
	g := h.generator(t, h.engine)

	opts := defaultOptions()
	opts.FPS = 0
	_, err := g.Generate(context.Background(), marketingDeck(), opts, nil)
	assert.ErrorIs(t, err, services.ErrValidation)
	assert.Empty(t, h.speech.Calls())
}

func TestGenerateStopsOnBlockingHealthFailure(t *testing.T) {
	h := newHarness(t)
	h.speech.HealthErr = errors.New("quota exhausted")
	h.store.HealthErr = errors.New("bucket missing")
	h.probes = []stage.Probe{
		{Name: "speech", Checker: h.speech, Required: true},
		{Name: "storage", Checker: h.store},
	}
	g := h.generator(t, h.engine)

	_, err := g.Generate(context.Background(), marketingDeck(), defaultOptions(), nil)
	require.Error(t, err)
	var runErr *assembly.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, progress.StagePreparing, runErr.Stage)
	assert.ErrorIs(t, err, services.ErrExternalTool)
	assert.Contains(t, err.Error(), "speech unavailable")
	assert.Empty(t, h.speech.Calls())
}

func TestGenerateContinuesPastOptionalHealthFailure(t *testing.T) {
	h := newHarness(t)
	h.store.HealthErr = errors.New("slow bucket")
	h.probes = []stage.Probe{{Name: "storage", Checker: h.store}}
	g := h.generator(t, h.engine)

	_, err := g.Generate(context.Background(), marketingDeck(), defaultOptions(), nil)
	require.NoError(t, err)
}

func TestGenerateFailsWhenFinalUploadFails(t *testing.T) {
	h := newHarness(t)
	h.store.Fail = func(obj storage.Object) error {
		if strings.Contains(obj.Path, "/video/") {
			return errors.New("bucket offline")
		}
		return nil
	}
	g := h.generator(t, h.engine)

	_, err := g.Generate(context.Background(), marketingDeck(), defaultOptions(), h.sink)
	require.Error(t, err)
	var runErr *assembly.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, progress.StageFinalizing, runErr.Stage)
	assert.Contains(t, err.Error(), "bucket offline")
	assert.Zero(t, countComplete(h.recorded()))

	run, getErr := h.history.Get(context.Background(), runErr.RunID)
	require.NoError(t, getErr)
	require.NotNil(t, run)
	assert.Equal(t, history.StatusFailed, run.Status)
	assert.Equal(t, "finalizing", run.Stage)
}

func TestGenerateCancellationCleansWorkspace(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng := &cancelingEngine{MemoryEngine: h.engine, cancel: cancel}
	g := h.generator(t, eng)

	_, err := g.Generate(ctx, marketingDeck(), defaultOptions(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	var runErr *assembly.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, progress.StageAssemblingVideo, runErr.Stage)

	files, listErr := h.engine.ListFiles(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, files)
	assert.Zero(t, h.store.Uploads())
}

func TestGenerateCancellationDuringSlides(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.renderer.hook = func(_ context.Context, number int) {
		if number == 2 {
			cancel()
		}
	}
	g := h.generator(t, h.engine)

	_, err := g.Generate(ctx, marketingDeck(), defaultOptions(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.engine.Execs())
}

func TestGenerateReportsNarrationGaps(t *testing.T) {
	h := newHarness(t)
	h.speech.Fail = func(text, _ string) error {
		if strings.Contains(text, "social") {
			return errors.New("speech 500")
		}
		return nil
	}
	g := h.generator(t, h.engine)

	artifact, err := g.Generate(context.Background(), marketingDeck(), defaultOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, artifact.NarrationGaps)
	assert.Equal(t, assembly.ProvenanceEncoded, artifact.Provenance)

	run, err := h.history.Get(context.Background(), artifact.RunID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.NarrationGaps)
}

func TestGenerateWithRealRenderer(t *testing.T) {
	h := newHarness(t)
	g, err := assembly.New(assembly.Deps{
		Narrator: narration.New(h.speech, narration.Options{}, nil),
		Renderer: render.New(h.store, nil, retry.Options{}, nil),
		Engine:   h.engine,
		Store:    h.store,
	}, assembly.Options{Limits: deck.Limits{MaxSlides: 50}})
	require.NoError(t, err)

	d := marketingDeck()
	d.Slides = d.Slides[:2]
	d.DurationMinutes = 1
	artifact, err := g.Generate(context.Background(), d, deck.GenerationOptions{
		Quality:    deck.QualityLow,
		Format:     deck.FormatWebM,
		Resolution: deck.Resolution720p,
		FPS:        24,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "video/webm", artifact.ContentType)
	assert.Zero(t, artifact.PlaceholderSlides)

	var slides int
	for _, p := range h.store.Paths() {
		if strings.Contains(p, "/slides/") {
			slides++
		}
	}
	assert.Equal(t, 2, slides)
	assert.Contains(t, h.engine.Execs()[0], "libvpx-vp9")
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := assembly.New(assembly.Deps{}, assembly.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrConfiguration)
	assert.Contains(t, err.Error(), "narrator, renderer, storage")
}

func TestEstimateSize(t *testing.T) {
	// 1080p medium: (5000 + 128) kbit/s for 60 seconds.
	assert.Equal(t, int64(5128*1000/8*60), assembly.EstimateSize(60, deck.Resolution1080p, deck.QualityMedium))
	assert.Zero(t, assembly.EstimateSize(0, deck.Resolution720p, deck.QualityLow))
	assert.Zero(t, assembly.EstimateSize(math.NaN(), deck.Resolution720p, deck.QualityLow))
	assert.Zero(t, assembly.EstimateSize(math.Inf(1), deck.Resolution720p, deck.QualityLow))
}
