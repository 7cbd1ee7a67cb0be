package export_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lectern/internal/deck"
	"lectern/internal/export"
	"lectern/internal/pptx"
	"lectern/internal/services"
)

type stubFetcher struct {
	calls atomic.Int32
	err   error
}

func (s *stubFetcher) Fetch(context.Context, string) (image.Image, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	return img, nil
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func records() []export.Record {
	return []export.Record{
		{"title": "Digital Marketing", "subtitle": "A practical tour"},
		{"title": "Channels", "points": []any{"Search", "Social", ""}, "content": "ignored"},
		{"title": "Growth", "chart": map[string]any{"kind": "bar", "dataset": []any{
			map[string]any{"label": "Q1", "value": 10.0},
			map[string]any{"label": "Q2", "value": 12.5},
		}}},
		{"title": "Team", "image": map[string]any{"url": "https://example.com/team.png"}, "speakerNotes": "Introduce the team."},
		{"content": "Questions?\nThank you"},
	}
}

func TestNormalizeFieldPriority(t *testing.T) {
	cases := []struct {
		name string
		rec  export.Record
		want []string
	}{
		{"points win", export.Record{"points": []string{"a"}, "content": []string{"b"}, "subtitle": "c"}, []string{"a"}},
		{"content next", export.Record{"content": []any{"b", 2}, "subtitle": "c"}, []string{"b", "2"}},
		{"content string splits lines", export.Record{"content": "one\n\ntwo"}, []string{"one", "two"}},
		{"subtitle next", export.Record{"points": []string{}, "subtitle": "c"}, []string{"c"}},
		{"fallback last", export.Record{"title": "Empty"}, []string{export.FallbackContent}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slides, err := export.Normalize([]export.Record{tc.rec})
			require.NoError(t, err)
			assert.Equal(t, tc.want, slides[0].Content)
		})
	}
}

func TestNormalizeClassifiesByPositionThenMedia(t *testing.T) {
	slides, err := export.Normalize(records())
	require.NoError(t, err)
	require.Len(t, slides, 5)

	types := make([]export.SlideType, len(slides))
	for i, s := range slides {
		types[i] = s.Type
	}
	assert.Equal(t, []export.SlideType{
		export.TypeTitle, export.TypeContent, export.TypeChart, export.TypeImage, export.TypeConclusion,
	}, types)
	assert.Equal(t, "slide-5", slides[4].ID)
	assert.Equal(t, "Slide 5", slides[4].Title)
	assert.Equal(t, "Introduce the team.", slides[3].Notes)
	assert.Equal(t, "https://example.com/team.png", slides[3].ImageURL)
	require.NotNil(t, slides[2].ChartData)
	assert.Len(t, slides[2].ChartData.Dataset, 2)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	first, err := export.Normalize(records())
	require.NoError(t, err)

	again := make([]export.Record, len(first))
	for i, s := range first {
		again[i] = s.Record()
	}
	second, err := export.Normalize(again)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalizeRejectsMalformedRecords(t *testing.T) {
	_, err := export.Normalize([]export.Record{{"title": "ok"}, {"points": 42}})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrValidation)
	assert.Contains(t, err.Error(), "slide 2")

	_, err = export.Normalize([]export.Record{nil})
	assert.Error(t, err)
}

func TestRecordsFromDeck(t *testing.T) {
	slides := []deck.Slide{
		{ID: "a", Type: deck.TypeTitle, Title: "Intro", Subtitle: "Welcome"},
		{ID: "b", Title: "Stats", Statistics: []deck.Statistic{{Value: "42%", Label: "growth"}}},
		{ID: "c", Title: "Quote", Quote: &deck.Quote{Text: "Ship it", Author: "Ada"}},
	}
	normalized, err := export.Normalize(export.RecordsFromDeck(slides))
	require.NoError(t, err)
	assert.Equal(t, []string{"Welcome"}, normalized[0].Content)
	assert.Equal(t, []string{"42% growth"}, normalized[1].Content)
	assert.Equal(t, []string{`"Ship it", Ada`}, normalized[2].Content)
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	return names
}

func TestExportProducesPackage(t *testing.T) {
	fetcher := &stubFetcher{}
	exp := export.New(export.Options{MinBlobBytes: 1000, EmbedImages: true}, fetcher, nil, export.WithClock(fixedClock))

	blob, err := exp.Export(context.Background(), export.Request{Title: "Digital Marketing", TemplateID: "modern-business", Records: records()})
	require.NoError(t, err)
	assert.Greater(t, len(blob.Data), 1000)
	assert.Equal(t, pptx.ContentType, blob.ContentType)
	assert.Equal(t, "stream", blob.Strategy)
	assert.False(t, blob.Minimal)
	assert.Equal(t, 5, blob.Slides)
	assert.Zero(t, blob.ImagePlaceholders)
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Contains(t, zipNames(t, blob.Data), "ppt/media/image1.png")
}

func TestExportUsesImagePlaceholdersForLargeDecks(t *testing.T) {
	fetcher := &stubFetcher{}
	exp := export.New(export.Options{MinBlobBytes: 1000, EmbedImages: true, MemoryConstrainedSlides: 3}, fetcher, nil)

	blob, err := exp.Export(context.Background(), export.Request{Records: records()})
	require.NoError(t, err)
	assert.Zero(t, fetcher.calls.Load())
	assert.Equal(t, 1, blob.ImagePlaceholders)
	assert.NotContains(t, zipNames(t, blob.Data), "ppt/media/image1.png")
}

func TestExportFetchFailureBecomesPlaceholder(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("404")}
	exp := export.New(export.Options{MinBlobBytes: 1000, EmbedImages: true}, fetcher, nil)

	blob, err := exp.Export(context.Background(), export.Request{Records: records()})
	require.NoError(t, err)
	assert.Equal(t, 1, blob.ImagePlaceholders)
}

func TestExportFallsThroughStrategies(t *testing.T) {
	broken := export.Strategy{Name: "stream", Serialize: func(pptx.Presentation) ([]byte, error) {
		return nil, errors.New("writer closed")
	}}
	tiny := export.Strategy{Name: "buffer", Serialize: func(pptx.Presentation) ([]byte, error) {
		return []byte("PK\x03\x04tiny"), nil
	}}
	defaults := export.DefaultStrategies()
	exp := export.New(export.Options{MinBlobBytes: 1000}, nil, nil, export.WithStrategies(broken, tiny, defaults[2]))

	blob, err := exp.Export(context.Background(), export.Request{Records: records()})
	require.NoError(t, err)
	assert.Equal(t, "base64", blob.Strategy)
	assert.Greater(t, len(blob.Data), 1000)
}

func TestExportFailsWhenEveryStrategyFails(t *testing.T) {
	fail := func(name string) export.Strategy {
		return export.Strategy{Name: name, Serialize: func(pptx.Presentation) ([]byte, error) {
			return nil, errors.New(name + " unavailable")
		}}
	}
	exp := export.New(export.Options{MinBlobBytes: 1000}, nil, nil,
		export.WithStrategies(fail("stream"), fail("buffer"), fail("base64")))

	_, err := exp.Export(context.Background(), export.Request{Records: records()})
	require.Error(t, err)
	var serr *export.SerializeError
	require.ErrorAs(t, err, &serr)
	require.Len(t, serr.Attempts, 3)
	for _, name := range []string{"stream unavailable", "buffer unavailable", "base64 unavailable"} {
		assert.Contains(t, err.Error(), name)
	}
}

func TestExportFallsBackToMinimalPath(t *testing.T) {
	exp := export.New(export.Options{MinBlobBytes: 1000}, nil, nil)
	recs := records()
	recs[1]["points"] = 42

	blob, err := exp.Export(context.Background(), export.Request{Records: recs})
	require.NoError(t, err)
	assert.True(t, blob.Minimal)
	assert.Equal(t, 5, blob.Slides)
	assert.Greater(t, len(blob.Data), 1000)
}

func TestExportRejectsEmptyInput(t *testing.T) {
	exp := export.New(export.Options{}, nil, nil)
	_, err := exp.Export(context.Background(), export.Request{})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestDecodeBase64Validation(t *testing.T) {
	data, err := export.DecodeBase64("UEsDBA==")
	require.NoError(t, err)
	assert.Equal(t, []byte("PK\x03\x04"), data)

	for _, bad := range []string{"", "abc", "ab=c", "a===", "ab!d"} {
		_, err := export.DecodeBase64(bad)
		assert.ErrorIs(t, err, export.ErrInvalidBase64, "input %q", bad)
	}
}
