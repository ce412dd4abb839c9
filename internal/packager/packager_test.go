package packager

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/resilience"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			CTAs:   []config.CTAConfig{{ID: "book", Text: "Book today"}},
			Offers: []config.OfferConfig{{ID: "spring", Text: "20 dollars off in April"}},
		},
		Brand: config.BrandConfig{Name: "Shine Auto", Contact: "hello@shineauto.com", Slogan: "Detail done right"},
		Templates: map[string]config.TemplateConfig{
			"flyer": {
				Key: "flyer-a4",
				Slots: []config.SlotConfig{
					{Name: "headline", Source: "headline"},
					{Name: "cta", Source: "cta"},
					{Name: "offer", Source: "offer", Default: "Ask about our specials"},
					{Name: "logo", Source: "asset:logo"},
					{Name: "brand", Source: "brand.name"},
				},
				Formats:  []string{"pdf", "png"},
				Channels: []string{"web", "social"},
			},
			"email": {
				Key:      "email-basic",
				Slots:    []config.SlotConfig{{Name: "quote", Source: "evidence"}},
				Channels: []string{"email"},
			},
		},
		Publish: config.PublishConfig{StartAt: start, Cadence: 2 * time.Hour},
	}
}

func testAssets() content.AssetSet {
	return content.AssetSet{Assets: []content.Asset{
		{ID: "logo-aaaaaaaaaaaa", Kind: content.AssetLogo},
		{ID: "testimonial-bbbbbbbbbbbb", Kind: content.AssetTestimonial, Text: "Spotless work. Will return."},
	}}
}

func unit(id string, family content.Family, status content.Status) content.ContentUnit {
	return content.ContentUnit{
		ID:     id,
		Family: family,
		Status: status,
		Text: content.RichText{
			Title:    "Spring detailing",
			Sections: []content.Section{{Paragraphs: []string{"Book today."}}},
		},
		Metadata: content.Metadata{CTAID: "book"},
	}
}

func testBatch() content.UnitBatch {
	withEvidence := unit("cu-00003", content.FamilyEmail, content.StatusAccepted)
	withEvidence.Metadata.EvidenceRefs = []string{"testimonial-bbbbbbbbbbbb"}
	return content.UnitBatch{
		Run: content.RunMeta{RunID: "run-1"},
		Units: []content.ContentUnit{
			unit("cu-00000", content.FamilyFlyer, content.StatusAccepted),
			unit("cu-00001", content.FamilyFlyer, content.StatusRejected),
			unit("cu-00002", content.FamilyFlyer, content.StatusDuplicate),
			withEvidence,
			unit("cu-00004", content.FamilyEmail, content.StatusAccepted),
			unit("cu-00005", content.FamilyWhitepaper, content.StatusAccepted),
			unit("cu-00006", content.FamilyFlyer, content.StatusDrafted),
		},
	}
}

func TestPackagingClosure(t *testing.T) {
	out, err := New(testConfig(), testAssets()).Run(context.Background(), testBatch())
	require.NoError(t, err)

	byID := make(map[string]content.ContentUnit)
	for _, u := range testBatch().Units {
		byID[u.ID] = u
	}
	incomplete := make(map[string]bool)
	for _, task := range out.CanvaTasks {
		assert.Equal(t, content.StatusAccepted, byID[task.UnitID].Status)
		if task.Incomplete {
			incomplete[task.UnitID] = true
		}
	}
	require.NotEmpty(t, out.PublishQueue)
	for _, task := range out.PublishQueue {
		assert.Equal(t, content.StatusAccepted, byID[task.UnitID].Status, task.UnitID)
		assert.False(t, incomplete[task.UnitID], "incomplete unit %s published", task.UnitID)
	}
}

func TestRenderTaskPerFormatAndPublishTaskPerChannel(t *testing.T) {
	out, err := New(testConfig(), testAssets()).Run(context.Background(), testBatch())
	require.NoError(t, err)

	var flyer []content.CanvaTask
	for _, task := range out.CanvaTasks {
		if task.UnitID == "cu-00000" {
			flyer = append(flyer, task)
		}
	}
	require.Len(t, flyer, 2)
	assert.Equal(t, []content.ExportFormat{content.FormatPDF}, flyer[0].Formats)
	assert.Equal(t, []content.ExportFormat{content.FormatPNG}, flyer[1].Formats)
	assert.NotEqual(t, flyer[0].ID, flyer[1].ID)

	slots := flyer[0].Slots
	assert.Equal(t, content.SlotValue{Literal: "Spring detailing"}, slots["headline"])
	assert.Equal(t, content.SlotValue{Literal: "Book today"}, slots["cta"])
	assert.Equal(t, content.SlotValue{Literal: "Ask about our specials"}, slots["offer"], "default fills the slot")
	assert.Equal(t, content.SlotValue{AssetRef: "logo-aaaaaaaaaaaa"}, slots["logo"])
	assert.Equal(t, content.SlotValue{Literal: "Shine Auto"}, slots["brand"])

	var channels []content.Channel
	for _, task := range out.PublishQueue {
		if task.UnitID == "cu-00000" {
			channels = append(channels, task.Channel)
			assert.Equal(t, "canva:"+flyer[0].ID, task.PayloadRef)
			require.NotNil(t, task.ScheduleAt)
			assert.Equal(t, start, *task.ScheduleAt)
		}
	}
	assert.Equal(t, []content.Channel{content.ChannelWeb, content.ChannelSocial}, channels)
}

func TestIncompleteUnitFailsClosed(t *testing.T) {
	out, err := New(testConfig(), testAssets()).Run(context.Background(), testBatch())
	require.NoError(t, err)

	var found bool
	for _, task := range out.CanvaTasks {
		if task.UnitID == "cu-00004" {
			found = true
			assert.True(t, task.Incomplete)
			assert.Equal(t, []string{"quote"}, task.MissingSlots)
		}
	}
	assert.True(t, found)
	for _, task := range out.PublishQueue {
		assert.NotEqual(t, "cu-00004", task.UnitID)
	}
}

func TestScheduleAdvancesPerPublishedUnit(t *testing.T) {
	out, err := New(testConfig(), testAssets()).Run(context.Background(), testBatch())
	require.NoError(t, err)

	for _, task := range out.PublishQueue {
		if task.UnitID == "cu-00003" {
			require.NotNil(t, task.ScheduleAt)
			assert.Equal(t, start.Add(2*time.Hour), *task.ScheduleAt)
		}
	}

	cfg := testConfig()
	cfg.Publish.Cadence = 0
	out, err = New(cfg, testAssets()).Run(context.Background(), testBatch())
	require.NoError(t, err)
	for _, task := range out.PublishQueue {
		assert.Nil(t, task.ScheduleAt)
	}
}

func TestMissingTemplateFailsOnlyThatUnit(t *testing.T) {
	out, err := New(testConfig(), testAssets()).Run(context.Background(), testBatch())
	require.NoError(t, err)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "cu-00005", out.Failures[0].UnitID)
	assert.Equal(t, apperrors.ReasonTemplateResolution, out.Failures[0].Reason)

	_, _, err = New(testConfig(), testAssets()).Package(content.RunMeta{}, unit("x", content.FamilyProcedure, content.StatusAccepted), 0)
	assert.ErrorIs(t, err, apperrors.ErrTemplateResolution)
}

func TestUnknownFormatIsTemplateError(t *testing.T) {
	cfg := testConfig()
	tpl := cfg.Templates["flyer"]
	tpl.Formats = []string{"tiff"}
	cfg.Templates["flyer"] = tpl
	_, _, err := New(cfg, testAssets()).Package(content.RunMeta{}, unit("x", content.FamilyFlyer, content.StatusAccepted), 0)
	assert.ErrorIs(t, err, apperrors.ErrTemplateResolution)
}

func TestPackagingIsIdempotent(t *testing.T) {
	p := New(testConfig(), testAssets())
	a, err := p.Run(context.Background(), testBatch())
	require.NoError(t, err)
	b, err := p.Run(context.Background(), testBatch())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, TaskID("run-1", "cu-00000", "canva", "pdf"), a.CanvaTasks[0].ID)
}

func TestWriteExport(t *testing.T) {
	out, err := New(testConfig(), testAssets()).Run(context.Background(), testBatch())
	require.NoError(t, err)
	dir := filepath.Join(t.TempDir(), "export")
	require.NoError(t, WriteExport(dir, out))

	ready := readLines[content.CanvaTask](t, filepath.Join(dir, CanvaTasksFile))
	incomplete := readLines[content.CanvaTask](t, filepath.Join(dir, IncompleteTasksFile))
	queue := readLines[content.PublishTask](t, filepath.Join(dir, PublishQueueFile))
	assert.Len(t, ready, 3)
	assert.Len(t, incomplete, 1)
	assert.Len(t, queue, len(out.PublishQueue))
	for _, task := range ready {
		assert.False(t, task.Incomplete)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	assert.Empty(t, matches)
}

func readLines[T any](t *testing.T, path string) []T {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []T
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var v T
		require.NoError(t, json.Unmarshal(sc.Bytes(), &v))
		out = append(out, v)
	}
	require.NoError(t, sc.Err())
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	fails  int
	events []kafka.Event
}

func (f *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("broker unavailable")
	}
	f.events = append(f.events, events...)
	return nil
}

func TestDispatchRetriesAndSkipsIncomplete(t *testing.T) {
	out, err := New(testConfig(), testAssets()).Run(context.Background(), testBatch())
	require.NoError(t, err)

	render := &fakePublisher{fails: 1}
	publish := &fakePublisher{}
	retry := resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	require.NoError(t, NewDispatcher(render, publish, retry).Dispatch(context.Background(), out))

	assert.Len(t, render.events, 3)
	for _, e := range render.events {
		assert.False(t, e.Value.(content.CanvaTask).Incomplete)
	}
	assert.Len(t, publish.events, len(out.PublishQueue))
}

func TestDispatchGivesUp(t *testing.T) {
	out, err := New(testConfig(), testAssets()).Run(context.Background(), testBatch())
	require.NoError(t, err)

	render := &fakePublisher{fails: 5}
	retry := resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	err = NewDispatcher(render, &fakePublisher{}, retry).Dispatch(context.Background(), out)
	assert.Error(t, err)
}
