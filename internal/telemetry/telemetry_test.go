package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/resilience"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	run = content.RunMeta{RunID: "run-1", Seed: 9}
	at  = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
)

func unit(id string, family content.Family, tone content.Tone, cta content.CTAID, status content.Status, composite float64, attempts int) content.ContentUnit {
	u := content.ContentUnit{
		ID:       id,
		Seed:     uint64(len(id)),
		Family:   family,
		Tone:     tone,
		Status:   status,
		Attempts: attempts,
		Metadata: content.Metadata{CTAID: cta},
		Score:    content.Score{Composite: composite, S: 0.75},
	}
	if status == content.StatusRejected {
		u.Reason = "repair_exhausted"
	}
	return u
}

func sampleEvents() []Event {
	return []Event{
		UnitEvent(run, unit("cu-1", content.FamilyFlyer, "friendly", "book", content.StatusAccepted, 0.95, 0), "flyer-a4", at),
		UnitEvent(run, unit("cu-2", content.FamilyFlyer, "expert", "call", content.StatusAccepted, 0.93, 2), "flyer-a4", at),
		UnitEvent(run, unit("cu-3", content.FamilyFlyer, "friendly", "book", content.StatusRejected, 0.70, 3), "flyer-a4", at),
		UnitEvent(run, unit("cu-4", content.FamilyEmail, "friendly", "call", content.StatusDuplicate, 0.96, 0), "email-basic", at),
		CanvaEvent(run, content.CanvaTask{ID: "t1", UnitID: "cu-1", TemplateKey: "flyer-a4", Formats: []content.ExportFormat{content.FormatPDF}}, at),
		PublishEvent(run, content.PublishTask{ID: "t2", UnitID: "cu-1", Channel: content.ChannelWeb}, at),
		PublishEvent(run, content.PublishTask{ID: "t3", UnitID: "cu-1", Channel: content.ChannelSocial}, at),
	}
}

func TestEventConstructors(t *testing.T) {
	e := UnitEvent(run, unit("cu-1", content.FamilyFlyer, "friendly", "book", content.StatusAccepted, 0.95, 1), "flyer-a4", at)
	assert.Equal(t, EventUnitEmitted, e.Type)
	assert.Equal(t, "flyer", e.Family)
	assert.Equal(t, "book", e.CTAID)
	assert.Equal(t, "flyer-a4", e.TemplateKey)
	assert.InDelta(t, 0.25, e.Similarity, 1e-9)
	assert.Equal(t, 1, e.Attempts)

	c := CanvaEvent(run, content.CanvaTask{ID: "t1", UnitID: "cu-1", Formats: []content.ExportFormat{content.FormatPDF, content.FormatPNG}, Incomplete: true}, at)
	assert.Equal(t, []string{"pdf", "png"}, c.Formats)
	assert.True(t, c.Incomplete)
	assert.Equal(t, TaskCanva, c.TaskKind)
	assert.Equal(t, uint64(9), c.Seed)
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.now = func() time.Time { return at }
	for _, e := range sampleEvents() {
		agg.Record(e)
	}
	s := agg.Stats()

	assert.Equal(t, 1, s.Runs)
	assert.Equal(t, int64(4), s.UnitsEmitted)
	assert.Equal(t, int64(3), s.TasksDispatched)
	assert.InDelta(t, 0.25, s.AvgSimilarity, 1e-9)
	assert.Equal(t, at, s.CapturedAt)

	require.Len(t, s.ByFamily, 2)
	flyer := s.ByFamily[0]
	assert.Equal(t, "flyer", flyer.Key)
	assert.Equal(t, int64(3), flyer.Emitted)
	assert.Equal(t, int64(2), flyer.Accepted)
	assert.Equal(t, int64(1), flyer.Repaired)
	assert.Equal(t, int64(1), flyer.Rejected)
	assert.InDelta(t, 0.6667, flyer.AcceptanceRate, 1e-9)
	assert.InDelta(t, 0.86, flyer.AvgComposite, 1e-9)
	assert.Equal(t, 0.70, flyer.MinComposite)
	assert.Equal(t, 0.95, flyer.MaxComposite)
	assert.Equal(t, int64(1), s.ByFamily[1].Duplicate)

	require.Len(t, s.ByTone, 2)
	assert.Equal(t, "friendly", s.ByTone[0].Key)
	assert.Equal(t, int64(3), s.ByTone[0].Emitted)
	require.Len(t, s.ByCTA, 2)
	assert.Equal(t, "book", s.ByCTA[0].Key)
	assert.Equal(t, "call", s.ByCTA[1].Key)

	assert.Equal(t, map[string]int64{"repair_exhausted": 1}, s.Reasons)
	assert.Equal(t, map[string]int64{TaskCanva: 1, TaskPublish: 2}, s.TasksByKind)
	assert.Equal(t, map[string]int64{"web": 1, "social": 1}, s.TasksByChannel)
}

func TestHandleMessage(t *testing.T) {
	agg := NewAggregator()
	h := HandleMessage(agg)

	e := sampleEvents()[0]
	e.Type = ""
	value, err := json.Marshal(e)
	require.NoError(t, err)

	require.NoError(t, h(context.Background(), kafka.Message{Key: []byte("run-1"), Type: string(EventUnitEmitted), Value: value}))
	require.NoError(t, h(context.Background(), kafka.Message{Key: []byte("run-1"), Value: []byte("{broken")}))
	assert.Equal(t, int64(1), agg.Stats().UnitsEmitted)
}

func TestFileSinkReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry", "events.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	for _, e := range sampleEvents() {
		sink.Track(e)
	}
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	agg := NewAggregator()
	n, err := Replay(f, agg)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, int64(4), agg.Stats().UnitsEmitted)
}

func TestFanoutAndMemorySink(t *testing.T) {
	mem := NewMemorySink()
	agg := NewAggregator()
	sink := Fanout{mem, agg, Discard{}}
	for _, e := range sampleEvents() {
		sink.Track(e)
	}
	require.NoError(t, sink.Close())
	assert.Len(t, mem.Events(), 7)
	assert.Equal(t, int64(3), agg.Stats().TasksDispatched)
}

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	calls   int
	err     error
}

func (p *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, events)
	return nil
}

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestBatchCollectorFlushesFullBatches(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, nil, 2, time.Hour)
	bc.Start(context.Background())

	events := sampleEvents()
	bc.Track(events[0])
	bc.Track(events[1])
	assert.Eventually(t, func() bool { return pub.published() == 2 }, time.Second, 5*time.Millisecond)

	bc.Track(events[2])
	require.NoError(t, bc.Close())
	assert.Equal(t, 3, pub.published())
	assert.Equal(t, 0, bc.BufferLen())

	sent, dropped := bc.Stats()
	assert.Equal(t, int64(3), sent)
	assert.Zero(t, dropped)

	first := pub.batches[0][0]
	assert.Equal(t, "run-1", first.Key)
	assert.Equal(t, string(EventUnitEmitted), first.Type)
}

func TestBatchCollectorKeepsEventsWhileCircuitIsOpen(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	breaker := resilience.NewCircuitBreaker("test", resilience.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	bc := NewBatchCollector(pub, breaker, 2, time.Hour)
	bc.Start(context.Background())

	for _, e := range sampleEvents()[:3] {
		bc.Track(e)
	}
	require.NoError(t, bc.Close())

	assert.Equal(t, 1, pub.calls)
	assert.Equal(t, 3, bc.BufferLen())
	assert.Equal(t, resilience.StateOpen, breaker.GetState())
}

func TestBatchCollectorStopsOnContextCancel(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, nil, 100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	bc.Start(ctx)
	bc.Track(sampleEvents()[0])
	cancel()
	require.NoError(t, bc.Close())
	assert.Equal(t, 1, pub.published())
}

type fakeSnapshots struct {
	mu    sync.Mutex
	saved []Snapshot
	limit int
}

func (f *fakeSnapshots) SaveSnapshot(_ context.Context, s Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeSnapshots) ListSnapshots(_ context.Context, limit int) ([]Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	return f.saved, nil
}

func TestRunPeriodicSaveWritesFinalSnapshot(t *testing.T) {
	store := &fakeSnapshots{}
	agg := NewAggregator()
	agg.Record(sampleEvents()[0])

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunPeriodicSave(ctx, store, agg, time.Hour)
		close(done)
	}()
	cancel()
	<-done

	require.Len(t, store.saved, 1)
	assert.Equal(t, int64(1), store.saved[0].UnitsEmitted)
}

func TestHandlerRoutes(t *testing.T) {
	agg := NewAggregator()
	for _, e := range sampleEvents() {
		agg.Record(e)
	}
	store := &fakeSnapshots{saved: []Snapshot{agg.Stats()}}
	r := chi.NewRouter()
	NewHandler(agg, store).Routes(r)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/api/v1/telemetry")
	require.Equal(t, http.StatusOK, rec.Code)
	var s Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, int64(4), s.UnitsEmitted)

	rec = get("/api/v1/telemetry/families/email")
	require.Equal(t, http.StatusOK, rec.Code)
	var b Bucket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, int64(1), b.Duplicate)

	assert.Equal(t, http.StatusNotFound, get("/api/v1/telemetry/families/whitepaper").Code)

	assert.Equal(t, http.StatusOK, get("/api/v1/telemetry/snapshots?limit=5").Code)
	assert.Equal(t, 5, store.limit)
	assert.Equal(t, http.StatusBadRequest, get("/api/v1/telemetry/snapshots?limit=x").Code)

	r2 := chi.NewRouter()
	NewHandler(agg, nil).Routes(r2)
	rec = httptest.NewRecorder()
	r2.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/telemetry/snapshots", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
