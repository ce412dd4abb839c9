package dedup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func scoring() config.ScoringConfig {
	return config.ScoringConfig{ShingleSize: 5, SignatureSize: 128, LSHBands: 32}
}

func unit(id, body string) content.ContentUnit {
	return content.ContentUnit{
		ID:     id,
		Status: content.StatusAccepted,
		Text: content.RichText{
			Title:    "Ceramic coating guide",
			Sections: []content.Section{{Paragraphs: []string{body}}},
		},
	}
}

const (
	bodyA = "Regular ceramic coating protects the finish from sun, salt and road grime over time. Professional tools reach areas that a quick home wash usually misses. Buyers notice a well-kept finish within seconds."
	bodyB = "Interior detailing leaves seats, mats and vents fresh after every single visit. Our crew brings its own water and power to your driveway. Pickup is free within twenty miles of the shop."
)

func TestShinglesAreSortedAndUnique(t *testing.T) {
	s := Shingles("wax wax wax wax wax wax wax wax", 2)
	assert.Len(t, s, 1)
	s = Shingles(bodyA, 5)
	for i := 1; i < len(s); i++ {
		assert.Less(t, s[i-1], s[i])
	}
	assert.Len(t, Shingles("ceramic coating", 5), 1)
	assert.Empty(t, Shingles("the and of", 5))
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 1.0, Jaccard([]uint64{1, 2, 3}, []uint64{1, 2, 3}))
	assert.Equal(t, 0.5, Jaccard([]uint64{1, 2, 3}, []uint64{2, 3, 4}))
	assert.Equal(t, 0.0, Jaccard([]uint64{1}, []uint64{2}))
	assert.Equal(t, 0.0, Jaccard(nil, nil))
}

func TestReferenceSkipsSelf(t *testing.T) {
	ref := NewReference()
	ref.Add("a", []uint64{1, 2, 3})
	id, sim := ref.Nearest("a", []uint64{1, 2, 3})
	assert.Equal(t, "", id)
	assert.Equal(t, 0.0, sim)
	ref.Add("b", []uint64{1, 2})
	id, sim = ref.Nearest("c", []uint64{1, 2, 3})
	assert.Equal(t, "a", id)
	assert.Equal(t, 1.0, sim)
}

func TestSimilarityEstimatesJaccard(t *testing.T) {
	h := NewHasher(128)
	a := Shingles(bodyA, 5)
	assert.Equal(t, 1.0, Similarity(h.Sign(a), h.Sign(a)))
	assert.Less(t, Similarity(h.Sign(a), h.Sign(Shingles(bodyB, 5))), 0.2)
}

// signatureWithOverlap returns a copy of base whose first diff slots are
// replaced, so Similarity(base, result) == (len-diff)/len.
func signatureWithOverlap(base Signature, diff int) Signature {
	out := append(Signature(nil), base...)
	for i := 0; i < diff; i++ {
		out[i] = base[i] ^ 0xdeadbeef
	}
	return out
}

func TestIndexThresholdScenario(t *testing.T) {
	base := NewHasher(128).Sign(Shingles(bodyA, 5))
	for _, bands := range []int{32, 0} {
		idx, err := NewIndex(128, bands)
		require.NoError(t, err)
		require.NoError(t, idx.Add("first", base))

		// 109 of 128 slots equal: estimated similarity 0.8516.
		near := signatureWithOverlap(base, 19)
		id, sim := idx.Nearest(near)
		assert.Equal(t, "first", id)
		assert.InDelta(t, 109.0/128.0, sim, 1e-9)
		assert.Greater(t, sim, 0.80)

		// 96 of 128: 0.75, below the threshold.
		_, sim = idx.Nearest(signatureWithOverlap(base, 32))
		assert.Less(t, sim, 0.80)
	}
}

func TestNewIndexRejectsUnevenBands(t *testing.T) {
	_, err := NewIndex(128, 30)
	assert.Error(t, err)
}

func TestRunMarksLaterDuplicate(t *testing.T) {
	batch := content.UnitBatch{Units: []content.ContentUnit{
		unit("cu-00000", bodyA),
		unit("cu-00001", bodyB),
		unit("cu-00002", bodyA),
		{ID: "cu-00003", Status: content.StatusRejected, Text: content.RichText{Title: bodyA}},
	}}
	d := New(scoring(), 0.80)

	out, idx, err := d.Run(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, content.StatusAccepted, out.Units[0].Status)
	assert.Equal(t, content.StatusAccepted, out.Units[1].Status)
	assert.Equal(t, content.StatusDuplicate, out.Units[2].Status)
	require.Len(t, out.Units[2].Violations, 1)
	assert.Equal(t, "cu-00000", out.Units[2].Violations[0].Detail)
	assert.Equal(t, content.StatusRejected, out.Units[3].Status)
	assert.Equal(t, 2, idx.Len())

	// input batch untouched
	assert.Equal(t, content.StatusAccepted, batch.Units[2].Status)
	require.NoError(t, d.Verify(context.Background(), idx, out))
}

func TestVerifyDetectsDrift(t *testing.T) {
	batch := content.UnitBatch{Units: []content.ContentUnit{unit("a", bodyA), unit("b", bodyB)}}
	d := New(scoring(), 0.80)
	out, idx, err := d.Run(context.Background(), batch)
	require.NoError(t, err)

	out.Units[1].Text.Sections[0].Paragraphs[0] = bodyA + " Extra words change the signature entirely here."
	err = d.Verify(context.Background(), idx, out)
	assert.ErrorIs(t, err, apperrors.ErrIndexCorruption)

	out.Units[1].Status = content.StatusRejected
	err = d.Verify(context.Background(), idx, out)
	assert.ErrorIs(t, err, apperrors.ErrIndexCorruption)
}

func TestSegmentRoundTrip(t *testing.T) {
	dir := t.TempDir()
	batch := content.UnitBatch{Units: []content.ContentUnit{unit("a", bodyA), unit("b", bodyB)}}
	d := New(scoring(), 0.80)
	_, idx, err := d.Run(context.Background(), batch)
	require.NoError(t, err)

	path, err := WriteSegment(dir, idx)
	require.NoError(t, err)
	loaded, err := ReadSegment(path)
	require.NoError(t, err)
	require.NoError(t, d.Verify(context.Background(), loaded, batch))
	assert.Equal(t, 32, loaded.Bands())
}

func TestReadSegmentDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewIndex(128, 32)
	require.NoError(t, err)
	require.NoError(t, idx.Add("a", NewHasher(128).Sign(Shingles(bodyA, 5))))
	path, err := WriteSegment(dir, idx)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[HeaderSize+3] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0644))
	_, err = ReadSegment(path)
	assert.ErrorIs(t, err, apperrors.ErrIndexCorruption)

	short := filepath.Join(dir, "short.cesig")
	require.NoError(t, os.WriteFile(short, []byte("CESG"), 0644))
	_, err = ReadSegment(short)
	assert.ErrorIs(t, err, apperrors.ErrIndexCorruption)
}
