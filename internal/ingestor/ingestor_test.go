package ingestor

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
)

func writeFile(t *testing.T, path string, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		kind content.AssetKind
		ok   bool
	}{
		{"brand/Logo-dark.PNG", content.AssetLogo, true},
		{"brand/shop-front.jpg", content.AssetPhoto, true},
		{"brand/testimonials/jane.txt", content.AssetTestimonial, true},
		{"brand/testimonial-bob.md", content.AssetTestimonial, true},
		{"brand/winning-flyer.md", content.AssetPriorArtifact, true},
		{"brand/landing.html", content.AssetPriorArtifact, true},
		{"brand/price-list.xlsx", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			kind, ok := Classify(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestIngestTagsNormalisesAndDeduplicates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "logo.png"), "\x89PNG fake logo bytes")
	writeFile(t, filepath.Join(dir, "testimonials", "a.txt"), "They made my truck look new.\r\nHighly recommend.")
	writeFile(t, filepath.Join(dir, "testimonials", "b.txt"), "They made my truck look new.\nHighly recommend.\n")
	writeFile(t, filepath.Join(dir, "past", "flyer.md"), "# Spring！ Special\n\nFull  detail for ｓｐｒｉｎｇ.")

	run := content.RunMeta{RunID: "run-1"}
	set, warnings, err := New().Ingest(context.Background(), run, []string{dir})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, run, set.Run)
	require.Len(t, set.Assets, 3, "duplicate testimonial collapsed")

	logo, flyer, quote := set.Assets[0], set.Assets[1], set.Assets[2]
	assert.Equal(t, content.AssetLogo, logo.Kind)
	assert.Equal(t, "logo", logo.Title)
	assert.Equal(t, content.AssetTestimonial, quote.Kind)
	assert.Equal(t, filepath.ToSlash(filepath.Join(dir, "testimonials", "a.txt")), quote.Location, "first occurrence wins")
	assert.Equal(t, "They made my truck look new.\nHighly recommend.", quote.Text)

	assert.Equal(t, content.AssetPriorArtifact, flyer.Kind)
	assert.Equal(t, "Spring! Special", flyer.Title)
	assert.Equal(t, "Full detail for spring.", flyer.Text)

	idPattern := regexp.MustCompile(`^(logo|photo|testimonial|prior_artifact)-[0-9a-f]{12}$`)
	for _, a := range set.Assets {
		assert.Regexp(t, idPattern, a.ID)
		assert.Equal(t, a.ContentHash[:12], a.ID[len(a.ID)-12:])
	}
}

func TestNormalizeHTML(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantTitle string
		wantText  string
	}{
		{
			name:     "comments and attributes dropped",
			src:      `<!-- draft: call 555 > later --><p title="5 > 4">We detail cars.</p>`,
			wantText: "We detail cars.",
		},
		{
			name: "title from head, blocks become lines",
			src: `<html><head><title>Spring &amp; Shine</title><style>p { color: red }</style></head>` +
				`<body><h1>Ceramic   coat</h1><p>Rated 4.9<br>by drivers</p><script>track()</script></body></html>`,
			wantTitle: "Spring & Shine",
			wantText:  "Ceramic coat\nRated 4.9\nby drivers",
		},
		{
			name:     "source line breaks inside a paragraph",
			src:      "<p>Full\n   detail\tpackage</p><noscript>enable js</noscript>",
			wantText: "Full detail package",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, text := normalizeText("brand/landing.html", []byte(tt.src))
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantText, text)
		})
	}
}

func TestIngestIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.md"), "second")
	writeFile(t, filepath.Join(dir, "a.md"), "first")

	first, _, err := New().Ingest(context.Background(), content.RunMeta{}, []string{dir})
	require.NoError(t, err)
	second, _, err := New().Ingest(context.Background(), content.RunMeta{}, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "first", first.Assets[0].Text, "lexical walk order")
}

func TestIngestSkipsBadInputsWithWarnings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "empty.txt"), "")
	writeFile(t, filepath.Join(dir, "blank.md"), "   \n\n ")
	writeFile(t, filepath.Join(dir, "notes.docx"), "binary")
	writeFile(t, filepath.Join(dir, "bad.txt"), "\xff\xfe broken")
	writeFile(t, filepath.Join(dir, "good.txt"), "A happy customer.")
	writeFile(t, filepath.Join(dir, ".hidden.txt"), "ignored")

	set, warnings, err := New().Ingest(context.Background(), content.RunMeta{}, []string{dir, filepath.Join(dir, "missing")})
	require.NoError(t, err)
	require.Len(t, set.Assets, 1)
	assert.Equal(t, "A happy customer.", set.Assets[0].Text)

	assert.Len(t, warnings, 5)
	for _, w := range warnings {
		assert.ErrorIs(t, w, apperrors.ErrAsset)
		assert.Equal(t, apperrors.ReasonAsset, apperrors.Reason(w))
	}
}

func TestManifestTagsFamiliesAndTitles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "review.txt"), "Five stars from me.")
	writeFile(t, filepath.Join(dir, "crew.jpg"), "jpeg bytes")
	writeFile(t, filepath.Join(dir, ManifestFile), `
assets:
  - file: review.txt
    kind: testimonial
    families: [flyer, email]
  - file: crew.jpg
    title: Our crew at work
`)

	set, warnings, err := New().Ingest(context.Background(), content.RunMeta{}, []string{dir})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, set.Assets, 2)

	photo, review := set.Assets[0], set.Assets[1]
	assert.Equal(t, "Our crew at work", photo.Title)
	assert.Equal(t, content.AssetTestimonial, review.Kind)
	assert.Equal(t, []content.Family{content.FamilyFlyer, content.FamilyEmail}, review.Families)
	assert.True(t, review.RelevantTo(content.FamilyFlyer))
	assert.False(t, review.RelevantTo(content.FamilyWhitepaper))
}

func TestMalformedManifestIsIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "one")
	writeFile(t, filepath.Join(dir, "b.md"), "two")
	writeFile(t, filepath.Join(dir, ManifestFile), "assets:\n  - file: a.md\n    colour: red\n")

	set, warnings, err := New().Ingest(context.Background(), content.RunMeta{}, []string{dir})
	require.NoError(t, err)
	assert.Len(t, set.Assets, 2)
	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], apperrors.ErrAsset)
}

func TestIngestHonoursCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "one")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := New().Ingest(ctx, content.RunMeta{}, []string{dir})
	assert.ErrorIs(t, err, context.Canceled)
}
