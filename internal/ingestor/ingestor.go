// Package ingestor turns raw brand material on disk into the run's canonical
// asset set. Files are tagged by kind from their path and extension, text is
// NFKC-normalised, identifiers derive from content hashes, and duplicate
// content collapses to its first occurrence. Inputs that cannot be used are
// reported as asset errors and skipped.
package ingestor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
)

// idHexLength is how many hex digits of the content hash an asset id keeps.
const idHexLength = 12

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".webp": true,
}

var (
	blankLines  = regexp.MustCompile(`\n{3,}`)
	innerSpaces = regexp.MustCompile(`[ \t]+`)
)

// Ingestor builds AssetSets from file-system locations.
type Ingestor struct {
	logger *slog.Logger
}

// manifestCache holds the parsed manifest of every directory visited during
// one Ingest call.
type manifestCache map[string]map[string]ManifestEntry

// New creates an Ingestor.
func New() *Ingestor {
	return &Ingestor{
		logger: slog.Default().With("component", "ingestor"),
	}
}

// Ingest walks every location in order; directories are walked in lexical
// order. The returned warnings are asset errors for inputs that were
// skipped. Only cancellation aborts the walk.
func (in *Ingestor) Ingest(ctx context.Context, run content.RunMeta, locations []string) (content.AssetSet, []error, error) {
	start := time.Now()
	manifests := make(manifestCache)
	set := content.AssetSet{Run: run}
	seen := make(map[string]string)
	var warnings []error

	warn := func(err error) {
		in.logger.Warn("asset skipped", "error", err)
		warnings = append(warnings, err)
	}
	visit := func(path string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, err := manifestEntry(path, manifests)
		if err != nil {
			warn(apperrors.Newf(apperrors.ErrAsset, filepath.Dir(path), "manifest ignored: %v", err))
		}
		a, err := load(path, entry)
		if err != nil {
			warn(err)
			return nil
		}
		if first, dup := seen[a.ContentHash]; dup {
			in.logger.Debug("duplicate asset collapsed", "location", a.Location, "kept", first)
			return nil
		}
		seen[a.ContentHash] = a.Location
		set.Assets = append(set.Assets, a)
		return nil
	}

	for _, loc := range locations {
		info, err := os.Stat(loc)
		if err != nil {
			warn(apperrors.Newf(apperrors.ErrAsset, loc, "unreadable location: %v", err))
			continue
		}
		if !info.IsDir() {
			if err := visit(loc); err != nil {
				return content.AssetSet{}, warnings, err
			}
			continue
		}
		err = filepath.WalkDir(loc, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				warn(apperrors.Newf(apperrors.ErrAsset, path, "unreadable: %v", err))
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			hidden := strings.HasPrefix(d.Name(), ".") && path != loc
			if d.IsDir() {
				if hidden {
					return fs.SkipDir
				}
				return nil
			}
			if hidden || d.Name() == ManifestFile {
				return nil
			}
			return visit(path)
		})
		if err != nil {
			return content.AssetSet{}, warnings, err
		}
	}

	in.logger.Info("assets ingested",
		"run_id", run.RunID,
		"assets", len(set.Assets),
		"skipped", len(warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return set, warnings, nil
}

// load reads, tags and normalises one file.
func load(path string, entry ManifestEntry) (content.Asset, error) {
	kind, ok := Classify(path)
	if entry.Kind != "" {
		kind, ok = parseKind(entry.Kind)
	}
	if !ok {
		return content.Asset{}, apperrors.New(apperrors.ErrAsset, path, "unrecognised asset type")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return content.Asset{}, apperrors.Newf(apperrors.ErrAsset, path, "unreadable: %v", err)
	}
	if err := validateRaw(kind, data); err != nil {
		return content.Asset{}, apperrors.Newf(apperrors.ErrAsset, path, "malformed: %v", err)
	}

	a := content.Asset{
		Kind:     kind,
		Location: filepath.ToSlash(path),
		Families: entry.Families,
	}
	hashed := data
	if kind.Textual() {
		a.Title, a.Text = normalizeText(path, data)
		hashed = []byte(a.Text)
	}
	if a.Title == "" {
		a.Title = titleFromName(path)
	}
	if entry.Title != "" {
		a.Title = norm.NFKC.String(entry.Title)
	}
	if err := validateAsset(a); err != nil {
		return content.Asset{}, apperrors.Newf(apperrors.ErrAsset, path, "malformed: %v", err)
	}

	sum := sha256.Sum256(hashed)
	a.ContentHash = hex.EncodeToString(sum[:])
	a.ID = fmt.Sprintf("%s-%s", kind, a.ContentHash[:idHexLength])
	return a, nil
}

// manifestEntry returns the manifest annotation of path. A directory's
// manifest error is returned once; its files then load untagged.
func manifestEntry(path string, manifests manifestCache) (ManifestEntry, error) {
	dir := filepath.Dir(path)
	entries, ok := manifests[dir]
	if !ok {
		var err error
		entries, err = loadManifest(dir)
		manifests[dir] = entries
		if err != nil {
			return ManifestEntry{}, err
		}
	}
	return entries[filepath.Base(path)], nil
}

// Classify tags a file by path and extension. Images named like a logo are
// logos, other images photos. Text under a testimonials directory or named
// with a testimonial prefix is a testimonial; other text and HTML are prior
// artifacts.
func Classify(path string) (content.AssetKind, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	base := strings.ToLower(filepath.Base(path))
	switch {
	case imageExts[ext]:
		if strings.Contains(base, "logo") {
			return content.AssetLogo, true
		}
		return content.AssetPhoto, true
	case ext == ".txt" || ext == ".md":
		if strings.HasPrefix(base, "testimonial") || underTestimonials(path) {
			return content.AssetTestimonial, true
		}
		return content.AssetPriorArtifact, true
	case ext == ".html" || ext == ".htm":
		return content.AssetPriorArtifact, true
	}
	return "", false
}

func underTestimonials(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(path)), "/") {
		if strings.EqualFold(part, "testimonials") {
			return true
		}
	}
	return false
}

// normalizeText returns the title and NFKC-normalised body of a text asset.
// A leading markdown heading or an HTML title becomes the title.
func normalizeText(path string, data []byte) (string, string) {
	text := norm.NFKC.String(string(data))
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var title string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		title, text = htmlText(text)
	case ".md":
		first, rest, _ := strings.Cut(strings.TrimLeft(text, "\n"), "\n")
		if h, ok := strings.CutPrefix(first, "# "); ok {
			title = strings.TrimSpace(h)
			text = rest
		}
	}

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(innerSpaces.ReplaceAllString(l, " "))
	}
	text = blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return title, strings.TrimSpace(text)
}

// blockElements end a line of extracted HTML text.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Blockquote: true, atom.Header: true,
	atom.Footer: true, atom.Ul: true, atom.Ol: true, atom.Table: true,
}

// htmlText parses an HTML document and returns its <title> and the visible
// text of its body, one line per block element. Comments, attributes and the
// contents of head, script, style, noscript and template are dropped.
func htmlText(src string) (title, body string) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", ""
	}
	if t := findElement(doc, atom.Title); t != nil {
		title = strings.Join(strings.Fields(nodeText(t)), " ")
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(strings.Map(flattenSpace, n.Data))
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Head, atom.Title, atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		case html.DocumentNode:
		default:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.DataAtom] {
			b.WriteByte('\n')
		}
	}
	walk(doc)
	return title, b.String()
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}

// flattenSpace turns source line breaks inside text nodes into spaces; lines
// come from block elements only.
func flattenSpace(r rune) rune {
	if r == '\n' || r == '\r' || r == '\t' {
		return ' '
	}
	return r
}

func titleFromName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.TrimSpace(name)
}
