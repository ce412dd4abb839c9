package ingestor

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
)

const (
	maxTitleLength = 256
	maxTextBytes   = 1 << 20
	maxImageBytes  = 20 << 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s:%s", k, e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

// validateRaw checks the bytes read for an asset of the given kind before
// normalisation.
func validateRaw(kind content.AssetKind, data []byte) error {
	errs := make(map[string]string)
	switch {
	case len(data) == 0:
		errs["content"] = "file is empty"
	case kind.Textual() && len(data) > maxTextBytes:
		errs["content"] = fmt.Sprintf("text must be at most %d bytes", maxTextBytes)
	case !kind.Textual() && len(data) > maxImageBytes:
		errs["content"] = fmt.Sprintf("image must be at most %d bytes", maxImageBytes)
	case kind.Textual() && !utf8.Valid(data):
		errs["content"] = "text is not valid UTF-8"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// validateAsset checks a normalised asset.
func validateAsset(a content.Asset) error {
	errs := make(map[string]string)
	if len(a.Title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if a.Kind.Textual() && strings.TrimSpace(a.Text) == "" {
		errs["text"] = "text is required and must not be blank"
	}
	for _, f := range a.Families {
		if _, err := content.ParseFamily(string(f)); err != nil {
			errs["families"] = fmt.Sprintf("unknown family %q", f)
			break
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
