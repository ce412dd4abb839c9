package content

import "strings"

// Section is one structural block of a unit's body.
type Section struct {
	Heading    string   `json:"heading,omitempty"`
	Paragraphs []string `json:"paragraphs,omitempty"`
	Bullets    []string `json:"bullets,omitempty"`
}

// Text returns the section's prose and bullets joined by newlines.
func (s Section) Text() string {
	parts := make([]string, 0, 1+len(s.Paragraphs)+len(s.Bullets))
	if s.Heading != "" {
		parts = append(parts, s.Heading)
	}
	parts = append(parts, s.Paragraphs...)
	parts = append(parts, s.Bullets...)
	return strings.Join(parts, "\n")
}

// Contains reports whether phrase appears in the section.
func (s Section) Contains(phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(s.Text(), phrase)
}

// RichText is the structured body of a unit.
type RichText struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Clone deep-copies the body.
func (t RichText) Clone() RichText {
	out := RichText{Title: t.Title, Sections: make([]Section, len(t.Sections))}
	for i, s := range t.Sections {
		out.Sections[i] = Section{
			Heading:    s.Heading,
			Paragraphs: append([]string(nil), s.Paragraphs...),
			Bullets:    append([]string(nil), s.Bullets...),
		}
	}
	return out
}

// String renders the body as markdown. The rendering is deterministic and is
// what similarity and determinism checks compare.
func (t RichText) String() string {
	var b strings.Builder
	if t.Title != "" {
		b.WriteString("# ")
		b.WriteString(t.Title)
		b.WriteString("\n")
	}
	for _, s := range t.Sections {
		b.WriteString("\n")
		if s.Heading != "" {
			b.WriteString("## ")
			b.WriteString(s.Heading)
			b.WriteString("\n\n")
		}
		for _, p := range s.Paragraphs {
			b.WriteString(p)
			b.WriteString("\n\n")
		}
		for _, bl := range s.Bullets {
			b.WriteString("- ")
			b.WriteString(bl)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Plain returns the title and every section's text without markup.
func (t RichText) Plain() string {
	parts := make([]string, 0, len(t.Sections)+1)
	if t.Title != "" {
		parts = append(parts, t.Title)
	}
	for _, s := range t.Sections {
		parts = append(parts, s.Text())
	}
	return strings.Join(parts, "\n")
}

// Body returns paragraphs and bullets only, the prose a reader scores.
func (t RichText) Body() string {
	var parts []string
	for _, s := range t.Sections {
		parts = append(parts, s.Paragraphs...)
		parts = append(parts, s.Bullets...)
	}
	return strings.Join(parts, "\n")
}

// Contains reports whether phrase appears anywhere in the body.
func (t RichText) Contains(phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(t.Plain(), phrase)
}
