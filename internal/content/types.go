// Package content defines the entities passed between pipeline stages: run
// metadata, assets, the agenda, content units and the render/publish tasks
// handed to external collaborators.
package content

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Family is the closed set of content families a run can produce.
type Family string

const (
	FamilyArticle         Family = "article"
	FamilyFlyer           Family = "flyer"
	FamilyAdHeadlines     Family = "ad_headlines"
	FamilyEmail           Family = "email"
	FamilyWhitepaper      Family = "whitepaper"
	FamilyProcedure       Family = "procedure"
	FamilyTestimonialCard Family = "testimonial_card"
)

// Families lists every family in canonical order.
var Families = []Family{
	FamilyArticle,
	FamilyFlyer,
	FamilyAdHeadlines,
	FamilyEmail,
	FamilyWhitepaper,
	FamilyProcedure,
	FamilyTestimonialCard,
}

// ParseFamily validates a configured family name.
func ParseFamily(name string) (Family, error) {
	for _, f := range Families {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown content family %q", name)
}

// PublicFacing reports whether the family is customer-facing copy that must
// carry calls to action.
func (f Family) PublicFacing() bool {
	return f != FamilyWhitepaper && f != FamilyProcedure
}

// Persuasive reports whether the family targets an easy reading band.
func (f Family) Persuasive() bool {
	switch f {
	case FamilyFlyer, FamilyAdHeadlines, FamilyEmail, FamilyTestimonialCard:
		return true
	}
	return false
}

func (f Family) String() string {
	return string(f)
}

// Tone is one entry of the run's tone rotation.
type Tone string

// CTAID identifies one entry of the run's call-to-action rotation.
type CTAID string

// AssetKind tags a normalised asset.
type AssetKind string

const (
	AssetLogo          AssetKind = "logo"
	AssetPhoto         AssetKind = "photo"
	AssetTestimonial   AssetKind = "testimonial"
	AssetPriorArtifact AssetKind = "prior_artifact"
)

// Textual reports whether assets of this kind carry text rather than an
// image.
func (k AssetKind) Textual() bool {
	return k == AssetTestimonial || k == AssetPriorArtifact
}

// Status is a content unit's lifecycle state.
type Status string

const (
	StatusDrafted   Status = "drafted"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusDuplicate Status = "duplicate"
)

// RunMeta identifies one pipeline execution. It is fixed when the run starts.
type RunMeta struct {
	RunID       string    `json:"run_id"`
	Seed        uint64    `json:"seed"`
	TargetCount int       `json:"target_count"`
	ConfigHash  string    `json:"config_hash"`
	StartedAt   time.Time `json:"started_at"`
}

// Asset is a normalised reference to brand material.
type Asset struct {
	ID          string    `json:"id"`
	Kind        AssetKind `json:"kind"`
	Location    string    `json:"location"`
	Title       string    `json:"title,omitempty"`
	Text        string    `json:"text,omitempty"`
	Families    []Family  `json:"families,omitempty"`
	ContentHash string    `json:"content_hash"`
}

// RelevantTo reports whether the asset may be used by the family. Assets
// without explicit family tags are usable by every family.
func (a Asset) RelevantTo(f Family) bool {
	if len(a.Families) == 0 {
		return true
	}
	for _, af := range a.Families {
		if af == f {
			return true
		}
	}
	return false
}

// AssetSet is the Ingestor's canonical output.
type AssetSet struct {
	Run    RunMeta `json:"run"`
	Assets []Asset `json:"assets"`
}

// ByID returns the asset with the given id.
func (s AssetSet) ByID(id string) (Asset, bool) {
	for _, a := range s.Assets {
		if a.ID == id {
			return a, true
		}
	}
	return Asset{}, false
}

// ForFamily returns assets of the given kind relevant to the family, in set
// order.
func (s AssetSet) ForFamily(f Family, kind AssetKind) []Asset {
	var out []Asset
	for _, a := range s.Assets {
		if a.Kind == kind && a.RelevantTo(f) {
			out = append(out, a)
		}
	}
	return out
}

// AgendaEntry is one generation instruction.
type AgendaEntry struct {
	Index   int    `json:"index"`
	Family  Family `json:"family"`
	Tone    Tone   `json:"tone"`
	CTA     CTAID  `json:"cta"`
	OfferID string `json:"offer_id,omitempty"`
}

// Agenda is the Planner's ordered output.
type Agenda struct {
	Run     RunMeta       `json:"run"`
	Entries []AgendaEntry `json:"entries"`
}

// Metadata carries the identifiers a unit was generated against.
type Metadata struct {
	CTAID        CTAID    `json:"cta_id"`
	OfferID      string   `json:"offer_id,omitempty"`
	EvidenceRefs []string `json:"evidence_refs,omitempty"`
}

// Score is the rubric record of a unit.
type Score struct {
	R         float64 `json:"r"`
	D         float64 `json:"d"`
	E         float64 `json:"e"`
	C         float64 `json:"c"`
	B         float64 `json:"b"`
	S         float64 `json:"s"`
	Composite float64 `json:"composite"`
}

// Violation is one failed hard constraint.
type Violation struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// ContentUnit is a generated artifact.
type ContentUnit struct {
	ID         string      `json:"id"`
	Index      int         `json:"index"`
	Shard      int         `json:"shard"`
	Seed       uint64      `json:"seed"`
	Family     Family      `json:"family"`
	Tone       Tone        `json:"tone"`
	Text       RichText    `json:"text"`
	Assets     []string    `json:"assets,omitempty"`
	Metadata   Metadata    `json:"metadata"`
	Score      Score       `json:"score"`
	Status     Status      `json:"status"`
	Reason     string      `json:"reason,omitempty"`
	Attempts   int         `json:"attempts"`
	Violations []Violation `json:"violations,omitempty"`
}

// HasAsset reports whether id is already referenced by the unit.
func (u *ContentUnit) HasAsset(id string) bool {
	for _, a := range u.Assets {
		if a == id {
			return true
		}
	}
	return false
}

// UnitBatch is the handoff object between Drafter, Scorer, Repairer and
// Deduplicator. Units are kept in agenda order.
type UnitBatch struct {
	Run   RunMeta       `json:"run"`
	Units []ContentUnit `json:"units"`
}

// Clone deep-copies the batch so a stage never mutates its input.
func (b UnitBatch) Clone() UnitBatch {
	out := UnitBatch{Run: b.Run, Units: make([]ContentUnit, len(b.Units))}
	for i, u := range b.Units {
		out.Units[i] = u.Clone()
	}
	return out
}

// Clone deep-copies the unit.
func (u ContentUnit) Clone() ContentUnit {
	c := u
	c.Text = u.Text.Clone()
	c.Assets = append([]string(nil), u.Assets...)
	c.Metadata.EvidenceRefs = append([]string(nil), u.Metadata.EvidenceRefs...)
	c.Violations = append([]Violation(nil), u.Violations...)
	return c
}

// CountByStatus tallies units per status.
func (b UnitBatch) CountByStatus() map[Status]int {
	counts := make(map[Status]int)
	for _, u := range b.Units {
		counts[u.Status]++
	}
	return counts
}

// ExportFormat is a requested render output.
type ExportFormat string

const (
	FormatPDF ExportFormat = "pdf"
	FormatPNG ExportFormat = "png"
	FormatJPG ExportFormat = "jpg"
	FormatMP4 ExportFormat = "mp4"
	FormatDOC ExportFormat = "docx"
)

// ParseExportFormat validates a configured export format.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(s)); f {
	case FormatPDF, FormatPNG, FormatJPG, FormatMP4, FormatDOC:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Channel is a distribution channel.
type Channel string

const (
	ChannelWeb    Channel = "web"
	ChannelEmail  Channel = "email"
	ChannelAds    Channel = "ads"
	ChannelSocial Channel = "social"
)

// ParseChannel validates a configured distribution channel.
func ParseChannel(s string) (Channel, error) {
	switch c := Channel(strings.ToLower(s)); c {
	case ChannelWeb, ChannelEmail, ChannelAds, ChannelSocial:
		return c, nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// SlotValue is either a literal or an asset reference.
type SlotValue struct {
	Literal  string `json:"literal,omitempty"`
	AssetRef string `json:"asset_ref,omitempty"`
}

// Empty reports whether the slot carries no value.
func (v SlotValue) Empty() bool {
	return strings.TrimSpace(v.Literal) == "" && v.AssetRef == ""
}

// CanvaTask binds an accepted unit to a design template.
type CanvaTask struct {
	ID           string               `json:"id"`
	UnitID       string               `json:"unit_id"`
	TemplateKey  string               `json:"template_key"`
	Slots        map[string]SlotValue `json:"slots"`
	Formats      []ExportFormat       `json:"formats"`
	Incomplete   bool                 `json:"incomplete,omitempty"`
	MissingSlots []string             `json:"missing_slots,omitempty"`
}

// PublishTask is one entry in the distribution queue.
type PublishTask struct {
	ID         string     `json:"id"`
	UnitID     string     `json:"unit_id"`
	Channel    Channel    `json:"channel"`
	PayloadRef string     `json:"payload_ref"`
	ScheduleAt *time.Time `json:"schedule_at,omitempty"`
}

// PackageFailure records a unit that could not be packaged.
type PackageFailure struct {
	UnitID string `json:"unit_id"`
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

// PackageBatch is the Packager's output.
type PackageBatch struct {
	Run          RunMeta          `json:"run"`
	CanvaTasks   []CanvaTask      `json:"canva_tasks"`
	PublishQueue []PublishTask    `json:"publish_queue"`
	Failures     []PackageFailure `json:"failures,omitempty"`
}

// Quote returns the first sentence of a text asset, at most 160 bytes cut at
// a word boundary. Drafter, Repairer and Scorer all use it so an evidence
// reference can be matched back to the text that cites it.
func (a Asset) Quote() string {
	text := strings.TrimSpace(strings.ReplaceAll(a.Text, "\n", " "))
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		text = text[:i+1]
	}
	if len(text) > 160 {
		cut := strings.LastIndex(text[:160], " ")
		if cut <= 0 {
			cut = 160
		}
		text = text[:cut]
	}
	return strings.TrimSpace(text)
}

const proofPrefix = "proof:"

// ProofRef is the evidence reference of the i-th configured proof point.
func ProofRef(i int) string {
	return proofPrefix + strconv.Itoa(i)
}

// ParseProofRef returns the proof point index of an evidence reference.
func ParseProofRef(ref string) (int, bool) {
	rest, ok := strings.CutPrefix(ref, proofPrefix)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}
