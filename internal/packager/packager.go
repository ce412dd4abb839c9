// Package packager binds accepted content units to design-template slots.
// Each unit yields one render task per export format and one publish task
// per distribution channel of its family's template. A unit whose slots
// cannot all be filled is packaged as incomplete and never reaches the
// publish queue.
package packager

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
)

// taskNamespace roots the name-based UUIDs of packaging tasks, so re-running
// the stage on the same batch reproduces the same task ids.
var taskNamespace = uuid.MustParse("6f1c2a4e-9b7d-4c3e-8a5f-2d1e0b9c7a64")

// DefaultFormats is used when a template lists no export formats.
var DefaultFormats = []content.ExportFormat{content.FormatPDF}

// Packager turns an accepted batch into render and publish tasks.
type Packager struct {
	templates map[string]config.TemplateConfig
	pipeline  config.PipelineConfig
	brand     config.BrandConfig
	publish   config.PublishConfig
	assets    content.AssetSet
	logger    *slog.Logger
}

// New creates a Packager. The asset set resolves asset slots.
func New(cfg *config.Config, assets content.AssetSet) *Packager {
	return &Packager{
		templates: cfg.Templates,
		pipeline:  cfg.Pipeline,
		brand:     cfg.Brand,
		publish:   cfg.Publish,
		assets:    assets,
		logger:    slog.Default().With("component", "packager"),
	}
}

// Run packages every accepted unit of batch in agenda order. Units without a
// usable template are recorded as failures; the rest of the batch is
// unaffected.
func (p *Packager) Run(ctx context.Context, batch content.UnitBatch) (content.PackageBatch, error) {
	start := time.Now()
	out := content.PackageBatch{Run: batch.Run}
	slot := 0
	incomplete := 0
	for _, u := range batch.Units {
		if err := ctx.Err(); err != nil {
			return content.PackageBatch{}, err
		}
		if u.Status != content.StatusAccepted {
			continue
		}
		canva, publish, err := p.Package(batch.Run, u, slot)
		if err != nil {
			p.logger.Warn("unit not packaged", "unit_id", u.ID, "family", u.Family, "error", err)
			out.Failures = append(out.Failures, content.PackageFailure{
				UnitID: u.ID,
				Reason: apperrors.Reason(err),
				Detail: err.Error(),
			})
			continue
		}
		out.CanvaTasks = append(out.CanvaTasks, canva...)
		if len(canva) > 0 && canva[0].Incomplete {
			incomplete++
			continue
		}
		if len(publish) > 0 {
			out.PublishQueue = append(out.PublishQueue, publish...)
			slot++
		}
	}

	p.logger.Info("packaging complete",
		"run_id", batch.Run.RunID,
		"canva_tasks", len(out.CanvaTasks),
		"publish_tasks", len(out.PublishQueue),
		"incomplete", incomplete,
		"failures", len(out.Failures),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// Package builds the tasks of one accepted unit. slot is the unit's position
// in the publish schedule. An incomplete unit gets render tasks marked
// incomplete and no publish tasks.
func (p *Packager) Package(run content.RunMeta, u content.ContentUnit, slot int) ([]content.CanvaTask, []content.PublishTask, error) {
	tpl, ok := p.templates[string(u.Family)]
	if !ok || tpl.Key == "" {
		return nil, nil, apperrors.Newf(apperrors.ErrTemplateResolution, u.ID, "no template for family %s", u.Family)
	}
	formats, err := parseFormats(tpl.Formats)
	if err != nil {
		return nil, nil, apperrors.Newf(apperrors.ErrTemplateResolution, u.ID, "template %s: %v", tpl.Key, err)
	}
	channels, err := parseChannels(tpl.Channels)
	if err != nil {
		return nil, nil, apperrors.Newf(apperrors.ErrTemplateResolution, u.ID, "template %s: %v", tpl.Key, err)
	}

	slots, missing := p.FillSlots(u, tpl.Slots)
	canva := make([]content.CanvaTask, len(formats))
	for i, f := range formats {
		canva[i] = content.CanvaTask{
			ID:           TaskID(run.RunID, u.ID, "canva", string(f)),
			UnitID:       u.ID,
			TemplateKey:  tpl.Key,
			Slots:        maps.Clone(slots),
			Formats:      []content.ExportFormat{f},
			Incomplete:   len(missing) > 0,
			MissingSlots: missing,
		}
	}
	if len(missing) > 0 {
		p.logger.Warn("render task incomplete", "unit_id", u.ID, "template", tpl.Key, "missing", missing)
		return canva, nil, nil
	}

	var at *time.Time
	if p.publish.Cadence > 0 {
		base := p.publish.StartAt
		if base.IsZero() {
			base = run.StartedAt
		}
		t := base.Add(time.Duration(slot) * p.publish.Cadence).UTC()
		at = &t
	}
	publish := make([]content.PublishTask, len(channels))
	for i, ch := range channels {
		publish[i] = content.PublishTask{
			ID:         TaskID(run.RunID, u.ID, "publish", string(ch)),
			UnitID:     u.ID,
			Channel:    ch,
			PayloadRef: "canva:" + canva[0].ID,
			ScheduleAt: at,
		}
	}
	return canva, publish, nil
}

// FillSlots resolves each configured slot from the unit, falling back to the
// slot default. The second result names slots left without a value, sorted.
func (p *Packager) FillSlots(u content.ContentUnit, slots []config.SlotConfig) (map[string]content.SlotValue, []string) {
	values := make(map[string]content.SlotValue, len(slots))
	var missing []string
	for _, s := range slots {
		v := p.resolve(u, s.Source)
		if v.Empty() && strings.TrimSpace(s.Default) != "" {
			v = content.SlotValue{Literal: s.Default}
		}
		if v.Empty() {
			missing = append(missing, s.Name)
			continue
		}
		values[s.Name] = v
	}
	sort.Strings(missing)
	return values, missing
}

// resolve reads one slot source from a unit. Sources are title, body,
// headline, cta, offer, evidence, brand.<field>, section:<n> and
// asset:<kind>.
func (p *Packager) resolve(u content.ContentUnit, source string) content.SlotValue {
	lit := func(s string) content.SlotValue { return content.SlotValue{Literal: strings.TrimSpace(s)} }
	switch {
	case source == "title":
		return lit(u.Text.Title)
	case source == "body":
		return lit(u.Text.String())
	case source == "headline":
		return lit(headline(u))
	case source == "cta":
		return lit(p.pipeline.CTAText(string(u.Metadata.CTAID)))
	case source == "offer":
		return lit(p.pipeline.OfferText(u.Metadata.OfferID))
	case source == "evidence":
		return lit(p.evidence(u))
	case strings.HasPrefix(source, "brand."):
		return lit(p.brandField(strings.TrimPrefix(source, "brand.")))
	case strings.HasPrefix(source, "section:"):
		var n int
		if _, err := fmt.Sscanf(source, "section:%d", &n); err == nil && n >= 1 && n <= len(u.Text.Sections) {
			return lit(u.Text.Sections[n-1].Text())
		}
	case strings.HasPrefix(source, "asset:"):
		return content.SlotValue{AssetRef: p.assetRef(u, content.AssetKind(strings.TrimPrefix(source, "asset:")))}
	}
	return content.SlotValue{}
}

// headline is the unit's first bullet for headline sets, otherwise its
// title or first sentence.
func headline(u content.ContentUnit) string {
	if u.Family == content.FamilyAdHeadlines {
		for _, s := range u.Text.Sections {
			if len(s.Bullets) > 0 {
				return s.Bullets[0]
			}
		}
	}
	if u.Text.Title != "" {
		return u.Text.Title
	}
	if sentences := tokenizer.Sentences(u.Text.Body()); len(sentences) > 0 {
		return sentences[0]
	}
	return ""
}

func (p *Packager) evidence(u content.ContentUnit) string {
	for _, ref := range u.Metadata.EvidenceRefs {
		if i, ok := content.ParseProofRef(ref); ok {
			if i < len(p.brand.ProofPoints) {
				return p.brand.ProofPoints[i]
			}
			continue
		}
		if a, ok := p.assets.ByID(ref); ok && a.Quote() != "" {
			return a.Quote()
		}
	}
	return ""
}

func (p *Packager) brandField(name string) string {
	switch name {
	case "name":
		return p.brand.Name
	case "contact":
		return p.brand.Contact
	case "slogan":
		return p.brand.Slogan
	case "guarantee":
		return p.brand.Guarantee
	}
	return ""
}

// assetRef prefers an asset the unit already uses, then the first relevant
// asset of the kind in the set.
func (p *Packager) assetRef(u content.ContentUnit, kind content.AssetKind) string {
	for _, id := range u.Assets {
		if a, ok := p.assets.ByID(id); ok && a.Kind == kind {
			return a.ID
		}
	}
	if candidates := p.assets.ForFamily(u.Family, kind); len(candidates) > 0 {
		return candidates[0].ID
	}
	return ""
}

// TaskID derives a stable task id from its run, unit, task kind and variant.
func TaskID(runID, unitID, kind, variant string) string {
	return uuid.NewSHA1(taskNamespace, []byte(strings.Join([]string{runID, unitID, kind, variant}, "/"))).String()
}

func parseFormats(names []string) ([]content.ExportFormat, error) {
	if len(names) == 0 {
		return DefaultFormats, nil
	}
	out := make([]content.ExportFormat, 0, len(names))
	seen := make(map[content.ExportFormat]bool)
	for _, n := range names {
		f, err := content.ParseExportFormat(n)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

func parseChannels(names []string) ([]content.Channel, error) {
	out := make([]content.Channel, 0, len(names))
	seen := make(map[content.Channel]bool)
	for _, n := range names {
		c, err := content.ParseChannel(n)
		if err != nil {
			return nil, err
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}
