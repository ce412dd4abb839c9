package pipeline

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
)

// Report summarises a completed run. It is derived only from persisted stage
// outputs, so it is identical every time it is rebuilt for the same run.
type Report struct {
	Run             content.RunMeta `json:"run"`
	Assets          int             `json:"assets"`
	AssetWarnings   []string        `json:"asset_warnings,omitempty"`
	Planned         int             `json:"planned"`
	Accepted        int             `json:"accepted"`
	Repaired        int             `json:"repaired"`
	Rejected        int             `json:"rejected"`
	Duplicate       int             `json:"duplicate"`
	Incomplete      int             `json:"incomplete"`
	Reasons         map[string]int  `json:"reasons"`
	PackageFailures map[string]int  `json:"package_failures,omitempty"`
	CanvaTasks      int             `json:"canva_tasks"`
	PublishTasks    int             `json:"publish_tasks"`
}

// BuildReport tallies the final unit batch and the package batch. Repaired
// units are accepted units that needed at least one repair attempt; they are
// included in Accepted. Reasons counts rejected units only.
func BuildReport(ingest IngestOutput, agenda content.Agenda, units content.UnitBatch, pkg content.PackageBatch) Report {
	r := Report{
		Run:           units.Run,
		Assets:        len(ingest.Assets),
		AssetWarnings: ingest.Warnings,
		Planned:       len(agenda.Entries),
		Reasons:       make(map[string]int),
		CanvaTasks:    len(pkg.CanvaTasks),
		PublishTasks:  len(pkg.PublishQueue),
	}
	for _, u := range units.Units {
		switch u.Status {
		case content.StatusAccepted:
			r.Accepted++
			if u.Attempts > 0 {
				r.Repaired++
			}
		case content.StatusRejected:
			r.Rejected++
			r.Reasons[u.Reason]++
		case content.StatusDuplicate:
			r.Duplicate++
		}
	}
	incomplete := make(map[string]struct{})
	for _, t := range pkg.CanvaTasks {
		if t.Incomplete {
			incomplete[t.UnitID] = struct{}{}
		}
	}
	r.Incomplete = len(incomplete)
	if len(pkg.Failures) > 0 {
		r.PackageFailures = make(map[string]int)
		for _, f := range pkg.Failures {
			r.PackageFailures[f.Reason]++
		}
	}
	return r
}

// WriteText renders the report as an aligned table.
func (r Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", r.Run.RunID)
	fmt.Fprintf(tw, "seed\t%d\n", r.Run.Seed)
	fmt.Fprintf(tw, "config\t%.12s\n", r.Run.ConfigHash)
	fmt.Fprintf(tw, "assets\t%d (%d skipped)\n", r.Assets, len(r.AssetWarnings))
	fmt.Fprintf(tw, "planned\t%d\n", r.Planned)
	fmt.Fprintf(tw, "accepted\t%d\n", r.Accepted)
	fmt.Fprintf(tw, "  repaired\t%d\n", r.Repaired)
	fmt.Fprintf(tw, "rejected\t%d\n", r.Rejected)
	for _, reason := range slices.Sorted(maps.Keys(r.Reasons)) {
		fmt.Fprintf(tw, "  %s\t%d\n", reason, r.Reasons[reason])
	}
	fmt.Fprintf(tw, "duplicate\t%d\n", r.Duplicate)
	fmt.Fprintf(tw, "incomplete\t%d\n", r.Incomplete)
	for _, reason := range slices.Sorted(maps.Keys(r.PackageFailures)) {
		fmt.Fprintf(tw, "unpackaged (%s)\t%d\n", reason, r.PackageFailures[reason])
	}
	fmt.Fprintf(tw, "canva tasks\t%d\n", r.CanvaTasks)
	fmt.Fprintf(tw, "publish tasks\t%d\n", r.PublishTasks)
	return tw.Flush()
}
