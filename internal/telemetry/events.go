// Package telemetry records what a run produced: one content_unit_emitted
// event per scored unit and one task_dispatched event per render or publish
// task. Events flow to a Sink during the run and are aggregated per family,
// tone and CTA by the telemetry service.
package telemetry

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/internal/content"
)

type EventType string

const (
	EventUnitEmitted    EventType = "content_unit_emitted"
	EventTaskDispatched EventType = "task_dispatched"
)

// Task kinds carried by task_dispatched events.
const (
	TaskCanva   = "canva"
	TaskPublish = "publish"
)

// Event is a single telemetry record. Unit fields are set on
// content_unit_emitted, task fields on task_dispatched.
type Event struct {
	Type        EventType `json:"type"`
	RunID       string    `json:"run_id"`
	Seed        uint64    `json:"seed"`
	UnitID      string    `json:"unit_id"`
	Family      string    `json:"family,omitempty"`
	Tone        string    `json:"tone,omitempty"`
	CTAID       string    `json:"cta_id,omitempty"`
	TemplateKey string    `json:"template_key,omitempty"`
	Composite   float64   `json:"composite,omitempty"`
	Similarity  float64   `json:"similarity,omitempty"`
	Status      string    `json:"status,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Attempts    int       `json:"attempts,omitempty"`
	TaskID      string    `json:"task_id,omitempty"`
	TaskKind    string    `json:"task_kind,omitempty"`
	Channel     string    `json:"channel,omitempty"`
	Formats     []string  `json:"formats,omitempty"`
	Incomplete  bool      `json:"incomplete,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// UnitEvent describes a unit after scoring. Similarity is the estimated
// overlap with the closest accepted unit, 1 - S.
func UnitEvent(run content.RunMeta, u content.ContentUnit, templateKey string, at time.Time) Event {
	return Event{
		Type:        EventUnitEmitted,
		RunID:       run.RunID,
		Seed:        u.Seed,
		UnitID:      u.ID,
		Family:      string(u.Family),
		Tone:        string(u.Tone),
		CTAID:       string(u.Metadata.CTAID),
		TemplateKey: templateKey,
		Composite:   u.Score.Composite,
		Similarity:  1 - u.Score.S,
		Status:      string(u.Status),
		Reason:      u.Reason,
		Attempts:    u.Attempts,
		Timestamp:   at,
	}
}

// CanvaEvent describes a dispatched render task.
func CanvaEvent(run content.RunMeta, t content.CanvaTask, at time.Time) Event {
	formats := make([]string, len(t.Formats))
	for i, f := range t.Formats {
		formats[i] = string(f)
	}
	return Event{
		Type:        EventTaskDispatched,
		RunID:       run.RunID,
		Seed:        run.Seed,
		UnitID:      t.UnitID,
		TemplateKey: t.TemplateKey,
		TaskID:      t.ID,
		TaskKind:    TaskCanva,
		Formats:     formats,
		Incomplete:  t.Incomplete,
		Timestamp:   at,
	}
}

// PublishEvent describes a queued publish task.
func PublishEvent(run content.RunMeta, t content.PublishTask, at time.Time) Event {
	return Event{
		Type:      EventTaskDispatched,
		RunID:     run.RunID,
		Seed:      run.Seed,
		UnitID:    t.UnitID,
		TaskID:    t.ID,
		TaskKind:  TaskPublish,
		Channel:   string(t.Channel),
		Timestamp: at,
	}
}
