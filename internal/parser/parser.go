// Package parser turns free-form task descriptions into structured tasks.
// The production implementation calls the Anthropic messages API; without an
// API key a keyword fallback keeps the bot usable for trying things out.
package parser

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"calbot/internal/schedule"
	logx "calbot/pkg/logx"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Demo    bool
}

// Outcome is the parsed interpretation of one user message.
type Outcome struct {
	Action             string // "schedule" is the only action acted on
	Tasks              []schedule.StructuredTask
	NeedsClarification bool
	Questions          []string
	Confidence         float64
}

type Parser interface {
	Parse(ctx context.Context, text string, now time.Time) (Outcome, error)
}

// New picks the implementation: the API client when a key is configured,
// the keyword parser otherwise.
func New(cfg Config, log logx.Logger) Parser {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Demo || strings.TrimSpace(cfg.APIKey) == "" {
		log.Info("parser running in demo mode (no api key)")
		return NewDemo()
	}
	return NewAnthropic(cfg, log)
}

// Wire schema of the model's JSON reply. Nullable fields are pointers so
// "null" and "absent" both map to the zero value.
type rawOutcome struct {
	Action                 string    `json:"action"`
	Tasks                  []rawTask `json:"tasks"`
	NeedsClarification     bool      `json:"needs_clarification"`
	ClarificationQuestions []string  `json:"clarification_questions"`
	Confidence             float64   `json:"confidence"`
}

type rawTask struct {
	Title             string  `json:"title"`
	DurationMinutes   int     `json:"duration_minutes"`
	Priority          string  `json:"priority"`
	Deadline          *string `json:"deadline"`
	PreferredTime     *string `json:"preferred_time"`
	Recurring         bool    `json:"recurring"`
	RecurrencePattern *string `json:"recurrence_pattern"`
	Occurrences       *int    `json:"occurrences"`
}

// decodeOutcome parses the model reply, tolerating markdown code fences the
// prompt forbids but models still emit.
func decodeOutcome(text string) (Outcome, error) {
	var raw rawOutcome
	if err := json.Unmarshal([]byte(stripFences(text)), &raw); err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Action:             raw.Action,
		NeedsClarification: raw.NeedsClarification,
		Questions:          raw.ClarificationQuestions,
		Confidence:         raw.Confidence,
	}
	for _, t := range raw.Tasks {
		task := schedule.StructuredTask{
			Title:           strings.TrimSpace(t.Title),
			DurationMinutes: t.DurationMinutes,
			Priority:        schedule.ParsePriority(t.Priority),
			Recurring:       t.Recurring,
		}
		if t.Deadline != nil {
			task.Deadline = strings.TrimSpace(*t.Deadline)
		}
		if t.PreferredTime != nil {
			task.PreferredTime = strings.ToLower(strings.TrimSpace(*t.PreferredTime))
		}
		if t.RecurrencePattern != nil {
			task.RecurrencePattern = strings.ToLower(strings.TrimSpace(*t.RecurrencePattern))
		}
		if t.Occurrences != nil {
			task.Occurrences = *t.Occurrences
		}
		if task.Title == "" {
			continue
		}
		out.Tasks = append(out.Tasks, task)
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
