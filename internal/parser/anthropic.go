package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	logx "calbot/pkg/logx"
)

const anthropicVersion = "2023-06-01"

const systemPrompt = `You are an assistant that parses natural language task descriptions into structured data for calendar scheduling.

IMPORTANT: Respond ONLY with valid JSON. No markdown, no code blocks, no explanations.

When the user describes a task, extract:
1. Task title/name
2. Duration in minutes
3. Priority (high, medium, low)
4. Deadline (if mentioned)
5. Preferred time (morning, afternoon, evening, or specific time)
6. Whether it's a recurring task
7. Recurrence pattern (if applicable): daily, weekdays, weekly_<dayname>
8. Number of occurrences (for recurring tasks)

Examples for recurring tasks:
- "gym every day for next 10 days" -> recurring: true, pattern: "daily", occurrences: 10
- "team meeting every Monday for 4 weeks" -> recurring: true, pattern: "weekly_monday", occurrences: 4
- "standup every weekday for 2 weeks" -> recurring: true, pattern: "weekdays", occurrences: 10

Respond with this exact JSON structure:
{
  "action": "schedule",
  "tasks": [
    {
      "title": "extracted title",
      "duration_minutes": 60,
      "priority": "medium",
      "deadline": null,
      "preferred_time": "afternoon",
      "recurring": false,
      "recurrence_pattern": null,
      "occurrences": null
    }
  ],
  "needs_clarification": false,
  "clarification_questions": [],
  "confidence": 0.9
}

Current date/time: %s`

// Anthropic calls the messages API and decodes the structured reply.
type Anthropic struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func NewAnthropic(cfg Config, log logx.Logger) *Anthropic {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	return &Anthropic{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *Anthropic) Parse(ctx context.Context, text string, now time.Time) (Outcome, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     a.cfg.Model,
		MaxTokens: 1024,
		System:    fmt.Sprintf(systemPrompt, now.Format(time.RFC3339)),
		Messages:  []chatMessage{{Role: "user", Content: text}},
	})
	if err != nil {
		return Outcome{}, err
	}

	url := strings.TrimRight(a.cfg.BaseURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Outcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.http.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("parser request: %w", err)
	}
	defer resp.Body.Close()

	var mr messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return Outcome{}, fmt.Errorf("parser response decode: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		if mr.Error != nil {
			return Outcome{}, fmt.Errorf("parser api: %s (%s, http=%d)", mr.Error.Message, mr.Error.Type, resp.StatusCode)
		}
		return Outcome{}, fmt.Errorf("parser api: http=%d", resp.StatusCode)
	}
	if len(mr.Content) == 0 {
		return Outcome{}, errors.New("parser api: empty response content")
	}

	out, err := decodeOutcome(mr.Content[0].Text)
	if err != nil {
		a.log.Warn("model reply was not valid json", logx.Err(err))
		return Outcome{}, fmt.Errorf("parser reply decode: %w", err)
	}
	a.log.Debug("parsed message",
		logx.String("action", out.Action),
		logx.Int("tasks", len(out.Tasks)),
		logx.Any("confidence", out.Confidence))
	return out, nil
}
