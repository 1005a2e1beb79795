package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"calbot/internal/parser"
	"calbot/internal/schedule"
	"calbot/internal/storage"
	"calbot/internal/transport"
	logx "calbot/pkg/logx"
)

var testNow = time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC) // a Monday

type sentMsg struct {
	chatID int64
	text   string
	markup bool
}

type fakeAdapter struct {
	mu    sync.Mutex
	sent  []sentMsg
	edits []sentMsg
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- transport.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                               { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{
		chatID: to.ChatID,
		text:   text,
		markup: opt != nil && opt.ReplyMarkupAdapter != nil,
	})
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sentMsg{chatID: ref.ChatID, text: text})
	return nil
}

func (f *fakeAdapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	return nil
}

func (f *fakeAdapter) lastSent(t *testing.T) sentMsg {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeAdapter) lastEdit(t *testing.T) sentMsg {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		t.Fatal("nothing edited")
	}
	return f.edits[len(f.edits)-1]
}

// parserFunc lets tests pin the parse outcome.
type parserFunc func(text string) parser.Outcome

func (p parserFunc) Parse(ctx context.Context, text string, now time.Time) (parser.Outcome, error) {
	return p(text), nil
}

func singleTask(task schedule.StructuredTask) parserFunc {
	return func(string) parser.Outcome {
		return parser.Outcome{Action: "schedule", Tasks: []schedule.StructuredTask{task}}
	}
}

func newTestRouter(t *testing.T, parse parser.Parser) (*Router, *fakeAdapter, storage.Store) {
	t.Helper()
	store, err := storage.Open(storage.Config{Driver: "memory"}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	pending, err := storage.OpenPending(storage.Config{}, store, logx.Nop())
	if err != nil {
		t.Fatalf("open pending: %v", err)
	}
	adapter := &fakeAdapter{}
	r := New(Config{}, adapter, store, pending, parse, schedule.DefaultPolicy(""), logx.Nop())
	r.now = func() time.Time { return testNow }
	return r, adapter, store
}

func message(text string) *transport.Message {
	return &transport.Message{ID: 1, ChatID: 100, FromID: 100, Text: text}
}

func TestFreeTextSchedules(t *testing.T) {
	t.Parallel()

	r, adapter, store := newTestRouter(t, singleTask(schedule.StructuredTask{
		Title:           "write report",
		DurationMinutes: 60,
		Priority:        schedule.PriorityHigh,
	}))
	ctx := context.Background()

	r.handleMessage(ctx, message("I need an hour for the report"))

	got := adapter.lastSent(t)
	if !strings.Contains(got.text, "Scheduled") || !strings.Contains(got.text, "write report") {
		t.Fatalf("reply = %q", got.text)
	}
	events, err := store.Events(100).ListEvents(ctx, testNow, testNow.AddDate(0, 0, 1))
	if err != nil || len(events) != 1 {
		t.Fatalf("events = %v, err = %v", events, err)
	}
	// High priority lands in the first work window.
	if events[0].Start.Hour() != 9 {
		t.Fatalf("start = %v", events[0].Start)
	}
}

func TestConflictConfirmFlow(t *testing.T) {
	t.Parallel()

	task := schedule.StructuredTask{Title: "focus block", DurationMinutes: 60, Priority: schedule.PriorityHigh}
	r, adapter, store := newTestRouter(t, singleTask(task))
	ctx := context.Background()

	mon9 := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	if _, err := store.Events(100).CreateEvent(ctx, "standup", mon9, mon9.Add(time.Hour), ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	r.handleMessage(ctx, message("an hour of focus"))

	prompt := adapter.lastSent(t)
	if !prompt.markup {
		t.Fatal("conflict prompt has no keyboard")
	}
	if !strings.Contains(prompt.text, "standup") || !strings.Contains(prompt.text, "anyway") {
		t.Fatalf("prompt = %q", prompt.text)
	}

	// Nothing is written until the user confirms.
	events, _ := store.Events(100).ListEvents(ctx, mon9.AddDate(0, 0, -1), mon9.AddDate(0, 0, 1))
	if len(events) != 1 {
		t.Fatalf("conflict wrote to calendar: %v", events)
	}

	r.handleCallback(ctx, &transport.Callback{
		ID: "cb1", FromID: 100, ChatID: 100, MessageID: 5,
		Data: "cal:confirm",
	})

	edit := adapter.lastEdit(t)
	if !strings.Contains(edit.text, "Scheduled") {
		t.Fatalf("edit = %q", edit.text)
	}
	events, _ = store.Events(100).ListEvents(ctx, mon9.AddDate(0, 0, -1), mon9.AddDate(0, 0, 1))
	if len(events) != 2 {
		t.Fatalf("confirm did not write: %v", events)
	}

	// The pending entry is consumed; a second confirm reports expiry.
	r.handleCallback(ctx, &transport.Callback{
		ID: "cb2", FromID: 100, ChatID: 100, MessageID: 5,
		Data: "cal:confirm",
	})
	if edit := adapter.lastEdit(t); !strings.Contains(edit.text, "expired") {
		t.Fatalf("second confirm edit = %q", edit.text)
	}
}

func TestConflictDismissFlow(t *testing.T) {
	t.Parallel()

	task := schedule.StructuredTask{Title: "focus block", DurationMinutes: 60, Priority: schedule.PriorityHigh}
	r, adapter, store := newTestRouter(t, singleTask(task))
	ctx := context.Background()

	mon9 := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	if _, err := store.Events(100).CreateEvent(ctx, "standup", mon9, mon9.Add(time.Hour), ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	r.handleMessage(ctx, message("an hour of focus"))
	r.handleCallback(ctx, &transport.Callback{
		ID: "cb1", FromID: 100, ChatID: 100, MessageID: 5,
		Data: "cal:dismiss",
	})

	if edit := adapter.lastEdit(t); !strings.Contains(edit.text, "won't schedule") {
		t.Fatalf("edit = %q", edit.text)
	}
	events, _ := store.Events(100).ListEvents(ctx, mon9.AddDate(0, 0, -1), mon9.AddDate(0, 0, 1))
	if len(events) != 1 {
		t.Fatalf("dismiss wrote to calendar: %v", events)
	}
}

func TestNewRequestSupersedesPending(t *testing.T) {
	t.Parallel()

	task := schedule.StructuredTask{Title: "focus block", DurationMinutes: 60, Priority: schedule.PriorityHigh}
	r, _, store := newTestRouter(t, singleTask(task))
	ctx := context.Background()

	mon9 := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	if _, err := store.Events(100).CreateEvent(ctx, "standup", mon9, mon9.Add(time.Hour), ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// First message leaves a pending confirmation behind.
	r.handleMessage(ctx, message("an hour of focus"))

	// A new message replaces it: low priority picks a different slot, no
	// conflict, and the old proposal must be gone.
	r2task := schedule.StructuredTask{Title: "reading", DurationMinutes: 30, Priority: schedule.PriorityLow}
	r.parse = singleTask(r2task)
	r.handleMessage(ctx, message("some reading"))

	pending, _ := storage.OpenPending(storage.Config{}, store, logx.Nop())
	if _, err := pending.GetPending(ctx, 100); err == nil {
		t.Fatal("old pending confirmation survived a new request")
	}
}

func TestTodayAgendaAndCancel(t *testing.T) {
	t.Parallel()

	r, adapter, store := newTestRouter(t, singleTask(schedule.StructuredTask{Title: "x"}))
	ctx := context.Background()

	mon14 := time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC)
	ev, err := store.Events(100).CreateEvent(ctx, "design review", mon14, mon14.Add(time.Hour), "")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	r.handleMessage(ctx, message("/today"))
	if got := adapter.lastSent(t); !strings.Contains(got.text, "design review") || !strings.Contains(got.text, ev.ID) {
		t.Fatalf("agenda = %q", got.text)
	}

	r.handleMessage(ctx, message("/cancel "+ev.ID))
	if got := adapter.lastSent(t); !strings.Contains(got.text, "cancelled") {
		t.Fatalf("cancel reply = %q", got.text)
	}
	events, _ := store.Events(100).ListEvents(ctx, mon14.AddDate(0, 0, -1), mon14.AddDate(0, 0, 1))
	if len(events) != 0 {
		t.Fatalf("event survived cancel: %v", events)
	}

	r.handleMessage(ctx, message("/cancel nope"))
	if got := adapter.lastSent(t); !strings.Contains(got.text, "couldn't find") {
		t.Fatalf("bad cancel reply = %q", got.text)
	}
}

func TestWorkHoursAndSettings(t *testing.T) {
	t.Parallel()

	r, adapter, store := newTestRouter(t, singleTask(schedule.StructuredTask{Title: "x"}))
	ctx := context.Background()

	r.handleMessage(ctx, message("/workhours 08:00-16:00"))
	if got := adapter.lastSent(t); !strings.Contains(got.text, "08:00") || !strings.Contains(got.text, "16:00") {
		t.Fatalf("workhours reply = %q", got.text)
	}
	p, ok, err := store.Policy(ctx, 100)
	if err != nil || !ok {
		t.Fatalf("policy: ok=%v err=%v", ok, err)
	}
	if p.WorkStart != (schedule.Clock{Hour: 8}) || p.WorkEnd != (schedule.Clock{Hour: 16}) {
		t.Fatalf("policy = %+v", p)
	}

	r.handleMessage(ctx, message("/workhours nonsense"))
	if got := adapter.lastSent(t); !strings.Contains(got.text, "Usage") {
		t.Fatalf("bad workhours reply = %q", got.text)
	}

	r.handleMessage(ctx, message("/settings"))
	if got := adapter.lastSent(t); !strings.Contains(got.text, "08:00") {
		t.Fatalf("settings reply = %q", got.text)
	}
}

func TestOwnerAllowlist(t *testing.T) {
	t.Parallel()

	r, adapter, _ := newTestRouter(t, singleTask(schedule.StructuredTask{Title: "x"}))
	r.Apply(Config{OwnerUserIDs: []int64{1}}, schedule.DefaultPolicy(""))

	r.dispatch(context.Background(), transport.Update{
		Kind:    transport.UpdateMessage,
		Message: message("/today"), // FromID 100, not allowed
	})

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if len(adapter.sent) != 0 {
		t.Fatalf("unauthorized user got a reply: %v", adapter.sent)
	}
}

func TestClarificationQuestions(t *testing.T) {
	t.Parallel()

	ask := parserFunc(func(string) parser.Outcome {
		return parser.Outcome{
			Action:             "schedule",
			NeedsClarification: true,
			Questions:          []string{"How long should it be?"},
		}
	})
	r, adapter, _ := newTestRouter(t, ask)

	r.handleMessage(context.Background(), message("do the thing"))
	if got := adapter.lastSent(t); !strings.Contains(got.text, "How long should it be?") {
		t.Fatalf("reply = %q", got.text)
	}
}
