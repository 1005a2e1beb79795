// Package bot is the conversation layer: it dispatches transport updates to
// command handlers, runs free text through the parser and the scheduling
// engine, and drives the conflict confirmation flow.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"calbot/internal/calendar"
	"calbot/internal/parser"
	"calbot/internal/schedule"
	"calbot/internal/storage"
	"calbot/internal/transport"
	logx "calbot/pkg/logx"
	"calbot/pkg/tgui"
)

const (
	callbackScope  = "cal"
	actionConfirm  = "confirm"
	actionDismiss  = "dismiss"
	updateQueueCap = 64
	exportDays     = 30
)

type Config struct {
	// OwnerUserIDs restricts the bot to these users when non-empty.
	OwnerUserIDs []int64
}

type Router struct {
	adapter transport.Adapter
	store   storage.Store
	pending storage.PendingStore
	parse   parser.Parser
	log     logx.Logger

	mu            sync.Mutex
	cfg           Config
	defaultPolicy schedule.WorkPolicy

	updates chan transport.Update
	done    chan struct{}

	// now is swappable in tests.
	now func() time.Time

	// newScheduler builds the per-user engine; tests substitute it to
	// inject failing stores.
	newScheduler func(st calendar.Store) *schedule.Scheduler
}

func New(cfg Config, adapter transport.Adapter, store storage.Store, pending storage.PendingStore, parse parser.Parser, defaultPolicy schedule.WorkPolicy, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{
		adapter:       adapter,
		store:         store,
		pending:       pending,
		parse:         parse,
		log:           log,
		cfg:           cfg,
		defaultPolicy: defaultPolicy,
		updates:       make(chan transport.Update, updateQueueCap),
		now:           time.Now,
	}
	engineLog := log.With(logx.String("comp", "engine"))
	r.newScheduler = func(st calendar.Store) *schedule.Scheduler {
		return schedule.New(st, engineLog)
	}
	return r
}

// Updates is the channel the transport adapter feeds.
func (r *Router) Updates() chan transport.Update { return r.updates }

// Apply installs reloaded settings. Running conversations keep the policy
// they started with.
func (r *Router) Apply(cfg Config, defaultPolicy schedule.WorkPolicy) {
	r.mu.Lock()
	r.cfg = cfg
	r.defaultPolicy = defaultPolicy
	r.mu.Unlock()
}

func (r *Router) Start(ctx context.Context) {
	done := make(chan struct{})
	r.mu.Lock()
	r.done = done
	r.mu.Unlock()

	if menu, ok := r.adapter.(transport.CommandMenuUpdater); ok {
		mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := menu.UpdateMenuCommands(mctx, commandMenu()); err != nil {
			r.log.Warn("menu update failed", logx.Err(err))
		}
		cancel()
	}

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case up := <-r.updates:
				r.dispatch(ctx, up)
			}
		}
	}()
	r.log.Info("router started")
}

func (r *Router) Stop(ctx context.Context) {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
	r.log.Info("router stopped")
}

func commandMenu() []transport.BotCommand {
	return []transport.BotCommand{
		{Command: "start", Description: "What this bot does"},
		{Command: "today", Description: "Today's agenda"},
		{Command: "week", Description: "This week's agenda"},
		{Command: "cancel", Description: "Cancel an event by id"},
		{Command: "export", Description: "Export your calendar (.ics)"},
		{Command: "workhours", Description: "Set your work hours"},
		{Command: "timezone", Description: "Set your timezone"},
		{Command: "settings", Description: "Show your scheduling settings"},
	}
}

func (r *Router) allowed(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cfg.OwnerUserIDs) == 0 {
		return true
	}
	for _, id := range r.cfg.OwnerUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (r *Router) dispatch(ctx context.Context, up transport.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in update handler", logx.Any("panic", rec))
		}
	}()

	hctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch up.Kind {
	case transport.UpdateMessage:
		if up.Message == nil {
			return
		}
		if !r.allowed(up.Message.FromID) {
			r.log.Debug("update from unauthorized user", logx.Int64("user_id", up.Message.FromID))
			return
		}
		r.handleMessage(hctx, up.Message)
	case transport.UpdateCallback:
		if up.Callback == nil {
			return
		}
		if !r.allowed(up.Callback.FromID) {
			return
		}
		r.handleCallback(hctx, up.Callback)
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *transport.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if strings.HasPrefix(text, "/") {
		cmd, args, _ := strings.Cut(text, " ")
		cmd, _, _ = strings.Cut(cmd, "@") // strip bot mention in groups
		args = strings.TrimSpace(args)
		switch cmd {
		case "/start", "/help":
			r.reply(ctx, msg, helpText())
		case "/today":
			r.sendAgenda(ctx, msg, 1)
		case "/week":
			r.sendAgenda(ctx, msg, 7)
		case "/cancel":
			r.handleCancel(ctx, msg, args)
		case "/export", "/ics":
			r.handleExport(ctx, msg)
		case "/workhours":
			r.handleWorkHours(ctx, msg, args)
		case "/timezone":
			r.handleTimezone(ctx, msg, args)
		case "/settings":
			r.handleSettings(ctx, msg)
		default:
			r.reply(ctx, msg, "Unknown command. Send /help for what I can do.")
		}
		return
	}

	r.handleFreeText(ctx, msg, text)
}

// handleFreeText is the main path: parse, then schedule each extracted task.
func (r *Router) handleFreeText(ctx context.Context, msg *transport.Message, text string) {
	policy := r.policyFor(ctx, msg.FromID)
	now := r.now().In(policy.Location())

	out, err := r.parse.Parse(ctx, text, now)
	if err != nil {
		r.log.Warn("parse failed", logx.Int64("user_id", msg.FromID), logx.Err(err))
		r.reply(ctx, msg, "I couldn't understand that. Could you rephrase?")
		return
	}
	if out.NeedsClarification && len(out.Questions) > 0 {
		r.reply(ctx, msg, "I need a bit more detail:\n• "+strings.Join(out.Questions, "\n• "))
		return
	}
	if out.Action != "schedule" || len(out.Tasks) == 0 {
		r.reply(ctx, msg, "I didn't find a schedulable task in that. Try something like \"gym tomorrow morning for an hour\".")
		return
	}

	// A fresh request supersedes any confirmation still waiting.
	if err := r.pending.DeletePending(ctx, msg.FromID); err != nil {
		r.log.Warn("pending clear failed", logx.Int64("user_id", msg.FromID), logx.Err(err))
	}

	eng := r.newScheduler(r.store.Events(msg.FromID))
	var replies []string
	for _, task := range out.Tasks {
		res := eng.Schedule(ctx, task, policy, false)
		if res.Status == schedule.StatusConflict {
			r.askConfirmation(ctx, msg, task, policy, res)
			continue
		}
		replies = append(replies, renderResult(res, task, policy.Location()))
	}
	if len(replies) > 0 {
		r.reply(ctx, msg, strings.Join(replies, "\n\n"))
	}
}

// askConfirmation stores the proposal and shows the confirm keyboard. Only
// the confirm callback may replay the task with force.
func (r *Router) askConfirmation(ctx context.Context, msg *transport.Message, task schedule.StructuredTask, policy schedule.WorkPolicy, res schedule.Result) {
	p := storage.PendingConfirmation{
		Task:      task,
		Proposal:  *res.Proposed,
		Conflicts: res.Conflicts,
		CreatedAt: r.now(),
	}
	if err := r.pending.PutPending(ctx, msg.FromID, p); err != nil {
		r.log.Warn("pending store failed", logx.Int64("user_id", msg.FromID), logx.Err(err))
		r.reply(ctx, msg, "Something went wrong while saving the proposal. Please try again.")
		return
	}

	markup := tgui.ConfirmInline(
		tgui.Btn("Schedule anyway", tgui.Data(callbackScope, actionConfirm, "")),
		tgui.Btn("Never mind", tgui.Data(callbackScope, actionDismiss, "")),
	).Markup()

	_, err := r.adapter.SendText(ctx, target(msg), renderConflict(res, policy.Location()), &transport.SendOptions{
		ParseMode:          "HTML",
		ReplyMarkupAdapter: markup,
	})
	if err != nil {
		r.log.Warn("send failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
	}
}

func (r *Router) handleCallback(ctx context.Context, cb *transport.Callback) {
	scope, action, _ := tgui.SplitData(strings.TrimSpace(cb.Data))
	if scope != callbackScope {
		return
	}
	ref := transport.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}

	switch action {
	case actionConfirm:
		p, err := r.pending.GetPending(ctx, cb.FromID)
		if errors.Is(err, storage.ErrNoPending) {
			_ = r.adapter.AnswerCallback(ctx, cb.ID, "That proposal has expired.")
			_ = r.adapter.EditText(ctx, ref, "This proposal has expired. Just send the task again.", nil)
			return
		}
		if err != nil {
			r.log.Warn("pending load failed", logx.Int64("user_id", cb.FromID), logx.Err(err))
			_ = r.adapter.AnswerCallback(ctx, cb.ID, "Something went wrong.")
			return
		}

		policy := r.policyFor(ctx, cb.FromID)
		eng := r.newScheduler(r.store.Events(cb.FromID))
		res := eng.Schedule(ctx, p.Task, policy, true)
		if err := r.pending.DeletePending(ctx, cb.FromID); err != nil {
			r.log.Warn("pending clear failed", logx.Int64("user_id", cb.FromID), logx.Err(err))
		}

		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		if err := r.adapter.EditText(ctx, ref, renderResult(res, p.Task, policy.Location()), &transport.SendOptions{ParseMode: "HTML"}); err != nil {
			r.log.Warn("edit failed", logx.Int64("chat_id", cb.ChatID), logx.Err(err))
		}

	case actionDismiss:
		if err := r.pending.DeletePending(ctx, cb.FromID); err != nil {
			r.log.Warn("pending clear failed", logx.Int64("user_id", cb.FromID), logx.Err(err))
		}
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		_ = r.adapter.EditText(ctx, ref, "Okay, I won't schedule it.", nil)
	}
}

func (r *Router) sendAgenda(ctx context.Context, msg *transport.Message, days int) {
	policy := r.policyFor(ctx, msg.FromID)
	loc := policy.Location()
	start := startOfDay(r.now().In(loc))
	end := start.AddDate(0, 0, days)

	events, err := r.store.Events(msg.FromID).ListEvents(ctx, start, end)
	if err != nil {
		r.log.Warn("agenda load failed", logx.Int64("user_id", msg.FromID), logx.Err(err))
		r.reply(ctx, msg, "I couldn't load your calendar. Please try again.")
		return
	}
	r.reply(ctx, msg, renderAgenda(start, days, events, loc))
}

func (r *Router) handleCancel(ctx context.Context, msg *transport.Message, args string) {
	id := strings.TrimSpace(args)
	if id == "" {
		r.reply(ctx, msg, "Usage: /cancel <event id>\nEvent ids are shown by /today and /week.")
		return
	}
	eng := r.newScheduler(r.store.Events(msg.FromID))
	ok, err := eng.Cancel(ctx, id)
	if err != nil {
		r.log.Warn("cancel failed", logx.Int64("user_id", msg.FromID), logx.Err(err))
		r.reply(ctx, msg, "I couldn't cancel that event. Please try again.")
		return
	}
	if !ok {
		r.reply(ctx, msg, "I couldn't find an event with that id.")
		return
	}
	r.reply(ctx, msg, "🗑 Event cancelled.")
}

func (r *Router) handleExport(ctx context.Context, msg *transport.Message) {
	policy := r.policyFor(ctx, msg.FromID)
	loc := policy.Location()
	start := startOfDay(r.now().In(loc))

	events, err := r.store.Events(msg.FromID).ListEvents(ctx, start, start.AddDate(0, 0, exportDays))
	if err != nil {
		r.log.Warn("export load failed", logx.Int64("user_id", msg.FromID), logx.Err(err))
		r.reply(ctx, msg, "I couldn't load your calendar. Please try again.")
		return
	}
	if len(events) == 0 {
		r.reply(ctx, msg, "Nothing scheduled in the next 30 days, so there's nothing to export.")
		return
	}

	ics := calendar.ExportICS("calbot", events, r.now())
	if ds, ok := r.adapter.(transport.DocumentSender); ok {
		if err := ds.SendDocument(ctx, target(msg), "calbot.ics", []byte(ics), fmt.Sprintf("%d events, next %d days", len(events), exportDays)); err != nil {
			r.log.Warn("export send failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
			r.reply(ctx, msg, "Sending the export failed. Please try again.")
		}
		return
	}
	r.reply(ctx, msg, ics)
}

func (r *Router) handleWorkHours(ctx context.Context, msg *transport.Message, args string) {
	from, to, ok := strings.Cut(strings.TrimSpace(args), "-")
	if !ok {
		r.reply(ctx, msg, "Usage: /workhours 09:00-17:00")
		return
	}
	start, err := schedule.ParseClockHHMM(from)
	if err != nil {
		r.reply(ctx, msg, "I couldn't read that start time. Use HH:MM, e.g. /workhours 09:00-17:00")
		return
	}
	end, err := schedule.ParseClockHHMM(to)
	if err != nil {
		r.reply(ctx, msg, "I couldn't read that end time. Use HH:MM, e.g. /workhours 09:00-17:00")
		return
	}

	policy := r.policyFor(ctx, msg.FromID)
	policy.WorkStart, policy.WorkEnd = start, end
	// A break outside the new window would make the policy invalid; drop it.
	if policy.BreakStart != nil &&
		(policy.BreakStart.Minutes() < start.Minutes() || policy.BreakEnd.Minutes() > end.Minutes()) {
		policy.BreakStart, policy.BreakEnd = nil, nil
	}
	if err := r.store.SavePolicy(ctx, msg.FromID, policy); err != nil {
		r.log.Warn("policy save failed", logx.Int64("user_id", msg.FromID), logx.Err(err))
		r.reply(ctx, msg, "Saving your work hours failed: "+err.Error())
		return
	}
	r.reply(ctx, msg, fmt.Sprintf("Got it. I'll schedule between %s and %s.", start, end))
}

func (r *Router) handleTimezone(ctx context.Context, msg *transport.Message, args string) {
	tz := strings.TrimSpace(args)
	if tz == "" {
		r.reply(ctx, msg, "Usage: /timezone Europe/Berlin")
		return
	}
	if _, err := time.LoadLocation(tz); err != nil {
		r.reply(ctx, msg, fmt.Sprintf("I don't know the timezone %q. Use an IANA name like Europe/Berlin.", tz))
		return
	}

	policy := r.policyFor(ctx, msg.FromID)
	policy.Timezone = tz
	if err := r.store.SavePolicy(ctx, msg.FromID, policy); err != nil {
		r.log.Warn("policy save failed", logx.Int64("user_id", msg.FromID), logx.Err(err))
		r.reply(ctx, msg, "Saving your timezone failed. Please try again.")
		return
	}
	r.reply(ctx, msg, "Timezone set to "+tz+".")
}

func (r *Router) handleSettings(ctx context.Context, msg *transport.Message) {
	policy := r.policyFor(ctx, msg.FromID)
	var b strings.Builder
	fmt.Fprintf(&b, "Work hours: %s-%s\n", policy.WorkStart, policy.WorkEnd)
	if policy.BreakStart != nil {
		fmt.Fprintf(&b, "Break: %s-%s\n", policy.BreakStart, policy.BreakEnd)
	} else {
		b.WriteString("Break: none\n")
	}
	tz := policy.Timezone
	if tz == "" {
		tz = "UTC"
	}
	fmt.Fprintf(&b, "Timezone: %s", tz)
	r.reply(ctx, msg, b.String())
}

// policyFor resolves the effective work policy: the user's saved one, else
// the configured default.
func (r *Router) policyFor(ctx context.Context, userID int64) schedule.WorkPolicy {
	p, ok, err := r.store.Policy(ctx, userID)
	if err != nil {
		r.log.Warn("policy load failed", logx.Int64("user_id", userID), logx.Err(err))
	}
	if err == nil && ok {
		return p
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.defaultPolicy
}

func (r *Router) reply(ctx context.Context, msg *transport.Message, text string) {
	if _, err := r.adapter.SendText(ctx, target(msg), text, &transport.SendOptions{ParseMode: "HTML"}); err != nil {
		r.log.Warn("send failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
	}
}

func target(msg *transport.Message) transport.ChatTarget {
	return transport.ChatTarget{ChatID: msg.ChatID}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
