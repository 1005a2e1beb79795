// Package reminder pushes each user's daily agenda on a cron schedule.
package reminder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"calbot/internal/calendar"
	"calbot/internal/schedule"
	"calbot/internal/storage"
	"calbot/internal/transport"
	logx "calbot/pkg/logx"
)

type Config struct {
	Enabled    bool
	Cron       string
	RatePerSec int
}

// Sender is the slice of the transport adapter the service needs.
type Sender interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error)
}

type Service struct {
	mu  sync.Mutex
	cfg Config

	store  storage.Store
	sender Sender
	log    logx.Logger

	parser cron.Parser
	c      *cron.Cron

	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(cfg Config, store storage.Store, sender Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		store:  store,
		sender: sender,
		log:    log,
		// SecondOptional accepts both 5-field and 6-field specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.c != nil {
		return nil
	}
	if !s.cfg.Enabled {
		s.log.Debug("reminder disabled")
		return nil
	}

	s.runCtx, s.runCancel = context.WithCancel(ctx)
	c := cron.New(cron.WithParser(s.parser))
	if _, err := c.AddFunc(s.cfg.Cron, s.deliverAll); err != nil {
		s.runCancel()
		s.runCtx, s.runCancel = nil, nil
		return fmt.Errorf("reminder cron %q: %w", s.cfg.Cron, err)
	}
	c.Start()
	s.c = c
	s.log.Info("service started", logx.String("cron", s.cfg.Cron))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.runCtx, s.runCancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	if cancel != nil {
		cancel()
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("service stopped")
}

// Apply installs a new config. A changed cron spec or enabled flag restarts
// the cron runner under the original Start context.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	changed := s.cfg != cfg
	running := s.c != nil
	runCtx := s.runCtx
	s.cfg = cfg
	s.mu.Unlock()

	if !changed || !running {
		return nil
	}
	if runCtx == nil {
		return nil
	}
	s.Stop(context.Background())
	return s.Start(runCtx)
}

// deliverAll sends the day's agenda to every user with events today.
func (s *Service) deliverAll() {
	s.mu.Lock()
	ctx := s.runCtx
	perSec := s.cfg.RatePerSec
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	if perSec <= 0 {
		perSec = 3
	}
	limiter := rate.NewLimiter(rate.Limit(perSec), 1)

	cctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	users, err := s.store.Users(cctx)
	if err != nil {
		s.log.Warn("agenda user scan failed", logx.Err(err))
		return
	}

	sent := 0
	for _, userID := range users {
		policy, ok, err := s.store.Policy(cctx, userID)
		if err != nil {
			s.log.Warn("agenda policy load failed", logx.Int64("user_id", userID), logx.Err(err))
			continue
		}
		if !ok {
			policy = schedule.DefaultPolicy("")
		}
		loc := policy.Location()
		day := startOfDay(time.Now().In(loc))

		events, err := s.store.Events(userID).ListEvents(cctx, day, day.AddDate(0, 0, 1))
		if err != nil {
			s.log.Warn("agenda event load failed", logx.Int64("user_id", userID), logx.Err(err))
			continue
		}
		if len(events) == 0 {
			continue
		}

		if err := limiter.Wait(cctx); err != nil {
			return
		}
		text := RenderAgenda(day, events, loc)
		if _, err := s.sender.SendText(cctx, transport.ChatTarget{ChatID: userID}, text, nil); err != nil {
			s.log.Warn("agenda send failed", logx.Int64("user_id", userID), logx.Err(err))
			continue
		}
		sent++
	}
	s.log.Info("agenda delivered", logx.Int("users", sent))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// RenderAgenda formats one day's events as a push message.
func RenderAgenda(day time.Time, events []calendar.Event, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 Your agenda for %s:\n", day.Format("Monday, January 2"))
	for _, ev := range events {
		fmt.Fprintf(&b, "• %s–%s  %s\n",
			ev.Start.In(loc).Format("15:04"), ev.End.In(loc).Format("15:04"), ev.Title)
	}
	return strings.TrimRight(b.String(), "\n")
}
