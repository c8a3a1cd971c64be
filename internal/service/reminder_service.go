package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"substance-journal/internal/model"
	"substance-journal/internal/repository"
)

// Notifier delivers a reminder text to the user. Texts use Telegram's HTML subset.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// ReminderInput represents data required to create or edit a reminder.
type ReminderInput struct {
	Title         string
	Time          string
	RepeatPolicy  model.RepeatPolicy
	Weekday       time.Weekday
	Date          *time.Time
	IsEnabled     bool
	SubstanceName string
	Dose          *float64
	Units         string
	Route         model.AdministrationRoute
}

// ReminderService stores reminders, keeps their cron entries in sync and
// builds the notification texts.
type ReminderService struct {
	store     *repository.Store
	scheduler *SchedulerService
	notifier  Notifier
	log       *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	entries map[uint]cron.EntryID
}

// NewReminderService accepts a nil scheduler and notifier when reminders are
// only edited, never delivered.
func NewReminderService(store *repository.Store, scheduler *SchedulerService, notifier Notifier, log *zap.Logger) *ReminderService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReminderService{
		store:     store,
		scheduler: scheduler,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
		entries:   make(map[uint]cron.EntryID),
	}
}

func (s *ReminderService) Create(ctx context.Context, input ReminderInput) (*model.IngestionReminder, error) {
	reminder := model.IngestionReminder{CreationDate: s.now()}
	if err := applyReminderInput(&reminder, input); err != nil {
		return nil, err
	}
	if err := s.store.Reminders.Create(ctx, &reminder); err != nil {
		return nil, err
	}
	return &reminder, nil
}

func (s *ReminderService) Update(ctx context.Context, id uint, input ReminderInput) (*model.IngestionReminder, error) {
	reminder, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyReminderInput(reminder, input); err != nil {
		return nil, err
	}
	if err := s.store.Reminders.Update(ctx, reminder); err != nil {
		return nil, err
	}
	return reminder, nil
}

func (s *ReminderService) Get(ctx context.Context, id uint) (*model.IngestionReminder, error) {
	reminder, err := s.store.Reminders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if reminder == nil {
		return nil, fmt.Errorf("reminder %d: %w", id, ErrNotFound)
	}
	return reminder, nil
}

func (s *ReminderService) List(ctx context.Context) ([]model.IngestionReminder, error) {
	return s.store.Reminders.List(ctx)
}

func (s *ReminderService) Delete(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.store.Reminders.Delete(ctx, id)
}

func applyReminderInput(r *model.IngestionReminder, input ReminderInput) error {
	if _, _, err := parseClock(input.Time); err != nil {
		return invalid("%v", err)
	}
	policy := input.RepeatPolicy
	if policy == "" {
		policy = model.RepeatDaily
	}
	if !policy.Valid() {
		return invalid("unknown repeat policy %q", input.RepeatPolicy)
	}
	if policy == model.RepeatOnce && input.Date == nil {
		return invalid("a one-time reminder needs a date")
	}
	if input.Weekday < time.Sunday || input.Weekday > time.Saturday {
		return invalid("weekday out of range")
	}
	if input.Dose != nil && strings.TrimSpace(input.SubstanceName) == "" {
		return invalid("a dose reminder needs a substance")
	}
	if input.Route != "" && !input.Route.Valid() {
		return invalid("unknown administration route %q", input.Route)
	}

	r.Title = strings.TrimSpace(input.Title)
	r.Time = strings.TrimSpace(input.Time)
	r.RepeatPolicy = policy
	r.Weekday = input.Weekday
	r.Date = input.Date
	r.IsEnabled = input.IsEnabled
	r.SubstanceName = strings.TrimSpace(input.SubstanceName)
	r.Dose = input.Dose
	r.Units = input.Units
	r.AdministrationRoute = input.Route
	if r.Title == "" {
		r.Title = "Reminder"
		if r.SubstanceName != "" {
			r.Title = r.SubstanceName
		}
	}
	return nil
}

// CronSpec returns the six field cron spec for a reminder. ok is false for a
// one-time reminder whose moment already passed, or that an earlier year's
// month and day would match first. Run resyncs daily so those are scheduled
// once their year comes.
func CronSpec(r model.IngestionReminder, now time.Time) (spec string, ok bool, err error) {
	hour, minute, err := parseClock(r.Time)
	if err != nil {
		return "", false, err
	}
	switch r.RepeatPolicy {
	case model.RepeatDaily:
		return fmt.Sprintf("0 %d %d * * *", minute, hour), true, nil
	case model.RepeatWeekly:
		return fmt.Sprintf("0 %d %d * * %d", minute, hour, int(r.Weekday)), true, nil
	case model.RepeatOnce:
		if r.Date == nil {
			return "", false, fmt.Errorf("one-time reminder %d has no date", r.ID)
		}
		d := r.Date.In(now.Location())
		at := time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, now.Location())
		if !at.After(now) || !at.Equal(nextMatch(at, now)) {
			return "", false, nil
		}
		return fmt.Sprintf("0 %d %d %d %d *", minute, hour, at.Day(), int(at.Month())), true, nil
	default:
		return "", false, fmt.Errorf("unknown repeat policy %q", r.RepeatPolicy)
	}
}

// nextMatch returns the first moment after now that shares at's month, day
// and clock, the moment a dated cron spec would fire.
func nextMatch(at, now time.Time) time.Time {
	for y := now.Year(); y <= at.Year(); y++ {
		c := time.Date(y, at.Month(), at.Day(), at.Hour(), at.Minute(), 0, 0, at.Location())
		if c.Month() == at.Month() && c.After(now) {
			return c
		}
	}
	return at
}

// Sync replaces every scheduled entry with the enabled reminders.
func (s *ReminderService) Sync(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("reminder scheduler is not configured")
	}
	reminders, err := s.store.Reminders.ListEnabled(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.entries {
		s.scheduler.Remove(entry)
		delete(s.entries, id)
	}

	now := s.now().In(s.scheduler.Location())
	for _, r := range reminders {
		spec, ok, err := CronSpec(r, now)
		if err != nil {
			s.log.Warn("skip reminder", zap.Uint("reminder_id", r.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		id := r.ID
		entry, err := s.scheduler.ScheduleSpec(spec, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.Fire(jobCtx, id); err != nil {
				s.log.Error("fire reminder", zap.Uint("reminder_id", id), zap.Error(err))
			}
		})
		if err != nil {
			s.log.Warn("schedule reminder", zap.Uint("reminder_id", r.ID), zap.String("spec", spec), zap.Error(err))
			continue
		}
		s.entries[id] = entry
	}
	s.log.Info("reminders scheduled", zap.Int("count", len(s.entries)))
	return nil
}

// Scheduled returns the ids of reminders with a live cron entry.
func (s *ReminderService) Scheduled() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Run keeps the schedule in sync with the reminder table until ctx is done.
func (s *ReminderService) Run(ctx context.Context) error {
	changes := s.store.Tracker().Subscribe(ctx, repository.TableIngestionReminders)
	if err := s.Sync(ctx); err != nil {
		return err
	}
	daily, err := s.scheduler.ScheduleDaily("00:00", func() {
		if err := s.Sync(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("daily reminder resync", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	defer s.scheduler.Remove(daily)
	for range changes {
		if err := s.Sync(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("resync reminders", zap.Error(err))
		}
	}
	return ctx.Err()
}

// Fire delivers a reminder and records it. One-time reminders are disabled.
func (s *ReminderService) Fire(ctx context.Context, id uint) error {
	reminder, err := s.store.Reminders.Get(ctx, id)
	if err != nil {
		return err
	}
	if reminder == nil || !reminder.IsEnabled {
		return nil
	}
	if s.notifier == nil {
		return fmt.Errorf("no notifier configured")
	}
	if err := s.notifier.Notify(ctx, Message(*reminder)); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return s.store.Reminders.MarkFired(ctx, id, s.now(), reminder.RepeatPolicy == model.RepeatOnce)
}

// Message builds the notification text of a reminder.
func Message(r model.IngestionReminder) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⏰ <b>%s</b>", html.EscapeString(r.Title)))
	if r.HasDose() {
		sb.WriteString(fmt.Sprintf("\n💊 %s %s %s", html.EscapeString(r.SubstanceName),
			formatAmount(*r.Dose), html.EscapeString(r.Units)))
		if r.AdministrationRoute != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", strings.ToLower(string(r.AdministrationRoute))))
		}
	} else if r.SubstanceName != "" {
		sb.WriteString(fmt.Sprintf("\n💊 %s", html.EscapeString(r.SubstanceName)))
	}
	return sb.String()
}

// DailyDigest summarises the last day of ingestions and the reminders still
// due today.
func (s *ReminderService) DailyDigest(ctx context.Context, now time.Time) (string, error) {
	ings, err := s.store.Ingestions.ListBetween(ctx, now.Add(-24*time.Hour), now.Add(time.Second))
	if err != nil {
		return "", err
	}
	reminders, err := s.store.Reminders.ListEnabled(ctx)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily summary</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("2006-01-02")))

	builder.WriteString("💊 <b>Last 24 hours</b>\n")
	if len(ings) == 0 {
		builder.WriteString("— nothing logged\n")
	} else {
		for _, ing := range ings {
			builder.WriteString(formatIngestion(ing, now))
		}
	}

	builder.WriteString("\n⏰ <b>Still due today</b>\n")
	due := dueToday(reminders, now)
	if len(due) == 0 {
		builder.WriteString("— no reminders\n")
	} else {
		for _, r := range due {
			builder.WriteString(fmt.Sprintf("%s %s\n", r.Time, html.EscapeString(r.Title)))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

func dueToday(reminders []model.IngestionReminder, now time.Time) []model.IngestionReminder {
	var due []model.IngestionReminder
	for _, r := range reminders {
		hour, minute, err := parseClock(r.Time)
		if err != nil {
			continue
		}
		at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !at.After(now) {
			continue
		}
		switch r.RepeatPolicy {
		case model.RepeatDaily:
		case model.RepeatWeekly:
			if r.Weekday != now.Weekday() {
				continue
			}
		case model.RepeatOnce:
			if r.Date == nil {
				continue
			}
			y, m, d := r.Date.In(now.Location()).Date()
			if y != now.Year() || m != now.Month() || d != now.Day() {
				continue
			}
		default:
			continue
		}
		due = append(due, r)
	}
	return due
}

func formatIngestion(ing model.Ingestion, now time.Time) string {
	dose := "unknown dose"
	if ing.Dose != nil {
		dose = formatAmount(*ing.Dose) + " " + ing.Units
		if ing.IsDoseAnEstimate {
			dose = "~" + dose
		}
	}
	return fmt.Sprintf("%s %s %s (%s)\n",
		ing.Time.In(now.Location()).Format("15:04"),
		html.EscapeString(ing.SubstanceName),
		html.EscapeString(dose),
		strings.ToLower(string(ing.AdministrationRoute)))
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
