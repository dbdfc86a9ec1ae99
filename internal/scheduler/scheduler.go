package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teemow/meetsched/internal/attendee"
	"github.com/teemow/meetsched/internal/availability"
	"github.com/teemow/meetsched/internal/calendar"
	"github.com/teemow/meetsched/internal/clock"
	"github.com/teemow/meetsched/internal/logging"
	"github.com/teemow/meetsched/internal/mirror"
	"github.com/teemow/meetsched/internal/retry"
)

const (
	// DefaultMaxResults is the number of spans FindSlots returns by default.
	DefaultMaxResults = 5

	mirrorTimeout = 30 * time.Second
)

// Options configures a Scheduler. Accounts and Services are required.
type Options struct {
	Accounts AccountResolver
	Services Services

	// Mirror receives copies of booked meetings; nil disables mirroring.
	Mirror mirror.Calendar

	Retry retry.Policy

	// WorkingHours, when set, marks time outside them as busy.
	WorkingHours *availability.WorkingHours

	// Location resolves named windows and event time zones; nil means time.Local.
	Location *time.Location

	MaxResults int
	Clock      clock.Clock
	Logger     *slog.Logger
	Metrics    MirrorRecorder
}

// Scheduler runs the meeting operations.
type Scheduler struct {
	accounts     AccountResolver
	services     Services
	mirror       mirror.Calendar
	retry        retry.Policy
	workingHours *availability.WorkingHours
	location     *time.Location
	maxResults   int
	clock        clock.Clock
	logger       *slog.Logger
	metrics      MirrorRecorder
}

// New returns a Scheduler.
func New(opts Options) (*Scheduler, error) {
	if opts.Accounts == nil || opts.Services == nil {
		return nil, errors.New("scheduler requires an account resolver and services")
	}
	if opts.WorkingHours != nil {
		if err := opts.WorkingHours.Validate(); err != nil {
			return nil, err
		}
	}

	s := &Scheduler{
		accounts:     opts.Accounts,
		services:     opts.Services,
		mirror:       opts.Mirror,
		retry:        opts.Retry,
		workingHours: opts.WorkingHours,
		location:     opts.Location,
		maxResults:   opts.MaxResults,
		clock:        clock.OrReal(opts.Clock),
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}
	if s.mirror == nil {
		s.mirror = mirror.Disabled{}
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.maxResults <= 0 {
		s.maxResults = DefaultMaxResults
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.retry.Logger == nil {
		s.retry.Logger = s.logger
	}
	return s, nil
}

// ResolveAttendees resolves names and addresses with the contacts of the
// selected account.
func (s *Scheduler) ResolveAttendees(ctx context.Context, hint string, inputs []string) (*AttendeeResult, error) {
	account, res, err := s.resolve(ctx, hint, inputs)
	if err != nil {
		return nil, err
	}
	return &AttendeeResult{Account: account, Attendees: res.Attendees, Duplicates: res.Duplicates}, nil
}

// FindSlots returns up to MaxResults free spans of the requested length,
// earliest first.
func (s *Scheduler) FindSlots(ctx context.Context, req FindSlotsRequest) (*SlotsResult, error) {
	if err := validateDuration(req.DurationMinutes); err != nil {
		return nil, err
	}

	account, res, err := s.resolve(ctx, req.Account, req.Attendees)
	if err != nil {
		return nil, err
	}
	logger := logging.WithAccount(logging.WithOperation(s.logger, "scheduler.find_slots"), account)

	p, err := s.plan(ctx, account, res.Emails(), req)
	if err != nil {
		return nil, err
	}

	limit := req.MaxResults
	if limit <= 0 {
		limit = s.maxResults
	}
	spans := p.spans
	if len(spans) > limit {
		spans = spans[:limit]
	}

	logger.Info("found free slots",
		slog.Int("slots", len(spans)),
		slog.Int("attendees", len(res.Attendees)),
		slog.Int("unavailable", len(p.unavailable)))

	return &SlotsResult{
		Account:     account,
		Window:      p.window,
		Attendees:   res.Attendees,
		Duplicates:  res.Duplicates,
		Slots:       spans,
		Unavailable: p.unavailable,
	}, nil
}

// Book finds the first free span and creates the meeting in it, then
// mirrors it into the local calendar.
func (s *Scheduler) Book(ctx context.Context, req BookRequest) (*BookingResult, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("%w: meeting title is required", availability.ErrInvalidInput)
	}
	if err := validateDuration(req.DurationMinutes); err != nil {
		return nil, err
	}

	account, res, err := s.resolve(ctx, req.Account, req.Attendees)
	if err != nil {
		return nil, err
	}
	logger := logging.WithAccount(logging.WithOperation(s.logger, "scheduler.book"), account)

	p, err := s.plan(ctx, account, res.Emails(), req.FindSlotsRequest)
	if err != nil {
		return nil, err
	}
	if len(p.spans) == 0 {
		return nil, fmt.Errorf("%w: no %d-minute span is free for all attendees in %s",
			ErrNoAvailableSlot, req.DurationMinutes, p.window)
	}
	span := p.spans[0]

	input := calendar.EventInput{
		Summary:       req.Title,
		Description:   req.Description,
		Location:      req.Location,
		Start:         span.Start,
		End:           span.End,
		TimeZone:      s.timeZone(),
		Attendees:     res.Emails(),
		AddConference: req.AddConference,
	}
	event, err := retry.Do(ctx, s.retry, "calendar.create_event", func(ctx context.Context) (*calendar.Event, error) {
		return p.cal.CreateEvent(ctx, calendar.PrimaryCalendarID, input)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("booked meeting", slog.String("event_id", event.ID), slog.Time("start", span.Start))

	outcome := s.syncMirror(ctx, "create", "created", func(ctx context.Context) error {
		return s.mirror.Create(ctx, mirrorEvent(event, res.Emails()))
	})

	return &BookingResult{
		Account:     account,
		Event:       event,
		Attendees:   res.Attendees,
		Duplicates:  res.Duplicates,
		Unavailable: p.unavailable,
		Mirror:      outcome,
	}, nil
}

// Update patches an existing meeting and mirrors the change. The mirrored
// copy is located by the meeting's title and start before the change.
func (s *Scheduler) Update(ctx context.Context, req UpdateRequest) (*BookingResult, error) {
	if req.EventID == "" {
		return nil, fmt.Errorf("%w: event id is required", availability.ErrInvalidInput)
	}
	if req.DurationMinutes != 0 {
		if err := validateDuration(req.DurationMinutes); err != nil {
			return nil, err
		}
	}

	var (
		account string
		res     = &attendee.Resolution{}
		err     error
	)
	if req.Attendees != nil {
		account, res, err = s.resolve(ctx, req.Account, req.Attendees)
	} else {
		account, err = s.account(ctx, req.Account, nil)
	}
	if err != nil {
		return nil, err
	}
	logger := logging.WithAccount(logging.WithOperation(s.logger, "scheduler.update"), account)

	cal, err := s.services.Calendar(ctx, account)
	if err != nil {
		return nil, err
	}
	previous, err := retry.Do(ctx, s.retry, "calendar.get_event", func(ctx context.Context) (*calendar.Event, error) {
		return cal.GetEvent(ctx, calendar.PrimaryCalendarID, req.EventID)
	})
	if err != nil {
		return nil, err
	}

	patch := calendar.EventPatch{
		Summary:     req.Title,
		Description: req.Description,
		Location:    req.Location,
		TimeZone:    s.timeZone(),
	}
	if req.Attendees != nil {
		patch.Attendees = res.Emails()
	}
	if req.Start != nil || req.DurationMinutes > 0 {
		start := previous.Start
		if req.Start != nil {
			start = *req.Start
		}
		length := previous.End.Sub(previous.Start)
		if req.DurationMinutes > 0 {
			length = time.Duration(req.DurationMinutes) * time.Minute
		}
		end := start.Add(length)
		if !start.Before(end) {
			return nil, fmt.Errorf("%w: event %s has no usable duration; pass one explicitly", availability.ErrInvalidInput, req.EventID)
		}
		patch.Start, patch.End = &start, &end
	}
	if patch.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", availability.ErrInvalidInput)
	}

	updated, err := retry.Do(ctx, s.retry, "calendar.patch_event", func(ctx context.Context) (*calendar.Event, error) {
		return cal.PatchEvent(ctx, calendar.PrimaryCalendarID, req.EventID, patch)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("updated meeting", slog.String("event_id", updated.ID))

	loc := mirror.Locator{Title: previous.Summary, Start: previous.Start}
	outcome := s.syncMirror(ctx, "update", "updated", func(ctx context.Context) error {
		return s.mirror.Update(ctx, loc, mirrorEvent(updated, attendeeEmails(updated)))
	})

	return &BookingResult{
		Account:    account,
		Event:      updated,
		Attendees:  res.Attendees,
		Duplicates: res.Duplicates,
		Mirror:     outcome,
	}, nil
}

// Delete cancels a meeting and removes its mirrored copy.
func (s *Scheduler) Delete(ctx context.Context, req DeleteRequest) (*DeletionResult, error) {
	if req.EventID == "" {
		return nil, fmt.Errorf("%w: event id is required", availability.ErrInvalidInput)
	}

	account, err := s.account(ctx, req.Account, nil)
	if err != nil {
		return nil, err
	}
	logger := logging.WithAccount(logging.WithOperation(s.logger, "scheduler.delete"), account)

	cal, err := s.services.Calendar(ctx, account)
	if err != nil {
		return nil, err
	}
	event, err := retry.Do(ctx, s.retry, "calendar.get_event", func(ctx context.Context) (*calendar.Event, error) {
		return cal.GetEvent(ctx, calendar.PrimaryCalendarID, req.EventID)
	})
	if err != nil {
		return nil, err
	}

	err = retry.DoErr(ctx, s.retry, "calendar.delete_event", func(ctx context.Context) error {
		return cal.DeleteEvent(ctx, calendar.PrimaryCalendarID, req.EventID)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("deleted meeting", slog.String("event_id", req.EventID))

	loc := mirror.Locator{Title: event.Summary, Start: event.Start}
	outcome := s.syncMirror(ctx, "delete", "deleted", func(ctx context.Context) error {
		return s.mirror.Delete(ctx, loc)
	})

	return &DeletionResult{
		Account: account,
		EventID: req.EventID,
		Title:   event.Summary,
		Start:   event.Start,
		Mirror:  outcome,
	}, nil
}

// List returns the meetings of the account inside the window. Unlike
// FindSlots the window is not clamped to working hours.
func (s *Scheduler) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	window, err := req.Window.Resolve(s.clock.Now(), s.location)
	if err != nil {
		return nil, err
	}

	account, err := s.account(ctx, req.Account, nil)
	if err != nil {
		return nil, err
	}

	cal, err := s.services.Calendar(ctx, account)
	if err != nil {
		return nil, err
	}
	events, err := retry.Do(ctx, s.retry, "calendar.list_events", func(ctx context.Context) ([]calendar.Event, error) {
		return cal.ListEvents(ctx, calendar.PrimaryCalendarID, window, strings.TrimSpace(req.Query))
	})
	if err != nil {
		return nil, err
	}

	return &ListResult{Account: account, Window: window, Events: events}, nil
}

// account resolves hint against the configured accounts.
func (s *Scheduler) account(ctx context.Context, hint string, attendeeEmails []string) (string, error) {
	account, err := s.accounts.ResolveAccount(ctx, hint, attendeeEmails)
	if err != nil {
		return "", err
	}
	if account == "" {
		return "", ErrNoAccount
	}
	return account, nil
}

// resolve selects an account and resolves inputs with its contacts. Inputs
// that are already addresses steer the account choice; the final choice
// also sees the resolved addresses.
func (s *Scheduler) resolve(ctx context.Context, hint string, inputs []string) (string, *attendee.Resolution, error) {
	var known []string
	for _, in := range inputs {
		in = strings.TrimSpace(in)
		if !attendee.LooksLikeEmail(in) {
			continue
		}
		if email, err := attendee.NormalizeEmail(in); err == nil {
			known = append(known, email)
		}
	}

	contactsAccount, err := s.account(ctx, hint, known)
	if err != nil {
		return "", nil, err
	}

	resolver := attendee.NewResolver(s.lazyContacts(contactsAccount), s.logger)
	res, err := resolver.ResolveMany(ctx, inputs)
	if err != nil {
		return "", nil, err
	}

	account, err := s.account(ctx, hint, res.Emails())
	if err != nil {
		return "", nil, err
	}
	return account, res, nil
}

// lazyContacts builds the account's contacts client on the first name
// lookup, so address-only inputs never touch the People API.
func (s *Scheduler) lazyContacts(account string) attendee.ContactSearcher {
	var (
		once     sync.Once
		searcher attendee.ContactSearcher
		initErr  error
	)
	return attendee.ContactSearcherFunc(func(ctx context.Context, query string, limit int) ([]attendee.Contact, error) {
		once.Do(func() {
			searcher, initErr = s.services.Contacts(ctx, account)
		})
		if initErr != nil {
			return nil, initErr
		}
		return retry.Do(ctx, s.retry, "contacts.search", func(ctx context.Context) ([]attendee.Contact, error) {
			return searcher.SearchContacts(ctx, query, limit)
		})
	})
}

type slotPlan struct {
	cal         CalendarService
	window      availability.TimeWindow
	spans       []availability.TimeWindow
	unavailable []string
}

// plan queries free/busy for the organizer and attendees and returns every
// bookable span inside the window.
func (s *Scheduler) plan(ctx context.Context, account string, attendees []string, req FindSlotsRequest) (*slotPlan, error) {
	now := s.clock.Now()
	window, err := req.Window.Resolve(now, s.location)
	if err != nil {
		return nil, err
	}

	step := availability.GridStep(req.DurationMinutes)
	if earliest := availability.AlignUp(now, time.Duration(step)*time.Minute); window.Start.Before(earliest) {
		window.Start = earliest
	}
	if !window.Start.Before(window.End) {
		return nil, fmt.Errorf("%w: window %s is already over", availability.ErrInvalidInput, window)
	}

	cal, err := s.services.Calendar(ctx, account)
	if err != nil {
		return nil, err
	}

	ids := calendarIDs(account, attendees)
	fb, err := retry.Do(ctx, s.retry, "calendar.freebusy", func(ctx context.Context) (*calendar.FreeBusy, error) {
		return cal.QueryFreeBusy(ctx, window, ids)
	})
	if err != nil {
		return nil, err
	}

	busy := make(availability.BusyMap, len(fb.Busy)+1)
	for id, intervals := range fb.Busy {
		busy.Add(id, intervals...)
	}
	if s.workingHours != nil && !req.IgnoreWorkingHours {
		wh := *s.workingHours
		if wh.Location == nil {
			wh.Location = s.location
		}
		wh.Apply(busy, window)
	}

	slots, err := availability.ComputeFreeSlots(window, busy, step)
	if err != nil {
		return nil, err
	}

	var spans []availability.TimeWindow
	for _, span := range availability.CandidateSpans(slots, req.DurationMinutes, 0) {
		// The slot grid may run past the window end; such spans are not bookable.
		if span.End.After(window.End) {
			continue
		}
		spans = append(spans, span)
	}

	return &slotPlan{cal: cal, window: window, spans: spans, unavailable: fb.Unavailable()}, nil
}

func (s *Scheduler) syncMirror(ctx context.Context, operation, action string, fn func(context.Context) error) mirror.Outcome {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()

	backend := s.mirror.Name()
	outcome := mirror.NewOutcome(backend, action, fn(ctx))

	result := "success"
	switch {
	case !outcome.Attempted:
		result = "skipped"
	case !outcome.OK:
		result = "failure"
		s.logger.Warn("local calendar mirror failed",
			logging.Operation("mirror."+operation),
			slog.String(logging.KeyBackend, backend),
			slog.String(logging.KeyError, outcome.Message))
	}
	if s.metrics != nil {
		s.metrics.RecordMirrorSync(ctx, backend, operation, result)
	}
	return outcome
}

// timeZone returns the IANA name sent with events, or "" for the host zone.
func (s *Scheduler) timeZone() string {
	if s.location == time.Local {
		return ""
	}
	return s.location.String()
}

func validateDuration(minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("%w: duration must be a positive number of minutes, got %d", availability.ErrInvalidInput, minutes)
	}
	if minutes > availability.MaxDurationMinutes {
		return fmt.Errorf("%w: duration must be at most %d minutes, got %d",
			availability.ErrInvalidInput, availability.MaxDurationMinutes, minutes)
	}
	return nil
}

// calendarIDs returns the organizer followed by the attendees, without
// repeating the organizer.
func calendarIDs(account string, attendees []string) []string {
	ids := []string{account}
	for _, a := range attendees {
		if a != account {
			ids = append(ids, a)
		}
	}
	return ids
}

func mirrorEvent(event *calendar.Event, attendees []string) mirror.Event {
	return mirror.Event{
		Title:       event.Summary,
		Start:       event.Start,
		End:         event.End,
		Location:    event.Location,
		Description: event.Description,
		URL:         event.ConferenceURL,
		Attendees:   attendees,
	}
}

func attendeeEmails(event *calendar.Event) []string {
	emails := make([]string, 0, len(event.Attendees))
	for _, a := range event.Attendees {
		emails = append(emails, a.Email)
	}
	return emails
}
