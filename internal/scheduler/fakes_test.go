package scheduler

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/teemow/meetsched/internal/attendee"
	"github.com/teemow/meetsched/internal/availability"
	"github.com/teemow/meetsched/internal/calendar"
	"github.com/teemow/meetsched/internal/mirror"
)

var errUnavailable = &googleapi.Error{Code: 503, Message: "backend unavailable"}

// fakeAccounts picks the first account whose domain matches an attendee,
// else the default.
type fakeAccounts struct {
	accounts []string
	def      string
}

func (f *fakeAccounts) ResolveAccount(_ context.Context, hint string, emails []string) (string, error) {
	for _, a := range f.accounts {
		if strings.EqualFold(a, hint) {
			return a, nil
		}
	}
	for _, a := range f.accounts {
		for _, e := range emails {
			if attendee.Domain(a) == attendee.Domain(e) {
				return a, nil
			}
		}
	}
	return f.def, nil
}

type fakeCalendar struct {
	busy         availability.BusyMap
	errors       map[string][]string
	freeBusyErrs []error

	events map[string]*calendar.Event
	getErr error

	queriedWindow availability.TimeWindow
	queriedIDs    []string
	created       []calendar.EventInput
	patches       []calendar.EventPatch
	deleted       []string
	listed        []string
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{busy: availability.BusyMap{}, events: map[string]*calendar.Event{}}
}

func (f *fakeCalendar) QueryFreeBusy(_ context.Context, window availability.TimeWindow, ids []string) (*calendar.FreeBusy, error) {
	f.queriedWindow = window
	f.queriedIDs = ids
	if len(f.freeBusyErrs) > 0 {
		err := f.freeBusyErrs[0]
		f.freeBusyErrs = f.freeBusyErrs[1:]
		return nil, err
	}
	busy := availability.BusyMap{}
	for _, id := range ids {
		if _, failed := f.errors[id]; !failed {
			busy[id] = f.busy[id]
		}
	}
	errs := f.errors
	if errs == nil {
		errs = map[string][]string{}
	}
	return &calendar.FreeBusy{Busy: busy, Errors: errs}, nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, _ string, input calendar.EventInput) (*calendar.Event, error) {
	f.created = append(f.created, input)
	ev := &calendar.Event{
		ID:          "ev-new",
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
		Start:       input.Start,
		End:         input.End,
	}
	for _, a := range input.Attendees {
		ev.Attendees = append(ev.Attendees, calendar.Attendee{Email: a})
	}
	if input.AddConference {
		ev.ConferenceURL = "https://meet.google.com/new"
	}
	f.events[ev.ID] = ev
	return ev, nil
}

func (f *fakeCalendar) GetEvent(_ context.Context, _ string, id string) (*calendar.Event, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	ev, ok := f.events[id]
	if !ok {
		return nil, &googleapi.Error{Code: 404, Message: "Not Found"}
	}
	cp := *ev
	return &cp, nil
}

func (f *fakeCalendar) PatchEvent(_ context.Context, _ string, id string, patch calendar.EventPatch) (*calendar.Event, error) {
	f.patches = append(f.patches, patch)
	ev := f.events[id]
	if patch.Summary != nil {
		ev.Summary = *patch.Summary
	}
	if patch.Description != nil {
		ev.Description = *patch.Description
	}
	if patch.Location != nil {
		ev.Location = *patch.Location
	}
	if patch.Start != nil {
		ev.Start = *patch.Start
	}
	if patch.End != nil {
		ev.End = *patch.End
	}
	if patch.Attendees != nil {
		ev.Attendees = nil
		for _, a := range patch.Attendees {
			ev.Attendees = append(ev.Attendees, calendar.Attendee{Email: a})
		}
	}
	cp := *ev
	return &cp, nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, _ string, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.events, id)
	return nil
}

func (f *fakeCalendar) ListEvents(_ context.Context, _ string, window availability.TimeWindow, query string) ([]calendar.Event, error) {
	f.listed = append(f.listed, query)
	if f.getErr != nil {
		return nil, f.getErr
	}
	var out []calendar.Event
	for _, ev := range f.events {
		if !ev.Start.Before(window.End) || !ev.End.After(window.Start) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(ev.Summary), strings.ToLower(query)) {
			continue
		}
		out = append(out, *ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

type fakeContacts struct {
	mu       sync.Mutex
	entries  []attendee.Contact
	searches int
}

func (f *fakeContacts) SearchContacts(_ context.Context, query string, _ int) ([]attendee.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	var out []attendee.Contact
	for _, c := range f.entries {
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(query)) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeServices struct {
	mu              sync.Mutex
	cal             *fakeCalendar
	contacts        *fakeContacts
	calendarFor     []string
	contactsBuilt   int
	contactsAccount string
}

func (f *fakeServices) Calendar(_ context.Context, account string) (CalendarService, error) {
	f.calendarFor = append(f.calendarFor, account)
	return f.cal, nil
}

func (f *fakeServices) Contacts(_ context.Context, account string) (attendee.ContactSearcher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contactsBuilt++
	f.contactsAccount = account
	if f.contacts == nil {
		return nil, errors.New("no contacts")
	}
	return f.contacts, nil
}

type mirrorCall struct {
	op    string
	loc   mirror.Locator
	event mirror.Event
}

type fakeMirror struct {
	err   error
	calls []mirrorCall
}

func (f *fakeMirror) Name() string { return "fake" }

func (f *fakeMirror) Create(_ context.Context, event mirror.Event) error {
	f.calls = append(f.calls, mirrorCall{op: "create", event: event})
	return f.err
}

func (f *fakeMirror) Update(_ context.Context, loc mirror.Locator, event mirror.Event) error {
	f.calls = append(f.calls, mirrorCall{op: "update", loc: loc, event: event})
	return f.err
}

func (f *fakeMirror) Delete(_ context.Context, loc mirror.Locator) error {
	f.calls = append(f.calls, mirrorCall{op: "delete", loc: loc})
	return f.err
}

type mirrorMetrics struct {
	results []string
}

func (m *mirrorMetrics) RecordMirrorSync(_ context.Context, backend, operation, result string) {
	m.results = append(m.results, backend+"/"+operation+"/"+result)
}

// at returns 2025-03-12 (a Wednesday) at hh:mm UTC.
func at(hh, mm int) time.Time {
	return time.Date(2025, 3, 12, hh, mm, 0, 0, time.UTC)
}

func span(startH, startM, endH, endM int) availability.TimeWindow {
	return availability.TimeWindow{Start: at(startH, startM), End: at(endH, endM)}
}
