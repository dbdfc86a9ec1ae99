package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/teemow/meetsched/internal/attendee"
	"github.com/teemow/meetsched/internal/availability"
	"github.com/teemow/meetsched/internal/calendar"
	"github.com/teemow/meetsched/internal/clock"
	"github.com/teemow/meetsched/internal/mirror"
	"github.com/teemow/meetsched/internal/retry"
)

type harness struct {
	s        *Scheduler
	cal      *fakeCalendar
	services *fakeServices
	mirror   *fakeMirror
	metrics  *mirrorMetrics
	delays   []time.Duration
}

func newHarness(t *testing.T, now time.Time, configure ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		cal:     newFakeCalendar(),
		mirror:  &fakeMirror{},
		metrics: &mirrorMetrics{},
	}
	h.services = &fakeServices{cal: h.cal}

	opts := Options{
		Accounts: &fakeAccounts{accounts: []string{"me@example.com", "me@other.org"}, def: "me@example.com"},
		Services: h.services,
		Mirror:   h.mirror,
		Retry: retry.Policy{Sleep: func(_ context.Context, d time.Duration) error {
			h.delays = append(h.delays, d)
			return nil
		}},
		Location: time.UTC,
		Clock:    clock.Fixed{T: now},
		Metrics:  h.metrics,
	}
	for _, fn := range configure {
		fn(&opts)
	}

	s, err := New(opts)
	require.NoError(t, err)
	h.s = s
	return h
}

func explicit(t *testing.T, start, end time.Time) availability.WindowSpec {
	t.Helper()
	w, err := availability.Explicit(start, end)
	require.NoError(t, err)
	return w
}

func TestNew(t *testing.T) {
	_, err := New(Options{Services: &fakeServices{}})
	assert.Error(t, err)

	_, err = New(Options{
		Accounts:     &fakeAccounts{},
		Services:     &fakeServices{},
		WorkingHours: &availability.WorkingHours{StartHour: 18, EndHour: 9},
	})
	assert.ErrorIs(t, err, availability.ErrInvalidInput)

	s, err := New(Options{Accounts: &fakeAccounts{}, Services: &fakeServices{}})
	require.NoError(t, err)
	assert.Equal(t, mirror.BackendNone, s.mirror.Name())
	assert.Equal(t, DefaultMaxResults, s.maxResults)
}

func TestFindSlots(t *testing.T) {
	h := newHarness(t, at(8, 0))
	h.cal.busy["me@example.com"] = []availability.TimeWindow{span(9, 0, 10, 0)}
	h.cal.busy["bob@example.com"] = []availability.TimeWindow{span(10, 30, 11, 0)}

	res, err := h.s.FindSlots(context.Background(), FindSlotsRequest{
		Attendees:       []string{"bob@example.com"},
		DurationMinutes: 30,
		Window:          explicit(t, at(9, 0), at(12, 0)),
	})
	require.NoError(t, err)

	assert.Equal(t, "me@example.com", res.Account)
	assert.Equal(t, []string{"me@example.com", "bob@example.com"}, h.cal.queriedIDs)
	assert.Equal(t, []availability.TimeWindow{
		span(10, 0, 10, 30),
		span(11, 0, 11, 30),
		span(11, 30, 12, 0),
	}, res.Slots)
	assert.Equal(t, []attendee.Resolved{{Email: "bob@example.com"}}, res.Attendees)
	assert.Empty(t, res.Unavailable)
	assert.Zero(t, h.services.contactsBuilt, "addresses need no contacts lookup")
}

func TestFindSlots_MaxResults(t *testing.T) {
	h := newHarness(t, at(8, 0), func(o *Options) { o.MaxResults = 2 })

	res, err := h.s.FindSlots(context.Background(), FindSlotsRequest{
		Attendees:       []string{"bob@example.com"},
		DurationMinutes: 30,
		Window:          explicit(t, at(9, 0), at(12, 0)),
	})
	require.NoError(t, err)
	assert.Equal(t, []availability.TimeWindow{span(9, 0, 9, 30), span(9, 30, 10, 0)}, res.Slots)

	res, err = h.s.FindSlots(context.Background(), FindSlotsRequest{
		Attendees:       []string{"bob@example.com"},
		DurationMinutes: 30,
		Window:          explicit(t, at(9, 0), at(12, 0)),
		MaxResults:      1,
	})
	require.NoError(t, err)
	assert.Len(t, res.Slots, 1)
}

func TestFindSlots_DropsSpansPastWindowEnd(t *testing.T) {
	h := newHarness(t, at(8, 0))
	h.cal.busy["me@example.com"] = []availability.TimeWindow{span(9, 0, 9, 5)}

	// The grid yields [09:30, 09:35), so the only contiguous run is
	// [09:05, 09:35), which ends after the window.
	req := FindSlotsRequest{
		Attendees:       []string{"bob@example.com"},
		DurationMinutes: 30,
		Window:          explicit(t, at(9, 0), at(9, 32)),
	}
	res, err := h.s.FindSlots(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, res.Slots)

	_, err = h.s.Book(context.Background(), BookRequest{FindSlotsRequest: req, Title: "x"})
	assert.ErrorIs(t, err, ErrNoAvailableSlot)
	assert.Empty(t, h.cal.created)
}

func TestFindSlots_WorkingHours(t *testing.T) {
	h := newHarness(t, at(10, 0), func(o *Options) {
		o.WorkingHours = &availability.WorkingHours{StartHour: 9, EndHour: 17}
	})
	tomorrow, err := availability.Named("tomorrow")
	require.NoError(t, err)
	thursday := func(hh int) time.Time { return time.Date(2025, 3, 13, hh, 0, 0, 0, time.UTC) }

	req := FindSlotsRequest{Attendees: []string{"bob@example.com"}, DurationMinutes: 60, Window: tomorrow}
	res, err := h.s.FindSlots(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Slots)
	assert.Equal(t, availability.TimeWindow{Start: thursday(9), End: thursday(10)}, res.Slots[0])
	assert.Equal(t, availability.TimeWindow{Start: thursday(0), End: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)}, res.Window)

	req.IgnoreWorkingHours = true
	res, err = h.s.FindSlots(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, availability.TimeWindow{Start: thursday(0), End: thursday(1)}, res.Slots[0])
}

func TestFindSlots_ClampsToNow(t *testing.T) {
	h := newHarness(t, at(10, 7))

	res, err := h.s.FindSlots(context.Background(), FindSlotsRequest{
		Attendees:       []string{"bob@example.com"},
		DurationMinutes: 30,
		Window:          explicit(t, at(9, 0), at(12, 0)),
	})
	require.NoError(t, err)
	assert.Equal(t, at(10, 10), h.cal.queriedWindow.Start)
	assert.Equal(t, span(10, 10, 10, 40), res.Slots[0])
}

func TestFindSlots_WindowOver(t *testing.T) {
	h := newHarness(t, at(13, 0))

	_, err := h.s.FindSlots(context.Background(), FindSlotsRequest{
		Attendees:       []string{"bob@example.com"},
		DurationMinutes: 30,
		Window:          explicit(t, at(9, 0), at(12, 0)),
	})
	assert.ErrorIs(t, err, availability.ErrInvalidInput)
}

func TestFindSlots_Validation(t *testing.T) {
	h := newHarness(t, at(8, 0))

	_, err := h.s.FindSlots(context.Background(), FindSlotsRequest{
		Attendees: []string{"bob@example.com"},
		Window:    explicit(t, at(9, 0), at(12, 0)),
	})
	assert.ErrorIs(t, err, availability.ErrInvalidInput)

	_, err = h.s.FindSlots(context.Background(), FindSlotsRequest{
		DurationMinutes: 30,
		Window:          explicit(t, at(9, 0), at(12, 0)),
	})
	assert.ErrorIs(t, err, attendee.ErrEmptyAttendeeList)

	_, err = h.s.FindSlots(context.Background(), FindSlotsRequest{
		Attendees:       []string{"bob@example.com"},
		DurationMinutes: 30,
	})
	assert.ErrorIs(t, err, availability.ErrInvalidInput, "unset window")

	for _, minutes := range []int{availability.MaxDurationMinutes + 1, 200000000} {
		_, err = h.s.FindSlots(context.Background(), FindSlotsRequest{
			Attendees:       []string{"bob@example.com"},
			DurationMinutes: minutes,
			Window:          explicit(t, at(9, 0), at(12, 0)),
		})
		assert.ErrorIs(t, err, availability.ErrInvalidInput, "duration %d", minutes)
	}

	_, err = h.s.Book(context.Background(), BookRequest{
		FindSlotsRequest: FindSlotsRequest{
			Attendees:       []string{"bob@example.com"},
			DurationMinutes: 200000000,
			Window:          explicit(t, at(9, 0), at(12, 0)),
		},
		Title: "Too long",
	})
	assert.ErrorIs(t, err, availability.ErrInvalidInput)
	assert.Empty(t, h.cal.created)
}

func TestFindSlots_ReportsUnreadableCalendars(t *testing.T) {
	h := newHarness(t, at(8, 0))
	h.cal.errors = map[string][]string{"ghost@example.com": {"notFound"}}

	res, err := h.s.FindSlots(context.Background(), FindSlotsRequest{
		Attendees:       []string{"ghost@example.com"},
		DurationMinutes: 30,
		Window:          explicit(t, at(9, 0), at(12, 0)),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost@example.com"}, res.Unavailable)
	assert.NotEmpty(t, res.Slots)
}

func TestFindSlots_RetriesFreeBusy(t *testing.T) {
	h := newHarness(t, at(8, 0))
	h.cal.freeBusyErrs = []error{errUnavailable, errUnavailable}

	res, err := h.s.FindSlots(context.Background(), FindSlotsRequest{
		Attendees:       []string{"bob@example.com"},
		DurationMinutes: 30,
		Window:          explicit(t, at(9, 0), at(12, 0)),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Slots)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, h.delays)
}

func TestFindSlots_ResolvesNames(t *testing.T) {
	h := newHarness(t, at(8, 0))
	h.services.contacts = &fakeContacts{entries: []attendee.Contact{{Name: "Bob Builder", Email: "Bob@Example.com"}}}

	res, err := h.s.FindSlots(context.Background(), FindSlotsRequest{
		Attendees:       []string{"Bob", "bob@example.com"},
		DurationMinutes: 30,
		Window:          explicit(t, at(9, 0), at(12, 0)),
	})
	require.NoError(t, err)
	assert.Equal(t, []attendee.Resolved{{Email: "bob@example.com", DisplayName: "Bob Builder"}}, res.Attendees)
	assert.Equal(t, []string{"bob@example.com"}, res.Duplicates)
	assert.Equal(t, 1, h.services.contactsBuilt)
	assert.Equal(t, 1, h.services.contacts.searches)
}

func TestFindSlots_ResolutionErrors(t *testing.T) {
	h := newHarness(t, at(8, 0))
	h.services.contacts = &fakeContacts{entries: []attendee.Contact{
		{Name: "Sam One", Email: "sam1@example.com"},
		{Name: "Sam Two", Email: "sam2@example.com"},
	}}

	_, err := h.s.FindSlots(context.Background(), FindSlotsRequest{
		Attendees:       []string{"Sam"},
		DurationMinutes: 30,
		Window:          explicit(t, at(9, 0), at(12, 0)),
	})
	var ambiguous *attendee.AmbiguousContactError
	require.True(t, errors.As(err, &ambiguous))
	assert.Len(t, ambiguous.Candidates, 2)
	var entry *attendee.EntryError
	require.True(t, errors.As(err, &entry))
	assert.Equal(t, "Sam", entry.Input)
	assert.Nil(t, h.cal.queriedIDs, "no availability query after a resolution failure")
}

func TestFindSlots_AccountSelection(t *testing.T) {
	h := newHarness(t, at(8, 0))

	res, err := h.s.FindSlots(context.Background(), FindSlotsRequest{
		Attendees:       []string{"carol@other.org"},
		DurationMinutes: 30,
		Window:          explicit(t, at(9, 0), at(12, 0)),
	})
	require.NoError(t, err)
	assert.Equal(t, "me@other.org", res.Account)
	assert.Equal(t, "me@other.org", h.cal.queriedIDs[0])

	res, err = h.s.FindSlots(context.Background(), FindSlotsRequest{
		Account:         "ME@OTHER.ORG",
		Attendees:       []string{"bob@example.com"},
		DurationMinutes: 30,
		Window:          explicit(t, at(9, 0), at(12, 0)),
	})
	require.NoError(t, err)
	assert.Equal(t, "me@other.org", res.Account)
}

func TestFindSlots_NoAccount(t *testing.T) {
	h := newHarness(t, at(8, 0), func(o *Options) { o.Accounts = &fakeAccounts{} })

	_, err := h.s.FindSlots(context.Background(), FindSlotsRequest{
		Attendees:       []string{"bob@example.com"},
		DurationMinutes: 30,
		Window:          explicit(t, at(9, 0), at(12, 0)),
	})
	assert.ErrorIs(t, err, ErrNoAccount)
}

func TestBook(t *testing.T) {
	h := newHarness(t, at(8, 0))
	h.cal.busy["me@example.com"] = []availability.TimeWindow{span(9, 0, 10, 0)}

	res, err := h.s.Book(context.Background(), BookRequest{
		FindSlotsRequest: FindSlotsRequest{
			Attendees:       []string{"bob@example.com"},
			DurationMinutes: 60,
			Window:          explicit(t, at(9, 0), at(12, 0)),
		},
		Title:         "Planning",
		Description:   "Q2 roadmap",
		AddConference: true,
	})
	require.NoError(t, err)

	require.Len(t, h.cal.created, 1)
	created := h.cal.created[0]
	assert.Equal(t, "Planning", created.Summary)
	assert.Equal(t, at(10, 0), created.Start)
	assert.Equal(t, at(11, 0), created.End)
	assert.Equal(t, "UTC", created.TimeZone)
	assert.Equal(t, []string{"bob@example.com"}, created.Attendees)
	assert.True(t, created.AddConference)

	assert.Equal(t, "ev-new", res.Event.ID)
	assert.True(t, res.Mirror.OK)
	assert.Equal(t, "fake", res.Mirror.Backend)
	require.Len(t, h.mirror.calls, 1)
	assert.Equal(t, "create", h.mirror.calls[0].op)
	assert.Equal(t, mirror.Event{
		Title:       "Planning",
		Start:       at(10, 0),
		End:         at(11, 0),
		Description: "Q2 roadmap",
		URL:         "https://meet.google.com/new",
		Attendees:   []string{"bob@example.com"},
	}, h.mirror.calls[0].event)
	assert.Equal(t, []string{"fake/create/success"}, h.metrics.results)
}

func TestBook_MirrorFailureKeepsPrimary(t *testing.T) {
	h := newHarness(t, at(8, 0))
	h.mirror.err = mirror.ErrPermission

	res, err := h.s.Book(context.Background(), BookRequest{
		FindSlotsRequest: FindSlotsRequest{
			Attendees:       []string{"bob@example.com"},
			DurationMinutes: 30,
			Window:          explicit(t, at(9, 0), at(12, 0)),
		},
		Title: "Planning",
	})
	require.NoError(t, err)
	assert.Equal(t, "ev-new", res.Event.ID)
	assert.Contains(t, h.cal.events, "ev-new")
	assert.True(t, res.Mirror.Attempted)
	assert.False(t, res.Mirror.OK)
	assert.NotEmpty(t, res.Mirror.Suggestion)
	assert.Equal(t, []string{"fake/create/failure"}, h.metrics.results)
}

func TestBook_MirrorDisabled(t *testing.T) {
	h := newHarness(t, at(8, 0), func(o *Options) { o.Mirror = nil })

	res, err := h.s.Book(context.Background(), BookRequest{
		FindSlotsRequest: FindSlotsRequest{
			Attendees:       []string{"bob@example.com"},
			DurationMinutes: 30,
			Window:          explicit(t, at(9, 0), at(12, 0)),
		},
		Title: "Planning",
	})
	require.NoError(t, err)
	assert.False(t, res.Mirror.Attempted)
	assert.Equal(t, mirror.BackendNone, res.Mirror.Backend)
	assert.Equal(t, []string{"none/create/skipped"}, h.metrics.results)
}

func TestBook_RequiresTitle(t *testing.T) {
	h := newHarness(t, at(8, 0))
	_, err := h.s.Book(context.Background(), BookRequest{FindSlotsRequest: FindSlotsRequest{
		Attendees:       []string{"bob@example.com"},
		DurationMinutes: 30,
		Window:          explicit(t, at(9, 0), at(12, 0)),
	}})
	assert.ErrorIs(t, err, availability.ErrInvalidInput)
}

func seedEvent(h *harness) {
	h.cal.events["ev1"] = &calendar.Event{
		ID:        "ev1",
		Summary:   "Sync",
		Start:     at(10, 0),
		End:       at(10, 30),
		Attendees: []calendar.Attendee{{Email: "bob@example.com"}},
	}
}

func TestUpdate_MovesAndRenames(t *testing.T) {
	h := newHarness(t, at(8, 0))
	seedEvent(h)

	title := "Sync v2"
	start := at(14, 0)
	res, err := h.s.Update(context.Background(), UpdateRequest{EventID: "ev1", Title: &title, Start: &start})
	require.NoError(t, err)

	require.Len(t, h.cal.patches, 1)
	patch := h.cal.patches[0]
	assert.Equal(t, at(14, 0), *patch.Start)
	assert.Equal(t, at(14, 30), *patch.End, "length is kept")
	assert.Nil(t, patch.Attendees)

	assert.Equal(t, "Sync v2", res.Event.Summary)
	require.Len(t, h.mirror.calls, 1)
	call := h.mirror.calls[0]
	assert.Equal(t, "update", call.op)
	assert.Equal(t, mirror.Locator{Title: "Sync", Start: at(10, 0)}, call.loc, "located by the previous title and start")
	assert.Equal(t, "Sync v2", call.event.Title)
	assert.Equal(t, []string{"bob@example.com"}, call.event.Attendees)
	assert.True(t, res.Mirror.OK)
}

func TestUpdate_DurationOnly(t *testing.T) {
	h := newHarness(t, at(8, 0))
	seedEvent(h)

	res, err := h.s.Update(context.Background(), UpdateRequest{EventID: "ev1", DurationMinutes: 60})
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), res.Event.Start)
	assert.Equal(t, at(11, 0), res.Event.End)
}

func TestUpdate_ReplacesAttendees(t *testing.T) {
	h := newHarness(t, at(8, 0))
	seedEvent(h)

	res, err := h.s.Update(context.Background(), UpdateRequest{EventID: "ev1", Attendees: []string{"Carol@Example.com"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol@example.com"}, h.cal.patches[0].Attendees)
	assert.Equal(t, []attendee.Resolved{{Email: "carol@example.com"}}, res.Attendees)
}

func TestUpdate_Errors(t *testing.T) {
	h := newHarness(t, at(8, 0))
	seedEvent(h)

	_, err := h.s.Update(context.Background(), UpdateRequest{EventID: "ev1"})
	assert.ErrorIs(t, err, availability.ErrInvalidInput, "nothing to update")

	_, err = h.s.Update(context.Background(), UpdateRequest{})
	assert.ErrorIs(t, err, availability.ErrInvalidInput)

	_, err = h.s.Update(context.Background(), UpdateRequest{EventID: "ev1", DurationMinutes: availability.MaxDurationMinutes + 1})
	assert.ErrorIs(t, err, availability.ErrInvalidInput, "oversized duration")

	title := "x"
	_, err = h.s.Update(context.Background(), UpdateRequest{EventID: "missing", Title: &title})
	var apiErr *googleapi.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.Code)
	assert.Empty(t, h.delays, "not found is not retried")
	assert.Empty(t, h.cal.patches)
	assert.Empty(t, h.mirror.calls)
}

func TestDelete(t *testing.T) {
	h := newHarness(t, at(8, 0))
	seedEvent(h)

	res, err := h.s.Delete(context.Background(), DeleteRequest{EventID: "ev1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"ev1"}, h.cal.deleted)
	assert.Equal(t, "Sync", res.Title)
	assert.Equal(t, at(10, 0), res.Start)
	assert.Equal(t, "me@example.com", res.Account)
	require.Len(t, h.mirror.calls, 1)
	assert.Equal(t, mirrorCall{op: "delete", loc: mirror.Locator{Title: "Sync", Start: at(10, 0)}}, h.mirror.calls[0])
	assert.True(t, res.Mirror.OK)
}

func TestDelete_MirrorNotFound(t *testing.T) {
	h := newHarness(t, at(8, 0))
	seedEvent(h)
	h.mirror.err = mirror.ErrNotFound

	res, err := h.s.Delete(context.Background(), DeleteRequest{EventID: "ev1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ev1"}, h.cal.deleted)
	assert.False(t, res.Mirror.OK)
	assert.Equal(t, []string{"fake/delete/failure"}, h.metrics.results)
}

func TestDelete_Errors(t *testing.T) {
	h := newHarness(t, at(8, 0))

	_, err := h.s.Delete(context.Background(), DeleteRequest{})
	assert.ErrorIs(t, err, availability.ErrInvalidInput)

	h.cal.getErr = errUnavailable
	_, err = h.s.Delete(context.Background(), DeleteRequest{EventID: "ev1"})
	assert.ErrorIs(t, err, errUnavailable)
	assert.Len(t, h.delays, retry.DefaultMaxRetries)
	assert.Empty(t, h.cal.deleted)
}

func TestList(t *testing.T) {
	h := newHarness(t, at(8, 0))
	seedEvent(h)
	h.cal.events["ev2"] = &calendar.Event{ID: "ev2", Summary: "Retro", Start: at(7, 0), End: at(7, 30)}
	h.cal.events["ev3"] = &calendar.Event{ID: "ev3", Summary: "Planning", Start: at(16, 0), End: at(17, 0)}

	res, err := h.s.List(context.Background(), ListRequest{Window: explicit(t, at(6, 0), at(18, 0))})
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", res.Account)
	assert.Equal(t, span(6, 0, 18, 0), res.Window)
	require.Len(t, res.Events, 3)
	assert.Equal(t, []string{"ev2", "ev1", "ev3"}, []string{res.Events[0].ID, res.Events[1].ID, res.Events[2].ID})

	res, err = h.s.List(context.Background(), ListRequest{Window: explicit(t, at(6, 0), at(18, 0)), Query: "  plan "})
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "ev3", res.Events[0].ID)
	assert.Equal(t, []string{"", "plan"}, h.cal.listed)
}

func TestList_Errors(t *testing.T) {
	h := newHarness(t, at(8, 0))

	_, err := h.s.List(context.Background(), ListRequest{})
	assert.ErrorIs(t, err, availability.ErrInvalidInput)

	h.cal.getErr = errUnavailable
	_, err = h.s.List(context.Background(), ListRequest{Window: explicit(t, at(9, 0), at(10, 0))})
	assert.ErrorIs(t, err, errUnavailable)
	assert.Len(t, h.delays, retry.DefaultMaxRetries)
}

func TestResolveAttendees(t *testing.T) {
	h := newHarness(t, at(8, 0))
	h.services.contacts = &fakeContacts{entries: []attendee.Contact{{Name: "Dana", Email: "dana@other.org"}}}

	res, err := h.s.ResolveAttendees(context.Background(), "", []string{"Dana"})
	require.NoError(t, err)
	assert.Equal(t, "me@other.org", res.Account, "account follows the resolved attendee domain")
	assert.Equal(t, "me@example.com", h.services.contactsAccount, "contacts come from the default account")
	assert.Equal(t, []attendee.Resolved{{Email: "dana@other.org", DisplayName: "Dana"}}, res.Attendees)
}
