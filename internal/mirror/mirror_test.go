package mirror

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewOutcome(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantAttempted bool
		wantOK        bool
		wantMessage   string
		wantHint      bool
	}{
		{name: "success", wantAttempted: true, wantOK: true, wantMessage: "local calendar event created"},
		{name: "disabled", err: ErrDisabled, wantMessage: ErrDisabled.Error()},
		{name: "not found", err: fmt.Errorf("%w: x", ErrNotFound), wantAttempted: true, wantMessage: "mirrored event not found: x", wantHint: true},
		{name: "permission", err: ErrPermission, wantAttempted: true, wantMessage: ErrPermission.Error(), wantHint: true},
		{name: "timeout", err: context.DeadlineExceeded, wantAttempted: true, wantMessage: context.DeadlineExceeded.Error(), wantHint: true},
		{name: "other", err: errors.New("boom"), wantAttempted: true, wantMessage: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewOutcome("caldav", "created", tt.err)
			assert.Equal(t, "caldav", got.Backend)
			assert.Equal(t, tt.wantAttempted, got.Attempted)
			assert.Equal(t, tt.wantOK, got.OK)
			assert.Equal(t, tt.wantMessage, got.Message)
			assert.Equal(t, tt.wantHint, got.Suggestion != "")
		})
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "local calendar event deleted", NewOutcome("caldav", "deleted", nil).String())
	assert.Equal(t, "skipped: no event", Skipped("caldav", "no event").String())
	assert.Equal(t, "failed: boom", NewOutcome("caldav", "deleted", errors.New("boom")).String())
	assert.Contains(t, NewOutcome("caldav", "deleted", ErrNotFound).String(), "(the event may have been")
}

func TestEventValidate(t *testing.T) {
	start := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	assert.NoError(t, Event{Title: "x", Start: start, End: start.Add(time.Minute)}.Validate())
	assert.Error(t, Event{Start: start, End: start.Add(time.Minute)}.Validate())
	assert.Error(t, Event{Title: "x", Start: start, End: start}.Validate())
}

func TestDisabled(t *testing.T) {
	var cal Calendar = Disabled{}
	ctx := context.Background()

	assert.Equal(t, BackendNone, cal.Name())
	assert.ErrorIs(t, cal.Create(ctx, Event{}), ErrDisabled)
	assert.ErrorIs(t, cal.Update(ctx, Locator{}, Event{}), ErrDisabled)
	assert.ErrorIs(t, cal.Delete(ctx, Locator{}), ErrDisabled)

	out := NewOutcome(cal.Name(), "created", cal.Create(ctx, Event{}))
	assert.False(t, out.Attempted)
	assert.False(t, out.OK)
}
