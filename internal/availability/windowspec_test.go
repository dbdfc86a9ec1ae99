package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindowSpec(t *testing.T) {
	tests := []struct {
		name      string
		window    string
		start     string
		end       string
		wantNamed bool
		wantErr   bool
	}{
		{name: "named", window: "tomorrow", wantNamed: true},
		{name: "named mixed case", window: " Next_Week ", wantNamed: true},
		{name: "explicit", start: "2025-03-10T09:00:00Z", end: "2025-03-10T17:00:00Z"},
		{name: "both given", window: "today", start: "2025-03-10T09:00:00Z", end: "2025-03-10T17:00:00Z", wantErr: true},
		{name: "neither given", wantErr: true},
		{name: "only start", start: "2025-03-10T09:00:00Z", wantErr: true},
		{name: "unknown name", window: "someday", wantErr: true},
		{name: "bad timestamp", start: "10 March", end: "2025-03-10T17:00:00Z", wantErr: true},
		{name: "reversed range", start: "2025-03-10T17:00:00Z", end: "2025-03-10T09:00:00Z", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ParseWindowSpec(tt.window, tt.start, tt.end)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNamed, spec.IsNamed())
			assert.Equal(t, !tt.wantNamed, spec.IsExplicit())
		})
	}
}

func TestWindowSpecResolve(t *testing.T) {
	// Wednesday afternoon.
	now := time.Date(2025, 3, 12, 14, 20, 0, 0, time.UTC)

	tests := []struct {
		name string
		want TimeWindow
	}{
		{name: "today", want: TimeWindow{Start: now, End: time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)}},
		{name: "tomorrow", want: TimeWindow{
			Start: time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		}},
		{name: "this_week", want: TimeWindow{Start: now, End: time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)}},
		{name: "next_week", want: TimeWindow{
			Start: time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Named(tt.name)
			require.NoError(t, err)

			got, err := spec.Resolve(now, time.UTC)
			require.NoError(t, err)
			assert.True(t, tt.want.Start.Equal(got.Start), "start %s", got.Start)
			assert.True(t, tt.want.End.Equal(got.End), "end %s", got.End)
		})
	}
}

func TestWindowSpecResolve_OnMonday(t *testing.T) {
	monday := time.Date(2025, 3, 17, 8, 0, 0, 0, time.UTC)
	spec, err := Named("next_week")
	require.NoError(t, err)

	got, err := spec.Resolve(monday, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC), got.Start)
}

func TestWindowSpecResolve_Explicit(t *testing.T) {
	spec, err := Explicit(at(9, 0), at(17, 0))
	require.NoError(t, err)

	got, err := spec.Resolve(time.Now(), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, win(9, 0, 17, 0), got)
}

func TestWindowSpecResolve_ZeroValue(t *testing.T) {
	var spec WindowSpec
	_, err := spec.Resolve(time.Now(), time.UTC)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "<unset>", spec.String())
}

func TestWorkingHoursOffHours(t *testing.T) {
	wh := WorkingHours{StartHour: 9, EndHour: 17, Location: time.UTC}
	require.NoError(t, wh.Validate())

	// Friday 2025-03-14 through Monday 2025-03-17.
	window := TimeWindow{
		Start: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 18, 0, 0, 0, 0, time.UTC),
	}
	busy := BusyMap{}
	wh.Apply(busy, window)

	slots, err := ComputeFreeSlots(window, busy, 60)
	require.NoError(t, err)
	require.Len(t, slots, 16, "eight hours on Friday and eight on Monday")
	assert.Equal(t, time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC), slots[0].Start)
	assert.Equal(t, time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC), slots[8].Start)
	assert.Equal(t, time.Date(2025, 3, 17, 16, 0, 0, 0, time.UTC), slots[15].Start)
}

func TestWorkingHoursIncludeWeekends(t *testing.T) {
	wh := WorkingHours{StartHour: 10, EndHour: 12, IncludeWeekends: true, Location: time.UTC}
	saturday := TimeWindow{
		Start: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC),
	}

	off := wh.OffHours(saturday)
	assert.Equal(t, []TimeWindow{
		{Start: saturday.Start, End: time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)},
		{Start: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC), End: saturday.End},
	}, off)
}

func TestWorkingHoursValidate(t *testing.T) {
	assert.Error(t, WorkingHours{StartHour: 17, EndHour: 9}.Validate())
	assert.Error(t, WorkingHours{StartHour: -1, EndHour: 9}.Validate())
	assert.Error(t, WorkingHours{StartHour: 9, EndHour: 25}.Validate())
	assert.NoError(t, WorkingHours{StartHour: 0, EndHour: 24}.Validate())
}
