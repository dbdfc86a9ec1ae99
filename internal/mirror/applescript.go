package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Runner executes an AppleScript program read from script with args as argv.
type Runner func(ctx context.Context, script string, args ...string) (string, error)

// Osascript runs script through /usr/bin/osascript. The script is passed on
// stdin and never interpolated with user data.
func Osascript(ctx context.Context, script string, args ...string) (string, error) {
	path, err := exec.LookPath("osascript")
	if err != nil {
		return "", fmt.Errorf("%w: osascript not found", ErrUnavailable)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, append([]string{"-"}, args...)...)
	cmd.Stdin = strings.NewReader(script)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &ScriptError{Output: strings.TrimSpace(stderr.String()), Err: err}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ScriptError is a failed osascript invocation.
type ScriptError struct {
	Output string
	Err    error
}

func (e *ScriptError) Error() string {
	if e.Output == "" {
		return "osascript: " + e.Err.Error()
	}
	return "osascript: " + e.Output
}

func (e *ScriptError) Unwrap() error { return e.Err }

const (
	resultNotFound = "not_found"

	// AppleScript error numbers.
	errNotAuthorized = "-1743"
	errCantGet       = "-1728"
)

// AppleScript mirrors into macOS Calendar.
type AppleScript struct {
	calendar string
	location *time.Location
	run      Runner
}

// NewAppleScript returns a backend writing to the named Calendar.app
// calendar. Dates are passed in loc, which defaults to time.Local. A nil
// runner uses Osascript.
func NewAppleScript(calendar string, loc *time.Location, run Runner) (*AppleScript, error) {
	if calendar == "" {
		return nil, errors.New("applescript mirror requires a calendar name")
	}
	if loc == nil {
		loc = time.Local
	}
	if run == nil {
		run = Osascript
	}
	return &AppleScript{calendar: calendar, location: loc, run: run}, nil
}

func (a *AppleScript) Name() string { return BackendAppleScript }

// Create adds event to the calendar.
func (a *AppleScript) Create(ctx context.Context, event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	args := []string{a.calendar, event.Title}
	args = append(args, a.dateArgs(event.Start)...)
	args = append(args, a.dateArgs(event.End)...)
	args = append(args, event.Location, event.Description, event.URL)

	_, err := a.exec(ctx, createScript, args)
	return err
}

// Update rewrites the first event matching loc.
func (a *AppleScript) Update(ctx context.Context, loc Locator, event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	args := []string{a.calendar, loc.Title}
	args = append(args, a.dateArgs(loc.Start)...)
	args = append(args, event.Title)
	args = append(args, a.dateArgs(event.Start)...)
	args = append(args, a.dateArgs(event.End)...)
	args = append(args, event.Location, event.Description, event.URL)

	out, err := a.exec(ctx, updateScript, args)
	if err != nil {
		return err
	}
	if out == resultNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	return nil
}

// Delete removes the first event matching loc.
func (a *AppleScript) Delete(ctx context.Context, loc Locator) error {
	args := []string{a.calendar, loc.Title}
	args = append(args, a.dateArgs(loc.Start)...)

	out, err := a.exec(ctx, deleteScript, args)
	if err != nil {
		return err
	}
	if out == resultNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	return nil
}

func (a *AppleScript) exec(ctx context.Context, script string, args []string) (string, error) {
	out, err := a.run(ctx, script, args...)
	if err == nil {
		return out, nil
	}

	var scriptErr *ScriptError
	if errors.As(err, &scriptErr) {
		switch {
		case strings.Contains(scriptErr.Output, errNotAuthorized):
			return "", fmt.Errorf("%w: %w", ErrPermission, err)
		case strings.Contains(scriptErr.Output, errCantGet):
			return "", fmt.Errorf("%w: calendar %q: %w", ErrUnavailable, a.calendar, err)
		}
	}
	return "", err
}

// dateArgs splits t into year, month, day, hours, minutes and seconds in
// the backend's location.
func (a *AppleScript) dateArgs(t time.Time) []string {
	t = t.In(a.location)
	return []string{
		strconv.Itoa(t.Year()),
		strconv.Itoa(int(t.Month())),
		strconv.Itoa(t.Day()),
		strconv.Itoa(t.Hour()),
		strconv.Itoa(t.Minute()),
		strconv.Itoa(t.Second()),
	}
}

const dateHandler = `
on makeDate(parts)
	set d to current date
	set day of d to 1
	set year of d to (item 1 of parts) as integer
	set month of d to (item 2 of parts) as integer
	set day of d to (item 3 of parts) as integer
	set hours of d to (item 4 of parts) as integer
	set minutes of d to (item 5 of parts) as integer
	set seconds of d to (item 6 of parts) as integer
	return d
end makeDate
`

// argv: calendar, title, start(6), end(6), location, description, url
const createScript = dateHandler + `
on run argv
	set calName to item 1 of argv
	set evTitle to item 2 of argv
	set startDate to my makeDate(items 3 thru 8 of argv)
	set endDate to my makeDate(items 9 thru 14 of argv)
	set evLocation to item 15 of argv
	set evNotes to item 16 of argv
	set evURL to item 17 of argv
	tell application "Calendar"
		tell calendar calName
			set ev to make new event with properties {summary:evTitle, start date:startDate, end date:endDate}
			if evLocation is not "" then set location of ev to evLocation
			if evNotes is not "" then set description of ev to evNotes
			if evURL is not "" then set url of ev to evURL
		end tell
	end tell
	return "created"
end run
`

// argv: calendar, old title, old start(6), title, start(6), end(6), location, description, url
const updateScript = dateHandler + `
on run argv
	set calName to item 1 of argv
	set oldTitle to item 2 of argv
	set oldStart to my makeDate(items 3 thru 8 of argv)
	set evTitle to item 9 of argv
	set startDate to my makeDate(items 10 thru 15 of argv)
	set endDate to my makeDate(items 16 thru 21 of argv)
	set evLocation to item 22 of argv
	set evNotes to item 23 of argv
	set evURL to item 24 of argv
	tell application "Calendar"
		tell calendar calName
			set matches to (every event whose summary is oldTitle and start date is oldStart)
			if (count of matches) is 0 then return "not_found"
			set ev to item 1 of matches
			set summary of ev to evTitle
			if startDate > (end date of ev) then
				set end date of ev to endDate
				set start date of ev to startDate
			else
				set start date of ev to startDate
				set end date of ev to endDate
			end if
			set location of ev to evLocation
			set description of ev to evNotes
			set url of ev to evURL
		end tell
	end tell
	return "updated"
end run
`

// argv: calendar, title, start(6)
const deleteScript = dateHandler + `
on run argv
	set calName to item 1 of argv
	set evTitle to item 2 of argv
	set startDate to my makeDate(items 3 thru 8 of argv)
	tell application "Calendar"
		tell calendar calName
			set matches to (every event whose summary is evTitle and start date is startDate)
			if (count of matches) is 0 then return "not_found"
			delete item 1 of matches
		end tell
	end tell
	return "deleted"
end run
`
