package attendee

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/teemow/meetsched/internal/logging"
)

// SearchLimit is the number of contacts requested per name lookup.
const SearchLimit = 10

// Contact is a contacts-directory entry.
type Contact struct {
	Name  string
	Email string
}

// ContactSearcher looks people up by name.
type ContactSearcher interface {
	SearchContacts(ctx context.Context, query string, limit int) ([]Contact, error)
}

// ContactSearcherFunc adapts a function to ContactSearcher.
type ContactSearcherFunc func(ctx context.Context, query string, limit int) ([]Contact, error)

// SearchContacts calls f.
func (f ContactSearcherFunc) SearchContacts(ctx context.Context, query string, limit int) ([]Contact, error) {
	return f(ctx, query, limit)
}

// Resolved is a canonical attendee. DisplayName is empty when the input was
// already an address.
type Resolved struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// String renders "Name <email>" or just the email.
func (r Resolved) String() string {
	if r.DisplayName == "" {
		return r.Email
	}
	return fmt.Sprintf("%s <%s>", r.DisplayName, r.Email)
}

// Resolution is the outcome of ResolveMany.
type Resolution struct {
	// Attendees are unique by email, in order of first occurrence.
	Attendees []Resolved `json:"attendees"`
	// Duplicates lists the inputs dropped because an earlier entry resolved
	// to the same address.
	Duplicates []string `json:"duplicates,omitempty"`
}

// Emails returns the attendee addresses.
func (r *Resolution) Emails() []string {
	emails := make([]string, len(r.Attendees))
	for i, a := range r.Attendees {
		emails[i] = a.Email
	}
	return emails
}

// Resolver maps names and addresses to canonical attendees.
type Resolver struct {
	contacts ContactSearcher
	logger   *slog.Logger
}

// NewResolver returns a Resolver backed by contacts. A nil logger uses slog.Default.
func NewResolver(contacts ContactSearcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{contacts: contacts, logger: logger}
}

// ResolveOne resolves a single name or address.
func (r *Resolver) ResolveOne(ctx context.Context, input string) (Resolved, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Resolved{}, ErrEmptyInput
	}

	if LooksLikeEmail(input) {
		email, err := NormalizeEmail(input)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{Email: email}, nil
	}

	if r.contacts == nil {
		return Resolved{}, &ContactNotFoundError{Query: input}
	}

	found, err := r.contacts.SearchContacts(ctx, input, SearchLimit)
	if err != nil {
		return Resolved{}, fmt.Errorf("failed to search contacts: %w", err)
	}

	var matches []Contact
	for _, c := range found {
		if strings.TrimSpace(c.Email) != "" {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return Resolved{}, &ContactNotFoundError{Query: input}
	case 1:
		return Resolved{
			Email:       strings.ToLower(strings.TrimSpace(matches[0].Email)),
			DisplayName: matches[0].Name,
		}, nil
	default:
		return Resolved{}, &AmbiguousContactError{Query: input, Candidates: matches}
	}
}

// ResolveMany resolves every entry concurrently. Any failure fails the whole
// call with an *EntryError naming the offending input. On success the result
// is deduplicated by email, keeping the first display name seen.
func (r *Resolver) ResolveMany(ctx context.Context, inputs []string) (*Resolution, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyAttendeeList
	}

	resolved := make([]Resolved, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	for i, input := range inputs {
		g.Go(func() error {
			a, err := r.ResolveOne(gctx, input)
			if err != nil {
				return &EntryError{Input: input, Err: err}
			}
			resolved[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Resolution{}
	seen := make(map[string]bool, len(resolved))
	for i, a := range resolved {
		if seen[a.Email] {
			res.Duplicates = append(res.Duplicates, strings.TrimSpace(inputs[i]))
			continue
		}
		seen[a.Email] = true
		res.Attendees = append(res.Attendees, a)
	}

	if len(res.Duplicates) > 0 {
		r.logger.Info("removed duplicate attendees",
			logging.Operation("attendee.resolve_many"),
			slog.Int("duplicates", len(res.Duplicates)),
			slog.Int("attendees", len(res.Attendees)))
	}
	return res, nil
}
