package contacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/option"
	people "google.golang.org/api/people/v1"

	"github.com/teemow/meetsched/internal/attendee"
	"github.com/teemow/meetsched/internal/logging"
	"github.com/teemow/meetsched/internal/retry"
)

const (
	readMask        = "names,emailAddresses"
	directorySource = "DIRECTORY_SOURCE_TYPE_DOMAIN_PROFILE"
)

// Client wraps the People service
type Client struct {
	svc    *people.Service
	logger *slog.Logger
}

// NewClient creates a People client. Callers pass the authenticated HTTP
// client with option.WithHTTPClient.
func NewClient(ctx context.Context, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	svc, err := people.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create People service: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{svc: svc, logger: logger}, nil
}

type source struct {
	name   string
	search func(ctx context.Context, query string, limit int64) ([]*people.Person, error)
}

// SearchContacts returns up to limit contacts matching query. A source that
// fails permanently (the directory of a consumer account, for example) is
// skipped, and the search fails only when every source fails. A transient
// failure of any source fails the search so the caller can retry it.
func (c *Client) SearchContacts(ctx context.Context, query string, limit int) ([]attendee.Contact, error) {
	if limit <= 0 {
		limit = attendee.SearchLimit
	}

	sources := []source{
		{name: "contacts", search: c.searchContacts},
		{name: "other_contacts", search: c.searchOtherContacts},
		{name: "directory", search: c.searchDirectory},
	}

	var (
		results  []attendee.Contact
		seen     = make(map[string]bool)
		failures []error
	)
	for _, src := range sources {
		found, err := src.search(ctx, query, int64(limit))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if retry.IsRetryable(err) {
				return nil, fmt.Errorf("contact search failed: %s: %w", src.name, err)
			}
			c.logger.DebugContext(ctx, "Contact source failed", logging.Source(src.name), logging.Err(err))
			failures = append(failures, fmt.Errorf("%s: %w", src.name, err))
			continue
		}
		for _, person := range found {
			contact, ok := extractContact(person)
			if !ok {
				continue
			}
			key := strings.ToLower(contact.Email)
			if seen[key] {
				continue
			}
			seen[key] = true
			results = append(results, contact)
		}
	}

	if len(failures) == len(sources) {
		return nil, fmt.Errorf("contact search failed: %w", errors.Join(failures...))
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (c *Client) searchContacts(ctx context.Context, query string, limit int64) ([]*people.Person, error) {
	resp, err := c.svc.People.SearchContacts().
		Query(query).
		ReadMask(readMask).
		PageSize(limit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	out := make([]*people.Person, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, r.Person)
	}
	return out, nil
}

func (c *Client) searchOtherContacts(ctx context.Context, query string, limit int64) ([]*people.Person, error) {
	resp, err := c.svc.OtherContacts.Search().
		Query(query).
		ReadMask(readMask).
		PageSize(limit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	out := make([]*people.Person, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, r.Person)
	}
	return out, nil
}

func (c *Client) searchDirectory(ctx context.Context, query string, limit int64) ([]*people.Person, error) {
	resp, err := c.svc.People.SearchDirectoryPeople().
		Query(query).
		ReadMask(readMask).
		Sources(directorySource).
		PageSize(limit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return resp.People, nil
}

// extractContact returns the person's display name and primary email.
// People without an email address are skipped.
func extractContact(person *people.Person) (attendee.Contact, bool) {
	if person == nil {
		return attendee.Contact{}, false
	}

	var contact attendee.Contact
	if len(person.Names) > 0 {
		contact.Name = person.Names[0].DisplayName
	}
	for _, addr := range person.EmailAddresses {
		if addr.Value == "" {
			continue
		}
		if contact.Email == "" {
			contact.Email = addr.Value
		}
		if addr.Metadata != nil && addr.Metadata.Primary {
			contact.Email = addr.Value
			break
		}
	}

	if contact.Email == "" {
		return attendee.Contact{}, false
	}
	return contact, true
}
