package contacts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	people "google.golang.org/api/people/v1"

	"github.com/teemow/meetsched/internal/attendee"
	"github.com/teemow/meetsched/internal/retry"
)

func person(name string, emails ...string) map[string]any {
	addrs := make([]map[string]any, 0, len(emails))
	for _, e := range emails {
		addrs = append(addrs, map[string]any{"value": e})
	}
	return map[string]any{
		"names":          []map[string]any{{"displayName": name}},
		"emailAddresses": addrs,
	}
}

func results(persons ...map[string]any) map[string]any {
	out := make([]map[string]any, 0, len(persons))
	for _, p := range persons {
		out = append(out, map[string]any{"person": p})
	}
	return map[string]any{"results": out}
}

type fakePeople struct {
	contacts  any
	other     any
	directory any

	// status overrides the response code for a path.
	status map[string]int
}

func (f fakePeople) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if code, ok := f.status[r.URL.Path]; ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"rate limit exceeded","errors":[{"reason":"rateLimitExceeded"}]}}`, code)
		return
	}

	var body any
	switch r.URL.Path {
	case "/v1/people:searchContacts":
		body = f.contacts
	case "/v1/otherContacts:search":
		body = f.other
	case "/v1/people:searchDirectoryPeople":
		if r.URL.Query().Get("sources") != directorySource {
			http.Error(w, "missing sources", http.StatusBadRequest)
			return
		}
		body = f.directory
	}
	if body == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"forbidden"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, fake fakePeople) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), nil,
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)
	return c
}

func TestSearchContacts_MergesAndDedupes(t *testing.T) {
	c := newTestClient(t, fakePeople{
		contacts: results(person("Bob Smith", "bob@example.com")),
		other:    results(person("Bobby", "BOB@example.com"), person("Bob Jones", "bjones@example.com")),
		directory: map[string]any{"people": []map[string]any{
			person("Bob Directory", "bob.d@corp.example"),
		}},
	})

	got, err := c.SearchContacts(context.Background(), "bob", 10)
	require.NoError(t, err)
	assert.Equal(t, []attendee.Contact{
		{Name: "Bob Smith", Email: "bob@example.com"},
		{Name: "Bob Jones", Email: "bjones@example.com"},
		{Name: "Bob Directory", Email: "bob.d@corp.example"},
	}, got)
}

func TestSearchContacts_Limit(t *testing.T) {
	c := newTestClient(t, fakePeople{
		contacts: results(person("A", "a@example.com"), person("B", "b@example.com")),
		other:    results(person("C", "c@example.com")),
	})

	got, err := c.SearchContacts(context.Background(), "x", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "a@example.com", got[0].Email)
}

func TestSearchContacts_SourceFailureIsTolerated(t *testing.T) {
	// No directory response: consumer accounts get 403 there.
	c := newTestClient(t, fakePeople{
		contacts: results(),
		other:    results(person("Carol", "carol@example.com")),
	})

	got, err := c.SearchContacts(context.Background(), "carol", 10)
	require.NoError(t, err)
	assert.Equal(t, []attendee.Contact{{Name: "Carol", Email: "carol@example.com"}}, got)
}

func TestSearchContacts_TransientFailureIsReturned(t *testing.T) {
	c := newTestClient(t, fakePeople{
		other:  results(),
		status: map[string]int{"/v1/people:searchContacts": http.StatusTooManyRequests},
	})

	got, err := c.SearchContacts(context.Background(), "alice", 10)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, retry.IsRetryable(err), "rate limiting must stay retryable: %v", err)

	var apiErr *googleapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Code)
}

func TestSearchContacts_AllSourcesFail(t *testing.T) {
	c := newTestClient(t, fakePeople{})

	_, err := c.SearchContacts(context.Background(), "carol", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contacts")
	assert.Contains(t, err.Error(), "directory")
}

func TestExtractContact(t *testing.T) {
	_, ok := extractContact(nil)
	assert.False(t, ok)

	_, ok = extractContact(&people.Person{Names: []*people.Name{{DisplayName: "No Mail"}}})
	assert.False(t, ok)

	got, ok := extractContact(&people.Person{
		EmailAddresses: []*people.EmailAddress{
			{Value: "old@example.com"},
			{Value: "main@example.com", Metadata: &people.FieldMetadata{Primary: true}},
		},
	})
	require.True(t, ok)
	assert.Equal(t, attendee.Contact{Email: "main@example.com"}, got)

	got, ok = extractContact(&people.Person{
		Names:          []*people.Name{{DisplayName: "Dana"}},
		EmailAddresses: []*people.EmailAddress{{Value: ""}, {Value: "dana@example.com"}},
	})
	require.True(t, ok)
	assert.Equal(t, attendee.Contact{Name: "Dana", Email: "dana@example.com"}, got)
}
