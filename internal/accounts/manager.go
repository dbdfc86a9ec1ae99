package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"github.com/teemow/meetsched/internal/attendee"
	"github.com/teemow/meetsched/internal/clock"
	"github.com/teemow/meetsched/internal/logging"
)

// TokenRefresher exchanges a refresh token for a new token set.
type TokenRefresher interface {
	Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error)
}

// IdentityLookup discovers the email address that owns a token. It also
// returns the token it ended up using, which differs from tok when the lookup
// had to refresh it.
type IdentityLookup interface {
	LookupEmail(ctx context.Context, tok *oauth2.Token) (string, *oauth2.Token, error)
}

// Invalidator drops derived state held for an account.
type Invalidator interface {
	Invalidate(email string)
}

// RefreshRecorder receives token refresh outcomes for metrics.
type RefreshRecorder interface {
	RecordOAuthTokenRefresh(ctx context.Context, result string)
}

// Options configures a Manager. Refresher is required for token refresh and
// Identity for legacy migration; without them those steps fail or are skipped.
type Options struct {
	Refresher TokenRefresher
	Identity  IdentityLookup
	Clock     clock.Clock
	Logger    *slog.Logger
	Metrics   RefreshRecorder
}

// Manager owns the account document.
type Manager struct {
	store     Store
	refresher TokenRefresher
	identity  IdentityLookup
	clock     clock.Clock
	logger    *slog.Logger
	metrics   RefreshRecorder

	mu     sync.Mutex
	doc    *Document
	failed map[string]error

	invMu        sync.Mutex
	invalidators []Invalidator
}

// NewManager returns a Manager backed by store.
func NewManager(store Store, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     store,
		refresher: opts.Refresher,
		identity:  opts.Identity,
		clock:     clock.OrReal(opts.Clock),
		logger:    logger,
		metrics:   opts.Metrics,
		failed:    map[string]error{},
	}
}

// AddInvalidator registers inv to be told when an account is removed,
// relabelled or re-authenticated.
func (m *Manager) AddInvalidator(inv Invalidator) {
	m.invMu.Lock()
	defer m.invMu.Unlock()
	m.invalidators = append(m.invalidators, inv)
}

// invalidate notifies the invalidators. It must be called without m.mu held
// because caches call back into the Manager while building clients.
func (m *Manager) invalidate(email string) {
	m.invMu.Lock()
	invs := append([]Invalidator(nil), m.invalidators...)
	m.invMu.Unlock()

	for _, inv := range invs {
		inv.Invalidate(email)
	}
}

// loadLocked returns the cached document, loading and migrating it on first use.
func (m *Manager) loadLocked(ctx context.Context) (*Document, error) {
	if m.doc != nil {
		return m.doc, nil
	}
	doc, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	m.doc = doc
	if _, ok := doc.Accounts[LegacyPlaceholder]; ok {
		m.migrateLegacyLocked(ctx)
	}
	return m.doc, nil
}

// migrateLegacyLocked re-keys the placeholder entry under the email that owns
// its token. Failures are logged and leave the placeholder in place so the
// next process start tries again.
func (m *Manager) migrateLegacyLocked(ctx context.Context) {
	logger := logging.WithOperation(m.logger, "accounts.migrate_legacy")
	legacy := m.doc.Accounts[LegacyPlaceholder]

	if m.identity == nil || legacy.Token == nil {
		logger.Warn("legacy token found but cannot determine its account")
		return
	}

	email, current, err := m.identity.LookupEmail(ctx, legacy.Token)
	if err != nil {
		logger.Warn("failed to discover account for legacy token", logging.Err(err))
		return
	}
	email = normalizeEmail(email)
	if !attendee.LooksLikeEmail(email) {
		logger.Warn("identity lookup returned an invalid email")
		return
	}

	if current != nil && current.AccessToken != "" {
		legacy.Token = current
	}

	delete(m.doc.Accounts, LegacyPlaceholder)
	if _, exists := m.doc.Accounts[email]; !exists {
		legacy.Email = email
		if legacy.AddedAt.IsZero() {
			legacy.AddedAt = m.clock.Now()
		}
		m.doc.Accounts[email] = legacy
	}
	if m.doc.DefaultAccount == LegacyPlaceholder {
		m.doc.DefaultAccount = email
	}
	m.doc.repairDefault()

	if err := m.store.Save(m.doc); err != nil {
		logger.Warn("failed to persist migrated account store", logging.Err(err))
		return
	}
	logger.Info("migrated legacy token", logging.Account(email))
}

// saveLocked persists the document after repairing the default pointer.
func (m *Manager) saveLocked() error {
	m.doc.repairDefault()
	return m.store.Save(m.doc)
}

// findAccount matches ref against account emails exactly and labels case-insensitively.
func findAccount(doc *Document, ref string) *Account {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if a, ok := doc.Accounts[normalizeEmail(ref)]; ok {
		return a
	}
	for _, a := range doc.Ordered() {
		if a.Label != "" && strings.EqualFold(a.Label, ref) {
			return a
		}
	}
	return nil
}

// List returns every account in iteration order.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.loadLocked(ctx)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	var infos []Info
	for _, a := range doc.Ordered() {
		state := StateOf(a.Token, now)
		if m.failed[a.Email] != nil {
			state = StateRefreshFailed
		}
		info := Info{
			Email:     a.Email,
			Label:     a.Label,
			IsDefault: a.Email == doc.DefaultAccount,
			State:     state.String(),
		}
		if a.Token != nil {
			info.Expiry = a.Token.Expiry
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Lookup returns the email of the account matching an email or label.
func (m *Manager) Lookup(ctx context.Context, ref string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.loadLocked(ctx)
	if err != nil {
		return "", err
	}
	a := findAccount(doc, ref)
	if a == nil {
		return "", fmt.Errorf("%w: %q", ErrAccountNotFound, ref)
	}
	return a.Email, nil
}

// Default returns the stored default account, or "".
func (m *Manager) Default(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.loadLocked(ctx)
	if err != nil {
		return "", err
	}
	return doc.DefaultAccount, nil
}

// ResolveAccount chooses the account for an operation. It returns "" when
// no account is configured and no default is stored.
func (m *Manager) ResolveAccount(ctx context.Context, hint string, attendeeEmails []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.loadLocked(ctx)
	if err != nil {
		return "", err
	}
	logger := logging.WithOperation(m.logger, "accounts.resolve")

	if strings.TrimSpace(hint) != "" {
		if a := findAccount(doc, hint); a != nil {
			return a.Email, nil
		}
		logger.Info("account hint matched no account, falling back to automatic selection")
	}

	ordered := doc.Ordered()
	if len(ordered) == 1 {
		return ordered[0].Email, nil
	}

	if len(attendeeEmails) > 0 {
		domains := make(map[string]int, len(attendeeEmails))
		for _, e := range attendeeEmails {
			if d := attendee.Domain(e); d != "" {
				domains[d]++
			}
		}
		for _, a := range ordered {
			if domains[a.Domain()] > 0 {
				logger.Debug("selected account by attendee domain", logging.Domain(a.Email))
				return a.Email, nil
			}
		}
	}

	return doc.DefaultAccount, nil
}

// RefreshIfNeeded returns a usable token for email, refreshing and
// persisting it when it is within ExpiryBuffer of expiry.
func (m *Manager) RefreshIfNeeded(ctx context.Context, email string) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	a, ok := doc.Accounts[email]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, email)
	}
	if StateOf(a.Token, m.clock.Now()) == StateUnauthenticated {
		return nil, fmt.Errorf("%w: %s", ErrNoCredentials, email)
	}
	if a.Token.Expiry.IsZero() || a.Token.Expiry.Sub(m.clock.Now()) >= ExpiryBuffer {
		return a.Token, nil
	}

	logger := logging.WithAccount(logging.WithOperation(m.logger, "accounts.refresh"), email)
	if m.refresher == nil {
		return nil, &RefreshError{Email: email, Err: fmt.Errorf("no token refresher configured")}
	}

	fresh, err := m.refresher.Refresh(ctx, a.Token)
	if err != nil {
		m.failed[email] = err
		m.recordRefresh(ctx, "failure")
		logger.Warn("token refresh failed", logging.Err(err))
		return nil, &RefreshError{Email: email, Err: err}
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = a.Token.RefreshToken
	}

	a.Token = fresh
	delete(m.failed, email)
	m.recordRefresh(ctx, "success")

	if err := m.saveLocked(); err != nil {
		logger.Warn("refreshed token could not be persisted", logging.Err(err))
	}
	logger.Debug("token refreshed")
	return fresh, nil
}

func (m *Manager) recordRefresh(ctx context.Context, result string) {
	if m.metrics != nil {
		m.metrics.RecordOAuthTokenRefresh(ctx, result)
	}
}

// TokenSource returns an oauth2.TokenSource that refreshes through the
// Manager, so every request observes the expiry buffer and persistence.
func (m *Manager) TokenSource(ctx context.Context, email string) oauth2.TokenSource {
	return &managedTokenSource{ctx: ctx, manager: m, email: normalizeEmail(email)}
}

type managedTokenSource struct {
	ctx     context.Context
	manager *Manager
	email   string
}

func (s *managedTokenSource) Token() (*oauth2.Token, error) {
	return s.manager.RefreshIfNeeded(s.ctx, s.email)
}

// mutate runs fn on the loaded document under the lock and persists the
// result. It returns the email fn reports as affected.
func (m *Manager) mutate(ctx context.Context, fn func(doc *Document) (string, error)) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.loadLocked(ctx)
	if err != nil {
		return "", err
	}
	email, err := fn(doc)
	if err != nil {
		return "", err
	}
	if err := m.saveLocked(); err != nil {
		return "", err
	}
	return email, nil
}

// SaveAccount stores tok for email, creating the account if needed. The
// first account saved becomes the default. A non-empty label replaces the
// existing one.
func (m *Manager) SaveAccount(ctx context.Context, email, label string, tok *oauth2.Token) error {
	email = normalizeEmail(email)
	if !attendee.LooksLikeEmail(email) {
		return fmt.Errorf("%w: %q", ErrInvalidAccount, email)
	}
	if tok == nil {
		return fmt.Errorf("%w: %s", ErrNoCredentials, email)
	}
	label = strings.TrimSpace(label)

	_, err := m.mutate(ctx, func(doc *Document) (string, error) {
		if label != "" {
			if err := checkLabel(doc, email, label); err != nil {
				return "", err
			}
		}
		a, ok := doc.Accounts[email]
		if !ok {
			a = &Account{Email: email, AddedAt: m.clock.Now()}
			doc.Accounts[email] = a
		}
		a.Token = tok
		if label != "" {
			a.Label = label
		}
		if doc.DefaultAccount == "" {
			doc.DefaultAccount = email
		}
		delete(m.failed, email)
		return email, nil
	})
	if err != nil {
		return err
	}
	m.invalidate(email)
	return nil
}

// RemoveAccount deletes an account by email or label. Removing the default
// moves the default to the first remaining account, or clears it.
func (m *Manager) RemoveAccount(ctx context.Context, ref string) (string, error) {
	email, err := m.mutate(ctx, func(doc *Document) (string, error) {
		a := findAccount(doc, ref)
		if a == nil {
			return "", fmt.Errorf("%w: %q", ErrAccountNotFound, ref)
		}
		delete(doc.Accounts, a.Email)
		delete(m.failed, a.Email)
		return a.Email, nil
	})
	if err != nil {
		return "", err
	}
	m.invalidate(email)
	return email, nil
}

// SetDefault makes the account matching ref the default.
func (m *Manager) SetDefault(ctx context.Context, ref string) (string, error) {
	return m.mutate(ctx, func(doc *Document) (string, error) {
		a := findAccount(doc, ref)
		if a == nil {
			return "", fmt.Errorf("%w: %q", ErrAccountNotFound, ref)
		}
		doc.DefaultAccount = a.Email
		return a.Email, nil
	})
}

// SetLabel sets or, with an empty label, clears the label of an account.
func (m *Manager) SetLabel(ctx context.Context, ref, label string) (string, error) {
	label = strings.TrimSpace(label)
	email, err := m.mutate(ctx, func(doc *Document) (string, error) {
		a := findAccount(doc, ref)
		if a == nil {
			return "", fmt.Errorf("%w: %q", ErrAccountNotFound, ref)
		}
		if label != "" {
			if err := checkLabel(doc, a.Email, label); err != nil {
				return "", err
			}
		}
		a.Label = label
		return a.Email, nil
	})
	if err != nil {
		return "", err
	}
	m.invalidate(email)
	return email, nil
}

// checkLabel rejects labels used by another account or that look like
// another account's email.
func checkLabel(doc *Document, owner, label string) error {
	for _, other := range doc.Accounts {
		if other.Email == owner {
			continue
		}
		if strings.EqualFold(other.Label, label) || strings.EqualFold(other.Email, label) {
			return fmt.Errorf("%w: %q", ErrLabelInUse, label)
		}
	}
	return nil
}
