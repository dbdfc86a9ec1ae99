package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/teemow/meetsched/internal/logging"
)

const callbackPath = "/callback"

// LoopbackFlow runs the installed-application authorization code flow. The
// browser is redirected to a temporary listener on 127.0.0.1 which receives
// the authorization code.
type LoopbackFlow struct {
	Credentials Credentials

	// Open presents the authorization URL to the user, for example by
	// printing it or launching a browser.
	Open func(authURL string) error

	// LoginHint pre-selects the Google account on the consent screen.
	LoginHint string

	Logger *slog.Logger
}

type callbackResult struct {
	code string
	err  error
}

// Run blocks until the user completes the consent screen or ctx is done and
// returns the exchanged token.
func (f *LoopbackFlow) Run(ctx context.Context) (*oauth2.Token, error) {
	if f.Open == nil {
		return nil, errors.New("loopback flow requires an Open function")
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}

	config, err := NewOAuthConfig(f.Credentials, "http://"+ln.Addr().String()+callbackPath)
	if err != nil {
		_ = ln.Close()
		return nil, err
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.Handle(callbackPath, callbackHandler(state, results))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Callback server stopped", logging.Err(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	}
	if f.LoginHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", f.LoginHint))
	}
	if err := f.Open(config.AuthCodeURL(state, opts...)); err != nil {
		return nil, fmt.Errorf("failed to open authorization URL: %w", err)
	}

	var res callbackResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-results:
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := config.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	if tok.RefreshToken == "" {
		return nil, errors.New("authorization returned no refresh token; revoke the app's access and try again")
	}
	return tok, nil
}

func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var res callbackResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("state") != state:
			res.err = errors.New("authorization state mismatch")
		case q.Get("code") == "":
			res.err = errors.New("authorization response carries no code")
		default:
			res.code = q.Get("code")
		}

		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			_, _ = fmt.Fprintln(w, "Authorization complete. You can close this window.")
		}

		select {
		case results <- res:
		default:
		}
	})
}
