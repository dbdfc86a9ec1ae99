package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/meetsched/internal/accounts"
	"github.com/teemow/meetsched/internal/google"
	"github.com/teemow/meetsched/internal/server"
)

// authTimeout bounds how long accounts add waits for the browser consent.
const authTimeout = 5 * time.Minute

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the Google accounts used for scheduling",
		Long: `Manage the Google accounts meetsched schedules with.

Each account is identified by its email address and may carry a short label
such as "work" that can be used wherever an account is expected. The first
account added becomes the default.`,
	}

	cmd.AddCommand(newAccountsAddCmd())
	cmd.AddCommand(newAccountsListCmd())
	cmd.AddCommand(newAccountsRemoveCmd())
	cmd.AddCommand(newAccountsDefaultCmd())
	cmd.AddCommand(newAccountsLabelCmd())

	return cmd
}

func openAccountManager(cmd *cobra.Command) (*accounts.Manager, *slog.Logger, error) {
	cfg, logger, err := loadConfig(cmd, nil)
	if err != nil {
		return nil, nil, err
	}
	mgr, err := server.NewAccountManager(cfg, nil, logger, nil)
	if err != nil {
		return nil, nil, err
	}
	return mgr, logger, nil
}

func newAccountsAddCmd() *cobra.Command {
	var (
		email string
		label string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Authorize a Google account",
		Long: `Authorize a Google account through the browser consent screen.

The authorization URL is printed; after consenting, Google redirects to a
temporary listener on 127.0.0.1 that completes the flow. Running add for an
existing account re-authorizes it.

Requires google.client_id and google.client_secret (or GOOGLE_CLIENT_ID and
GOOGLE_CLIENT_SECRET) of an OAuth client of type "Desktop app".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			creds := server.Credentials(cfg)
			oauthConfig, err := google.NewOAuthConfig(creds, "")
			if err != nil {
				return fmt.Errorf("%w; set google.client_id and google.client_secret", err)
			}
			mgr, err := server.NewAccountManager(cfg, nil, logger, nil)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()
			ctx, cancelTimeout := context.WithTimeout(ctx, authTimeout)
			defer cancelTimeout()

			out := cmd.OutOrStdout()
			flow := &google.LoopbackFlow{
				Credentials: creds,
				LoginHint:   email,
				Logger:      logger,
				Open: func(authURL string) error {
					_, err := fmt.Fprintf(out, "Open this URL in your browser to authorize meetsched:\n\n  %s\n\nWaiting for authorization...\n", authURL)
					return err
				},
			}
			tok, err := flow.Run(ctx)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return fmt.Errorf("authorization not completed within %s", authTimeout)
				}
				return fmt.Errorf("authorization failed: %w", err)
			}

			owner, tok, err := google.NewUserInfoLookup(oauthConfig).LookupEmail(ctx, tok)
			if err != nil {
				return err
			}
			if email != "" && !strings.EqualFold(strings.TrimSpace(email), owner) {
				return fmt.Errorf("authorized as %s, expected %s; sign in with the requested account", owner, email)
			}

			if err := mgr.SaveAccount(ctx, owner, label, tok); err != nil {
				return err
			}
			fmt.Fprintf(out, "Account %s authorized.\n", owner)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Expected account email; pre-selects it on the consent screen")
	cmd.Flags().StringVar(&label, "label", "", "Label for the account, e.g. work")

	return cmd
}

func newAccountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configured accounts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := openAccountManager(cmd)
			if err != nil {
				return err
			}
			infos, err := mgr.List(cmd.Context())
			if err != nil {
				return err
			}
			return printAccounts(cmd.OutOrStdout(), infos)
		},
	}
}

func printAccounts(w io.Writer, infos []accounts.Info) error {
	if len(infos) == 0 {
		_, err := fmt.Fprintln(w, "No accounts configured. Add one with: meetsched accounts add")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tLABEL\tDEFAULT\tSTATE\tEXPIRES")
	for _, info := range infos {
		def := ""
		if info.IsDefault {
			def = "*"
		}
		expires := "-"
		if !info.Expiry.IsZero() {
			expires = info.Expiry.Local().Format(time.RFC3339)
		}
		label := info.Label
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", info.Email, label, def, info.State, expires)
	}
	return tw.Flush()
}

func newAccountsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <email|label>",
		Aliases: []string{"rm"},
		Short:   "Remove an account and its stored token",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := openAccountManager(cmd)
			if err != nil {
				return err
			}
			email, err := mgr.RemoveAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed account %s.\n", email)
			return nil
		},
	}
}

func newAccountsDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default <email|label>",
		Short: "Set the default account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := openAccountManager(cmd)
			if err != nil {
				return err
			}
			email, err := mgr.SetDefault(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default account is now %s.\n", email)
			return nil
		},
	}
}

func newAccountsLabelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "label <email|label> [new-label]",
		Short: "Set or, without new-label, clear the label of an account",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := openAccountManager(cmd)
			if err != nil {
				return err
			}
			label := ""
			if len(args) == 2 {
				label = args[1]
			}
			email, err := mgr.SetLabel(cmd.Context(), args[0], label)
			if err != nil {
				return err
			}
			if label == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Label removed from %s.\n", email)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now labelled %q.\n", email, label)
			}
			return nil
		},
	}
}
