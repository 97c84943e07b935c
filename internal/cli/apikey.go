package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/auth"
	"github.com/roach88/tally/internal/store"
)

// CreatedKey is the output of apikey create. Secret is shown only once.
type CreatedKey struct {
	auth.APIKey
	Secret string `json:"secret"`
}

// NewAPIKeyCommand creates the apikey command group.
func NewAPIKeyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage ingest API keys",
		Long: `Create, list and revoke the API keys that authorise ingest requests.

Only a digest of each key is stored; the secret is printed once on creation.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "create <name>",
		Short:         "Issue a new API key",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAPIKeyCreate(rootOpts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List API keys",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAPIKeyList(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "revoke <id>",
		Short:         "Revoke an API key",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAPIKeyRevoke(rootOpts, args[0], cmd)
		},
	})

	return cmd
}

func runAPIKeyCreate(opts *RootOptions, name string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	logr := opts.logger(cmd.ErrOrStderr())

	name = strings.TrimSpace(name)
	if name == "" {
		return f.Fail(ExitCommandError, ErrCodeInput, "key name must not be empty", nil, nil)
	}

	_, st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer closeStore(st, logr)

	secret, key, err := auth.Issue(cmd.Context(), st, name, time.Now())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to issue key", err, nil)
	}

	if f.JSON() {
		return f.Success(CreatedKey{APIKey: key, Secret: secret})
	}
	f.Okf("Created key %s (%s)", bold.Sprint(key.Name), key.ID)
	fmt.Fprintln(f.Writer, secret)
	yellow.Fprintln(f.Writer, "Store this key now; it cannot be shown again.")
	return nil
}

func runAPIKeyList(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	logr := opts.logger(cmd.ErrOrStderr())

	_, st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer closeStore(st, logr)

	keys, err := st.ListAPIKeys(cmd.Context())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to list keys", err, nil)
	}

	if f.JSON() {
		return f.Success(map[string]any{"keys": keys})
	}
	if len(keys) == 0 {
		fmt.Fprintln(f.Writer, "No API keys.")
		return nil
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPREFIX\tCREATED\tSTATUS")
	for _, k := range keys {
		status := "active"
		if k.Revoked() {
			status = "revoked " + k.RevokedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", k.ID, k.Name, k.Prefix, k.CreatedAt.UTC().Format(time.RFC3339), status)
	}
	return tw.Flush()
}

func runAPIKeyRevoke(opts *RootOptions, id string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	logr := opts.logger(cmd.ErrOrStderr())

	_, st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer closeStore(st, logr)

	if err := st.RevokeAPIKey(cmd.Context(), id, time.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("api key %q not found", id), nil, nil)
		}
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to revoke key", err, nil)
	}

	if f.JSON() {
		return f.Success(map[string]string{"id": id, "status": "revoked"})
	}
	f.Okf("Revoked key %s", id)
	return nil
}
