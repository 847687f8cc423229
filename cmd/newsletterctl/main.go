// Command newsletterctl runs imports, segments and sends from the shell
// against the same database as the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ignite/newsletter/internal/app"
	"github.com/ignite/newsletter/internal/config"
	"github.com/ignite/newsletter/internal/gpg"
)

var configPath string

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "newsletterctl",
		Short:         "Operate newsletter lists, segments and campaigns",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")
	root.AddCommand(newImportCmd(), newSegmentCmd(), newSendCmd(), newGPGCmd())
	return root
}

// connect builds the services; the caller must Close the app.
func connect(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return nil, err
	}
	cfg.RSS.Enabled = false
	return app.New(ctx, cfg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseFilters(s string) (map[string]any, error) {
	raw := map[string]any{}
	if s == "" {
		return raw, nil
	}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("--filters: %w", err)
	}
	return raw, nil
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import subscribers from CSV",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "file <list-id> <path>",
		Short: "Import a local CSV file into a list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			a, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.Lists.ImportCSV(cmd.Context(), args[0], f)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	})

	var bucket string
	s3Cmd := &cobra.Command{
		Use:   "s3 <list-id> <key>",
		Short: "Import a CSV object from S3 into a list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.S3 == nil {
				return fmt.Errorf("s3 is not configured")
			}
			summary, err := a.S3.Import(cmd.Context(), args[0], bucket, args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	s3Cmd.Flags().StringVar(&bucket, "bucket", "", "bucket name (default from S3_DEFAULT_BUCKET)")
	cmd.AddCommand(s3Cmd)
	return cmd
}

func newSegmentCmd() *cobra.Command {
	var filters, org string
	cmd := &cobra.Command{
		Use:   "segment <list-id>",
		Short: "Evaluate a filter document against a list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := parseFilters(filters)
			if err != nil {
				return err
			}
			a, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Lists.Segment(cmd.Context(), org, args[0], raw)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&filters, "filters", "", `filter document, e.g. '{"age":{"$gt":30}}'`)
	cmd.Flags().StringVar(&org, "org", "", "organization that must own the list")
	return cmd
}

func newSendCmd() *cobra.Command {
	var filters, org string
	cmd := &cobra.Command{
		Use:   "send <campaign-id>",
		Short: "Send a campaign to the matching subscribers of its list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := parseFilters(filters)
			if err != nil {
				return err
			}
			a, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Campaigns.Send(cmd.Context(), org, args[0], raw)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&filters, "filters", "", "filter document as JSON")
	cmd.Flags().StringVar(&org, "org", "", "organization owning the campaign")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func newGPGCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gpg",
		Short: "Inspect PGP public keys",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "key-info <armored-key-file>",
		Short: "Print the id, fingerprint and identities of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			info, err := gpg.NewService().KeyInfo(string(data))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	})
	return cmd
}
