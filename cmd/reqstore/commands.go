// ABOUTME: One-shot subcommands operating directly on the database
// ABOUTME: export, settings, kv and reconcile

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/2389/reqstore/internal/store"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newExportCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <workspace-id>",
		Short: "Export a workspace's definitions as JSON",
		Long: `Export writes the workspace together with its environments, folders,
HTTP requests and gRPC requests. Responses and connections are not exported.

Example:
  reqstore export wk_AbC123xYz0
  reqstore export wk_AbC123xYz0 -o backup.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			exp, err := s.ExportWorkspace(cmd.Context(), args[0], a.cfg.App.Version)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("workspace %q not found", args[0])
			}
			if err != nil {
				return fmt.Errorf("export workspace: %w", err)
			}

			if output == "" {
				return printJSON(cmd.OutOrStdout(), exp)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err := printJSON(f, exp); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newSettingsCmd(a *app) *cobra.Command {
	var theme, appearance, channel string

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or update application settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			st, err := s.GetOrCreateSettings(ctx)
			if err != nil {
				return fmt.Errorf("get settings: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("theme") || flags.Changed("appearance") || flags.Changed("update-channel") {
				if flags.Changed("theme") {
					st.Theme = theme
				}
				if flags.Changed("appearance") {
					st.Appearance = appearance
				}
				if flags.Changed("update-channel") {
					st.UpdateChannel = channel
				}
				st, err = s.UpdateSettings(ctx, st)
				if err != nil {
					return fmt.Errorf("update settings: %w", err)
				}
			}

			return printJSON(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "", "color theme")
	cmd.Flags().StringVar(&appearance, "appearance", "", "light, dark or system")
	cmd.Flags().StringVar(&channel, "update-channel", "", "stable or beta")
	return cmd
}

func newKVCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Inspect and edit namespaced key/value entries",
	}

	get := &cobra.Command{
		Use:   "get <namespace> <key>",
		Short: "Print the stored JSON value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			kv, err := s.GetKeyValueRaw(cmd.Context(), args[0], args[1])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("key %s::%s not found", args[0], args[1])
			}
			if err != nil {
				return fmt.Errorf("get key: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), kv.Value)
			return err
		},
	}

	var asInt, asRaw bool
	set := &cobra.Command{
		Use:   "set <namespace> <key> <value>",
		Short: "Store a value (a JSON string unless --int or --raw)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ns, key, value := args[0], args[1], args[2]

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			var created bool
			switch {
			case asInt:
				n, perr := strconv.ParseInt(value, 10, 64)
				if perr != nil {
					return fmt.Errorf("value %q is not an integer", value)
				}
				_, created, err = s.SetKeyValueInt(ctx, ns, key, n)
			case asRaw:
				_, created, err = s.SetKeyValueRaw(ctx, ns, key, value)
			default:
				_, created, err = s.SetKeyValueString(ctx, ns, key, value)
			}
			if err != nil {
				return fmt.Errorf("set key: %w", err)
			}

			verb := "updated"
			if created {
				verb = "created"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s::%s\n", verb, ns, key)
			return err
		},
	}
	set.Flags().BoolVar(&asInt, "int", false, "store the value as an integer")
	set.Flags().BoolVar(&asRaw, "raw", false, "store the value as literal JSON")
	set.MarkFlagsMutuallyExclusive("int", "raw")

	list := &cobra.Command{
		Use:   "list <namespace>",
		Short: "List entries in a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			kvs, err := s.ListKeyValues(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("list keys: %w", err)
			}
			for _, kv := range kvs {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", kv.Key, kv.Value); err != nil {
					return err
				}
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <namespace> <key>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.DeleteKeyValue(cmd.Context(), args[0], args[1]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("key %s::%s not found", args[0], args[1])
				}
				return fmt.Errorf("delete key: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s::%s\n", args[0], args[1])
			return err
		},
	}

	cmd.AddCommand(get, set, list, del)
	return cmd
}

func newReconcileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Mark responses and connections left in flight as cancelled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			responses, err := s.CancelPendingHTTPResponses(ctx)
			if err != nil {
				return fmt.Errorf("cancel http responses: %w", err)
			}
			conns, err := s.CancelPendingGRPCConnections(ctx)
			if err != nil {
				return fmt.Errorf("cancel grpc connections: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cancelled %d http responses, %d grpc connections\n", responses, conns)
			return err
		},
	}
}
