package main

import (
	"encoding/json"
	"fmt"

	"github.com/flemzord/pulse/pkg/app"
	"github.com/spf13/cobra"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect persisted watcher snapshots",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List snapshot keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := openSnapshots(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()

			keys, err := r.Keys(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	})

	show := &cobra.Command{
		Use:   "show <key>",
		Short: "Print the members stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openSnapshots(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()

			members, err := r.Members(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(members)
			}
			for _, m := range members {
				fmt.Fprintln(out, m)
			}
			return nil
		},
	}
	show.Flags().Bool("json", false, "Print members as a JSON array")
	cmd.AddCommand(show)

	return cmd
}

func openSnapshots(cmd *cobra.Command) (*app.SnapshotReader, error) {
	params, err := runParams(cmd)
	if err != nil {
		return nil, err
	}
	params.LogOutput = cmd.ErrOrStderr()
	return app.OpenSnapshots(params)
}
