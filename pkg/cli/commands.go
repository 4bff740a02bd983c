package cli

import (
	"encoding/json"
	"fmt"

	"github.com/ghodss/yaml"
	"github.com/spf13/cobra"
	"github.com/superplanehq/gauth/pkg/gcp/bigquery"
)

func newTokenCmd(a *app) *cobra.Command {
	var audience string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the resolved credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := a.resolve()
			if err != nil {
				return err
			}

			if audience == "" {
				audience = a.config.Audience
			}
			token, err := resolved.Token(a.context(cmd.Context()), audience)
			if err != nil {
				return fmt.Errorf("failed to issue token from %s: %w", resolved.Source, err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&audience, "audience", "", "JWT audience for service account tokens")
	return cmd
}

type identity struct {
	Source        string `json:"source"`
	Kind          string `json:"kind"`
	Email         string `json:"email,omitempty"`
	Project       string `json:"project,omitempty"`
	ProfileBacked bool   `json:"profileBacked"`
}

func newWhoamiCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show which credential would be used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := a.resolve()
			if err != nil {
				return err
			}

			id := identity{
				Source:        resolved.Source,
				Kind:          resolved.Kind(),
				Email:         resolved.Email(),
				Project:       a.projectID(resolved),
				ProfileBacked: resolved.ProfileBacked(),
			}

			var data []byte
			switch output {
			case "json":
				data, err = json.MarshalIndent(id, "", "  ")
				data = append(data, '\n')
			case "yaml":
				data, err = yaml.Marshal(id)
			default:
				return fmt.Errorf("unsupported output %q: expected json or yaml", output)
			}
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "Output format (json or yaml)")
	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	var (
		location   string
		maxResults int64
		dryRun     bool
		legacySQL  bool
		dataset    string
	)

	cmd := &cobra.Command{
		Use:   "query SQL",
		Short: "Run a query and print the result as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			resolved, err := a.resolve()
			if err != nil {
				return err
			}

			client, err := a.restClient(ctx, resolved)
			if err != nil {
				return err
			}

			if location == "" {
				location = a.config.Location
			}
			opts := []bigquery.QueryOption{bigquery.WithLocation(location)}
			if maxResults > 0 {
				opts = append(opts, bigquery.WithMaxResults(maxResults))
			}
			if dryRun {
				opts = append(opts, bigquery.WithDryRun())
			}
			if legacySQL {
				opts = append(opts, bigquery.WithLegacySQL())
			}
			if dataset != "" {
				opts = append(opts, bigquery.WithDefaultDataset(client.ProjectID(), dataset))
			}

			poller := a.config.Poller()
			poller.Logger = a.logger

			result, err := bigquery.Run(ctx, client, poller, "", bigquery.NewQueryRequest(args[0], opts...))
			if err != nil {
				return err
			}

			if result.DryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d bytes would be processed\n", result.TotalBytesProcessed)
				return nil
			}

			out, err := bigquery.ToCSV(result.Schema, result.Rows)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&location, "location", "", "Job location (defaults to config location)")
	cmd.Flags().Int64Var(&maxResults, "max-results", 0, "Maximum rows per page")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the query and report bytes processed")
	cmd.Flags().BoolVar(&legacySQL, "legacy-sql", false, "Use legacy SQL")
	cmd.Flags().StringVar(&dataset, "dataset", "", "Default dataset for unqualified table names")
	return cmd
}

func newTablesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables DATASET",
		Short: "List the tables in a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			resolved, err := a.resolve()
			if err != nil {
				return err
			}

			client, err := a.restClient(ctx, resolved)
			if err != nil {
				return err
			}

			tables, err := bigquery.ListTables(ctx, client, "", args[0])
			if err != nil {
				return err
			}

			for _, table := range tables {
				if table.TableReference == nil {
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), table.TableReference.TableId)
			}
			return nil
		},
	}
}
