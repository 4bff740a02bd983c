package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/superplanehq/gauth/pkg/config"
	"github.com/superplanehq/gauth/pkg/gcp/common"
	"github.com/superplanehq/gauth/pkg/gcp/credentials"
	"github.com/superplanehq/gauth/pkg/gcp/gcloud"
	"github.com/superplanehq/gauth/pkg/gcp/source"
	"github.com/superplanehq/gauth/pkg/logging"
)

type Options struct {
	LookupEnv  gcloud.LookupEnv
	GOOS       string
	HTTPClient *http.Client
	Out        io.Writer
	Err        io.Writer
}

// app is the state shared by subcommands once flags and config are loaded.
type app struct {
	opts   Options
	viper  *viper.Viper
	config *config.Config
	logger *logrus.Entry
}

func (a *app) context(ctx context.Context) context.Context {
	return credentials.WithHTTPClient(ctx, a.opts.HTTPClient)
}

func (a *app) resolve() (*source.Resolved, error) {
	resolver := source.New(source.Options{
		LookupEnv:       a.opts.LookupEnv,
		GOOS:            a.opts.GOOS,
		CredentialsFile: a.config.Credentials,
		Logger:          a.logger,
	})
	return resolver.Load()
}

func (a *app) projectID(resolved *source.Resolved) string {
	if a.config.Project != "" {
		return a.config.Project
	}
	return resolved.ProjectID()
}

func (a *app) restClient(ctx context.Context, resolved *source.Resolved) (*common.Client, error) {
	creds := resolved.GoogleCredentials(a.context(ctx), a.config.Audience)
	creds.ProjectID = a.projectID(resolved)
	return common.NewClient(a.opts.HTTPClient, creds, a.config.Endpoint)
}

func NewRootCmd(opts Options) *cobra.Command {
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}

	a := &app{opts: opts, viper: config.New()}
	var configPath string

	cmd := &cobra.Command{
		Use:           "gauth",
		Short:         "Resolve Google Cloud credentials and query BigQuery",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ReadFile(a.viper, configPath); err != nil {
				return err
			}

			cfg, err := config.Load(a.viper)
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, opts.Err)
			if err != nil {
				return err
			}

			a.config = cfg
			a.logger = logger
			return nil
		},
	}
	cmd.SetOut(opts.Out)
	cmd.SetErr(opts.Err)

	flags := cmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default ~/.config/gauth/config.yaml)")
	flags.String("credentials", "", "Credential JSON file; skips discovery")
	flags.String("project", "", "Project ID; defaults to the credential's project")
	flags.String("endpoint", common.DefaultBigQueryURL, "BigQuery REST endpoint")
	flags.String("log-level", "info", "Log level")
	flags.String("log-format", "text", "Log format (text or json)")

	bindings := map[string]string{
		config.KeyCredentials: "credentials",
		config.KeyProject:     "project",
		config.KeyEndpoint:    "endpoint",
		config.KeyLogLevel:    "log-level",
		config.KeyLogFormat:   "log-format",
	}
	for key, flag := range bindings {
		_ = a.viper.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.AddCommand(newTokenCmd(a))
	cmd.AddCommand(newWhoamiCmd(a))
	cmd.AddCommand(newQueryCmd(a))
	cmd.AddCommand(newTablesCmd(a))

	return cmd
}

func Execute() {
	cmd := NewRootCmd(Options{})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
