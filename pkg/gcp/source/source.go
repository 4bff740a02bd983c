package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/superplanehq/gauth/pkg/gcp/credentials"
	"github.com/superplanehq/gauth/pkg/gcp/gcloud"
	"github.com/superplanehq/gauth/pkg/logging"
	"golang.org/x/oauth2/google"
)

const (
	EnvApplicationCredentials = "GOOGLE_APPLICATION_CREDENTIALS"

	SourceProfile       = "profile"
	SourceEnvJSON       = "env-json"
	SourceEnvFile       = "env-file"
	SourceWellKnownFile = "well-known-file"
	SourceExplicitFile  = "explicit-file"
)

type Status int

const (
	NotFound Status = iota
	Found
	Failed
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case Failed:
		return "failed"
	default:
		return "not_found"
	}
}

type Result struct {
	Status   Status
	Resolved *Resolved
	Err      error
}

func found(r *Resolved) Result {
	return Result{Status: Found, Resolved: r}
}

func notFound(err error) Result {
	return Result{Status: NotFound, Err: err}
}

func failed(err error) Result {
	return Result{Status: Failed, Err: err}
}

func missing(format string, a ...any) Result {
	return notFound(fmt.Errorf(format, a...))
}

type Step struct {
	ID   string
	Load func() Result
}

// Resolved is the credential produced by a Load call.
// Profile is set only when the credential came from a gcloud profile.
type Resolved struct {
	Source      string
	Credentials *credentials.Schema
	Profile     *gcloud.ProfileEntry
}

func (r *Resolved) ProfileBacked() bool {
	return r.Profile != nil
}

func (r *Resolved) Kind() string {
	return r.Credentials.Kind()
}

// Email prefers the profile account over the service account identity.
func (r *Resolved) Email() string {
	if r.Profile != nil {
		return r.Profile.Account
	}
	return r.Credentials.Email()
}

func (r *Resolved) ProjectID() string {
	if r.Profile != nil {
		return r.Profile.Project
	}
	return r.Credentials.ProjectID()
}

func (r *Resolved) Token(ctx context.Context, audience string) (string, error) {
	return r.Credentials.Token(ctx, audience)
}

// GoogleCredentials wraps the credential for clients built on golang.org/x/oauth2.
func (r *Resolved) GoogleCredentials(ctx context.Context, audience string) *google.Credentials {
	return &google.Credentials{
		ProjectID:   r.ProjectID(),
		TokenSource: credentials.TokenSource(ctx, r.Credentials, audience),
	}
}

type Options struct {
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv gcloud.LookupEnv

	// GOOS defaults to runtime.GOOS.
	GOOS string

	// CredentialsFile, when set, is the only source consulted.
	CredentialsFile string

	Logger *logrus.Entry
}

type Resolver struct {
	lookupEnv       gcloud.LookupEnv
	goos            string
	credentialsFile string
	logger          *logrus.Entry
}

func New(opts Options) *Resolver {
	r := &Resolver{
		lookupEnv:       opts.LookupEnv,
		goos:            opts.GOOS,
		credentialsFile: opts.CredentialsFile,
		logger:          opts.Logger,
	}
	if r.lookupEnv == nil {
		r.lookupEnv = os.LookupEnv
	}
	if r.goos == "" {
		r.goos = runtime.GOOS
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	return r
}

// Steps returns the discovery chain in the order it is consulted.
func (r *Resolver) Steps() []Step {
	if r.credentialsFile != "" {
		return []Step{{ID: SourceExplicitFile, Load: r.loadExplicitFile}}
	}

	return []Step{
		{ID: SourceProfile, Load: r.loadProfile},
		{ID: SourceEnvJSON, Load: r.loadEnvJSON},
		{ID: SourceEnvFile, Load: r.loadEnvFile},
		{ID: SourceWellKnownFile, Load: r.loadWellKnownFile},
	}
}

// Load walks the chain and returns the first credential found. Nothing is
// cached; every call re-reads the environment and the filesystem.
func (r *Resolver) Load() (*Resolved, error) {
	var lastID string
	var lastErr error

	for _, step := range r.Steps() {
		result := step.Load()
		logger := r.logger.WithFields(logrus.Fields{
			"source":  step.ID,
			"outcome": result.Status.String(),
		})

		if result.Status == Found {
			result.Resolved.Source = step.ID
			logger.Debug("credential source selected")
			return result.Resolved, nil
		}

		if result.Err != nil {
			logger = logger.WithError(result.Err)
		}
		logger.Debug("credential source skipped")

		lastID = step.ID
		lastErr = result.Err
	}

	if lastErr == nil {
		lastErr = errors.New("no credentials")
	}
	return nil, fmt.Errorf("all credential sources failed; last tried %s: %w", lastID, lastErr)
}

func (r *Resolver) directory() (*gcloud.Directory, error) {
	return gcloud.NewDirectory(r.lookupEnv, r.goos)
}

func (r *Resolver) loadProfile() Result {
	dir, err := r.directory()
	if err != nil {
		return failed(err)
	}

	profile, err := dir.LoadProfile()
	if err != nil {
		if credentials.IsKind(err, credentials.KindProfileNotFound) || errors.Is(err, os.ErrNotExist) {
			return notFound(err)
		}
		return failed(err)
	}

	schema, err := credentials.ParseFile(dir.LegacyCredentials(profile.Account))
	if err != nil {
		return failed(err)
	}
	return found(&Resolved{Credentials: schema, Profile: profile})
}

func (r *Resolver) envValue() (string, bool) {
	value, ok := r.lookupEnv(EnvApplicationCredentials)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func isInlineJSON(value string) bool {
	return strings.HasPrefix(value, "{")
}

func (r *Resolver) loadEnvJSON() Result {
	value, ok := r.envValue()
	if !ok {
		return missing("%s is not set", EnvApplicationCredentials)
	}
	if !isInlineJSON(value) {
		return missing("%s does not hold inline JSON", EnvApplicationCredentials)
	}

	schema, err := credentials.Parse([]byte(value))
	if err != nil {
		return failed(fmt.Errorf("%s: %w", EnvApplicationCredentials, err))
	}
	return found(&Resolved{Credentials: schema})
}

func (r *Resolver) loadEnvFile() Result {
	value, ok := r.envValue()
	if !ok {
		return missing("%s is not set", EnvApplicationCredentials)
	}
	if isInlineJSON(value) {
		return missing("%s holds inline JSON, not a path", EnvApplicationCredentials)
	}
	return r.loadFile(value)
}

func (r *Resolver) loadWellKnownFile() Result {
	dir, err := r.directory()
	if err != nil {
		return failed(err)
	}

	path := dir.ApplicationDefaultCredentials()
	if _, err := os.Stat(path); err != nil {
		return notFound(credentials.FailedToLoad(path, err))
	}
	return r.loadFile(path)
}

func (r *Resolver) loadExplicitFile() Result {
	return r.loadFile(r.credentialsFile)
}

func (r *Resolver) loadFile(path string) Result {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return failed(credentials.FailedToLoad(path, err))
	}

	schema, err := credentials.ParseFile(expanded)
	if err != nil {
		return failed(err)
	}
	return found(&Resolved{Credentials: schema})
}
