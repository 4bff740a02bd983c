package gcloud

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/superplanehq/gauth/pkg/gcp/credentials"
)

const (
	EnvCloudSDKConfig = "CLOUDSDK_CONFIG"

	adcFileName     = "application_default_credentials.json"
	legacyADCFile   = "adc.json"
	configurations  = "configurations"
	defaultConfig   = "config_default"
	legacyCredsDir  = "legacy_credentials"
	gcloudDirectory = "gcloud"
)

type LookupEnv func(key string) (string, bool)

// Directory is the gcloud CLI's per-user state directory.
type Directory struct {
	Root string
}

// NewDirectory locates the gcloud directory: $CLOUDSDK_CONFIG when set,
// otherwise <user config>/gcloud where the user config directory is
// %APPDATA% on windows and $HOME/.config elsewhere.
func NewDirectory(lookupEnv LookupEnv, goos string) (*Directory, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	if dir, ok := lookupEnv(EnvCloudSDKConfig); ok && dir != "" {
		return &Directory{Root: dir}, nil
	}

	userConfig, err := userConfigDir(lookupEnv, goos)
	if err != nil {
		return nil, err
	}
	return &Directory{Root: filepath.Join(userConfig, gcloudDirectory)}, nil
}

func userConfigDir(lookupEnv LookupEnv, goos string) (string, error) {
	if goos == "windows" {
		appData, ok := lookupEnv("APPDATA")
		if !ok || appData == "" {
			return "", credentials.FailedToLoad("APPDATA", fmt.Errorf("environment variable is not set"))
		}
		return appData, nil
	}

	home, ok := lookupEnv("HOME")
	if !ok || home == "" {
		return "", credentials.FailedToLoad("HOME", fmt.Errorf("environment variable is not set"))
	}
	return filepath.Join(home, ".config"), nil
}

func (d *Directory) ApplicationDefaultCredentials() string {
	return filepath.Join(d.Root, adcFileName)
}

func (d *Directory) ConfigDefault() string {
	return filepath.Join(d.Root, configurations, defaultConfig)
}

func (d *Directory) LegacyCredentials(account string) string {
	return filepath.Join(d.Root, legacyCredsDir, account, legacyADCFile)
}

// LoadProfile reads the default configuration and returns its [core] entry.
func (d *Directory) LoadProfile() (*ProfileEntry, error) {
	path := d.ConfigDefault()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, credentials.FailedToLoad(path, err)
	}

	entry := ParseProfile(raw)
	if entry == nil {
		return nil, credentials.ProfileNotFound(path)
	}
	return entry, nil
}
