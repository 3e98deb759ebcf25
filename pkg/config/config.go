package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"

	"github.com/sidkik/foldersync/pkg/errors"
)

// fs is used for mock tests. It will be overridden by afero.NewMemMapFs()
// in the tests.
var fs = afero.NewOsFs()

// VersionError is returned for a config file written for another version of
// foldersync.
type VersionError struct {
	Path     string
	Expected string
	Actual   string
}

func (err VersionError) Error() string {
	return err.FriendlyMessage()
}

// FriendlyMessage tells the user which version the file should declare.
func (err VersionError) FriendlyMessage() string {
	return fmt.Sprintf("%q declares config version %q, but this build of "+
		"foldersync reads version %q.\n"+
		"Update the version field, and check the other fields against the "+
		"current format.", err.Path, err.Actual, err.Expected)
}

// InvalidFileError is returned for a config file that isn't valid YAML, has
// fields of the wrong type, or has fields foldersync doesn't know about.
type InvalidFileError struct {
	Path string
	Err  error
}

func (err InvalidFileError) Error() string {
	return fmt.Sprintf("invalid config file %q: %s", err.Path, err.Err)
}

// FriendlyMessage lists the accepted fields, since the YAML error alone
// rarely says what was expected.
func (err InvalidFileError) FriendlyMessage() string {
	return fmt.Sprintf("%q isn't a valid foldersync config file.\n"+
		"The accepted fields are version, source, replica, logs (paths) and "+
		"interval (a number of seconds).\n\n"+
		"Parser error: %s", err.Path, err.Err)
}

func (err InvalidFileError) Unwrap() error {
	return err.Err
}

// ParseFile parses the Settings in the config file at `path`. Relative paths
// in the file are resolved against the file's directory.
func ParseFile(path string) (Settings, error) {
	path, err := homedirExpand(path)
	if err != nil {
		return Settings{}, errors.WithContext(err, "expand config path")
	}

	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return Settings{}, errors.NewFriendlyError(
				"The config file %q doesn't exist.", path)
		}
		return Settings{}, errors.WithContext(err, "read config")
	}

	// A file written for another version is reported as such, rather than
	// as having unknown fields.
	var header struct {
		Version string `json:"version"`
	}
	if err := yaml.Unmarshal(raw, &header); err != nil {
		return Settings{}, InvalidFileError{Path: path, Err: err}
	}
	if header.Version == "" {
		header.Version = InitialVersion
	}
	if header.Version != SupportedVersion {
		return Settings{}, VersionError{
			Path:     path,
			Expected: SupportedVersion,
			Actual:   header.Version,
		}
	}

	settings := Settings{Version: InitialVersion}
	err = yaml.UnmarshalStrict(raw, &settings, yaml.DisallowUnknownFields)
	if err != nil {
		return Settings{}, InvalidFileError{Path: path, Err: err}
	}

	base := filepath.Dir(path)
	for _, p := range []*string{&settings.Source, &settings.Replica, &settings.LogDir} {
		if *p == "" {
			continue
		}

		expanded, err := homedirExpand(*p)
		if err != nil {
			return Settings{}, errors.WithContext(err, "expand path")
		}
		if !filepath.IsAbs(expanded) {
			expanded = filepath.Join(base, expanded)
		}
		*p = expanded
	}
	return settings, nil
}
