// Package config turns the command line and the optional YAML config file
// into the Config used by every reconciliation pass.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"
	yaml "gopkg.in/yaml.v3"

	"github.com/studio1767/dirmirror/internal/auditlog"
	"github.com/studio1767/dirmirror/internal/ops"
)

const (
	SourceName  = "source"
	ReplicaName = "replica"
	LockName    = ".dirmirror.lock"
)

type Config struct {
	BaseDir    string
	SourceDir  string
	ReplicaDir string
	LogDir     string
	LogFile    string
	LockFile   string
	Interval   time.Duration

	Exclude           []string
	IncludeExtensions []string
	ExcludeExtensions []string

	// ReportDir, when set, receives a manifest of every pass that changed
	// something.
	ReportDir string

	// Archive, when set, uploads the same manifests to S3.
	Archive *Archive
}

type Archive struct {
	Profile     string `yaml:"profile"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	SecretsFile string `yaml:"secrets_file"`
	Compress    bool   `yaml:"compress"`
}

// file is the layout of the YAML config file.
type file struct {
	Exclude           []string `yaml:"exclude"`
	IncludeExtensions []string `yaml:"include_extensions"`
	ExcludeExtensions []string `yaml:"exclude_extensions"`
	ReportDir         string   `yaml:"report_dir"`
	Archive           *Archive `yaml:"archive"`
}

// FromArgs validates the positional arguments
//
//	<directory_path> <interval_seconds> <log_directory>
//
// and builds the Config from them. Both directories must already exist.
func FromArgs(fsys afero.Fs, args []string) (*Config, error) {
	if len(args) != 3 {
		return nil, &ErrUsage{msg: "Invalid number of arguments. Expected 3 arguments."}
	}

	base := args[0]
	if !isDir(fsys, base) {
		return nil, &ErrUsage{msg: fmt.Sprintf("Directory path does not exist: %s", base)}
	}

	seconds, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return nil, &ErrUsage{msg: fmt.Sprintf("Synchronization interval must be a non-negative integer: %s", args[1])}
	}

	logdir := args[2]
	if !isDir(fsys, logdir) {
		return nil, &ErrUsage{msg: fmt.Sprintf("Log path does not exist: %s", logdir)}
	}

	cfg := Config{
		BaseDir:    base,
		SourceDir:  filepath.Join(base, SourceName),
		ReplicaDir: filepath.Join(base, ReplicaName),
		LogDir:     logdir,
		LogFile:    filepath.Join(logdir, auditlog.FileName),
		LockFile:   filepath.Join(base, LockName),
		Interval:   time.Duration(seconds) * time.Second,
	}
	return &cfg, nil
}

func isDir(fsys afero.Fs, path string) bool {
	fi, err := fsys.Stat(path)
	return err == nil && fi.IsDir()
}

// LoadFile merges the settings of a YAML config file into the config.
func (cfg *Config) LoadFile(fsys afero.Fs, path string) error {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ErrNoConfigFile{path: path}
		}
		return err
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return &ErrBadConfigFile{path: path, err: err}
	}

	cfg.Exclude = append(cfg.Exclude, f.Exclude...)
	cfg.IncludeExtensions = append(cfg.IncludeExtensions, f.IncludeExtensions...)
	cfg.ExcludeExtensions = append(cfg.ExcludeExtensions, f.ExcludeExtensions...)
	if f.ReportDir != "" {
		cfg.ReportDir = f.ReportDir
	}

	if f.Archive != nil {
		if f.Archive.Bucket == "" {
			return &ErrBadConfigFile{path: path, err: errors.New("archive: bucket is required")}
		}
		if f.Archive.Profile == "" {
			f.Archive.Profile = "default"
		}
		if f.Archive.SecretsFile == "" {
			f.Archive.SecretsFile = "default"
		}
		cfg.Archive = f.Archive
	}

	return nil
}

// NameFilter builds the filter selecting the files to mirror.
func (cfg *Config) NameFilter() (*ops.NameFilter, error) {
	return ops.NewNameFilter(cfg.Exclude, cfg.IncludeExtensions, cfg.ExcludeExtensions)
}
