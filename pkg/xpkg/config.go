// Package xpkg exposes the embedder API: a Handle created from
// configuration, the transaction staging calls consumed by the
// front-ends, and transaction execution over the database lock.
package xpkg

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Flags is the bitmask of global behavior switches on a Handle.
type Flags int

// Handle flags.
const (
	FlagDebug Flags = 1 << iota
	FlagVerbose
	FlagForceRemoveFiles
	FlagDisableSyslog
	FlagForceRevdeps
)

// Has reports whether all bits in f2 are set.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// Config is the handle configuration. Zero values are filled with
// defaults by Init.
type Config struct {
	// Rootdir is the target root directory. Default "/".
	Rootdir string `yaml:"rootdir"`

	// Cachedir is the package cache directory. Default
	// "<rootdir>/var/cache/xpkg".
	Cachedir string `yaml:"cachedir"`

	// Conffile is a path or glob of configuration drop-ins. Default
	// "<rootdir>/etc/xpkg.d/*.conf". Files merge in lexical order;
	// later files win per key.
	Conffile string `yaml:"-"`

	// Repositories lists repository index files, highest priority
	// first. Entries are paths to index files; the path doubles as
	// the repository URI tag.
	Repositories []string `yaml:"repositories"`

	// Syslog enables the syslog sink; defaults to on and may be
	// turned off here or through FlagDisableSyslog.
	Syslog *bool `yaml:"syslog"`

	// Flags is the behavior bitmask.
	Flags Flags `yaml:"-"`
}

// fileConfig is the subset of Config readable from drop-in files.
type fileConfig struct {
	Rootdir      string   `yaml:"rootdir"`
	Cachedir     string   `yaml:"cachedir"`
	Repositories []string `yaml:"repositories"`
	Syslog       *bool    `yaml:"syslog"`
}

// applyDefaults fills the fields needed to locate configuration
// drop-ins. Cachedir defaults after the drop-ins merge, since they may
// move the root directory.
func (c *Config) applyDefaults() {
	if c.Rootdir == "" {
		c.Rootdir = "/"
	}
	if c.Conffile == "" {
		c.Conffile = filepath.Join(c.Rootdir, "etc", "xpkg.d", "*.conf")
	}
}

// applyLateDefaults fills the fields derived from the merged root
// directory.
func (c *Config) applyLateDefaults() {
	if c.Cachedir == "" {
		c.Cachedir = filepath.Join(c.Rootdir, "var", "cache", "xpkg")
	}
}

// loadConfFiles merges configuration drop-ins matching the Conffile
// glob into c, in lexical order. Missing files are not an error.
func (c *Config) loadConfFiles() error {
	matches, err := filepath.Glob(c.Conffile)
	if err != nil {
		return errors.Wrapf(err, "bad conffile pattern %s", c.Conffile)
	}
	sort.Strings(matches)
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrapf(err, "reading config %s", path)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return errors.Wrapf(err, "parsing config %s", path)
		}
		if fc.Rootdir != "" {
			c.Rootdir = fc.Rootdir
		}
		if fc.Cachedir != "" {
			c.Cachedir = fc.Cachedir
		}
		if len(fc.Repositories) > 0 {
			c.Repositories = fc.Repositories
		}
		if fc.Syslog != nil {
			c.Syslog = fc.Syslog
		}
	}
	return nil
}
