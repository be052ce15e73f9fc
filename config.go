package pyext

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Config describes the extension to build and where its artifacts live.
//
// All fields have working defaults (see DefaultConfig); a pyext.yaml file
// only needs to override what differs. No environment variables are
// required.
type Config struct {
	// Module is the importable extension name. It names both the installed
	// binary (<module>.so) and the repository entries.
	Module string `yaml:"module"`

	// Version is embedded into the compiled extension via a preprocessor
	// define (VERSION_INFO).
	Version string `yaml:"version"`

	// Sources are the translation units of the extension, relative to the
	// working directory.
	Sources []string `yaml:"sources"`

	// IncludeDirs are additional header search paths.
	IncludeDirs []string `yaml:"include_dirs"`

	// Libraries are the external libraries the extension links against,
	// without platform prefix (curl, z).
	Libraries []string `yaml:"libraries"`

	// LibraryDirs are linker search paths for Libraries.
	LibraryDirs []string `yaml:"library_dirs"`

	// StaticDefines are the preprocessor defines set when attempting a
	// static link (CURL_STATICLIB, Z_STATICLIB).
	StaticDefines []string `yaml:"static_defines"`

	// StandardFlags are candidate language-standard flags, newest first.
	// The first flag the compiler accepts wins.
	StandardFlags []string `yaml:"standard_flags"`

	// ProbeHeaders are the headers included by the disposable link trial.
	ProbeHeaders []string `yaml:"probe_headers"`

	// OutputDir is where the compiled or prebuilt extension is installed.
	OutputDir string `yaml:"output_dir"`

	// RepositoryDir is the flat directory holding prebuilt binaries.
	RepositoryDir string `yaml:"repository_dir"`

	// Python is the interpreter used to detect the runtime version when
	// PythonVersion is empty.
	Python string `yaml:"python"`

	// PythonVersion pins the target runtime version ("3.10"). Leave empty to
	// detect from the interpreter.
	PythonVersion string `yaml:"python_version"`

	// Remediation maps an operating system name to the command that installs
	// the missing development packages. Shown whenever the source build
	// fails.
	Remediation map[string]string `yaml:"remediation"`

	// Quiet suppresses informational output. Forced notices are always
	// shown.
	Quiet bool `yaml:"quiet"`
}

// DefaultConfig returns the configuration for the hicstraw extension, the
// module this tool was originally built around. Every field can be
// overridden from pyext.yaml.
func DefaultConfig() *Config {
	return &Config{
		Module:        "hicstraw",
		Version:       "1.3.2",
		Sources:       []string{"src/straw.cpp"},
		Libraries:     []string{"curl", "z"},
		LibraryDirs:   []string{"/usr/lib"},
		StaticDefines: []string{"CURL_STATICLIB", "Z_STATICLIB"},
		StandardFlags: []string{"-std=c++14", "-std=c++11"},
		ProbeHeaders:  []string{"curl/curl.h", "zlib.h"},
		OutputDir:     "build/lib",
		RepositoryDir: "prebuilt",
		Python:        "python3",
		Remediation: map[string]string{
			"Ubuntu/Debian": "sudo apt-get install libcurl4-openssl-dev zlib1g-dev",
			"RHEL/CentOS":   "sudo yum install libcurl-devel zlib-devel",
			"macOS":         "brew install curl zlib",
		},
	}
}

// LoadConfig reads a yaml configuration file and merges it over the
// defaults. A missing file is not an error; the defaults are returned
// unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, zerr.Wrap(err, "failed to read configuration")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, zerr.Wrap(err, fmt.Sprintf("failed to parse %s", path))
	}

	if cfg.Module == "" {
		return nil, zerr.New("configuration must name a module")
	}
	if len(cfg.Sources) == 0 {
		return nil, zerr.With(zerr.New("configuration lists no sources"), "module", cfg.Module)
	}

	return cfg, nil
}

// RemediationNotice renders the user-facing diagnostic describing the
// missing development packages and the per-OS install commands. This notice
// is always emitted at forced severity when the source build fails.
func (c *Config) RemediationNotice() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: Build from source failed!\n", c.Module)
	b.WriteString("Missing required packages:\n")
	for _, lib := range c.Libraries {
		fmt.Fprintf(&b, "  - lib%s development package\n", lib)
	}

	if len(c.Remediation) > 0 {
		b.WriteString("\nInstall commands:\n")
		names := make([]string, 0, len(c.Remediation))
		for name := range c.Remediation {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %s: %s\n", name, c.Remediation[name])
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
