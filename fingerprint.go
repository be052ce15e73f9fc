package pyext

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/magefile/mage/sh"
	"go.trai.ch/zerr"
)

// Fingerprint identifies the platform a prebuilt binary was produced for:
// operating system, CPU architecture and the major.minor version of the
// Python runtime. It is computed once at process start and never mutated.
//
// Two fingerprints are equal iff all four fields match exactly. There is no
// closest-match resolution: artifacts are found by their canonical filename
// or not at all.
type Fingerprint struct {
	OS      string // Operating system, lower-cased (linux, darwin, windows)
	Machine string // CPU architecture as the Python runtime reports it
	Major   int    // Runtime major version
	Minor   int    // Runtime minor version
}

// Render returns the canonical platform segment of an artifact filename,
// for example "linux.x86_64.cp3.10-3.10". Render is pure and total; equal
// fingerprints always render identically and distinct supported platforms
// never collide.
func (f Fingerprint) Render() string {
	return fmt.Sprintf("%s.%s.cp%d.%d-%d.%d",
		strings.ToLower(f.OS), strings.ToLower(f.Machine),
		f.Major, f.Minor, f.Major, f.Minor)
}

// Ext returns the native shared-library suffix for the fingerprint's
// operating system.
func (f Fingerprint) Ext() string {
	if strings.EqualFold(f.OS, "windows") {
		return ".pyd"
	}
	return ".so"
}

// Filename returns the full repository filename for the given module,
// for example "hicstraw.linux.x86_64.cp3.10-3.10.so". The producer names
// artifacts with this function and the consumer looks them up with it; it
// is the only coupling between the two tools.
func (f Fingerprint) Filename(module string) string {
	return module + "." + f.Render() + f.Ext()
}

// String implements fmt.Stringer for log output.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%s %s Python %d.%d", f.OS, f.Machine, f.Major, f.Minor)
}

// CurrentFingerprint builds the fingerprint of the running host for the
// given Python version string ("3.10").
func CurrentFingerprint(pythonVersion string) (Fingerprint, error) {
	major, minor, err := parsePythonVersion(pythonVersion)
	if err != nil {
		return Fingerprint{}, err
	}

	return Fingerprint{
		OS:      runtime.GOOS,
		Machine: hostMachine(runtime.GOOS, runtime.GOARCH),
		Major:   major,
		Minor:   minor,
	}, nil
}

// DetectPythonVersion asks the interpreter for its major.minor version.
func DetectPythonVersion(interpreter string) (string, error) {
	out, err := sh.Output(interpreter, "-c", "import sys; print('%d.%d' % sys.version_info[:2])")
	if err != nil {
		return "", zerr.Wrap(err, fmt.Sprintf("failed to detect version of %s", interpreter))
	}
	return strings.TrimSpace(out), nil
}

// hostMachine maps a Go architecture name to the machine name the Python
// runtime reports on that OS (platform.machine(), lower-cased). Linux and
// macOS report x86_64 where Go says amd64; Windows reports amd64. Linux
// reports aarch64 where macOS reports arm64.
func hostMachine(goos, goarch string) string {
	switch goarch {
	case "amd64":
		if goos == "windows" {
			return "amd64"
		}
		return "x86_64"
	case "arm64":
		if goos == "linux" {
			return "aarch64"
		}
		return "arm64"
	case "386":
		return "i686"
	default:
		return goarch
	}
}

func parsePythonVersion(version string) (major, minor int, err error) {
	parts := strings.Split(strings.TrimSpace(version), ".")
	if len(parts) < 2 {
		return 0, 0, zerr.With(zerr.New("invalid python version"), "version", version)
	}

	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, zerr.With(zerr.New("invalid python version"), "version", version)
	}

	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, zerr.With(zerr.New("invalid python version"), "version", version)
	}

	return major, minor, nil
}
