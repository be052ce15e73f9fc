package pyext

import "go.trai.ch/zerr"

var (
	// ErrUnsupportedToolchain is returned when no candidate language-standard
	// flag is accepted by the host compiler.
	ErrUnsupportedToolchain = zerr.New("unsupported compiler, at least C++11 support is needed")

	// ErrLinkFailure is returned when neither the static nor the dynamic link
	// trial succeeds against the required libraries.
	ErrLinkFailure = zerr.New("failed to link against required libraries")

	// ErrSourceCompileFailure is returned when the real extension sources fail
	// to compile or link despite successful probing.
	ErrSourceCompileFailure = zerr.New("extension source build failed")

	// ErrUserDeclined is returned when the user explicitly refuses the
	// prebuilt-binary fallback.
	ErrUserDeclined = zerr.New("user chose not to use a prebuilt binary")

	// ErrNoPrebuiltAvailable is returned when the artifact repository has no
	// entry for the current platform fingerprint.
	ErrNoPrebuiltAvailable = zerr.New("no prebuilt binary available for this platform")

	// ErrExtensionNotFound is returned by the producer when a build claims
	// success but no extension binary matches the expected output location.
	ErrExtensionNotFound = zerr.New("built extension not found")

	// ErrMissingTools is returned when required build tools are not present
	// in PATH.
	ErrMissingTools = zerr.New("required build tools not found")
)
