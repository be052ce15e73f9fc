// Package pyext builds native Python extension modules from source and falls
// back to prebuilt binaries when the host toolchain cannot compile them.
//
// This package is the build backend behind the pyext-build and pyext-publish
// commands. It orchestrates a short fallback chain:
//
//	source compile → static link → dynamic link → prebuilt install
//
// # Pipeline
//
// A Pipeline run proceeds through a fixed sequence of stages:
//
//  1. Probing - detect the toolchain family and empirically test which
//     language-standard flag and link strategy the compiler accepts
//  2. SourceBuilding - compile the real extension sources with the selected
//     options, embedding the version string
//  3. ConsentPending - on build failure, emit remediation advice and ask the
//     user whether a prebuilt binary may be installed instead
//  4. PrebuiltResolving - look up the current platform fingerprint in the
//     artifact repository and install the matching binary
//
// Every stage failure is reported before the pipeline advances; only the
// final stage's failure is fatal.
//
// # Basic Usage
//
// Create a pipeline and run it:
//
//	cfg := pyext.DefaultConfig()
//	fp, err := pyext.CurrentFingerprint(cfg.PythonVersion)
//	if err != nil {
//	    return err
//	}
//
//	pipeline := pyext.NewPipeline(cfg, pyext.PipelineOptions{
//	    Fingerprint: fp,
//	})
//	report, err := pipeline.Run(ctx)
//
// # Prebuilt Artifacts
//
// Prebuilt binaries live in a flat directory keyed by platform fingerprint.
// The producer (pyext-publish) and the consumer (pyext-build) share exactly
// one contract: the fingerprint's canonical filename,
//
//	<module>.<os>.<machine>.cp<major>.<minor>-<major>.<minor><ext>
//
// for example hicstraw.linux.x86_64.cp3.10-3.10.so.
//
// # Platform Support
//
// Full support on Linux and macOS with a unix-family compiler (c++, g++,
// clang++). Limited Windows support via MSVC (cl).
package pyext
