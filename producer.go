package pyext

import (
	"context"
	"os"
	"path/filepath"

	"go.trai.ch/zerr"
)

// Producer builds the extension once on a capable machine and publishes the
// binary into the artifact repository under its platform fingerprint, where
// consumer pipelines can find it later.
type Producer struct {
	pipeline *Pipeline
	cfg      *Config
	repo     *Repository
	reporter Reporter
	fp       Fingerprint
}

// NewProducer creates a producer sharing the pipeline's source-building
// stage and the repository naming contract.
func NewProducer(cfg *Config, opts PipelineOptions) *Producer {
	pipeline := NewPipeline(cfg, opts)
	return &Producer{
		pipeline: pipeline,
		cfg:      cfg,
		repo:     pipeline.repo,
		reporter: pipeline.reporter,
		fp:       opts.Fingerprint,
	}
}

// Publish runs a source build, locates the built binary and stores it in
// the repository under the fingerprint's canonical filename.
//
// A build that claims success without leaving a matching binary behind is a
// contract violation between the compile step and the expected output
// location; it surfaces as ErrExtensionNotFound rather than being ignored.
func (pr *Producer) Publish(ctx context.Context) (*Artifact, error) {
	pr.reporter.Infof("Building %s for %s", pr.cfg.Module, pr.fp)

	if _, err := pr.pipeline.BuildFromSource(ctx); err != nil {
		return nil, err
	}

	built, err := pr.findBuiltExtension()
	if err != nil {
		return nil, err
	}

	artifact, stored, err := pr.repo.Store(pr.cfg.Module, pr.fp, built)
	if err != nil {
		return nil, err
	}

	if stored {
		pr.reporter.Infof("Successfully created pre-built binary: %s", artifact.Path)
	} else {
		pr.reporter.Infof("Pre-built binary already up to date: %s", artifact.Path)
	}
	return artifact, nil
}

// findBuiltExtension globs the build output directory for a binary matching
// the module's base name and the platform suffix.
func (pr *Producer) findBuiltExtension() (string, error) {
	pattern := filepath.Join(pr.cfg.OutputDir, pr.cfg.Module+"*"+pr.fp.Ext())
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", zerr.Wrap(err, "failed to search for built extension")
	}

	for _, match := range matches {
		if info, statErr := os.Stat(match); statErr == nil && info.Mode().IsRegular() {
			return match, nil
		}
	}

	return "", zerr.With(ErrExtensionNotFound, "pattern", pattern)
}
