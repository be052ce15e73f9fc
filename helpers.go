package pyext

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// buildError formats a stage failure with its captured compiler output so
// recovered failures still carry full diagnostics.
func buildError(stage Stage, diagnostics string, err error) error {
	prefix := fmt.Sprintf("%s failed", stage)
	if err != nil {
		prefix = fmt.Sprintf("%s failed: %v", stage, err)
	}

	diagnostics = strings.TrimSpace(diagnostics)
	if diagnostics == "" {
		return fmt.Errorf("%s", prefix)
	}
	return fmt.Errorf("%s\n\nBuild output:\n%s", prefix, diagnostics)
}

// copyFile copies a regular file, preserving its mode and creating the
// destination directory as needed.
func copyFile(srcPath, destPath string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return err
	}

	if mkErr := os.MkdirAll(filepath.Dir(destPath), 0o755); mkErr != nil {
		return mkErr
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// objectName derives an object-file path for a source file inside dir.
func objectName(dir, source string, family Family) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if family == FamilyMSVC {
		return filepath.Join(dir, base+".obj")
	}
	return filepath.Join(dir, base+".o")
}
