// Command pyext-build compiles a native Python extension for the host
// toolchain, falling back to a prebuilt binary from the artifact repository
// when source compilation is impossible on this machine.
//
// Exit code 0 means a binary was installed; any failure exits non-zero.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	pyext "github.com/strawkit/python-extension-go"
)

func main() {
	cmd := newRootCmd()
	cmd.SetContext(context.Background())
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pyext-build: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:           "pyext-build",
		Short:         "Build a native Python extension with prebuilt fallback",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pyext.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if quiet {
				cfg.Quiet = true
			}

			pythonVersion := cfg.PythonVersion
			if pythonVersion == "" {
				pythonVersion, err = pyext.DetectPythonVersion(cfg.Python)
				if err != nil {
					return err
				}
			}

			fp, err := pyext.CurrentFingerprint(pythonVersion)
			if err != nil {
				return err
			}

			pipeline := pyext.NewPipeline(cfg, pyext.PipelineOptions{Fingerprint: fp})
			_, err = pipeline.Run(cmd.Context())
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "pyext.yaml", "Path to the extension configuration file")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output (forced notices still shown)")

	return cmd
}
