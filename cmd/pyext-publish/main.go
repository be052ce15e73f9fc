// Command pyext-publish builds the extension once on a capable machine and
// publishes the binary into the prebuilt-artifact repository under the
// platform fingerprint, so consumer machines can install it later.
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
		fmt.Fprintf(os.Stderr, "pyext-publish: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "pyext-publish",
		Short:         "Build the extension and publish it as a prebuilt binary",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pyext.LoadConfig(configPath)
			if err != nil {
				return err
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

			producer := pyext.NewProducer(cfg, pyext.PipelineOptions{Fingerprint: fp})
			artifact, err := producer.Publish(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), artifact.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "pyext.yaml", "Path to the extension configuration file")

	return cmd
}
