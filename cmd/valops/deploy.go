package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"valops/internal/deploy"
	"valops/internal/execx"
)

var (
	deployYes    bool
	deployDryRun bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Publish the Telegram webhook cloud function via gcloud",
	Long: `Issues the fixed gcloud functions deploy command: HTTP trigger,
unauthenticated access, configured entry point, source directory, region,
memory and timeout. The configured environment variables are forwarded
verbatim from the current environment - unset variables forward as empty
values, no validation is performed.

The command is always issued; afterwards deploy pauses for Enter so the
gcloud output can be read before the window closes.`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().BoolVarP(&deployYes, "yes", "y", false, "skip the trailing pause")
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "print the gcloud command without running it")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	d := deploy.New(cfg.Deploy, execx.NewHost(logger), logger, os.Stdout)

	if deployDryRun {
		fmt.Println(d.CommandString())
		return nil
	}

	return d.Run(cmd.Context(), os.Stdin, os.Stdout, !deployYes)
}
