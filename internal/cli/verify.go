package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimcheck/internal/pipeline"
)

var verifyTimeout time.Duration

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <claim>",
	Short: "Verify a single claim without extraction",
	Long: `Verify runs one search-and-evaluate loop for a claim given verbatim.

Example:
  claimcheck verify "The Eiffel Tower is 330 metres tall."
  claimcheck verify "Mount Everest is 8,849 metres high." --json -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	addOutputFlags(verifyCmd)
	verifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", 5*time.Minute, "overall timeout")
}

func runVerify(cmd *cobra.Command, args []string) error {
	claim := strings.TrimSpace(strings.Join(args, " "))
	if claim == "" {
		return fmt.Errorf("claim text is empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, cancel := commandContext(verifyTimeout)
	defer cancel()

	c, err := pipeline.Build(cfg, pipeline.Dependencies{}, logger)
	if err != nil {
		return err
	}

	report := c.Orchestrator.VerifyText(ctx, claim)
	if err := writeReport(report); err != nil {
		return err
	}
	saveReport(ctx, cfg, report, logger)
	return nil
}
