package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimcheck/internal/pipeline"
)

var extractJSON bool

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [text]",
	Short: "Extract checkable claims without verifying them",
	Long: `Extract runs only the claim extraction pipeline and prints the claims
together with the sentence each one came from.

Example:
  claimcheck extract "Paris is the capital of France and it has 20 million residents."
  claimcheck extract --file article.txt --json`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	addInputFlags(extractCmd)
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print claims as JSON")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if translate {
		cfg.Preprocess.Translate = true
	}
	logger := newLogger(cfg)

	ctx, cancel := commandContext(timeout)
	defer cancel()

	c, err := pipeline.Build(cfg, pipeline.Dependencies{}, logger)
	if err != nil {
		return err
	}
	in, err := documentInput(args)
	if err != nil {
		return err
	}

	_, res, err := c.Orchestrator.Extract(ctx, in)
	if err != nil {
		return err
	}

	if extractJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Claims)
	}

	fmt.Fprintf(os.Stderr, "%d sentences, %d candidates, %d statements, %d claims (%s)\n\n",
		len(res.Sentences), len(res.Candidates), len(res.Statements), len(res.Claims), res.Duration.Round(1e6))
	for i, claim := range res.Claims {
		fmt.Printf("%3d. %s\n", i+1, claim.Text)
		if claim.Sentence.Text != claim.Text {
			fmt.Printf("     from: %s\n", claim.Sentence.Text)
		}
	}
	return nil
}
