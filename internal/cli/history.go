package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimcheck/internal/pipeline"
	"github.com/ppiankov/claimcheck/internal/store"
)

var (
	historyLimit  int
	historyJSON   bool
	historyDelete bool
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "List saved reports or print one of them",
	Long: `History lists reports saved by earlier checks, newest first. With an ID it
prints that report as Markdown (or JSON with --json).

Example:
  claimcheck history
  claimcheck history 1b4e28ba-2fa1-11d2-883f-0016d3cca427 --json
  claimcheck history 1b4e28ba-2fa1-11d2-883f-0016d3cca427 --delete`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of reports to list (0 for all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print the report as JSON")
	historyCmd.Flags().BoolVar(&historyDelete, "delete", false, "delete the report instead of printing it")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer func() { _ = s.Close() }()

	ctx := context.Background()

	if len(args) == 0 {
		return listHistory(ctx, s)
	}

	id := args[0]
	if historyDelete {
		if err := s.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Deleted report %s\n", id)
		return nil
	}

	report, err := s.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no report with ID %s (run 'claimcheck history' to list them)", id)
	}
	if err != nil {
		return err
	}

	renderer := pipeline.NewRenderer(os.Stdout)
	if historyJSON {
		return renderer.RenderJSON(report, "-")
	}
	return renderer.RenderMarkdown(report, "-")
}

func listHistory(ctx context.Context, s *store.SQLiteStore) error {
	summaries, err := s.List(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(os.Stderr, "No saved reports")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCHECKED\tCLAIMS\tSUP\tREF\tNEI\tCONF\tINDEX\tSOURCE")
	for _, sum := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			sum.ID, sum.CreatedAt.Local().Format("2006-01-02 15:04"), sum.Claims,
			sum.Counts.Supported, sum.Counts.Refuted, sum.Counts.NotEnoughInfo, sum.Counts.Conflicting,
			sum.Index, truncate(sum.Source, 60))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
