package cli

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docqa/internal/adapter/report"
	"docqa/internal/usecase"
)

var evalOutput string

var evalCmd = &cobra.Command{
	Use:   "eval <doc> <qa.json>",
	Short: "Grade answers against a list of reference answers",
	Long: `Answer every question of a JSON list of {"question", "ideal_answer"} objects
and let a judge model score each answer 0, 0.5 or 1. Results are written to CSV.

Examples:
  docqa eval manual.pdf qa.json
  docqa eval manual.pdf qa.json --output results.csv`,
	Args: cobra.ExactArgs(2),
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	addRetrievalFlags(evalCmd)
	evalCmd.Flags().StringVarP(&evalOutput, "output", "o", "", "output CSV file (default eval_results_<timestamp>.csv)")
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	items, err := report.LoadQAFile(args[1])
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("%s contains no questions", args[1])
	}

	a, err := newApp(ctx, cfg, GetRootDir(), log)
	if err != nil {
		return err
	}
	defer a.Close()
	a.warnIfStale()

	hash, err := a.resolve(ctx, args[0])
	if err != nil {
		return err
	}
	k, sortByChunkID := retrievalSettings()
	answerUC, err := a.answerUseCase(k, sortByChunkID)
	if err != nil {
		return err
	}
	judge, err := newLLM(cfg, cfg.LLM.JudgeModel, log)
	if err != nil {
		return err
	}
	evalUC := usecase.NewEvaluateUseCase(answerUC, judge, cfg.LLM.JudgeTemperature, log)

	bar := progressbar.NewOptions(len(items),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Evaluating[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	records, runErr := evalUC.Run(ctx, hash, items, func(done, total int) {
		_ = bar.Set(done)
	})
	if len(records) == 0 && runErr != nil {
		return fmt.Errorf("evaluation failed: %w", runErr)
	}

	output := evalOutput
	if output == "" {
		output = report.DefaultOutputName(time.Now())
	}
	if err := report.WriteCSVFile(output, records); err != nil {
		return err
	}

	s := report.Summarize(records)
	fmt.Printf("\nEvaluated %d/%d questions, mean score %.2f\n", s.Count, len(items), s.Mean)
	fmt.Printf("Results written to %s\n", output)
	if runErr != nil {
		return fmt.Errorf("evaluation stopped early: %w", runErr)
	}
	return nil
}
