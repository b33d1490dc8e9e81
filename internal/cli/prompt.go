package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"docqa/internal/usecase"
)

var (
	promptQuestion string
	promptSystem   bool
)

var promptCmd = &cobra.Command{
	Use:   "prompt <doc>",
	Short: "Print the answer prompt without calling a model",
	Long: `Render the grounded-answer prompt for a question, for manual use with any
chat assistant.

Examples:
  docqa prompt manual.pdf -q "How often are the pumps inspected?"
  docqa prompt manual.pdf -q "..." --system`,
	Args: cobra.ExactArgs(1),
	RunE: runPromptCmd,
}

func init() {
	rootCmd.AddCommand(promptCmd)
	addRetrievalFlags(promptCmd)
	promptCmd.Flags().StringVarP(&promptQuestion, "question", "q", "", "question (required)")
	promptCmd.Flags().BoolVar(&promptSystem, "system", false, "also print the system instruction")
	promptCmd.MarkFlagRequired("question")
}

func runPromptCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, GetConfig(), GetRootDir(), log)
	if err != nil {
		return err
	}
	defer a.Close()

	hash, err := a.resolve(ctx, args[0])
	if err != nil {
		return err
	}
	k, sortByChunkID := retrievalSettings()

	p, err := usecase.NewPromptUseCase(a.retrieveUseCase(), k, sortByChunkID).Render(ctx, hash, promptQuestion)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if promptSystem {
		fmt.Fprintf(out, "%s\n\n", p.System)
	}
	fmt.Fprintln(out, p.User)
	return nil
}
