package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"docqa/internal/port"
)

var (
	queryTopK        int
	querySort        bool
	queryStream      bool
	queryShowContext bool
	queryJSON        bool
)

var queryCmd = &cobra.Command{
	Use:   "query <doc> <question>",
	Short: "Answer a question about one document",
	Long: `Answer a question from the most relevant chunks of a document. <doc> is a
document name, a content hash or a file on disk.

Examples:
  docqa query manual.pdf "How often are the pumps inspected?"
  docqa query manual.pdf "Summarize section 2" --sort -k 8 --stream`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	addRetrievalFlags(queryCmd)
	queryCmd.Flags().BoolVar(&queryStream, "stream", false, "print the answer as it is generated")
	queryCmd.Flags().BoolVar(&queryShowContext, "show-context", false, "print the retrieved chunks with scores")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
}

// addRetrievalFlags registers -k and --sort on commands that retrieve.
func addRetrievalFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	cmd.Flags().BoolVar(&querySort, "sort", false, "order retrieved chunks by position in the document")
}

func retrievalSettings() (int, bool) {
	cfg := GetConfig()
	k := cfg.Retrieve.TopK
	if queryTopK > 0 {
		k = queryTopK
	}
	return k, querySort || cfg.Retrieve.SortByChunkID
}

// QueryResult is the JSON form of an answer.
type QueryResult struct {
	Question string   `json:"question"`
	Hash     string   `json:"hash"`
	Answer   string   `json:"answer"`
	Context  []string `json:"context"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, GetConfig(), GetRootDir(), log)
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
	question := args[1]

	if queryShowContext {
		if err := printScoredContext(cmd, a, hash, question, k, sortByChunkID); err != nil {
			return err
		}
	}

	answerUC, err := a.answerUseCase(k, sortByChunkID)
	if err != nil {
		return err
	}

	if queryStream && !queryJSON {
		sa, err := answerUC.AskStream(ctx, hash, question, nil)
		if err != nil {
			return fmt.Errorf("answer failed: %w", err)
		}
		_, err = drainStream(cmd, sa.Events)
		return err
	}

	ans, err := answerUC.Ask(ctx, hash, question, nil)
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}
	if queryJSON {
		output, _ := json.MarshalIndent(QueryResult{
			Question: question,
			Hash:     hash,
			Answer:   ans.Text,
			Context:  ans.Context,
		}, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(output))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(ans.Text))
	return nil
}

func printScoredContext(cmd *cobra.Command, a *app, hash, question string, k int, sortByChunkID bool) error {
	matches, err := a.retrieveUseCase().RetrieveScored(cmd.Context(), hash, question, k, sortByChunkID)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}
	out := cmd.OutOrStdout()
	for i, m := range matches {
		fmt.Fprintf(out, "--- [%d] chunk %d (score: %.3f) ---\n", i+1, m.Record.Metadata.ChunkID, m.Score)
		fmt.Fprintln(out, truncateRunes(m.Record.Text, 500))
	}
	fmt.Fprintln(out)
	return nil
}

// drainStream prints fragments as they arrive and returns the full text.
func drainStream(cmd *cobra.Command, events <-chan port.StreamEvent) (string, error) {
	out := cmd.OutOrStdout()
	var sb strings.Builder
	for ev := range events {
		if ev.Err != nil {
			fmt.Fprintln(out)
			return sb.String(), fmt.Errorf("stream failed: %w", ev.Err)
		}
		sb.WriteString(ev.Text)
		fmt.Fprint(out, ev.Text)
	}
	fmt.Fprintln(out)
	if err := cmd.Context().Err(); err != nil {
		return sb.String(), err
	}
	return sb.String(), nil
}


// truncateRunes shortens s to at most n runes, marking the cut with "...".
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
