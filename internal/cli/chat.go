package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docqa/internal/domain"
)

var chatCmd = &cobra.Command{
	Use:   "chat <doc>",
	Short: "Interactive question answering about one document",
	Long: `Start an interactive session about a document. Follow-up questions are
rewritten into standalone questions using the conversation so far.
Type "exit" or press Ctrl-D to leave, "reset" to clear the history.`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	addRetrievalFlags(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
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
	answerUC, err := a.answerUseCase(k, sortByChunkID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	var history []domain.ChatTurn

	fmt.Fprintf(out, "Chatting with %s. Type \"exit\" to quit.\n", args[0])
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "reset":
			history = nil
			fmt.Fprintln(out, "History cleared.")
			continue
		}

		sa, err := answerUC.AskStream(ctx, hash, question, history)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("answer failed", "error", err)
			continue
		}
		if sa.Refined != question {
			log.Debug("refined question", "refined", sa.Refined)
		}
		text, err := drainStream(cmd, sa.Events)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("answer failed", "error", err)
			continue
		}
		history = append(history, domain.ChatTurn{Question: sa.Refined, Answer: text})
	}
}
