package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <name|hash|file>",
	Short: "Remove a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
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

	ingestUC, err := a.ingestUseCase(a.batcher)
	if err != nil {
		return err
	}
	n, err := ingestUC.Delete(ctx, hash, "")
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	if n == 0 {
		fmt.Printf("Nothing stored for %s\n", args[0])
		return nil
	}
	fmt.Printf("Deleted %d chunks of %s\n", n, hash)
	return nil
}
