package cli

import (
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docqa/internal/adapter/fs"
	"docqa/internal/domain"
	"docqa/internal/port"
	"docqa/internal/usecase"
)

var addRebuild bool

var addCmd = &cobra.Command{
	Use:   "add <file|dir|glob>...",
	Short: "Ingest documents",
	Long: `Ingest PDF, text and markdown documents. Documents whose content is already
stored are skipped without re-embedding, whatever their file name.

Examples:
  docqa add manual.pdf
  docqa add "papers/**/*.pdf"
  docqa add docs/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().BoolVar(&addRebuild, "rebuild", false, "clear the store first if it was built with another embedding model")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	files, err := walker.Expand(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no documents found")
	}

	a, err := newApp(ctx, cfg, GetRootDir(), log)
	if err != nil {
		return err
	}
	defer a.Close()

	// Check for schema migration or rebuild
	migration, err := a.checkSchema()
	if err != nil {
		return fmt.Errorf("failed to check store schema: %w", err)
	}
	if migration.NeedsRebuild {
		if !addRebuild {
			return fmt.Errorf("store rebuild required: %s (rerun with --rebuild)", migration.Reason)
		}
		fmt.Printf("Store rebuild required: %s\n", migration.Reason)
		fmt.Println("Clearing existing chunks...")
		if err := a.bolt.Clear(); err != nil {
			return fmt.Errorf("failed to clear store: %w", err)
		}
		if err := a.registry.Load(ctx, a.index); err != nil {
			return err
		}
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
	var barMu sync.Mutex

	emb := a.batcher.WithProgress(func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()
		bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] batch %d/%d", done, total))
	})
	ingestUC, err := a.ingestUseCase(emb)
	if err != nil {
		return err
	}

	summary, err := ingestUC.IngestFiles(ctx, files, func(_ port.FileInfo, _ *usecase.IngestResult) {
		barMu.Lock()
		defer barMu.Unlock()
		bar.Describe("[cyan]Ingesting[reset]")
		_ = bar.Add(1)
	})
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	if summary.Ingested > 0 {
		if err := a.stampSchema(); err != nil {
			return fmt.Errorf("failed to update schema info: %w", err)
		}
	}

	// Print results
	fmt.Printf("\nIngestion complete:\n")
	for _, r := range summary.Results {
		switch r.Status {
		case domain.StatusIngested:
			fmt.Printf("  + %s (%d chunks)\n", r.Name, r.Chunks)
		case domain.StatusDuplicate:
			fmt.Printf("  = %s already stored as %s\n", r.Hash[:8], r.Name)
		case domain.StatusEmpty:
			fmt.Printf("  ! %s has no extractable text\n", r.Name)
		}
	}
	fmt.Printf("  Documents ingested: %d\n", summary.Ingested)
	fmt.Printf("  Duplicates skipped: %d\n", summary.Duplicates)
	fmt.Printf("  Chunks created:     %d\n", summary.Chunks)

	if len(summary.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range summary.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	return nil
}
