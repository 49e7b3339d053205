package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskpilot/internal/embedding"
	"taskpilot/internal/ingest"
)

var ingestWatch bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Ingest documents into the project's search index",
	Long: `Chunks and embeds documents so the agent can answer questions from
them with search_documents. Re-ingesting an unchanged file is a no-op.

With --watch, keeps running and ingests any file dropped into the inbox
directory.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "watch the inbox directory for new files")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !ingestWatch {
		return fmt.Errorf("nothing to do: pass files or --watch")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		return err
	}
	processor := ingest.NewProcessor(st, engine, cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)

	for _, path := range args {
		doc, skipped, err := processor.IngestFile(cmd.Context(), projectID, path)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		if skipped {
			fmt.Printf("skipped %s (already ingested)\n", path)
		} else {
			fmt.Printf("ingested %s: %d chunk(s)\n", doc.Name, doc.ChunkCount)
		}
	}

	if ingestWatch {
		watcher := ingest.NewWatcher(processor, projectID, cfg.Ingest.InboxDir)
		return watcher.Run(cmd.Context())
	}
	return nil
}
