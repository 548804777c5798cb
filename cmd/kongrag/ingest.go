package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kongrag/internal/usecase/ingest"
)

func newIngestCmd(c *cli) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed and store a document",
		Long: `Loads the source document (plain text or PDF), splits it into overlapping
chunks and appends one record per chunk to the configured table. Rows are
append-only: ingesting the same document twice stores every chunk twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if source == "" {
				source = c.cfg.Ingest.Source
			}
			if source == "" {
				return fmt.Errorf("no source: pass --source or set ingest.source")
			}

			store, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			svc, err := ingest.New(store, c.newEmbedder(), ingest.Config{
				Schema:            c.cfg.TableSchema(),
				ChunkSize:         c.cfg.Ingest.ChunkSize,
				ChunkOverlap:      c.cfg.Ingest.ChunkOverlap,
				RequestsPerSecond: c.cfg.Ingest.RequestsPerSecond,
				CheckpointDir:     c.cfg.Ingest.CheckpointDir,
			}, c.logger)
			if err != nil {
				return err
			}

			res, err := svc.Run(cmd.Context(), source)
			if err != nil {
				c.logger.Error("Ingestion failed", zap.String("source", source), zap.Error(err))
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"ingested %s into %s: %d chunks, %d stored, %d resumed, %d rows, %d tokens, %s\n",
				res.Source, res.Table, res.Chunks, res.Stored, res.Resumed, res.RowCount, res.Tokens,
				res.Duration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "document to ingest (default: ingest.source)")
	return cmd
}
