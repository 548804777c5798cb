package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kongrag/internal/domain"
	"github.com/kailas-cloud/kongrag/internal/usecase/ingest"
)

func newResetCmd(c *cli) *cobra.Command {
	var missingOK bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop the configured table and its ingest checkpoints",
		Long: `Removes every row of the configured table together with its schema, so the
next ingest starts from an empty table and may use a different vector size.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			table := c.cfg.Store.Table
			err = store.Drop(cmd.Context(), table)
			switch {
			case errors.Is(err, domain.ErrNotFound) && missingOK:
				c.logger.Info("Table already absent", zap.String("table", table))
			case err != nil:
				return err
			}

			n, err := ingest.ClearCheckpoints(c.cfg.Ingest.CheckpointDir, table)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dropped %s, removed %d checkpoints\n", table, n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&missingOK, "missing-ok", false, "succeed when the table does not exist")
	return cmd
}
