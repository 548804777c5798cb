package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/kongrag/internal/domain"
	"github.com/kailas-cloud/kongrag/internal/usecase/rag"
)

func newRetrieveCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "retrieve <question>",
		Short: "Print the chunks nearest to a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			store, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			neighbors, err := c.newRAG(store, c.newEmbedder(), nil).Retrieve(cmd.Context(), question)
			if err != nil {
				return err
			}
			if asJSON {
				return writeNeighborsJSON(cmd.OutOrStdout(), neighbors)
			}
			writeNeighbors(cmd.OutOrStdout(), neighbors)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func newAskCmd(c *cli) *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the retrieved context",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			store, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			answer, err := c.newRAG(store, c.newEmbedder(), c.newChatModel()).Ask(cmd.Context(), question)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, answer.Text)
			if showSources {
				fmt.Fprintln(out)
				writeNeighbors(out, answer.Sources)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSources, "sources", false, "also print the retrieved chunks")
	return cmd
}

type recordJSON struct {
	Index     int     `json:"index"`
	LinesFrom int     `json:"lines_from"`
	LinesTo   int     `json:"lines_to"`
	Distance  float64 `json:"distance"`
	Content   string  `json:"content"`
}

func writeNeighbors(w io.Writer, neighbors []domain.Neighbor) {
	if len(neighbors) == 0 {
		fmt.Fprintln(w, "no records")
		return
	}
	for i, n := range neighbors {
		if i > 0 {
			fmt.Fprint(w, rag.DefaultSeparator)
		}
		fmt.Fprintf(w, "#%d chunk %d, lines %d-%d, distance %.4f\n%s\n",
			i+1, n.Record.Index, n.Record.LinesFrom, n.Record.LinesTo, n.Distance, n.Record.Content)
	}
}

func writeNeighborsJSON(w io.Writer, neighbors []domain.Neighbor) error {
	out := make([]recordJSON, len(neighbors))
	for i, n := range neighbors {
		out[i] = recordJSON{
			Index:     n.Record.Index,
			LinesFrom: n.Record.LinesFrom,
			LinesTo:   n.Record.LinesTo,
			Distance:  n.Distance,
			Content:   n.Record.Content,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
