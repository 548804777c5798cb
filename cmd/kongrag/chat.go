package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/kongrag/internal/domain"
	"github.com/kailas-cloud/kongrag/internal/domain/prompt"
	chatuc "github.com/kailas-cloud/kongrag/internal/usecase/chat"
)

func newChatCmd(c *cli) *cobra.Command {
	var tone, topic string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run the joke prompt through the chat model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := chatuc.New(c.newChatModel(), domain.CompletionOptions{}, c.logger)
			text, err := svc.Run(cmd.Context(), prompt.Joke, map[string]string{
				prompt.VarTone:  tone,
				prompt.VarTopic: topic,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&tone, "tone", "愤怒", "tone of the joke")
	cmd.Flags().StringVar(&topic, "topic", "小明", "topic of the joke")
	return cmd
}
