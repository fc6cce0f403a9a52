package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ckd-chatbot/backend/internal/pipeline"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question on the terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	built, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer built.graph.Close(context.Background())

	out := cmd.OutOrStdout()
	status := cmd.ErrOrStderr()

	var section pipeline.EventType
	for event := range built.orchestrator.AnswerStream(cmd.Context(), strings.Join(args, " ")) {
		switch event.Type {
		case pipeline.EventStatus:
			fmt.Fprintln(status, event.Content)
		case pipeline.EventDetailChunk, pipeline.EventOutlineChunk:
			if event.Type != section {
				if section != "" {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "== %s ==\n", sectionTitle(event.Type))
				section = event.Type
			}
			fmt.Fprint(out, event.Content)
		case pipeline.EventDone:
			if section == "" {
				fmt.Fprintln(out, event.Detail)
				return nil
			}
			fmt.Fprintln(out)
			return nil
		case pipeline.EventError:
			return fmt.Errorf("%s", event.Content)
		}
	}

	return cmd.Context().Err()
}

func sectionTitle(t pipeline.EventType) string {
	if t == pipeline.EventOutlineChunk {
		return "摘要"
	}
	return "詳細回答"
}
