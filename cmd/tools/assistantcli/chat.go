package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/camwood/camwood-site/backend/internal/model/chat"
	"github.com/camwood/camwood-site/backend/internal/service/ai"
	"github.com/camwood/camwood-site/backend/internal/service/conversation"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive assistant conversation",
		Long:  "Start an interactive assistant conversation. Type /suggest for sample questions and /quit to leave.",
		Args:  cobra.NoArgs,
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.logger.Sync()

	responder := ai.NewResponder(rt.cfg.Assistant, ai.WithLogger(rt.logger))
	if !responder.Enabled() {
		printWarning("GEMINI_API_KEY is not set, unmatched questions will be escalated")
	}

	conv := conversation.New(rt.matcher, responder, conversation.OptionsFromConfig(rt.cfg.Assistant), rt.logger)
	return converse(cmd.Context(), conv, cmd.InOrStdin(), cmd.OutOrStdout(), rt.store.SuggestedQuestions())
}

// converse runs the prompt loop until /quit or end of input. At end of input the pending
// reply and follow-up are printed before the conversation is disposed.
func converse(ctx context.Context, conv *conversation.Controller, in io.Reader, out io.Writer, suggestions []string) error {
	updates, unsubscribe := conv.Subscribe()

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		seen := 0
		for snap := range updates {
			for _, msg := range snap.Messages[seen:] {
				printMessage(out, msg)
			}
			seen = len(snap.Messages)
		}
	}()

	defer func() {
		unsubscribe()
		conv.Dispose()
		<-printed
	}()

	if err := conv.Open(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		switch strings.TrimSpace(line) {
		case "/quit", "/exit":
			return nil
		case "/suggest":
			for _, q := range suggestions {
				dimColor.Fprintf(out, "  • %s\n", q)
			}
			continue
		}

		if err := conv.Submit(line); err != nil {
			switch {
			case errors.Is(err, conversation.ErrAwaitingResponse):
				printWarning("still thinking, please wait")
			case errors.Is(err, conversation.ErrEmptyInput):
			default:
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return conv.Wait(ctx)
}

func printMessage(out io.Writer, msg chat.Message) {
	if !msg.IsFromAssistant {
		return
	}
	if msg.Category != "" {
		categoryColor.Fprintf(out, "[%s]\n", msg.Category)
	}
	if msg.IsEscalation {
		escalateColor.Fprintln(out, msg.Text)
	} else {
		assistantColor.Fprintln(out, msg.Text)
	}
	fmt.Fprintln(out)
}
