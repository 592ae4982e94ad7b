package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/studio"
)

func newChatCommand(ctx *commandContext) *cobra.Command {
	var noStream bool

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Ask a question answered with web search grounding",
		Long: "With a prompt argument, runs one exchange and exits. Without one, starts an\n" +
			"interactive session; type /clear to reset the conversation and /exit to quit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			s := ctx.newStudio(newTerminalObserver(out, !noStream), false)
			defer s.Close()

			if len(args) > 0 {
				return sendOnce(cmd, s, strings.Join(args, " "))
			}
			return chatLoop(cmd, s, cmd.InOrStdin(), out)
		},
	}

	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Print each answer once it is complete, with numbered references")
	return cmd
}

func sendOnce(cmd *cobra.Command, s *studio.Studio, prompt string) error {
	msg, err := s.Send(cmd.Context(), prompt)
	if err != nil {
		return err
	}
	if msg.Text == "" {
		return core.NewNoResultError("the model returned an empty answer")
	}
	return nil
}

func chatLoop(cmd *cobra.Command, s *studio.Studio, in io.Reader, out io.Writer) error {
	interactive := isTerminal(in)
	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			if interactive {
				fmt.Fprintln(out)
			}
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/clear":
			if err := s.Clear(); err != nil {
				fmt.Fprintln(out, err)
			}
			continue
		}
		if _, err := s.Send(cmd.Context(), line); err != nil {
			fmt.Fprintln(out, core.UserMessage(err))
		}
		if err := cmd.Context().Err(); err != nil {
			return err
		}
	}
}
