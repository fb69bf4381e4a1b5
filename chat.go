package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	logx "github.com/chative-dialogue/server/pkg/logger"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the dialogue manager from the terminal",
	Long: `chat reads one utterance per line and prints the reply rendered as markdown.
Type /reset to start a new conversation and /exit to quit.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("conversation", "", "conversation id (random when empty)")
	chatCmd.Flags().Bool("verbose", false, "print logs to stderr")
	chatCmd.Flags().Bool("plain", false, "print replies without markdown rendering")
}

func runChat(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		initLogger(cfg)
	} else {
		logx.Disable()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	id, _ := cmd.Flags().GetString("conversation")
	if id == "" {
		id = uuid.NewString()
	}

	var renderer *glamour.TermRenderer
	if plain, _ := cmd.Flags().GetBool("plain"); !plain {
		renderer, err = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return fmt.Errorf("markdown renderer: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Conversación %s\n", id)
	return chatLoop(ctx, cmd.InOrStdin(), out, renderer, id, a)
}

func chatLoop(ctx context.Context, in io.Reader, out io.Writer, renderer *glamour.TermRenderer, id string, a *app) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/salir":
			return nil
		case "/reset":
			if err := a.sessions.End(ctx, id); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			id = uuid.NewString()
			fmt.Fprintf(out, "Conversación %s\n", id)
			continue
		}

		reply, err := a.sessions.HandleTurn(ctx, id, line)
		if err != nil {
			logx.Warn().Err(err).Str("conversation_id", id).Msg("Turn state not persisted")
		}
		fmt.Fprintln(out, render(renderer, reply))
	}
}

func render(r *glamour.TermRenderer, md string) string {
	if r == nil {
		return md
	}
	s, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(s, "\n")
}
