package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pedidos-cli/internal/analytics"
	"github.com/sells-group/pedidos-cli/internal/render"
	"github.com/sells-group/pedidos-cli/internal/session"
)

const chatPrompt = "pergunta> "

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question session",
	Long:  "Starts a session that shows the KPI header and answers questions until /sair. /historico prints the conversation so far.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initSessionEnv(ctx, cfg, "ask")
		if err != nil {
			return err
		}
		defer env.Close()

		return runChat(ctx, env, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// runChat reads one question per line from in until EOF or /sair.
func runChat(ctx context.Context, env *sessionEnv, in io.Reader, out io.Writer) error {
	s := env.NewSession()
	ds, err := s.Dataset(ctx)
	if err != nil {
		return eris.Wrap(err, "chat")
	}
	if k, err := analytics.ComputeKPIs(ds); err != nil {
		_, _ = fmt.Fprintf(out, "aviso: não foi possível calcular KPIs: %v\n", err)
	} else if err := render.KPIs(out, k); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprint(out, chatPrompt)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "/sair", "/exit", "/quit":
			return nil
		case "/historico", "/histórico", "/history":
			render.History(out, s.History())
			continue
		}

		ans, err := s.Ask(ctx, line)
		if err != nil {
			if errors.Is(err, session.ErrEmptyQuestion) {
				continue
			}
			zap.L().Error("chat: ask failed", zap.String("session_id", s.ID), zap.Error(err))
			_, _ = fmt.Fprintf(out, "erro: %v\n", err)
			continue
		}
		if err := render.Text(out, ans); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out)
	}
	return eris.Wrap(scanner.Err(), "chat: read input")
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
