package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pedidos-cli/internal/render"
)

var askFormat string

var askCmd = &cobra.Command{
	Use:   "ask <pergunta>",
	Short: "Answer a single question",
	Example: `  pedidos-cli ask "Qual é o ticket médio?"
  pedidos-cli ask --format json "top produtos"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initSessionEnv(ctx, cfg, "ask")
		if err != nil {
			return err
		}
		defer env.Close()

		ans, err := env.NewSession().Ask(ctx, strings.Join(args, " "))
		if err != nil {
			return eris.Wrap(err, "ask")
		}
		return render.Answer(cmd.OutOrStdout(), ans, askFormat)
	},
}

func init() {
	askCmd.Flags().StringVar(&askFormat, "format", render.FormatText, "output format: text, json or yaml")
	rootCmd.AddCommand(askCmd)
}
