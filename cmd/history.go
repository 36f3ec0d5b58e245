package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pedidos-cli/internal/render"
)

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "List stored sessions or print one conversation",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("history: no store configured (set store.driver to sqlite or postgres)")
		}
		defer st.Close() //nolint:errcheck

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			turns, err := st.ListTurns(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "history")
			}
			if len(turns) == 0 {
				fmt.Fprintln(os.Stderr, "No turns found.")
				return nil
			}
			render.History(out, turns)
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		sessions, err := st.ListSessions(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "history")
		}
		if len(sessions) == 0 {
			fmt.Fprintln(os.Stderr, "No sessions found.")
			return nil
		}
		return render.Sessions(out, sessions)
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum sessions to list")
	rootCmd.AddCommand(historyCmd)
}
