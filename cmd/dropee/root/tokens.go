package root

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/zainarain279/Dropee/internal/credential"
	"github.com/zainarain279/Dropee/internal/ui"
)

func newTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "List cached credentials and their expiry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, cleanup, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			renderTokens(cmd.OutOrStdout(), store.Snapshot(), time.Now())
			return nil
		},
	}
	cmd.AddCommand(newTokensPruneCmd())
	return cmd
}

func newTokensPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired or unreadable credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, cleanup, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			evicted, err := store.Prune(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			if len(evicted) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.Muted.Render("nothing to prune"))
				return nil
			}
			for _, id := range evicted {
				fmt.Fprintln(cmd.OutOrStdout(), "pruned "+id)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Good.Render(fmt.Sprintf("%d credentials pruned", len(evicted))))
			return nil
		},
	}
}

// tokenRow describes one cached credential.
func tokenRow(identity, token string, now time.Time) []string {
	exp, ok, err := credential.Expiry(token)
	switch {
	case err != nil:
		return []string{identity, "-", ui.Status("unreadable")}
	case !ok:
		return []string{identity, "never", ui.Status("eternal")}
	case !exp.After(now):
		return []string{identity, exp.Local().Format(time.DateTime), ui.Status("expired")}
	default:
		return []string{identity, exp.Local().Format(time.DateTime), ui.Status("valid")}
	}
}

func renderTokens(w io.Writer, tokens map[string]string, now time.Time) {
	if len(tokens) == 0 {
		fmt.Fprintln(w, ui.Muted.Render("no cached credentials"))
		return
	}
	ids := make([]string, 0, len(tokens))
	for id := range tokens {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(ui.Border).
		Headers("IDENTITY", "EXPIRES", "STATUS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return ui.Header
			}
			return ui.Cell
		})
	for _, id := range ids {
		t.Row(tokenRow(id, tokens[id], now)...)
	}
	fmt.Fprintln(w, t.Render())
}
