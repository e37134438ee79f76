package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/repotriage/internal/trello"
)

func newSetupTrelloCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup-trello",
		Short: "Create the standard lists and labels on the configured board",
		Long: `Pre-create the analysis board layout: the seven standard lists
(To Do, Bugs, Enhancements, High Priority, Critical, Suggestions, Summary)
and the standard label set with their colors. Existing lists and labels
are left alone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps()
			if err != nil {
				return err
			}
			defer d.close()

			if d.board == nil {
				return fmt.Errorf("trello credentials are required (set trello.api_key, trello.token, trello.board_id)")
			}

			ctx := cmd.Context()

			existing, err := d.board.Lists(ctx)
			if err != nil {
				return fmt.Errorf("fetch board lists: %w", err)
			}
			have := make(map[string]bool, len(existing))
			for _, l := range existing {
				have[strings.ToLower(l.Name)] = true
			}

			for _, name := range trello.StandardLists {
				if have[strings.ToLower(name)] {
					fmt.Printf("list %q already exists\n", name)
					continue
				}
				if _, err := d.board.CreateList(ctx, name); err != nil {
					return fmt.Errorf("create list %q: %w", name, err)
				}
				fmt.Printf("created list %q\n", name)
			}

			labels := trello.StandardLabels()
			names := make([]string, 0, len(labels))
			for name := range labels {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if _, err := d.board.GetOrCreateLabel(ctx, name, labels[name]); err != nil {
					return fmt.Errorf("create label %q: %w", name, err)
				}
			}
			fmt.Printf("ensured %d labels\n", len(labels))

			return nil
		},
	}
}
