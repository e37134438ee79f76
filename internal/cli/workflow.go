package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/repotriage/internal/workflow"
)

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func newWorkflowCmd() *cobra.Command {
	var (
		format     string
		noColor    bool
		noBoard    bool
		noAI       bool
		withIssues bool
		maxFiles   int
	)

	cmd := &cobra.Command{
		Use:   "workflow [owner/repo]",
		Short: "Run the full analysis workflow against one repository",
		Long: `Fetch the repository, audit its structure, scan its code, ask the
configured AI reviewer for a second opinion, file the findings as Trello
cards, and print a report. Board and AI stages run only when configured
and not disabled.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "markdown", "json":
			default:
				return fmt.Errorf("unknown format %q (use text, markdown, or json)", format)
			}

			d, err := loadDeps()
			if err != nil {
				return err
			}
			defer d.close()

			repoRef := d.settings.DefaultRepo
			if len(args) == 1 {
				repoRef = args[0]
			}
			if repoRef == "" {
				return fmt.Errorf("repository argument is required (or set default_repo in config)")
			}

			runner, err := d.runner(workflow.Options{
				MaxFiles:      maxFiles,
				IncludeIssues: withIssues,
			}, !noBoard, !noAI)
			if err != nil {
				return err
			}

			result, err := runner.Run(cmd.Context(), repoRef)
			if err != nil {
				return err
			}

			switch format {
			case "markdown":
				return workflow.NewMarkdownFormatter().Format(os.Stdout, result)
			case "json":
				return workflow.NewJSONFormatter().Format(os.Stdout, result)
			default:
				color := !noColor && isTerminal()
				return workflow.NewTextFormatter(color).Format(os.Stdout, result)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, markdown, or json")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable ANSI colors in text output")
	cmd.Flags().BoolVar(&noBoard, "no-trello", false, "skip Trello card creation")
	cmd.Flags().BoolVar(&noAI, "no-ai", false, "skip the AI review stage")
	cmd.Flags().BoolVar(&withIssues, "with-issues", false, "mirror open GitHub issues onto the board")
	cmd.Flags().IntVar(&maxFiles, "max-files", 0, "max files to scan (0 = config or default)")

	return cmd
}
