package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version and Commit are set via LDFLAGS at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	verbose    bool
	configFile string
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "repotriage",
		Short: "Analyze GitHub repositories and file findings on a Trello board",
		Long: "repotriage audits a repository's structure, scans its code for " +
			"security and quality patterns, optionally asks an AI reviewer for a " +
			"second opinion, and files the findings as Trello cards.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&configFile, "config", ".repotriage.yml", "path to config file")

	root.AddCommand(newWorkflowCmd())
	root.AddCommand(newServerCmd())
	root.AddCommand(newSetupTrelloCmd())
	root.AddCommand(newAITestCmd())
	root.AddCommand(newSelfTestCmd())
	root.AddCommand(newVersionCmd())

	return root
}
