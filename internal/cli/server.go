package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/repotriage/internal/server"
	"github.com/ppiankov/repotriage/internal/workflow"
)

func newServerCmd() *cobra.Command {
	var (
		listen     string
		spoolDir   string
		withIssues bool
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve analysis over HTTP",
		Long: `Run the HTTP API: POST /analyze triggers a workflow run,
GET /runs lists recorded history, GET /repos/{owner} lists a user's
repositories, GET /healthz reports liveness.

With --spool-dir, a directory is also watched for drop-in request files
({"repo": "owner/name"}); processed files are renamed .done or .failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps()
			if err != nil {
				return err
			}
			defer d.close()

			runner, err := d.runner(workflow.Options{IncludeIssues: withIssues}, true, true)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("listen") && d.settings.Server.Listen != "" {
				listen = d.settings.Server.Listen
			}
			if !cmd.Flags().Changed("spool-dir") && d.settings.Server.SpoolDir != "" {
				spoolDir = d.settings.Server.SpoolDir
			}

			srv := server.New(server.Config{Listen: listen}, runner, d.store, d.gh)
			addr, err := srv.Start()
			if err != nil {
				return err
			}
			defer func() { _ = srv.Stop() }()
			fmt.Printf("repotriage listening on %s\n", addr)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if spoolDir != "" {
				spool, err := server.NewSpool(spoolDir, runner)
				if err != nil {
					return err
				}
				return spool.Run(ctx)
			}

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8080", "listen address")
	cmd.Flags().StringVar(&spoolDir, "spool-dir", "", "directory to watch for drop-in analysis requests")
	cmd.Flags().BoolVar(&withIssues, "with-issues", false, "mirror open GitHub issues onto the board")

	return cmd
}
