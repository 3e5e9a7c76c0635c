package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eringen/folioblog"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the blog over HTTP",
	Long: `serve warms the post cache from the snapshot database and the content
API, then serves pages, feeds and the JSON API until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := newLogger(os.Stderr)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		staticDir, _ := cmd.Flags().GetString("static")
		app := folioblog.New(cfg, folioblog.ViewFuncs{},
			folioblog.WithLogger(log),
			folioblog.WithStaticDir(staticDir),
		)
		return app.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", ":3000", "listen address")
	serveCmd.Flags().Bool("analytics", false, "count article views")
	serveCmd.Flags().String("static", "public", "directory of user static assets")
}
