package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/alnah/go-dub/internal/httpapi"
)

// shutdownGrace is how long in-flight requests get after SIGINT/SIGTERM.
const shutdownGrace = 10 * time.Second

// ServeCmd runs the dubbing HTTP service until interrupted.
func ServeCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dubbing HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := env.LoadConfig()
			if err != nil {
				return err
			}
			log, err := openLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Close()

			app, err := env.NewApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			server := httpapi.New(log, app.Store, app.Hub, app, httpapi.Options{
				UploadDir:      filepath.Join(cfg.ScratchDir, "go-dub-uploads"),
				FilesDir:       app.FilesDir,
				MaxUploadBytes: cfg.MaxUploadBytes,
			})

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					log.Errorf("shutdown: %v", err)
				}
			}()

			fmt.Fprintf(env.Stdout, "listening on %s\n", cfg.ListenAddr)
			if err := server.Start(cfg.ListenAddr); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}
