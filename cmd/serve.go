package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gadgetwars.ai/internal/transport/httpapi"
	"gadgetwars.ai/internal/transport/observer"
)

func newServeCmd(cfg *config) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the decision intake API and observer feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			obs := observer.NewServer(app.log)
			app.runner.Publish = obs.PublishRound

			games, err := app.store.Games()
			if err != nil {
				return err
			}
			for _, g := range games {
				obs.RegisterGame(observer.GameInfo{
					GameID:       g.ID,
					Name:         g.Name,
					CurrentRound: g.CurrentRound,
					MaxRounds:    g.MaxRounds,
					Status:       g.Status,
				})
			}

			api := httpapi.NewServer(app.runner, app.validator, obs, app.log)
			srv := &http.Server{
				Addr:              listen,
				Handler:           api.Routes(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			go func() {
				<-ctx.Done()
				ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel2()
				_ = srv.Shutdown(ctx2)
			}()

			app.log.Printf("listening on %s (%d games)", listen, len(games))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", cfg.Listen, "http listen address")
	return cmd
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(ch)
	}()
	return ctx, cancel
}
