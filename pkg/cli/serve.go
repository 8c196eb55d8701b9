package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethangrabau/mythra-web/pkg/logger"
	"github.com/ethangrabau/mythra-web/pkg/server"
	"github.com/ethangrabau/mythra-web/pkg/workflow"
)

const shutdownTimeout = 10 * time.Second

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Accept print requests over HTTP",
	Description: `Starts an HTTP server with POST /api/print {"imageName": "..."}.
Each request runs the whole workflow before responding.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Usage:   "Listen address",
			Value:   ":8080",
			EnvVars: []string{"MYTHRA_PRINT_ADDR"},
		},
	},
	Action: runServe,
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := initLogging(c, cfg); err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := workflow.NewService(cfg, deviceOptions(cfg))
	srv := server.New(c.String("addr"), svc)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	printSetupSuccess(c.App.Writer, fmt.Sprintf("Listening on %s", c.String("addr")))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down print server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
