package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/fieldrec/fieldstream/internal/app"
	"github.com/fieldrec/fieldstream/internal/config"
	"github.com/fieldrec/fieldstream/internal/infrastructure/persistence"
	"github.com/fieldrec/fieldstream/internal/multipart"
	"github.com/fieldrec/fieldstream/internal/reassembly"
	"github.com/fieldrec/fieldstream/internal/signer"
)

const sweepInterval = time.Minute

func run(ctx context.Context) error {
	cfg := config.Load()

	addr := flag.String("addr", cfg.Addr, "web server address")
	cert := flag.String("cert", cfg.CertFile, "path of TLS certificate file")
	key := flag.String("key", cfg.KeyFile, "path of TLS private key file")
	flag.Parse()

	sess := session.Must(session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
	}))

	issuer, err := signer.New(s3.New(sess), cfg.Bucket)
	if err != nil {
		return err
	}
	store := persistence.NewObjectStore(sess, cfg.Bucket)
	recordings := persistence.NewRecordingRepository(sess, cfg.RegistryTable)
	coordinator := multipart.NewCoordinator(store, issuer)
	sessions := reassembly.NewManager(store, reassembly.WithByteCeiling(cfg.SessionMaxBytes))

	r := mux.NewRouter()
	controller := app.NewController(recordings, store, coordinator, sessions, issuer)
	controller.SetupRoutes(r)

	srv := &http.Server{
		Handler:      r,
		Addr:         *addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		sessions.Run(ctx, sweepInterval)
		return nil
	})
	eg.Go(func() error {
		coordinator.Run(ctx, sweepInterval)
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	eg.Go(func() error {
		slog.Info("the server started", "addr", *addr)
		var err error
		if *cert != "" && *key != "" {
			err = srv.ListenAndServeTLS(*cert, *key)
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	return eg.Wait()
}

func main() {
	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           log.InfoLevel,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
