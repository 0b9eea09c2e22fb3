package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/leengari/dyntable/internal/config"
	"github.com/leengari/dyntable/internal/logging"
	"github.com/leengari/dyntable/internal/migrate"
	"github.com/leengari/dyntable/internal/network"
	"github.com/leengari/dyntable/internal/reconcile"
	"github.com/leengari/dyntable/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger, closeFn := logging.SetupLogger(cfg.Level(), cfg.SeqURL)
	defer closeFn()
	slog.SetDefault(logger)

	svc, err := service.Open(cfg)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		return 1
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Check {
		return check(ctx, svc, cfg.Ack)
	}

	report, err := svc.Check(ctx)
	if err != nil {
		slog.Error("startup check failed", "error", err)
		return 1
	}
	logReport(report)

	svc.AddObserver(migrate.NewLoggingObserver(logger))

	if err := network.Start(ctx, cfg.Addr, svc); err != nil {
		slog.Error("server error", "error", err)
		return 1
	}
	return 0
}

// check prints the drift report; the exit status is non-zero while issues remain
func check(ctx context.Context, svc *service.Service, ack bool) int {
	report, err := svc.Check(ctx)
	if err != nil {
		slog.Error("check failed", "error", err)
		return 1
	}
	fmt.Printf("%d tables checked, %d issues\n", report.Tables, len(report.Issues))
	for _, issue := range report.Issues {
		fmt.Println("  " + issue.String())
	}
	if !ack {
		if report.Clean() {
			return 0
		}
		return 1
	}

	if _, err := svc.Acknowledge(ctx); err != nil {
		if errors.Is(err, service.ErrInconsistent) {
			fmt.Println("not acknowledged: repair the storage issues above first")
		} else {
			slog.Error("acknowledge failed", "error", err)
		}
		return 1
	}
	fmt.Println("journal checkpointed")
	return 0
}

func logReport(report *reconcile.Report) {
	if report.Clean() {
		slog.Info("catalog and storage consistent", "tables", report.Tables)
		return
	}
	for _, issue := range report.Issues {
		slog.Warn("consistency issue",
			"kind", string(issue.Kind),
			"table", issue.Table,
			"detail", issue.String(),
		)
	}
}
