// Точка входа CLI-финализатора staging: одна финализация ingest или
// download и очистка истёкших перемещений. Предназначен для запуска
// по расписанию (cron).
//
// Коды возврата:
//   - 0 — финализация выполнена или нечего финализировать, а также --help
//   - 1 — некорректные аргументы
//   - 2 — финализация не удалась или достигнут лимит параллельности
//   - 3 — ошибка инициализации staging (конфигурация, хранилища)
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/arturkryukov/artsore/staging-service/internal/bootstrap"
	"github.com/arturkryukov/artsore/staging-service/internal/config"
	"github.com/arturkryukov/artsore/staging-service/internal/service"
)

const (
	exitOK        = 0
	exitUsage     = 1
	exitFinalize  = 2
	exitInitError = 3
)

// Типы финализации.
const (
	typeIngest   = "INGEST"
	typeDownload = "DOWNLOAD"
)

var finalizerFlags struct {
	kind       string
	configFile string
}

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stderr))
}

// run выполняет CLI и возвращает код возврата процесса.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	code := exitOK

	app := &cli.App{
		Name:      "staging-finalizer",
		Usage:     "финализация перемещений staging",
		Version:   config.Version,
		Writer:    stderr,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "type",
				Aliases:     []string{"t"},
				Usage:       "тип финализации: INGEST или DOWNLOAD",
				Required:    true,
				Destination: &finalizerFlags.kind,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "путь к документу staging",
				EnvVars:     []string{"STG_CONFIG_FILE"},
				Destination: &finalizerFlags.configFile,
			},
		},
		Action: func(cctx *cli.Context) error {
			code = finalize(cctx.Context, stderr)
			return nil
		},
		// Коды возврата определяет run, а не urfave/cli.
		ExitErrHandler: func(*cli.Context, error) {},
	}

	if err := app.RunContext(ctx, args); err != nil {
		fmt.Fprintf(stderr, "Ошибка аргументов: %v\n", err)
		return exitUsage
	}
	return code
}

// finalize загружает конфигурацию, собирает компоненты и выполняет
// одну финализацию выбранного типа, затем очистку.
func finalize(ctx context.Context, stderr io.Writer) int {
	kind := strings.ToUpper(strings.TrimSpace(finalizerFlags.kind))
	if kind != typeIngest && kind != typeDownload {
		fmt.Fprintf(stderr, "Ошибка аргументов: тип финализации должен быть INGEST или DOWNLOAD, получено %q\n", finalizerFlags.kind)
		return exitUsage
	}

	if finalizerFlags.configFile != "" {
		if err := os.Setenv("STG_CONFIG_FILE", finalizerFlags.configFile); err != nil {
			fmt.Fprintf(stderr, "Ошибка конфигурации: %v\n", err)
			return exitInitError
		}
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Ошибка конфигурации: %v\n", err)
		return exitInitError
	}
	logger := config.SetupLogger(cfg)

	components, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации staging", slog.String("error", err.Error()))
		return exitInitError
	}
	defer components.Close()

	orch := components.Orchestrator
	logger.Info("Запуск финализации", slog.String("type", kind))

	var ok bool
	switch kind {
	case typeIngest:
		ok = orch.FinalizeIngests(ctx)
	case typeDownload:
		ok = orch.FinalizeDownloads(ctx)
	}

	// Очистка выполняется независимо от результата финализации.
	service.NewCleanupService(orch, cfg.CleanupInterval, nil, logger).RunOnce(ctx)

	if !ok {
		logger.Warn("Финализация не выполнена", slog.String("type", kind))
		return exitFinalize
	}
	logger.Info("Финализация завершена", slog.String("type", kind))
	return exitOK
}
