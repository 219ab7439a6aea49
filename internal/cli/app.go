package cli

import (
	"context"
	"fmt"
	"io"

	"splitledger/internal/amqp"
	"splitledger/internal/backend"
	"splitledger/internal/cache"
	"splitledger/internal/config"
	"splitledger/internal/detect"
	"splitledger/internal/export"
	"splitledger/internal/export/dir"
	"splitledger/internal/export/sheets"
	"splitledger/internal/ledger"
	"splitledger/internal/log"
	"splitledger/internal/services"
	"splitledger/internal/settle"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Bootstrap wires the configured backend, settlement book, notifications,
// cache and export target into a services.Ledger. The caller must Close
// the result.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *log.Logger) (*services.Ledger, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, err
	}

	var closers []io.Closer
	release := func() {
		for _, c := range closers {
			c.Close()
		}
	}
	if res.Cleanup != nil {
		closers = append(closers, closerFunc(res.Cleanup))
	}

	storeOpts := []ledger.Option{ledger.WithLogger(logger)}
	svcOpts := []services.Option{services.WithLogger(logger)}

	if cfg.ReportCacheSize > 0 {
		reports := cache.NewReportCache(cfg.ReportCacheSize, cfg.ReportCacheTTL, logger)
		storeOpts = append(storeOpts, ledger.WithObserver(reports))
		svcOpts = append(svcOpts, services.WithReportCache(reports))
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(amqp.Config{
			URL:        cfg.AMQPURL,
			Exchange:   cfg.AMQPExchange,
			RoutingKey: cfg.AMQPRoutingKey,
		}, logger)
		if err != nil {
			logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without notifications", log.FieldError, err)
		} else {
			storeOpts = append(storeOpts, ledger.WithObserver(client))
			closers = append([]io.Closer{client}, closers...)
		}
	}

	if cfg.DuplicateScanMin > 0 {
		svcOpts = append(svcOpts, services.WithDetectOptions(detect.WithDuplicateScan(cfg.DuplicateScanMin)))
	}

	exporter, err := newExporter(ctx, cfg, logger)
	if err != nil {
		release()
		return nil, err
	}

	store, err := ledger.Open(ctx, res.Store, storeOpts...)
	if err != nil {
		release()
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	book, err := settle.Open(ctx, res.Store, logger)
	if err != nil {
		release()
		return nil, fmt.Errorf("open settlements: %w", err)
	}
	svcOpts = append(svcOpts, services.WithSettlements(book))

	for _, c := range closers {
		svcOpts = append(svcOpts, services.WithCloser(c))
	}
	return services.NewLedger(store, exporter, svcOpts...), nil
}

func newExporter(ctx context.Context, cfg *config.Config, logger *log.Logger) (export.Exporter, error) {
	switch cfg.ExportTarget {
	case "sheets":
		return sheets.NewFromConfig(ctx, sheets.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		}, logger)
	case "dir", "":
		return dir.New(cfg.ExportDir, logger), nil
	default:
		return nil, fmt.Errorf("unsupported export target: %s", cfg.ExportTarget)
	}
}
