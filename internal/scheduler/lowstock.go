package scheduler

import (
	"context"
	"log/slog"
)

// LowStockJobID identifies the low-stock scan.
const LowStockJobID = "low-stock-scan"

// LowStockScanner raises notifications for products at or below threshold.
type LowStockScanner interface {
	ScanLowStock(ctx context.Context) (int, error)
}

// LowStockJob runs scanner on spec and logs how many notifications it raised.
func LowStockJob(scanner LowStockScanner, spec string, logger *slog.Logger) Job {
	if logger == nil {
		logger = slog.Default()
	}
	return Job{
		ID:   LowStockJobID,
		Spec: spec,
		Run: func(ctx context.Context) error {
			n, err := scanner.ScanLowStock(ctx)
			if err != nil {
				return err
			}
			logger.Info("low stock scan complete", "notifications", n)
			return nil
		},
	}
}
