package handler

import "github.com/haldiram/distribution/internal/inventory/service"

type Handlers struct {
	Stock *StockHandler
	Batch *BatchHandler
}

func NewHandlers(ledger *service.LedgerService, lots *service.LotService, report *service.ReportService) *Handlers {
	return &Handlers{
		Stock: NewStockHandler(ledger, report),
		Batch: NewBatchHandler(lots),
	}
}
