// internal/service/sale_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-device-service/internal/finalize"
	"pos-device-service/internal/model"
	"pos-device-service/internal/repository"
	"pos-device-service/internal/utils"
)

// ErrInvalidPlan is returned for a finalize request that cannot be executed
var ErrInvalidPlan = errors.New("invalid finalize request")

// Finalizer executes finalize plans
type Finalizer interface {
	FinalizeOperation(ctx context.Context, opts *finalize.Options) error
}

// SaleService finalizes sales and reads them back
type SaleService struct {
	finalizer Finalizer
	sales     repository.SaleReader
	logger    *utils.ServiceLogger
}

// NewSaleService creates a new sale service instance
func NewSaleService(finalizer Finalizer, sales repository.SaleReader, logger *zap.Logger) *SaleService {
	return &SaleService{
		finalizer: finalizer,
		sales:     sales,
		logger:    utils.NewServiceLogger(logger, "sale-service"),
	}
}

// Finalize converts the request into a plan and runs it
func (ss *SaleService) Finalize(ctx context.Context, req *FinalizeRequest) (*FinalizeResult, error) {
	opts, err := req.toOptions()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	if err := ss.finalizer.FinalizeOperation(ctx, opts); err != nil {
		ss.logger.Warn("Finalize failed",
			zap.String("actions", opts.Actions.String()),
			zap.Error(err),
		)
		return nil, err
	}

	return &FinalizeResult{
		Actions:  opts.Actions.String(),
		Sale:     opts.Sale,
		Order:    opts.Order,
		Document: opts.Document,
		Duration: time.Since(started).String(),
	}, nil
}

// GetSale loads a committed sale
func (ss *SaleService) GetSale(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	return ss.sales.GetSale(ctx, id)
}

// GetSaleByNumber loads a committed sale by number
func (ss *SaleService) GetSaleByNumber(ctx context.Context, number int64) (*model.Sale, error) {
	return ss.sales.GetSaleByNumber(ctx, number)
}

// FinalizeRequest is the HTTP form of a finalize plan
type FinalizeRequest struct {
	Actions  []string        `json:"actions" binding:"required,min=1"`
	Sale     *model.Sale     `json:"sale,omitempty"`
	Order    *model.Order    `json:"order,omitempty"`
	Document *model.Document `json:"document,omitempty"`

	KitchenSale            *model.Sale `json:"kitchen_sale,omitempty"`
	KitchenDeltaSale       *model.Sale `json:"kitchen_delta_sale,omitempty"`
	KitchenTitle           string      `json:"kitchen_title,omitempty"`
	CustomerOrderSale      *model.Sale `json:"customer_order_sale,omitempty"`
	CustomerOrderDeltaSale *model.Sale `json:"customer_order_delta_sale,omitempty"`
	CustomerOrderTitle     string      `json:"customer_order_title,omitempty"`
	CashReceiptSale        *model.Sale `json:"cash_receipt_sale,omitempty"`
	CashReceiptTitle       string      `json:"cash_receipt_title,omitempty"`

	EditedAdvancePayments []*model.Payment `json:"edited_advance_payments,omitempty" binding:"omitempty,dive,required"`

	// InvoiceCopies nil uses the configured default
	InvoiceCopies *int `json:"invoice_copies,omitempty"`
	SilentMode    bool `json:"silent_mode"`
}

func (req *FinalizeRequest) toOptions() (*finalize.Options, error) {
	actions, err := finalize.ParseActions(req.Actions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if req.Sale == nil && req.Order == nil && req.Document == nil {
		return nil, fmt.Errorf("%w: sale, order or document is required", ErrInvalidPlan)
	}
	if actions.Has(finalize.ActionCommitOrder) && req.Order == nil {
		return nil, fmt.Errorf("%w: commit_order needs an order", ErrInvalidPlan)
	}
	if actions.Has(finalize.ActionCommitDocument) && req.Document == nil {
		return nil, fmt.Errorf("%w: commit_document needs a document", ErrInvalidPlan)
	}

	if req.Sale != nil && req.Sale.ID == uuid.Nil {
		req.Sale.ID = uuid.New()
	}
	if req.Order != nil && req.Order.ID == uuid.Nil {
		req.Order.ID = uuid.New()
	}
	if req.Document != nil && req.Document.ID == uuid.Nil {
		req.Document.ID = uuid.New()
	}

	copies := -1
	if req.InvoiceCopies != nil {
		if *req.InvoiceCopies < 0 {
			return nil, fmt.Errorf("%w: invoice_copies must not be negative", ErrInvalidPlan)
		}
		copies = *req.InvoiceCopies
	}

	opts := &finalize.Options{
		Sale:                   req.Sale,
		Order:                  req.Order,
		Document:               req.Document,
		Actions:                actions,
		KitchenSale:            req.KitchenSale,
		KitchenDeltaSale:       req.KitchenDeltaSale,
		KitchenTitle:           req.KitchenTitle,
		CustomerOrderSale:      req.CustomerOrderSale,
		CustomerOrderDeltaSale: req.CustomerOrderDeltaSale,
		CustomerOrderTitle:     req.CustomerOrderTitle,
		CashReceiptSale:        req.CashReceiptSale,
		CashReceiptTitle:       req.CashReceiptTitle,
		EditedAdvancePayments:  req.EditedAdvancePayments,
		InvoiceCopies:          copies,
		SilentMode:             req.SilentMode,
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	return opts, nil
}

// FinalizeResult reports a successful finalize call
type FinalizeResult struct {
	Actions  string          `json:"actions"`
	Sale     *model.Sale     `json:"sale,omitempty"`
	Order    *model.Order    `json:"order,omitempty"`
	Document *model.Document `json:"document,omitempty"`
	Duration string          `json:"duration"`
}
