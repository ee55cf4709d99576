// internal/finalize/options.go
package finalize

import (
	"context"
	"fmt"
	"strings"

	"pos-device-service/internal/model"
)

// Action is a bit set of finalize steps
type Action uint32

const (
	ActionCommitOrder Action = 1 << iota
	ActionCommitSale
	ActionCommitDocument
	ActionPrintKitchen
	ActionPrintCustomerOrder
	ActionCollectSaleData
	ActionPrintCashReceipt
	ActionPrintCustomerOrderInvoice
	ActionPrintCashReceiptInvoice
)

var actionNames = []struct {
	action Action
	name   string
}{
	{ActionCommitOrder, "commit_order"},
	{ActionCommitSale, "commit_sale"},
	{ActionCommitDocument, "commit_document"},
	{ActionPrintKitchen, "print_kitchen"},
	{ActionPrintCustomerOrder, "print_customer_order"},
	{ActionCollectSaleData, "collect_sale_data"},
	{ActionPrintCashReceipt, "print_cash_receipt"},
	{ActionPrintCustomerOrderInvoice, "print_customer_order_invoice"},
	{ActionPrintCashReceiptInvoice, "print_cash_receipt_invoice"},
}

// Has reports whether any bit of other is set
func (a Action) Has(other Action) bool {
	return a&other != 0
}

func (a Action) String() string {
	var names []string
	for _, an := range actionNames {
		if a&an.action != 0 {
			names = append(names, an.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ParseActions combines action names into a set
func ParseActions(names []string) (Action, error) {
	var actions Action
	for _, name := range names {
		found := false
		for _, an := range actionNames {
			if an.name == name {
				actions |= an.action
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown action: %s", name)
		}
	}
	return actions, nil
}

// Options is the plan of one FinalizeOperation call. Treat it as immutable;
// use Clone to derive a variant.
type Options struct {
	Sale     *model.Sale
	Order    *model.Order
	Document *model.Document
	Actions  Action

	// Overrides per destination. Nil falls back to Sale; a delta sale holds
	// only the lines added since the last print.
	KitchenSale            *model.Sale
	KitchenDeltaSale       *model.Sale
	KitchenTitle           string
	CustomerOrderSale      *model.Sale
	CustomerOrderDeltaSale *model.Sale
	CustomerOrderTitle     string
	CashReceiptSale        *model.Sale
	CashReceiptTitle       string

	EditedAdvancePayments []*model.Payment

	// InvoiceCopies is the number of copies printed after the original.
	// Negative uses the configured default.
	InvoiceCopies int

	SilentMode bool

	// AfterSaleCommit runs inside the transaction right after the sale commit
	AfterSaleCommit func(ctx context.Context, sale *model.Sale) error
}

// Validate rejects payloads holding nil lines or payments
func (o *Options) Validate() error {
	sales := []struct {
		name string
		sale *model.Sale
	}{
		{"sale", o.Sale},
		{"kitchen_sale", o.KitchenSale},
		{"kitchen_delta_sale", o.KitchenDeltaSale},
		{"customer_order_sale", o.CustomerOrderSale},
		{"customer_order_delta_sale", o.CustomerOrderDeltaSale},
		{"cash_receipt_sale", o.CashReceiptSale},
	}
	for _, s := range sales {
		if s.sale == nil {
			continue
		}
		if err := checkDetails(s.name, s.sale.Details); err != nil {
			return err
		}
		for i, p := range s.sale.Payments {
			if p == nil {
				return fmt.Errorf("%w: %s.payments[%d] is null", ErrInvalidOptions, s.name, i)
			}
		}
	}
	if o.Order != nil {
		if err := checkDetails("order", o.Order.Details); err != nil {
			return err
		}
	}
	for i, p := range o.EditedAdvancePayments {
		if p == nil {
			return fmt.Errorf("%w: edited_advance_payments[%d] is null", ErrInvalidOptions, i)
		}
	}
	return nil
}

func checkDetails(name string, details []*model.SaleDetail) error {
	for i, d := range details {
		if d == nil {
			return fmt.Errorf("%w: %s.details[%d] is null", ErrInvalidOptions, name, i)
		}
	}
	return nil
}

// Clone returns a copy with cloned business payloads
func (o *Options) Clone() *Options {
	c := *o
	c.Sale = o.Sale.Clone()
	c.Order = o.Order.Clone()
	if o.Document != nil {
		doc := *o.Document
		c.Document = &doc
	}
	c.KitchenSale = o.KitchenSale.Clone()
	c.KitchenDeltaSale = o.KitchenDeltaSale.Clone()
	c.CustomerOrderSale = o.CustomerOrderSale.Clone()
	c.CustomerOrderDeltaSale = o.CustomerOrderDeltaSale.Clone()
	c.CashReceiptSale = o.CashReceiptSale.Clone()
	if o.EditedAdvancePayments != nil {
		c.EditedAdvancePayments = make([]*model.Payment, len(o.EditedAdvancePayments))
		for i, p := range o.EditedAdvancePayments {
			pc := *p
			c.EditedAdvancePayments[i] = &pc
		}
	}
	return &c
}

func pick(override, fallback *model.Sale) *model.Sale {
	if override != nil {
		return override
	}
	return fallback
}
