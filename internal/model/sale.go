// internal/model/sale.go
package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleState represents the lifecycle state of a sale
type SaleState string

const (
	SaleStateDraft    SaleState = "DRAFT"
	SaleStateNewDraft SaleState = "NEW_DRAFT"
	SaleStateNew      SaleState = "NEW"
	SaleStateAnnulled SaleState = "ANNULLED"
)

// IsDraft reports whether the sale still has to be promoted before it is persisted
func (s SaleState) IsDraft() bool {
	return s == SaleStateDraft || s == SaleStateNewDraft
}

// SaleDetail is one line of a sale or order
type SaleDetail struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	ItemID    uuid.UUID       `json:"item_id" db:"item_id"`
	ItemCode  string          `json:"item_code" db:"item_code"`
	ItemName  string          `json:"item_name" db:"item_name"`
	ItemGroup string          `json:"item_group" db:"item_group"`
	Quantity  decimal.Decimal `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Discount  decimal.Decimal `json:"discount" db:"discount"` // percent
	VATGroup  string          `json:"vat_group" db:"vat_group"`
	VATRate   decimal.Decimal `json:"vat_rate" db:"vat_rate"`
	Note      string          `json:"note,omitempty" db:"note"`
}

// Total returns quantity * price with the line discount applied
func (d *SaleDetail) Total() decimal.Decimal {
	total := d.Quantity.Mul(d.Price)
	if !d.Discount.IsZero() {
		total = total.Sub(total.Mul(d.Discount).Div(decimal.NewFromInt(100)))
	}
	return total.Round(2)
}

// Sale is the business payload finalized at the register
type Sale struct {
	ID         uuid.UUID     `json:"id" db:"id"`
	Number     int64         `json:"number" db:"number"`
	State      SaleState     `json:"state" db:"state"`
	PartnerID  uuid.UUID     `json:"partner_id" db:"partner_id"`
	Partner    string        `json:"partner" db:"partner"`
	LocationID uuid.UUID     `json:"location_id" db:"location_id"`
	Location   string        `json:"location" db:"location"`
	UserID     uuid.UUID     `json:"user_id" db:"user_id"`
	User       string        `json:"user" db:"user_name"`
	Note       string        `json:"note,omitempty" db:"note"`
	Details    []*SaleDetail `json:"details" db:"-"`
	Payments   []*Payment    `json:"payments" db:"-"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
}

// Total returns the sum of all line totals
func (s *Sale) Total() decimal.Decimal {
	total := decimal.Zero
	for _, d := range s.Details {
		total = total.Add(d.Total())
	}
	return total
}

// IsEmpty reports whether the sale has no lines
func (s *Sale) IsEmpty() bool {
	return s == nil || len(s.Details) == 0
}

// VATTotal is the turnover of one VAT group
type VATTotal struct {
	Group  string          `json:"group"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
	VAT    decimal.Decimal `json:"vat"`
}

// VATTotals groups line totals by VAT group, ordered by group code.
// Prices are VAT inclusive.
func (s *Sale) VATTotals() []VATTotal {
	byGroup := make(map[string]*VATTotal)
	for _, d := range s.Details {
		t, ok := byGroup[d.VATGroup]
		if !ok {
			t = &VATTotal{Group: d.VATGroup, Rate: d.VATRate}
			byGroup[d.VATGroup] = t
		}
		t.Amount = t.Amount.Add(d.Total())
	}

	totals := make([]VATTotal, 0, len(byGroup))
	hundred := decimal.NewFromInt(100)
	for _, t := range byGroup {
		t.VAT = t.Amount.Mul(t.Rate).Div(hundred.Add(t.Rate)).Round(2)
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Group < totals[j].Group })
	return totals
}

// Clone returns a deep copy of the sale
func (s *Sale) Clone() *Sale {
	if s == nil {
		return nil
	}
	c := *s
	c.Details = make([]*SaleDetail, len(s.Details))
	for i, d := range s.Details {
		dc := *d
		c.Details[i] = &dc
	}
	c.Payments = make([]*Payment, len(s.Payments))
	for i, p := range s.Payments {
		pc := *p
		c.Payments[i] = &pc
	}
	return &c
}

// WithDetails returns a shallow copy of the sale carrying only the given lines
func (s *Sale) WithDetails(details []*SaleDetail) *Sale {
	c := *s
	c.Details = details
	return &c
}

// PaymentType identifies how a payment was made
type PaymentType string

const (
	PaymentTypeCash         PaymentType = "CASH"
	PaymentTypeCard         PaymentType = "CARD"
	PaymentTypeBankTransfer PaymentType = "BANK_TRANSFER"
	PaymentTypeCoupon       PaymentType = "COUPON"
	PaymentTypeAdvance      PaymentType = "ADVANCE"
)

// Payment is a payment towards a sale
type Payment struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	SaleID    uuid.UUID       `json:"sale_id" db:"sale_id"`
	Type      PaymentType     `json:"type" db:"type"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// IsCash reports whether the payment is made in cash
func (p *Payment) IsCash() bool {
	return p.Type == PaymentTypeCash
}

// Order is a restaurant order that reserves quantities until it is billed
type Order struct {
	ID         uuid.UUID     `json:"id" db:"id"`
	LocationID uuid.UUID     `json:"location_id" db:"location_id"`
	Location   string        `json:"location" db:"location"`
	Details    []*SaleDetail `json:"details" db:"-"`
	UpdatedAt  time.Time     `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy of the order
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Details = make([]*SaleDetail, len(o.Details))
	for i, d := range o.Details {
		dc := *d
		c.Details[i] = &dc
	}
	return &c
}

// DocumentKind identifies a generic business document
type DocumentKind string

const (
	DocumentKindInvoice     DocumentKind = "INVOICE"
	DocumentKindCreditNote  DocumentKind = "CREDIT_NOTE"
	DocumentKindProforma    DocumentKind = "PROFORMA"
	DocumentKindWarrantCard DocumentKind = "WARRANTY_CARD"
)

// Document is an invoice or other document issued for a sale
type Document struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	SaleID    uuid.UUID    `json:"sale_id" db:"sale_id"`
	Kind      DocumentKind `json:"kind" db:"kind"`
	Number    string       `json:"number" db:"number"`
	Recipient string       `json:"recipient" db:"recipient"`
	IssuedAt  time.Time    `json:"issued_at" db:"issued_at"`
}

// VATGroup is a configured tax group
type VATGroup struct {
	Code string          `json:"code"`
	Rate decimal.Decimal `json:"rate"`
}
