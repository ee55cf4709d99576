// internal/finalize/receipts.go
package finalize

import (
	"fmt"
	"strings"
	"time"

	"pos-device-service/internal/model"
	"pos-device-service/pkg/driver"
)

const defaultReceiptWidth = 42

// receiptBuilder lays out non-fiscal receipts with the injected formatter
type receiptBuilder struct {
	text     TextFormatter
	settings *Settings
	now      func() time.Time
}

func (b *receiptBuilder) width() int {
	if b.settings.ReceiptWidth > 0 {
		return b.settings.ReceiptWidth
	}
	return defaultReceiptWidth
}

// columns places left and right on one line, truncating left when needed
func (b *receiptBuilder) columns(left, right string) string {
	w := b.width()
	space := w - len([]rune(right)) - 1
	if space < 1 {
		return right
	}
	l := []rune(left)
	if len(l) > space {
		l = l[:space]
	}
	return string(l) + strings.Repeat(" ", w-len(l)-len([]rune(right))) + right
}

func (b *receiptBuilder) separator() driver.ReceiptLine {
	return driver.ReceiptLine{Text: strings.Repeat("-", b.width())}
}

func (b *receiptBuilder) header(sale *model.Sale) []driver.ReceiptLine {
	lines := []driver.ReceiptLine{
		{Text: b.columns(b.text.Text(TextSale), fmt.Sprintf("%d", sale.Number))},
		{Text: b.text.DateTime(b.now())},
	}
	if sale.Location != "" {
		lines = append(lines, driver.ReceiptLine{Text: b.text.Text(TextLocation) + ": " + sale.Location})
	}
	if sale.User != "" {
		lines = append(lines, driver.ReceiptLine{Text: b.text.Text(TextOperator) + ": " + sale.User})
	}
	return lines
}

// kitchenReceipt lists quantities and names only
func (b *receiptBuilder) kitchenReceipt(title string, sale *model.Sale, details []*model.SaleDetail) *driver.Receipt {
	r := &driver.Receipt{
		Title:  title,
		Header: b.header(sale),
	}
	for _, d := range details {
		r.Lines = append(r.Lines, driver.ReceiptLine{
			Text: fmt.Sprintf("%s x %s", b.text.Quantity(d.Quantity), d.ItemName),
			Bold: true,
		})
		if d.Note != "" {
			r.Lines = append(r.Lines, driver.ReceiptLine{Text: "  " + d.Note})
		}
	}
	if sale.Note != "" {
		r.Footer = append(r.Footer, driver.ReceiptLine{Text: b.text.Text(TextNote) + ": " + sale.Note})
	}
	return r
}

// orderReceipt lists lines with prices and the total of the given lines
func (b *receiptBuilder) orderReceipt(title string, sale *model.Sale, details []*model.SaleDetail) *driver.Receipt {
	r := &driver.Receipt{
		Title:  title,
		Header: b.header(sale),
	}
	b.appendPricedLines(r, details)

	part := sale.WithDetails(details)
	r.Footer = append(r.Footer,
		b.separator(),
		driver.ReceiptLine{Text: b.columns(b.text.Text(TextTotal), b.text.Money(part.Total())), Bold: true},
	)
	return r
}

// invoiceReceipt is the printable copy of a sale document
func (b *receiptBuilder) invoiceReceipt(title string, sale *model.Sale, doc *model.Document) *driver.Receipt {
	r := &driver.Receipt{Title: title}
	for _, h := range b.settings.HeaderLines {
		r.Header = append(r.Header, driver.ReceiptLine{Text: h, Align: driver.AlignCenter})
	}
	if doc != nil {
		r.Header = append(r.Header, driver.ReceiptLine{Text: b.columns(b.text.Text(TextInvoice), doc.Number), Bold: true})
		if doc.Recipient != "" {
			r.Header = append(r.Header, driver.ReceiptLine{Text: b.text.Text(TextPartner) + ": " + doc.Recipient})
		}
	} else if sale.Partner != "" {
		r.Header = append(r.Header, driver.ReceiptLine{Text: b.text.Text(TextPartner) + ": " + sale.Partner})
	}
	r.Header = append(r.Header, b.header(sale)...)

	b.appendPricedLines(r, sale.Details)
	r.Footer = append(r.Footer, b.separator())
	for _, vt := range sale.VATTotals() {
		label := fmt.Sprintf("%s %s %s%%", b.text.Text(TextVAT), vt.Group, vt.Rate.String())
		r.Footer = append(r.Footer, driver.ReceiptLine{Text: b.columns(label, b.text.Money(vt.VAT))})
	}
	r.Footer = append(r.Footer, driver.ReceiptLine{
		Text: b.columns(b.text.Text(TextTotal), b.text.Money(sale.Total())),
		Bold: true,
	})
	if b.settings.ReceiptSignature != "" {
		r.Footer = append(r.Footer, driver.ReceiptLine{Text: b.settings.ReceiptSignature, Align: driver.AlignCenter})
	}
	return r
}

func (b *receiptBuilder) appendPricedLines(r *driver.Receipt, details []*model.SaleDetail) {
	for _, d := range details {
		r.Lines = append(r.Lines,
			driver.ReceiptLine{Text: d.ItemName},
			driver.ReceiptLine{Text: b.columns(
				fmt.Sprintf("  %s x %s", b.text.Quantity(d.Quantity), b.text.Money(d.Price)),
				b.text.Money(d.Total()),
			)},
		)
	}
}

// annulled returns a copy of r carrying the annulment title
func (b *receiptBuilder) annulled(r *driver.Receipt) *driver.Receipt {
	c := *r
	c.Title = b.text.Text(TextReceiptAnnulled)
	c.Header = append([]driver.ReceiptLine{{Text: r.Title, Align: driver.AlignCenter}}, r.Header...)
	return &c
}

func kitchenLines(device *model.Device, details []*model.SaleDetail) []*model.SaleDetail {
	var lines []*model.SaleDetail
	for _, d := range details {
		if device.AcceptsItemGroup(d.ItemGroup) {
			lines = append(lines, d)
		}
	}
	return lines
}
