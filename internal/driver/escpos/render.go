// internal/driver/escpos/render.go
package escpos

import (
	"fmt"

	"pos-device-service/pkg/driver"
)

// buildReceiptCommands renders a receipt: title, header, body, footer,
// optional barcode, then feed and cut
func (p *Printer) buildReceiptCommands(receipt *driver.Receipt) ([][]byte, error) {
	commands := [][]byte{
		ESC_POS_COMMANDS.INITIALIZE,
		p.encoder.selectCommand(),
	}

	if receipt.Title != "" {
		title := driver.ReceiptLine{Text: receipt.Title, Bold: true, Double: true, Align: driver.AlignCenter}
		lineCommands, err := p.buildLineCommands(title)
		if err != nil {
			return nil, err
		}
		commands = append(commands, lineCommands...)
		commands = append(commands, ESC_POS_COMMANDS.LINE_FEED)
	}

	for _, section := range [][]driver.ReceiptLine{receipt.Header, receipt.Lines, receipt.Footer} {
		for _, line := range section {
			lineCommands, err := p.buildLineCommands(line)
			if err != nil {
				return nil, err
			}
			commands = append(commands, lineCommands...)
		}
	}

	if receipt.Barcode != "" {
		barcode, err := buildBarcodeCommands(receipt.Barcode)
		if err != nil {
			return nil, err
		}
		commands = append(commands, barcode...)
	}

	commands = append(commands, withArg(ESC_POS_COMMANDS.FEED_LINES, p.options.FeedLines))
	if p.options.Cut {
		commands = append(commands, ESC_POS_COMMANDS.CUT_PARTIAL)
	}
	return commands, nil
}

// buildLineCommands renders one line and restores the default style
func (p *Printer) buildLineCommands(line driver.ReceiptLine) ([][]byte, error) {
	var commands [][]byte

	switch line.Align {
	case driver.AlignCenter:
		commands = append(commands, ESC_POS_COMMANDS.ALIGN_CENTER)
	case driver.AlignRight:
		commands = append(commands, ESC_POS_COMMANDS.ALIGN_RIGHT)
	default:
		commands = append(commands, ESC_POS_COMMANDS.ALIGN_LEFT)
	}
	if line.Bold {
		commands = append(commands, ESC_POS_COMMANDS.TEXT_BOLD_ON)
	}
	if line.Double {
		commands = append(commands, ESC_POS_COMMANDS.TEXT_SIZE_DOUBLE_BOTH)
	}

	text, err := p.encoder.encode(fitWidth(line.Text, p.lineWidth(line)))
	if err != nil {
		return nil, err
	}
	commands = append(commands, text, ESC_POS_COMMANDS.LINE_FEED)

	if line.Bold {
		commands = append(commands, ESC_POS_COMMANDS.TEXT_BOLD_OFF)
	}
	if line.Double {
		commands = append(commands, ESC_POS_COMMANDS.TEXT_SIZE_NORMAL)
	}
	return commands, nil
}

func (p *Printer) lineWidth(line driver.ReceiptLine) int {
	if line.Double {
		return p.options.Width / 2
	}
	return p.options.Width
}

// fitWidth truncates text to width characters
func fitWidth(text string, width int) string {
	if width <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	return string(runes[:width])
}

// buildBarcodeCommands renders a centered CODE128 barcode (code set B)
// with the digits printed below
func buildBarcodeCommands(code string) ([][]byte, error) {
	data := append([]byte("{B"), code...)
	if len(data) > 255 {
		return nil, fmt.Errorf("barcode too long: %d bytes", len(code))
	}
	for _, c := range []byte(code) {
		if c < 0x20 || c > 0x7E {
			return nil, fmt.Errorf("barcode contains unsupported byte 0x%02X", c)
		}
	}

	return [][]byte{
		ESC_POS_COMMANDS.ALIGN_CENTER,
		withArg(ESC_POS_COMMANDS.BARCODE_HEIGHT, 80),
		withArg(ESC_POS_COMMANDS.BARCODE_HRI, 2),
		withArg(ESC_POS_COMMANDS.BARCODE_CODE128, byte(len(data))),
		data,
		ESC_POS_COMMANDS.LINE_FEED,
		ESC_POS_COMMANDS.ALIGN_LEFT,
	}, nil
}
