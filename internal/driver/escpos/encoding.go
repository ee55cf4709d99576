// internal/driver/escpos/encoding.go
package escpos

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// codePage pairs a printer character table with its Go encoder
type codePage struct {
	table   byte
	charmap *charmap.Charmap
}

var codePages = map[string]codePage{
	"cp437":  {table: 0, charmap: charmap.CodePage437},
	"cp850":  {table: 2, charmap: charmap.CodePage850},
	"cp866":  {table: 17, charmap: charmap.CodePage866},
	"cp852":  {table: 18, charmap: charmap.CodePage852},
	"cp858":  {table: 19, charmap: charmap.CodePage858},
	"cp1252": {table: 16, charmap: charmap.Windows1252},
}

// textEncoder converts UTF-8 receipt text to the printer's code page
type textEncoder struct {
	table   byte
	encoder *encoding.Encoder
}

func newTextEncoder(name string) (*textEncoder, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "cp437"
	}
	cp, ok := codePages[key]
	if !ok {
		return nil, fmt.Errorf("unsupported code page %q", name)
	}
	// unmappable runes are substituted, not rejected
	return &textEncoder{
		table:   cp.table,
		encoder: encoding.ReplaceUnsupported(cp.charmap.NewEncoder()),
	}, nil
}

func (e *textEncoder) selectCommand() []byte {
	return withArg(ESC_POS_COMMANDS.SELECT_CHARSET, e.table)
}

func (e *textEncoder) encode(text string) ([]byte, error) {
	out, err := e.encoder.Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to encode text: %w", err)
	}
	return out, nil
}
