package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDevice_NormalizedPort(t *testing.T) {
	tests := []struct {
		name string
		port string
		want string
	}{
		{"unix path keeps case", "/dev/ttyUSB0", "/dev/ttyUSB0"},
		{"lower unix path", "/dev/ttyusb0", "/dev/ttyusb0"},
		{"com name", "com3", "COM3"},
		{"device namespace com", `\\.\com10`, `\\.\COM10`},
		{"not a com port", "comx", "comx"},
		{"tcp address", "TCP://Printer.local:9100", "tcp://printer.local:9100"},
		{"usb ids", "usb://04B8:0E15", "usb://04b8:0e15"},
		{"other scheme", "VIRTUAL://Till", "virtual://Till"},
		{"trimmed", "  COM1 ", "COM1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Device{Port: tt.port}
			assert.Equal(t, tt.want, d.NormalizedPort())
		})
	}
}

func TestDevice_NormalizedPortDistinguishesUnixPaths(t *testing.T) {
	a := &Device{Port: "/dev/ttyUSB0"}
	b := &Device{Port: "/dev/ttyusb0"}
	assert.NotEqual(t, a.NormalizedPort(), b.NormalizedPort())

	assert.Equal(t, (&Device{Port: "com2"}).NormalizedPort(), (&Device{Port: "COM2"}).NormalizedPort())
}
