package serial

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
)

func TestScanner_DetailedPorts(t *testing.T) {
	s := NewScanner(zap.NewNop())
	s.detailed = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyS0"},
			{Name: "/dev/ttyUSB0", IsUSB: true, VID: "067b", PID: "2303", SerialNumber: "A1"},
		}, nil
	}

	ports, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, ports, 2)
	assert.Equal(t, "/dev/ttyS0", ports[0].Port)
	assert.Equal(t, "serial", ports[0].Transport)
	assert.Equal(t, "067b", ports[1].VendorID)
	assert.Equal(t, "USB serial adapter", ports[1].Description)
}

func TestScanner_FallsBackToPlainList(t *testing.T) {
	s := NewScanner(zap.NewNop())
	s.detailed = func() ([]*enumerator.PortDetails, error) { return nil, errors.New("udev unavailable") }
	s.plain = func() ([]string, error) { return []string{"COM3"}, nil }

	ports, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, ports, 1)
	assert.Equal(t, "COM3", ports[0].Port)
}

func TestScanner_EnumerationFailure(t *testing.T) {
	s := NewScanner(zap.NewNop())
	s.detailed = func() ([]*enumerator.PortDetails, error) { return nil, errors.New("boom") }
	s.plain = func() ([]string, error) { return nil, errors.New("boom") }

	_, err := s.Scan(context.Background())
	assert.Error(t, err)
}
