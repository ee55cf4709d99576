package protocol

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pos-device-service/pkg/driver"
)

func TestTCPConnection_WriteAndRead(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 3)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		received <- buf
		conn.Write([]byte{0x12})
	}()

	addr := ln.Addr().(*net.TCPAddr)
	conn := NewTCPConnection(&TCPConfig{
		Host:         "127.0.0.1",
		Port:         addr.Port,
		Timeout:      time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, conn.Open(ctx))
	defer conn.Close()
	assert.True(t, conn.IsOpen())

	require.NoError(t, conn.Write(ctx, []byte{0x10, 0x04, 0x01}))
	assert.Equal(t, []byte{0x10, 0x04, 0x01}, <-received)

	data, err := conn.Read(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12}, data)

	require.NoError(t, conn.Close())
	assert.False(t, conn.IsOpen())
}

func TestTCPConnection_FailuresAreTransportErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	conn := NewTCPConnection(&TCPConfig{Host: "127.0.0.1", Port: port, Timeout: time.Second}, zap.NewNop())

	err = conn.Open(context.Background())
	require.Error(t, err)
	var terr *driver.TransportError
	assert.True(t, errors.As(err, &terr))

	err = conn.Write(context.Background(), []byte{0x00})
	assert.True(t, errors.As(err, &terr))
}
