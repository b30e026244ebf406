package instruments

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTCPTransportRoundTrips(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		srv := &TCPTransport{conn: conn, r: bufio.NewReader(conn)}
		msg, err := srv.Recv(context.Background(), time.Second)
		if err != nil {
			return
		}
		_ = srv.Send(context.Background(), msg)
	}()

	client, err := DialTCP(context.Background(), ln.Addr().String(), time.Second)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send(context.Background(), []byte("PING")))
	reply, err := client.Recv(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "PING", string(reply))

	<-serverDone
}
