package gozk

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestClientFallsBackToUDP exercises CreateSocket's TCP-then-UDP dial: the
// chosen port has no TCP listener (so the dial is refused) but does have a
// UDP responder, so CreateSocket must land on the UDP transport.
func TestClientFallsBackToUDP(t *testing.T) {
	laddr, err := net.ResolveUDPAddr("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	server, err := net.ListenUDP("udp4", laddr)
	require.NoError(t, err)
	defer server.Close()

	host, port := splitHostPort(t, server.LocalAddr().String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 65536)
		_, raddr, err := server.ReadFromUDP(buf)
		require.NoError(t, err)
		hdr := parseUdpHeader(buf[:8])
		require.Equal(t, cmdConnect, hdr.Cmd)
		_, err = server.WriteToUDP(buildUdpFrame(cmdAckOK, 321, hdr.RID, nil), raddr)
		require.NoError(t, err)
	}()

	client := NewClient(host, port, 2*time.Second, 0)
	client.SetLogger(newNopLogger())
	err = client.CreateSocket(nil, nil)
	require.NoError(t, err)
	require.Equal(t, connUDP, client.kind)

	<-done
}

func TestSetUserValidatesFieldWidths(t *testing.T) {
	client := NewClient("127.0.0.1", 4370, time.Second, 0)
	client.SetLogger(newNopLogger())

	err := client.SetUser(0, "1", "name", "", 0, "")
	require.Error(t, err)
	require.True(t, isCode(err, ErrInvalid))

	err = client.SetUser(1, "1234567890", "name", "", 0, "")
	require.Error(t, err)
	require.True(t, isCode(err, ErrInvalid))

	err = client.SetUser(1, "1", "a really extremely long name goes here", "", 0, "")
	require.Error(t, err)
	require.True(t, isCode(err, ErrInvalid))
}

func TestGetFaceOnInvertedSense(t *testing.T) {
	// The device's FaceFunOn option uses an inverted sense: "0" means ON.
	require.True(t, faceOnFromOptionValue("0"))
	require.False(t, faceOnFromOptionValue("1"))
}
