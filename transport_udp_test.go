package gozk

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newMockUdpServer(t *testing.T) (addr string, conn *net.UDPConn, stop func()) {
	t.Helper()
	laddr, err := net.ResolveUDPAddr("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	conn, err = net.ListenUDP("udp4", laddr)
	require.NoError(t, err)
	return conn.LocalAddr().String(), conn, func() { _ = conn.Close() }
}

func TestUdpTransportConnect(t *testing.T) {
	addr, server, stop := newMockUdpServer(t)
	defer stop()
	host, port := splitHostPort(t, addr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 65536)
		n, raddr, err := server.ReadFromUDP(buf)
		require.NoError(t, err)
		hdr := parseUdpHeader(buf[:8])
		require.Equal(t, cmdConnect, hdr.Cmd)

		reply := buildUdpFrame(cmdAckOK, 777, hdr.RID, nil)
		_, err = server.WriteToUDP(reply, raddr)
		require.NoError(t, err)
		_ = n
	}()

	tr := NewUdpTransport(host, port, 0, 2*time.Second, newNopLogger())
	require.NoError(t, tr.Connect())
	require.Equal(t, 777, tr.sessionID)

	<-done
	tr.Disconnect()
}

func TestUdpTransportReadWithBufferExactMatchOnly(t *testing.T) {
	addr, server, stop := newMockUdpServer(t)
	defer stop()
	host, port := splitHostPort(t, addr)

	payload := []byte{0x01, 0x02, 0x03, 0x04}

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		buf := make([]byte, 65536)

		// CONNECT
		_, raddr, err := server.ReadFromUDP(buf)
		require.NoError(t, err)
		hdr := parseUdpHeader(buf[:8])
		_, err = server.WriteToUDP(buildUdpFrame(cmdAckOK, 1, hdr.RID, nil), raddr)
		require.NoError(t, err)

		// DATA_WRRQ -> PREPARE_DATA announcing total
		n, raddr, err := server.ReadFromUDP(buf)
		require.NoError(t, err)
		hdr = parseUdpHeader(buf[:8])
		require.Equal(t, cmdDataWrrq, hdr.Cmd)
		_ = n
		prepare := make([]byte, 5)
		putUint32LE(prepare[1:5], uint32(len(payload)))
		_, err = server.WriteToUDP(buildUdpFrame(cmdPrepareData, 1, hdr.RID, prepare), raddr)
		require.NoError(t, err)

		// DATA_RDY for the single remainder chunk
		_, raddr, err = server.ReadFromUDP(buf)
		require.NoError(t, err)
		hdr = parseUdpHeader(buf[:8])
		require.Equal(t, cmdDataRdy, hdr.Cmd)

		// Send the DATA chunk first...
		_, err = server.WriteToUDP(buildUdpFrame(cmdData, 1, hdr.RID, payload), raddr)
		require.NoError(t, err)
		// ...then the ACK_OK that must match len(assembled)==total exactly
		// before ReadWithBuffer resolves.
		_, err = server.WriteToUDP(buildUdpFrame(cmdAckOK, 1, hdr.RID, nil), raddr)
		require.NoError(t, err)
	}()

	tr := NewUdpTransport(host, port, 0, 2*time.Second, newNopLogger())
	require.NoError(t, tr.Connect())

	res := tr.ReadWithBuffer(getAttendanceLogsRequest(), nil)
	require.NoError(t, res.Err)
	require.Equal(t, payload, res.Data)

	<-serverDone
	tr.Disconnect()
}

// TestUdpTransportReadWithBufferExactMultipleOfChunk mirrors the TCP
// transport's equivalent: total is an exact multiple of maxChunk, so the
// request loop still issues a trailing zero-size DATA_RDY even though the
// transfer needs only the one full-size chunk.
func TestUdpTransportReadWithBufferExactMultipleOfChunk(t *testing.T) {
	addr, server, stop := newMockUdpServer(t)
	defer stop()
	host, port := splitHostPort(t, addr)

	total := maxChunk
	payload := make([]byte, total)
	for i := range payload {
		payload[i] = byte(i)
	}

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		buf := make([]byte, 70000)

		// CONNECT
		_, raddr, err := server.ReadFromUDP(buf)
		require.NoError(t, err)
		hdr := parseUdpHeader(buf[:8])
		_, err = server.WriteToUDP(buildUdpFrame(cmdAckOK, 1, hdr.RID, nil), raddr)
		require.NoError(t, err)

		// DATA_WRRQ -> PREPARE_DATA announcing a total of exactly maxChunk
		_, raddr, err = server.ReadFromUDP(buf)
		require.NoError(t, err)
		hdr = parseUdpHeader(buf[:8])
		require.Equal(t, cmdDataWrrq, hdr.Cmd)
		prepare := make([]byte, 5)
		putUint32LE(prepare[1:5], uint32(total))
		_, err = server.WriteToUDP(buildUdpFrame(cmdPrepareData, 1, hdr.RID, prepare), raddr)
		require.NoError(t, err)

		// First DATA_RDY: the full-size chunk.
		n, raddr, err := server.ReadFromUDP(buf)
		require.NoError(t, err)
		hdr = parseUdpHeader(buf[:8])
		require.Equal(t, cmdDataRdy, hdr.Cmd)
		start := getUint32LE(buf[8:12])
		size := getUint32LE(buf[12:16])
		require.Equal(t, 0, start)
		require.Equal(t, maxChunk, size)
		_ = n
		// A maxChunk-byte chunk plus its header does not fit in one UDP
		// datagram, so the chunk is delivered as two DATA frames.
		half := len(payload) / 2
		_, err = server.WriteToUDP(buildUdpFrame(cmdData, 1, hdr.RID, payload[:half]), raddr)
		require.NoError(t, err)
		_, err = server.WriteToUDP(buildUdpFrame(cmdData, 1, hdr.RID, payload[half:]), raddr)
		require.NoError(t, err)

		// Second DATA_RDY: the trailing zero-size request the inclusive
		// chunk loop always issues when the remainder is exactly 0.
		_, raddr, err = server.ReadFromUDP(buf)
		require.NoError(t, err)
		hdr = parseUdpHeader(buf[:8])
		require.Equal(t, cmdDataRdy, hdr.Cmd)
		start = getUint32LE(buf[8:12])
		size = getUint32LE(buf[12:16])
		require.Equal(t, maxChunk, start)
		require.Equal(t, 0, size)

		// Only now does the device announce completion; ReadWithBuffer
		// must resolve on the exact total==len(assembled) match.
		_, err = server.WriteToUDP(buildUdpFrame(cmdAckOK, 1, hdr.RID, nil), raddr)
		require.NoError(t, err)
	}()

	tr := NewUdpTransport(host, port, 0, 2*time.Second, newNopLogger())
	require.NoError(t, tr.Connect())

	res := tr.ReadWithBuffer(getAttendanceLogsRequest(), nil)
	require.NoError(t, res.Err)
	require.Equal(t, payload, res.Data)

	<-serverDone
	tr.Disconnect()
}
