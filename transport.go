package gozk

import "time"

// Timeouts fixed by the protocol, independent of any per-command
// configured timeout.
const (
	connectTimeout = 2 * time.Second
	udpChunkIdle   = 3 * time.Second
	tcpChunkIdle   = 10 * time.Second
)

// ProgressFunc reports bytes received so far against the announced total
// during a chunked bulk read.
type ProgressFunc func(received, total int)

// RealTimeFunc receives decoded real-time punch events pushed by the
// device after subscribeRealTime.
type RealTimeFunc func(event RealTimeEvent)

// readResult is what readWithBuffer returns: the assembled payload, an
// optional transport-specific mode flag (TCP sets mode=8 when the device
// answered inline with CMD_DATA instead of chunking), and any error that
// occurred partway through reassembly (the partial buffer is still
// returned so a caller can salvage a partial bulk-read on timeout).
type readResult struct {
	Data []byte
	Mode int
	Err  error
}

// Transport is the capability set both TcpTransport and UdpTransport
// implement: a single owned socket, session/reply-id bookkeeping, and the
// request/response state machine. The façade
// (Client) holds exactly one active Transport at a time.
type Transport interface {
	// Connect sends CONNECT and stores the device-assigned session id.
	Connect() error

	// ExecuteCmd sends a single command and returns its reply as the
	// 8-byte header followed by the body (TCP strips only its 8-byte
	// prefix), so callers slice the body from offset 8.
	ExecuteCmd(cmd int, data []byte) ([]byte, error)

	// ReadWithBuffer issues a DATA_WRRQ bulk-read request and reassembles
	// however many chunks the device announces.
	ReadWithBuffer(reqBody []byte, progress ProgressFunc) readResult

	// FreeData releases the device's send-side buffer; required before
	// and after every bulk read.
	FreeData() error

	// Disconnect sends EXIT best-effort and closes the socket.
	Disconnect() bool

	// SocketStatus reports a short human string describing the socket.
	SocketStatus() string

	// SubscribeRealTime registers cb to receive decoded punch events.
	SubscribeRealTime(cb RealTimeFunc) error

	// PeerAddr is the device address this transport talks to, used for
	// error context.
	PeerAddr() string
}
