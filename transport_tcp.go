package gozk

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// TcpTransport is the TCP sibling of the two Transport implementations.
// It owns one net.TCPConn, the session/reply-id counters, and a
// background frame reader that demultiplexes inbound frames into a
// command-reply channel and a real-time-event channel.
type TcpTransport struct {
	mu sync.Mutex

	ip      string
	port    int
	timeout time.Duration
	log     logger

	conn      *net.TCPConn
	sessionID int
	replyID   int

	replyCh chan []byte
	eventCh chan []byte
	closeCh chan struct{}
	once    sync.Once

	rtMu         sync.Mutex
	rtCb         RealTimeFunc
	rtRegistered bool
}

// NewTcpTransport builds a TcpTransport talking to ip:port with the given
// per-command timeout. log must not be nil; use newNopLogger() for
// silence.
func NewTcpTransport(ip string, port int, timeout time.Duration, log logger) *TcpTransport {
	return &TcpTransport{
		ip:      ip,
		port:    port,
		timeout: timeout,
		log:     log,
		replyCh: make(chan []byte, 64),
		eventCh: make(chan []byte, 32),
		closeCh: make(chan struct{}),
	}
}

func (t *TcpTransport) PeerAddr() string { return fmt.Sprintf("%s:%d", t.ip, t.port) }

func (t *TcpTransport) addr() string { return fmt.Sprintf("%s:%d", t.ip, t.port) }

// Connect dials the device, starts the frame reader, and performs the
// CONNECT handshake with the fixed 2s connect-class timeout.
func (t *TcpTransport) Connect() error {
	conn, err := net.DialTimeout("tcp", t.addr(), connectTimeout)
	if err != nil {
		return wrapConnRefused(t.ip, "CMD_CONNECT", err)
	}
	tcpConn := conn.(*net.TCPConn)
	_ = tcpConn.SetKeepAlive(true)
	_ = tcpConn.SetKeepAlivePeriod(6 * time.Second)
	t.conn = tcpConn

	go t.readLoop()
	go t.eventDispatchLoop()

	payload, err := t.ExecuteCmd(cmdConnect, nil)
	if err != nil {
		return err
	}
	hdr := parseUdpHeader(payload[:8])
	t.sessionID = hdr.SID
	t.log.Infof("gozk: connected to %s session_id=%d", t.addr(), t.sessionID)
	return nil
}

// readLoop continuously reads framed TCP units and routes them: event
// frames go to eventCh, everything else (command replies and in-flight
// bulk-transfer chunks) goes to replyCh.
func (t *TcpTransport) readLoop() {
	reader := t.conn
	prefix := make([]byte, 8)
	for {
		if _, err := io.ReadFull(reader, prefix); err != nil {
			t.log.Errorf("gozk: tcp read failed: %v", err)
			t.shutdown()
			return
		}
		size := binary.LittleEndian.Uint32(prefix[4:8])
		body := make([]byte, size)
		if size > 0 {
			if _, err := io.ReadFull(reader, body); err != nil {
				t.log.Errorf("gozk: tcp read failed: %v", err)
				t.shutdown()
				return
			}
		}
		frame := make([]byte, 8+len(body))
		copy(frame, prefix)
		copy(frame[8:], body)

		if isEventFrameTCP(frame) {
			select {
			case t.eventCh <- frame:
			default:
				t.log.Error("gozk: event channel full, dropping frame")
			}
			continue
		}
		select {
		case t.replyCh <- frame:
		case <-t.closeCh:
			return
		}
	}
}

func (t *TcpTransport) shutdown() {
	t.once.Do(func() {
		close(t.closeCh)
	})
}

func (t *TcpTransport) eventDispatchLoop() {
	for {
		select {
		case frame, ok := <-t.eventCh:
			if !ok {
				return
			}
			t.rtMu.Lock()
			cb := t.rtCb
			t.rtMu.Unlock()
			if cb == nil {
				continue
			}
			body := frame[16:]
			if len(body) >= 52 {
				cb(decodeRealTimeEvent52(body[:52]))
			}
		case <-t.closeCh:
			return
		}
	}
}

func (t *TcpTransport) awaitReply(timeout time.Duration) ([]byte, error) {
	select {
	case frame, ok := <-t.replyCh:
		if !ok {
			return nil, wrapSocketClosed(t.ip, "")
		}
		return frame, nil
	case <-time.After(timeout):
		return nil, wrapTimeout(MsgTimeoutAfterRequestingData, t.ip, "")
	case <-t.closeCh:
		return nil, wrapSocketClosed(t.ip, "")
	}
}

// ExecuteCmd implements the single-reply request/response cycle.
func (t *TcpTransport) ExecuteCmd(cmd int, data []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.executeCmdLocked(cmd, data)
}

func (t *TcpTransport) executeCmdLocked(cmd int, data []byte) ([]byte, error) {
	if cmd == cmdConnect {
		t.sessionID = 0
		t.replyID = 0
	} else {
		t.replyID = (t.replyID + 1) % 65536
	}

	timeout := t.timeout
	if cmd == cmdConnect || cmd == cmdExit {
		timeout = connectTimeout
	}

	frame := buildTcpFrame(cmd, t.sessionID, t.replyID, data)
	if t.conn == nil {
		return nil, wrapConnRefused(t.ip, commandName(cmd), nil)
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(timeout))
	if _, err := t.conn.Write(frame); err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return nil, wrapTimeout(MsgTimeoutOnWriting, t.ip, commandName(cmd))
		}
		return nil, newError(ErrConnReset, "write failed", t.ip, commandName(cmd), err)
	}

	reply, err := t.awaitReply(timeout)
	if err != nil {
		if e, ok := err.(*Error); ok {
			e.Command = commandName(cmd)
		}
		return nil, err
	}

	hdr := parseTcpHeader(reply)
	t.replyID = hdr.RID
	return reply[8:], nil
}

// ReadWithBuffer issues DATA_WRRQ and, if the device announces a bulk
// transfer, reassembles every chunk.
func (t *TcpTransport) ReadWithBuffer(reqBody []byte, progress ProgressFunc) readResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	payload, err := t.executeCmdLocked(cmdDataWrrq, reqBody)
	if err != nil {
		return readResult{Err: err}
	}
	inner := payload[8:]
	hdr := parseUdpHeader(payload[:8])

	switch hdr.Cmd {
	case cmdData:
		return readResult{Data: inner, Mode: 8}
	case cmdAckOK, cmdPrepareData:
		// fallthrough to chunked reassembly below
	default:
		return readResult{Err: wrapUnhandledCmd(hdr.Cmd, t.ip, "CMD_DATA_WRRQ")}
	}

	if len(inner) < 5 {
		return readResult{Err: wrapUnhandledCmd(hdr.Cmd, t.ip, "CMD_DATA_WRRQ")}
	}
	total := getUint32LE(inner[1:5])

	chunks := total / maxChunk
	remain := total % maxChunk
	totalPackets := chunks
	if remain > 0 {
		totalPackets++
	}

	start := 0
	for i := 0; i <= chunks; i++ {
		size := maxChunk
		if i == chunks {
			size = remain
		}
		t.sendChunkRequestLocked(start, size)
		start += size
	}

	reply := make([]byte, 0, total)
	remaining := totalPackets
	for remaining > 0 {
		select {
		case frame, ok := <-t.replyCh:
			if !ok {
				return readResult{Data: reply, Err: wrapSocketClosed(t.ip, "CMD_DATA")}
			}
			fhdr := parseTcpHeader(frame)
			if fhdr.Cmd == cmdData {
				reply = append(reply, frame[16:]...)
				remaining--
				if progress != nil {
					progress(len(reply), total)
				}
			}
		case <-time.After(tcpChunkIdle):
			return readResult{Data: reply, Err: wrapTimeout(MsgTimeoutWhenReceivingPacket, t.ip, "CMD_DATA")}
		case <-t.closeCh:
			return readResult{Data: reply, Err: wrapSocketClosed(t.ip, "CMD_DATA")}
		}
	}
	return readResult{Data: reply}
}

func (t *TcpTransport) sendChunkRequestLocked(start, size int) {
	t.replyID = (t.replyID + 1) % 65536
	body := make([]byte, 8)
	putUint32LE(body[0:4], uint32(start))
	putUint32LE(body[4:8], uint32(size))
	frame := buildTcpFrame(cmdDataRdy, t.sessionID, t.replyID, body)
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	if _, err := t.conn.Write(frame); err != nil {
		t.log.Errorf("gozk: DATA_RDY send failed: %v", err)
	}
}

// FreeData releases the device's send-side buffer.
func (t *TcpTransport) FreeData() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.executeCmdLocked(cmdFreeData, nil)
	return err
}

// Disconnect sends EXIT best-effort, then closes the socket.
func (t *TcpTransport) Disconnect() bool {
	t.mu.Lock()
	if t.conn != nil {
		_, _ = t.executeCmdLocked(cmdExit, nil)
	}
	t.mu.Unlock()

	t.shutdown()
	if t.conn != nil {
		_ = t.conn.Close()
	}
	return true
}

func (t *TcpTransport) SocketStatus() string {
	if t.conn == nil {
		return "No socket instance"
	}
	select {
	case <-t.closeCh:
		return "Closed"
	default:
		return "Open"
	}
}

// SubscribeRealTime sends REG_EVENT and installs cb as the real-time
// event sink. Guards against double registration and resets replyID when
// it grows past 100.
func (t *TcpTransport) SubscribeRealTime(cb RealTimeFunc) error {
	t.mu.Lock()
	if t.rtRegistered {
		t.mu.Unlock()
		return wrapInvalid("already subscribed to real-time events", t.ip, "CMD_REG_EVENT")
	}
	if t.replyID > 100 {
		t.replyID = 0
	}
	_, err := t.executeCmdLocked(cmdRegEvent, []byte{0x01, 0x00, 0x00, 0x00})
	t.mu.Unlock()
	if err != nil {
		return err
	}

	t.rtMu.Lock()
	t.rtCb = cb
	t.rtMu.Unlock()

	t.mu.Lock()
	t.rtRegistered = true
	t.mu.Unlock()
	return nil
}
