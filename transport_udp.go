package gozk

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// UdpTransport is the UDP sibling of Transport. Unlike a fire-once-per-
// command UDP prototype that redials for every single command, this
// implementation keeps one long-lived connected UDP socket for the
// transport's whole life, matching the long-lived, connected-socket
// contract both transports share.
type UdpTransport struct {
	mu sync.Mutex

	ip      string
	port    int
	inport  int
	timeout time.Duration
	log     logger

	conn      *net.UDPConn
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

// NewUdpTransport builds a UdpTransport. inport is the local UDP port to
// bind (0 lets the OS choose).
func NewUdpTransport(ip string, port, inport int, timeout time.Duration, log logger) *UdpTransport {
	return &UdpTransport{
		ip:      ip,
		port:    port,
		inport:  inport,
		timeout: timeout,
		log:     log,
		replyCh: make(chan []byte, 64),
		eventCh: make(chan []byte, 32),
		closeCh: make(chan struct{}),
	}
}

func (t *UdpTransport) PeerAddr() string { return fmt.Sprintf("%s:%d", t.ip, t.port) }

func isAddrInUse(err error) bool {
	return err != nil && strings.Contains(err.Error(), "address already in use")
}

// Connect binds the local socket (if inport is set) and performs the
// CONNECT handshake.
func (t *UdpTransport) Connect() error {
	raddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", t.ip, t.port))
	if err != nil {
		return wrapConnRefused(t.ip, "CMD_CONNECT", err)
	}
	var laddr *net.UDPAddr
	if t.inport > 0 {
		laddr = &net.UDPAddr{Port: t.inport}
	}
	conn, err := net.DialUDP("udp4", laddr, raddr)
	if err != nil {
		if isAddrInUse(err) {
			return newError(ErrAddrInUse, "local UDP bind collision", t.ip, "CMD_CONNECT", err)
		}
		return wrapConnRefused(t.ip, "CMD_CONNECT", err)
	}
	t.conn = conn

	go t.readLoop()
	go t.eventDispatchLoop()

	payload, err := t.ExecuteCmd(cmdConnect, nil)
	if err != nil {
		return err
	}
	hdr := parseUdpHeader(payload[:8])
	t.sessionID = hdr.SID
	t.log.Infof("gozk: connected to %s session_id=%d (udp)", fmt.Sprintf("%s:%d", t.ip, t.port), t.sessionID)
	return nil
}

func (t *UdpTransport) readLoop() {
	buf := make([]byte, 65536)
	for {
		n, err := t.conn.Read(buf)
		if err != nil {
			t.log.Errorf("gozk: udp read failed: %v", err)
			t.shutdown()
			return
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])

		if isEventFrameUDP(frame) {
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

func (t *UdpTransport) shutdown() {
	t.once.Do(func() {
		close(t.closeCh)
	})
}

func (t *UdpTransport) eventDispatchLoop() {
	for {
		select {
		case frame, ok := <-t.eventCh:
			if !ok {
				return
			}
			t.rtMu.Lock()
			cb := t.rtCb
			t.rtMu.Unlock()
			if cb == nil || len(frame) < 18 {
				continue
			}
			cb(decodeRealTimeEvent18(frame[:18]))
		case <-t.closeCh:
			return
		}
	}
}

func (t *UdpTransport) awaitReply(timeout time.Duration) ([]byte, error) {
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
func (t *UdpTransport) ExecuteCmd(cmd int, data []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.executeCmdLocked(cmd, data)
}

func (t *UdpTransport) executeCmdLocked(cmd int, data []byte) ([]byte, error) {
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

	if t.conn == nil {
		return nil, wrapConnRefused(t.ip, commandName(cmd), nil)
	}

	frame := buildUdpFrame(cmd, t.sessionID, t.replyID, data)
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

	hdr := parseUdpHeader(reply[:8])
	t.replyID = hdr.RID
	return reply, nil
}

// ReadWithBuffer issues DATA_WRRQ and reassembles a chunked bulk transfer
// per the UDP reassembly scheme: append DATA payloads until an ACK_OK
// frame arrives while the collected length equals the total announced by
// PREPARE_DATA.
func (t *UdpTransport) ReadWithBuffer(reqBody []byte, progress ProgressFunc) readResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	reply, err := t.executeCmdLocked(cmdDataWrrq, reqBody)
	if err != nil {
		return readResult{Err: err}
	}
	hdr := parseUdpHeader(reply[:8])
	inner := reply[8:]

	switch hdr.Cmd {
	case cmdData:
		return readResult{Data: inner}
	case cmdAckOK, cmdPrepareData:
	default:
		return readResult{Err: wrapUnhandledCmd(hdr.Cmd, t.ip, "CMD_DATA_WRRQ")}
	}

	if len(inner) < 5 {
		return readResult{Err: wrapUnhandledCmd(hdr.Cmd, t.ip, "CMD_DATA_WRRQ")}
	}
	total := getUint32LE(inner[1:5])

	chunks := total / maxChunk
	remain := total % maxChunk
	start := 0
	for i := 0; i <= chunks; i++ {
		size := maxChunk
		if i == chunks {
			size = remain
		}
		t.sendChunkRequestLocked(start, size)
		start += size
	}

	assembled := make([]byte, 0, total)
	for {
		select {
		case frame, ok := <-t.replyCh:
			if !ok {
				return readResult{Data: assembled, Err: wrapSocketClosed(t.ip, "CMD_DATA")}
			}
			fhdr := parseUdpHeader(frame[:8])
			switch fhdr.Cmd {
			case cmdData:
				assembled = append(assembled, frame[8:]...)
				if progress != nil {
					progress(len(assembled), total)
				}
			case cmdAckOK:
				if len(assembled) == total {
					return readResult{Data: assembled}
				}
			}
		case <-time.After(udpChunkIdle):
			return readResult{Data: assembled, Err: wrapTimeout(MsgTimeoutWhenReceivingPacket, t.ip, "CMD_DATA")}
		case <-t.closeCh:
			return readResult{Data: assembled, Err: wrapSocketClosed(t.ip, "CMD_DATA")}
		}
	}
}

func (t *UdpTransport) sendChunkRequestLocked(start, size int) {
	t.replyID = (t.replyID + 1) % 65536
	body := make([]byte, 8)
	putUint32LE(body[0:4], uint32(start))
	putUint32LE(body[4:8], uint32(size))
	frame := buildUdpFrame(cmdDataRdy, t.sessionID, t.replyID, body)
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	if _, err := t.conn.Write(frame); err != nil {
		t.log.Errorf("gozk: DATA_RDY send failed: %v", err)
	}
}

func (t *UdpTransport) FreeData() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.executeCmdLocked(cmdFreeData, nil)
	return err
}

func (t *UdpTransport) Disconnect() bool {
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

func (t *UdpTransport) SocketStatus() string {
	if t.conn == nil {
		return "Unbound"
	}
	if laddr, ok := t.conn.LocalAddr().(*net.UDPAddr); ok {
		return fmt.Sprintf("Bound to port %d", laddr.Port)
	}
	return "Unbound"
}

func (t *UdpTransport) SubscribeRealTime(cb RealTimeFunc) error {
	t.mu.Lock()
	if t.rtRegistered {
		t.mu.Unlock()
		return wrapInvalid("already subscribed to real-time events", t.ip, "CMD_REG_EVENT")
	}
	_, err := t.executeCmdLocked(cmdRegEvent, getRealTimeEventRequest())
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
