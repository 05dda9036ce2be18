package gozk

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// connKind names which Transport is currently active.
type connKind string

const (
	connTCP connKind = "tcp"
	connUDP connKind = "udp"
)

// Client is the public façade: it owns exactly one active Transport
// (chosen at CreateSocket time, TCP preferred, UDP as fallback) and
// dispatches every operation to it, wrapping errors with IP/command
// context.
type Client struct {
	ip      string
	port    int
	inport  int
	timeout time.Duration
	log     logger

	mu        sync.Mutex
	transport Transport
	kind      connKind

	onError func(error)
	onClose func(string)
}

// NewClient builds a Client for the device at ip:port. timeout is the
// per-command timeout; inport is the local UDP port to bind if the
// transport falls back to UDP (0 lets the OS choose).
func NewClient(ip string, port int, timeout time.Duration, inport int) *Client {
	return &Client{
		ip:      ip,
		port:    port,
		inport:  inport,
		timeout: timeout,
		log:     NewLogger(LoggerConfig{Level: "info"}),
	}
}

// NewClientFromConfig builds a Client from a Config, using cfg.Logger to
// construct the default logger.
func NewClientFromConfig(ip string, cfg Config) *Client {
	c := NewClient(ip, cfg.Port, cfg.Timeout(), cfg.Inport)
	c.log = NewLogger(cfg.Logger)
	return c
}

// SetLogger overrides the client's logger (and is propagated to whichever
// transport CreateSocket constructs next).
func (c *Client) SetLogger(l logger) {
	if l == nil {
		l = newNopLogger()
	}
	c.log = l
}

// CreateSocket dials TCP first; on ECONNREFUSED it falls back to UDP,
// binding the configured local inport. A UDP EADDRINUSE is treated as a
// pragmatic success (a prior socket already occupies the port); any
// other UDP failure is a hard error.
func (c *Client) CreateSocket(onError func(error), onClose func(string)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onError = onError
	c.onClose = onClose

	tcp := NewTcpTransport(c.ip, c.port, c.timeout, c.log)
	if err := tcp.Connect(); err == nil {
		c.transport = tcp
		c.kind = connTCP
		return nil
	} else if !isCode(err, ErrConnRefused) {
		return err
	}

	udp := NewUdpTransport(c.ip, c.port, c.inport, c.timeout, c.log)
	err := udp.Connect()
	if err == nil {
		c.transport = udp
		c.kind = connUDP
		return nil
	}
	if isCode(err, ErrAddrInUse) {
		c.transport = udp
		c.kind = connUDP
		c.log.Infof("gozk: udp bind to port %d already in use, reusing prior socket", c.inport)
		return nil
	}
	return err
}

func isCode(err error, code string) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}

// ConnectionType reports which transport is active ("tcp" or "udp"), or
// "" before CreateSocket succeeds.
func (c *Client) ConnectionType() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.kind)
}

// forwardingWrapper dispatches to the active transport. udpOp == nil
// means the operation is TCP-only.
func (c *Client) forwardingWrapper(command string, tcpOp, udpOp func(Transport) ([]byte, error)) ([]byte, error) {
	c.mu.Lock()
	t := c.transport
	kind := c.kind
	c.mu.Unlock()

	if t == nil {
		return nil, wrapConnRefused(c.ip, command, nil)
	}
	if kind == connUDP && udpOp == nil {
		return nil, wrapInvalid("UDP callback not provided", c.ip, command)
	}

	op := tcpOp
	if kind == connUDP {
		op = udpOp
	}
	data, err := op(t)
	if err != nil {
		if e, ok := err.(*Error); ok && e.Command == "" {
			e.Command = command
		}
		if c.onError != nil {
			c.onError(err)
		}
	}
	return data, err
}

// ExecuteCmd is the generic escape hatch every thin operation is built
// from.
func (c *Client) ExecuteCmd(cmd int, data []byte) ([]byte, error) {
	return c.forwardingWrapper(commandName(cmd), func(t Transport) ([]byte, error) {
		return t.ExecuteCmd(cmd, data)
	}, func(t Transport) ([]byte, error) {
		return t.ExecuteCmd(cmd, data)
	})
}

// tcpOnlyWrapper dispatches tcpOp over the active transport, raising
// EINVALID when the active transport is UDP instead of silently running
// the command over it.
func (c *Client) tcpOnlyWrapper(command string, tcpOp func(Transport) ([]byte, error)) ([]byte, error) {
	return c.forwardingWrapper(command, tcpOp, nil)
}

// FreeData releases the device's send-side buffer.
func (c *Client) FreeData() error {
	_, err := c.forwardingWrapper("CMD_FREE_DATA", func(t Transport) ([]byte, error) {
		return nil, t.FreeData()
	}, func(t Transport) ([]byte, error) {
		return nil, t.FreeData()
	})
	return err
}

// GetSocketStatus reports the active transport's socket state.
func (c *Client) GetSocketStatus() string {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return "No socket instance"
	}
	return t.SocketStatus()
}

// Disconnect tears down the active transport.
func (c *Client) Disconnect() bool {
	c.mu.Lock()
	t := c.transport
	kind := c.kind
	c.mu.Unlock()
	if t == nil {
		return true
	}
	ok := t.Disconnect()
	if c.onClose != nil {
		c.onClose(string(kind))
	}
	return ok
}

func (c *Client) readWithBuffer(reqBody []byte, progress ProgressFunc) (readResult, error) {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return readResult{}, wrapConnRefused(c.ip, "", nil)
	}
	if err := t.FreeData(); err != nil {
		return readResult{}, err
	}
	res := t.ReadWithBuffer(reqBody, progress)
	_ = t.FreeData()
	return res, res.Err
}

// GetUsers retrieves every enrolled user. Record width is 72 bytes over
// TCP, 28 bytes over UDP.
func (c *Client) GetUsers() ([]User, error) {
	res, err := c.readWithBuffer(getUsersRequest(), nil)
	if err != nil && len(res.Data) == 0 {
		return nil, err
	}
	data := res.Data
	if len(data) < 4 {
		return []User{}, nil
	}
	data = data[4:]

	recSize := 28
	decode := decodeUser28
	c.mu.Lock()
	tcp := c.kind == connTCP
	c.mu.Unlock()
	if tcp {
		recSize = 72
		decode = decodeUser72
	}

	var users []User
	for len(data) >= recSize {
		users = append(users, decode(data[:recSize]))
		data = data[recSize:]
	}
	return users, nil
}

// GetAttendances retrieves every attendance-log record, annotating each
// with the device's IP.
func (c *Client) GetAttendances(progress ProgressFunc) ([]Attendance, error) {
	res, err := c.readWithBuffer(getAttendanceLogsRequest(), progress)
	if err != nil && len(res.Data) == 0 {
		return nil, err
	}
	data := res.Data
	if len(data) < 4 {
		return []Attendance{}, nil
	}
	data = data[4:]

	recSize := 16
	decode := decodeAttendance16
	c.mu.Lock()
	tcp := c.kind == connTCP
	c.mu.Unlock()
	if tcp {
		recSize = 40
		decode = decodeAttendance40
	}

	var out []Attendance
	for len(data) >= recSize {
		att := decode(data[:recSize])
		att.IP = c.ip
		out = append(out, att)
		data = data[recSize:]
	}
	return out, nil
}

// GetAttendanceSize returns how many attendance records the device
// reports, read from GetFreeSizes (logCounts).
func (c *Client) GetAttendanceSize() (int, error) {
	info, err := c.GetInfo()
	if err != nil {
		return 0, err
	}
	return info.LogCounts, nil
}

// ClearAttendanceLog wipes the device's attendance log.
func (c *Client) ClearAttendanceLog() error {
	_, err := c.ExecuteCmd(cmdClearAttLog, nil)
	return err
}

// EnableDevice re-enables the terminal after DisableDevice.
func (c *Client) EnableDevice() error {
	_, err := c.ExecuteCmd(cmdEnableDev, nil)
	return err
}

// DisableDevice takes the terminal offline for maintenance.
func (c *Client) DisableDevice() error {
	_, err := c.ExecuteCmd(cmdDisableDev, disableDeviceRequest())
	return err
}

// DeleteUser removes a single enrolled user by uid.
func (c *Client) DeleteUser(uid int) error {
	_, err := c.ExecuteCmd(cmdDeleteUser, packUint16(uid))
	return err
}

// SetUser enrolls or updates a user. Validates field widths before
// building the 72-byte USER_WRQ payload.
func (c *Client) SetUser(uid int, userID, name, password string, role int, cardno string) error {
	if uid < 1 || uid > 3000 {
		return wrapInvalid("uid must be between 1 and 3000", c.ip, "CMD_USERTEMP_WRQ")
	}
	if len(userID) > 9 {
		return wrapInvalid("userID too long", c.ip, "CMD_USERTEMP_WRQ")
	}
	if len(name) > 24 {
		return wrapInvalid("name too long", c.ip, "CMD_USERTEMP_WRQ")
	}
	if len(password) > 8 {
		return wrapInvalid("password too long", c.ip, "CMD_USERTEMP_WRQ")
	}
	if len(cardno) > 10 {
		return wrapInvalid("cardno too long", c.ip, "CMD_USERTEMP_WRQ")
	}

	payload := make([]byte, 72)
	putUint16LE(payload[0:2], uint16(uid))
	payload[2] = byte(role)
	copy(payload[3:11], password)
	copy(payload[11:35], name)
	if n, err := strconv.ParseUint(cardno, 10, 32); err == nil {
		putUint32LE(payload[35:39], uint32(n))
	}
	copy(payload[48:57], userID)

	_, err := c.ExecuteCmd(cmdUserTempWRQ, payload)
	return err
}

// DeviceInfo is the decoded reply of CMD_GET_FREE_SIZES.
type DeviceInfo struct {
	UserCounts  int
	LogCounts   int
	LogCapacity int
}

// GetInfo reads the user/log counters.
func (c *Client) GetInfo() (DeviceInfo, error) {
	payload, err := c.ExecuteCmd(cmdGetFreeSizes, nil)
	if err != nil {
		return DeviceInfo{}, err
	}
	if len(payload) < 76 {
		return DeviceInfo{}, wrapInvalid("short GET_FREE_SIZES reply", c.ip, "CMD_GET_FREE_SIZES")
	}
	return DeviceInfo{
		UserCounts:  getUint32LE(payload[24:28]),
		LogCounts:   getUint32LE(payload[40:44]),
		LogCapacity: getUint32LE(payload[72:76]),
	}, nil
}

// GetTime reads the device's clock.
func (c *Client) GetTime() (time.Time, error) {
	payload, err := c.ExecuteCmd(cmdGetTime, nil)
	if err != nil {
		return time.Time{}, err
	}
	if len(payload) < 12 {
		return time.Time{}, wrapInvalid("short GET_TIME reply", c.ip, "CMD_GET_TIME")
	}
	return decodeCompactTime(uint32(getUint32LE(payload[8:12]))), nil
}

// GetRealTimeLogs subscribes to real-time punch events and streams
// decoded events to cb until Disconnect.
func (c *Client) GetRealTimeLogs(cb RealTimeFunc) error {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return wrapConnRefused(c.ip, "CMD_REG_EVENT", nil)
	}
	return t.SubscribeRealTime(cb)
}

// getDeviceOption implements the OPTIONS_RRQ thin operation shared by
// every TCP-only metadata getter: send the keyword,
// render the reply from offset 8 as ASCII, and strip the leading
// "<keyword>=" the device echoes back.
func (c *Client) getDeviceOption(keyword string) (string, error) {
	payload, err := c.tcpOnlyWrapper(commandName(cmdOptionsRRQ), func(t Transport) ([]byte, error) {
		return t.ExecuteCmd(cmdOptionsRRQ, []byte(keyword))
	})
	if err != nil {
		return "", err
	}
	if len(payload) <= 8 {
		return "", nil
	}
	s := string(payload[8:])
	s = strings.TrimRight(s, "\x00")
	return strings.TrimPrefix(s, keyword+"="), nil
}

// SetDeviceOption writes a "<keyword>=<value>" option string.
func (c *Client) SetDeviceOption(keyword, value string) error {
	_, err := c.ExecuteCmd(cmdOptionsWRQ, []byte(fmt.Sprintf("%s=%s", keyword, value)))
	return err
}

func (c *Client) GetSerialNumber() (string, error) { return c.getDeviceOption("~SerialNumber") }
func (c *Client) GetDeviceVersion() (string, error) { return c.getDeviceOption("~ZKFPVersion") }
func (c *Client) GetDeviceName() (string, error)    { return c.getDeviceOption("~DeviceName") }
func (c *Client) GetPlatform() (string, error)      { return c.getDeviceOption("~Platform") }
func (c *Client) GetOS() (string, error)            { return c.getDeviceOption("~OS") }
func (c *Client) GetWorkCode() (string, error)      { return c.getDeviceOption("WorkCode") }
func (c *Client) GetPIN() (string, error)            { return c.getDeviceOption("~PIN2Width") }
func (c *Client) GetSSR() (string, error)            { return c.getDeviceOption("~SSR") }

// faceOnFromOptionValue implements the device's inverted sense for the
// FaceFunOn option: the value contains "0" when the feature is ON.
func faceOnFromOptionValue(v string) bool {
	return strings.Contains(v, "0")
}

// GetFaceOn reports whether face-verification is enabled. The device
// option string uses an inverted sense: it contains "0" when the feature
// is ON, preserved bit-for-bit.
func (c *Client) GetFaceOn() (string, error) {
	v, err := c.getDeviceOption("FaceFunOn")
	if err != nil {
		return "", err
	}
	if faceOnFromOptionValue(v) {
		return "Yes", nil
	}
	return "No", nil
}

// GetFirmware reads the firmware version string (opcode CMD_VERSION,
// payload rendered as ASCII from offset 8).
func (c *Client) GetFirmware() (string, error) {
	payload, err := c.tcpOnlyWrapper(commandName(cmdVersion), func(t Transport) ([]byte, error) {
		return t.ExecuteCmd(cmdVersion, nil)
	})
	if err != nil {
		return "", err
	}
	if len(payload) <= 8 {
		return "", nil
	}
	return strings.TrimRight(string(payload[8:]), "\x00"), nil
}
