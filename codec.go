package gozk

import (
	"encoding/binary"

	binarypack "github.com/canhlinh/go-binary-pack"
)

// tcpPrefixMagic is the 4-byte marker at the start of every TCP frame,
// followed by a u32LE length of the UDP-shaped frame that follows.
var tcpPrefixMagic = []byte{0x50, 0x50, 0x82, 0x7d}

func bp() *binarypack.BinaryPack { return &binarypack.BinaryPack{} }

func packByte(v int) []byte {
	b, _ := bp().Pack([]string{"B"}, []interface{}{v})
	return b
}

func packUint16(v int) []byte {
	b, _ := bp().Pack([]string{"H"}, []interface{}{v})
	return b
}

func packUint32(v int) []byte {
	b, _ := bp().Pack([]string{"I"}, []interface{}{v})
	return b
}

func putUint16LE(dst []byte, v uint16) { binary.LittleEndian.PutUint16(dst, v) }
func putUint32LE(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) }
func getUint16LE(src []byte) int       { return int(binary.LittleEndian.Uint16(src)) }
func getUint32LE(src []byte) int       { return int(binary.LittleEndian.Uint32(src)) }

// checksum computes the device's 16-bit one's-complement-style checksum
// over a UDP-shaped frame (8-byte header + payload) whose checksum field
// (bytes 2-3) is assumed to already be zero. It accumulates 16-bit
// little-endian words, adding a trailing odd byte unsigned, reducing
// modulo 65535 after every add, then returns 65535 - sum - 1.
func checksum(frame []byte) uint16 {
	sum := 0
	n := len(frame)
	for i := 0; i < n; i += 2 {
		if i == n-1 {
			sum += int(frame[i])
		} else {
			sum += int(frame[i]) | int(frame[i+1])<<8
		}
		sum %= 65535
	}
	return uint16(65535 - sum - 1)
}

// buildUdpFrame assembles an 8-byte header + payload frame. rid is the
// reply id to stamp into the outgoing frame (the caller, per §4.3,
// already decided the next value before calling — CONNECT always passes
// 0, every other command passes its freshly incremented counter).
func buildUdpFrame(cmd, sid, rid int, data []byte) []byte {
	frame := make([]byte, 8+len(data))
	putUint16LE(frame[0:2], uint16(cmd))
	putUint16LE(frame[4:6], uint16(sid))
	putUint16LE(frame[6:8], uint16(rid))
	copy(frame[8:], data)
	putUint16LE(frame[2:4], checksum(frame))
	return frame
}

// buildTcpFrame wraps buildUdpFrame's output with the 8-byte TCP prefix
// (magic + u32LE length of the inner frame).
func buildTcpFrame(cmd, sid, rid int, data []byte) []byte {
	inner := buildUdpFrame(cmd, sid, rid, data)
	out := make([]byte, 8+len(inner))
	copy(out[0:4], tcpPrefixMagic)
	putUint32LE(out[4:8], uint32(len(inner)))
	copy(out[8:], inner)
	return out
}

// stripTcpPrefix removes the 8-byte TCP prefix if present, returning the
// input unchanged if it is shorter than 8 bytes or doesn't start with the
// TCP magic.
func stripTcpPrefix(data []byte) []byte {
	if len(data) < 8 {
		return data
	}
	for i := 0; i < 4; i++ {
		if data[i] != tcpPrefixMagic[i] {
			return data
		}
	}
	return data[8:]
}

// udpHeader is the decoded 8-byte header shared by both transports once
// any TCP prefix has been stripped.
type udpHeader struct {
	Cmd      int
	Checksum int
	SID      int
	RID      int
}

func parseUdpHeader(data []byte) udpHeader {
	return udpHeader{
		Cmd:      getUint16LE(data[0:2]),
		Checksum: getUint16LE(data[2:4]),
		SID:      getUint16LE(data[4:6]),
		RID:      getUint16LE(data[6:8]),
	}
}

// tcpHeader additionally carries the payload size declared by the TCP
// prefix (offset 4, a u32LE), with the inner 8-byte header starting at
// offset 8.
type tcpHeader struct {
	PayloadSize int
	udpHeader
}

// parseTcpHeader expects at least 16 bytes: the 8-byte TCP prefix
// followed by the 8-byte inner header.
func parseTcpHeader(data []byte) tcpHeader {
	return tcpHeader{
		PayloadSize: getUint32LE(data[4:8]),
		udpHeader:   parseUdpHeader(data[8:16]),
	}
}

// isEventFrameTCP reports whether a raw (possibly TCP-prefixed) inbound
// frame is an unsolicited real-time event: commandId == CMD_REG_EVENT and
// the event-kind field at offset 4 of the inner frame equals EF_ATTLOG.
// Event frames overload the inner header's session-id slot (offset 4)
// with the event flag instead of a real session id.
func isEventFrameTCP(raw []byte) bool {
	inner := stripTcpPrefix(raw)
	if len(inner) < 6 {
		return false
	}
	cmd := getUint16LE(inner[0:2])
	if cmd != cmdRegEvent {
		return false
	}
	event := getUint16LE(inner[4:6])
	return event == efAttlog
}

// isEventFrameUDP reports whether a raw inbound UDP datagram is an
// unsolicited real-time event frame: commandId == CMD_REG_EVENT.
func isEventFrameUDP(raw []byte) bool {
	if len(raw) < 2 {
		return false
	}
	return getUint16LE(raw[0:2]) == cmdRegEvent
}
