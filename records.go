package gozk

import (
	"bytes"
	"time"
)

// User is a decoded user/enrollment record. Card and UserID widths differ
// between the 28-byte (UDP) and 72-byte (TCP) device record layouts; both
// decode into this one shape.
type User struct {
	UID      int
	Role     int
	Password string
	Name     string
	CardNo   uint32
	UserID   string
}

// Attendance is a decoded attendance-log record, from either the 16-byte
// (UDP) or 40-byte (TCP) device record layout.
type Attendance struct {
	UserSN       int
	DeviceUserID string
	RecordTime   time.Time
	IP           string
}

// RealTimeEvent is a decoded unsolicited real-time punch notification,
// from either the 18-byte (UDP) or 52-byte (TCP) event record layout.
type RealTimeEvent struct {
	UserID   string
	AttendAt time.Time
}

func trimNUL(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// decodeUser72 decodes the 72-byte TCP user record.
func decodeUser72(rec []byte) User {
	return User{
		UID:      getUint16LE(rec[0:2]),
		Role:     int(rec[2]),
		Password: trimNUL(rec[3:11]),
		Name:     trimNUL(rec[11:35]),
		CardNo:   uint32(getUint32LE(rec[35:39])),
		UserID:   trimNUL(rec[48:57]),
	}
}

// decodeUser28 decodes the 28-byte UDP user record.
func decodeUser28(rec []byte) User {
	return User{
		UID:    getUint16LE(rec[0:2]),
		Role:   int(rec[2]),
		Name:   trimNUL(rec[8:16]),
		UserID: itoa(getUint32LE(rec[24:28])),
	}
}

// decodeAttendance40 decodes the 40-byte TCP attendance record.
func decodeAttendance40(rec []byte) Attendance {
	return Attendance{
		UserSN:       getUint16LE(rec[0:2]),
		DeviceUserID: trimNUL(rec[2:11]),
		RecordTime:   decodeCompactTime(uint32(getUint32LE(rec[27:31]))),
	}
}

// decodeAttendance16 decodes the 16-byte UDP attendance record.
func decodeAttendance16(rec []byte) Attendance {
	return Attendance{
		UserSN:       getUint16LE(rec[0:2]),
		DeviceUserID: itoa(getUint16LE(rec[0:2])),
		RecordTime:   decodeCompactTime(uint32(getUint32LE(rec[4:8]))),
	}
}

// decodeRealTimeEvent52 decodes the 52-byte TCP real-time event payload
// (already stripped of TCP prefix + 8-byte header).
func decodeRealTimeEvent52(rec []byte) RealTimeEvent {
	return RealTimeEvent{
		UserID:   trimNUL(rec[0:9]),
		AttendAt: decodeSextetTime(rec[26:32]),
	}
}

// decodeRealTimeEvent18 decodes the 18-byte UDP real-time event frame
// (header + payload together).
func decodeRealTimeEvent18(rec []byte) RealTimeEvent {
	return RealTimeEvent{
		UserID:   itoa(int(rec[8])),
		AttendAt: decodeSextetTime(rec[12:18]),
	}
}

// decodeCompactTime decodes the device's packed-seconds timestamp format.
// The day arithmetic (v%31)+1 is the device's published scheme and is
// wrong for months with fewer than 31 days; this is intentional and must
// not be "corrected".
func decodeCompactTime(v uint32) time.Time {
	t := int(v)
	second := t % 60
	t /= 60
	minute := t % 60
	t /= 60
	hour := t % 24
	t /= 24
	day := t%31 + 1
	t /= 31
	month := t % 12
	t /= 12
	year := t + 2000
	return time.Date(year, time.Month(month+1), day, hour, minute, second, 0, time.Local)
}

// encodeCompactTime is the inverse packing used when the client needs to
// send a timestamp to the device (e.g. CMD_SET_TIME).
func encodeCompactTime(t time.Time) uint32 {
	d := (t.Year()-2000)*12*31 + int(t.Month()-1)*31 + (t.Day() - 1)
	d = d*24*60*60 + t.Hour()*60*60 + t.Minute()*60 + t.Second()
	return uint32(d)
}

// decodeSextetTime decodes the 6-byte packed timestamp used by real-time
// event records.
func decodeSextetTime(b []byte) time.Time {
	year := 2000 + int(b[0])
	month := int(b[1])
	day := int(b[2])
	hour := int(b[3])
	minute := int(b[4])
	second := int(b[5])
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
