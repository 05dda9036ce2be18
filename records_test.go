package gozk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrimNUL(t *testing.T) {
	assert.Equal(t, "siwa", trimNUL([]byte("siwa\x00\x00\x00")))
	assert.Equal(t, "nonuls", trimNUL([]byte("nonuls")))
	assert.Equal(t, "", trimNUL([]byte{0, 0, 0}))
}

func TestDecodeCompactTime(t *testing.T) {
	// Worked by hand from the packed-seconds formula: 347241615 unpacks to
	// second=15, minute=0, hour=0, day=21, month(0-based)=9, year=2010.
	got := decodeCompactTime(347241615)
	want := time.Date(2010, time.October, 21, 0, 0, 15, 0, time.Local)
	assert.True(t, want.Equal(got), "got %v want %v", got, want)
}

func TestCompactTimeRoundTrip(t *testing.T) {
	original := uint32(347241615)
	got := encodeCompactTime(decodeCompactTime(original))
	assert.Equal(t, original, got)
}

func TestDecodeSextetTime(t *testing.T) {
	got := decodeSextetTime([]byte{23, 7, 14, 9, 30, 45})
	want := time.Date(2023, time.July, 14, 9, 30, 45, 0, time.Local)
	assert.True(t, want.Equal(got))
}

func TestDecodeUser72(t *testing.T) {
	rec := make([]byte, 72)
	putUint16LE(rec[0:2], 1324)
	rec[2] = 0
	copy(rec[3:11], "secret")
	copy(rec[11:35], "Siwapong")
	putUint32LE(rec[35:39], 9876543)
	copy(rec[48:57], "1324")

	u := decodeUser72(rec)
	assert.Equal(t, 1324, u.UID)
	assert.Equal(t, 0, u.Role)
	assert.Equal(t, "secret", u.Password)
	assert.Equal(t, "Siwapong", u.Name)
	assert.Equal(t, uint32(9876543), u.CardNo)
	assert.Equal(t, "1324", u.UserID)
}

func TestDecodeUser28(t *testing.T) {
	rec := make([]byte, 28)
	putUint16LE(rec[0:2], 7)
	rec[2] = 1
	copy(rec[8:16], "Bob")
	putUint32LE(rec[24:28], 7)

	u := decodeUser28(rec)
	assert.Equal(t, 7, u.UID)
	assert.Equal(t, 1, u.Role)
	assert.Equal(t, "Bob", u.Name)
	assert.Equal(t, "7", u.UserID)
}

func TestDecodeAttendance40(t *testing.T) {
	rec := make([]byte, 40)
	putUint16LE(rec[0:2], 3)
	copy(rec[2:11], "1324")
	putUint32LE(rec[27:31], 347241615)

	a := decodeAttendance40(rec)
	assert.Equal(t, 3, a.UserSN)
	assert.Equal(t, "1324", a.DeviceUserID)
	assert.Equal(t, 2010, a.RecordTime.Year())
}

func TestDecodeAttendance16(t *testing.T) {
	rec := make([]byte, 16)
	putUint16LE(rec[0:2], 3)
	putUint32LE(rec[4:8], 347241615)

	a := decodeAttendance16(rec)
	assert.Equal(t, 3, a.UserSN)
	assert.Equal(t, "3", a.DeviceUserID)
	assert.Equal(t, 2010, a.RecordTime.Year())
}

func TestDecodeRealTimeEvent52(t *testing.T) {
	rec := make([]byte, 52)
	copy(rec[0:9], "1324")
	rec[26] = 23
	rec[27] = 7
	rec[28] = 14
	rec[29] = 9
	rec[30] = 30
	rec[31] = 45

	e := decodeRealTimeEvent52(rec)
	assert.Equal(t, "1324", e.UserID)
	assert.Equal(t, 2023, e.AttendAt.Year())
}

func TestDecodeRealTimeEvent18(t *testing.T) {
	rec := make([]byte, 18)
	rec[8] = 42
	rec[12] = 23
	rec[13] = 7
	rec[14] = 14
	rec[15] = 9
	rec[16] = 30
	rec[17] = 45

	e := decodeRealTimeEvent18(rec)
	assert.Equal(t, "42", e.UserID)
	assert.Equal(t, 2023, e.AttendAt.Year())
}

func TestItoa(t *testing.T) {
	assert.Equal(t, "0", itoa(0))
	assert.Equal(t, "42", itoa(42))
	assert.Equal(t, "-7", itoa(-7))
}
