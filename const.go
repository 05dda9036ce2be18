package gozk

// Command opcodes. Values are the ZK protocol's own numbering and must not
// be renumbered — copied from the published opcode table.
const (
	cmdConnect    = 1000
	cmdExit       = 1001
	cmdEnableDev  = 1002
	cmdDisableDev = 1003
	cmdRestart    = 1004
	cmdPoweroff   = 1005

	cmdAckOK     = 2000
	cmdAckError  = 2001
	cmdAckData   = 2002
	cmdAckUnauth = 2005

	cmdPrepareData = 1500
	cmdData        = 1501
	cmdFreeData    = 1502
	cmdDataWrrq    = 1503
	cmdDataRdy     = 1504

	cmdUserTempRRQ   = 9
	cmdUserTempWRQ   = 8
	cmdOptionsRRQ    = 11
	cmdOptionsWRQ    = 12
	cmdAttLogRRQ     = 13
	cmdClearData     = 14
	cmdClearAttLog   = 15
	cmdDeleteUser    = 18
	cmdDeleteUserTmp = 19
	cmdClearAdmin    = 20
	cmdGetFreeSizes  = 50

	cmdGetTime = 201
	cmdSetTime = 202

	cmdRegEvent = 500
	cmdVersion  = 1100
)

// Function types, sent as the DATA_WRRQ request body of the bulk reads
// (see getUsersRequest and getAttendanceLogsRequest).
const (
	fctAttlog    = 1
	fctFingerTmp = 2
	fctOplog     = 4
	fctUser      = 5
	fctSMS       = 6
	fctUData     = 7
	fctWorkcode  = 8
)

// Event flags for cmdRegEvent / real-time subscription.
const (
	efAttlog       = 1
	efFinger       = 2
	efEnrollUser   = 4
	efEnrollFinger = 8
	efButton       = 16
	efUnlock       = 32
	efVerify       = 128
	efFPFTR        = 256
	efAlarm        = 512
)

// commandName renders an opcode for error messages and UNHANDLED_CMD
// reporting.
func commandName(cmd int) string {
	switch cmd {
	case cmdConnect:
		return "CMD_CONNECT"
	case cmdExit:
		return "CMD_EXIT"
	case cmdEnableDev:
		return "CMD_ENABLEDEVICE"
	case cmdDisableDev:
		return "CMD_DISABLEDEVICE"
	case cmdAckOK:
		return "CMD_ACK_OK"
	case cmdAckError:
		return "CMD_ACK_ERROR"
	case cmdAckData:
		return "CMD_ACK_DATA"
	case cmdAckUnauth:
		return "CMD_ACK_UNAUTH"
	case cmdPrepareData:
		return "CMD_PREPARE_DATA"
	case cmdData:
		return "CMD_DATA"
	case cmdFreeData:
		return "CMD_FREE_DATA"
	case cmdDataWrrq:
		return "CMD_DATA_WRRQ"
	case cmdDataRdy:
		return "CMD_DATA_RDY"
	case cmdUserTempRRQ:
		return "CMD_USERTEMP_RRQ"
	case cmdUserTempWRQ:
		return "CMD_USERTEMP_WRQ"
	case cmdOptionsRRQ:
		return "CMD_OPTIONS_RRQ"
	case cmdOptionsWRQ:
		return "CMD_OPTIONS_WRQ"
	case cmdAttLogRRQ:
		return "CMD_ATTLOG_RRQ"
	case cmdClearData:
		return "CMD_CLEAR_DATA"
	case cmdClearAttLog:
		return "CMD_CLEAR_ATTLOG"
	case cmdDeleteUser:
		return "CMD_DELETE_USER"
	case cmdDeleteUserTmp:
		return "CMD_DELETE_USER_TEMP"
	case cmdClearAdmin:
		return "CMD_CLEAR_ADMIN"
	case cmdGetFreeSizes:
		return "CMD_GET_FREE_SIZES"
	case cmdGetTime:
		return "CMD_GET_TIME"
	case cmdSetTime:
		return "CMD_SET_TIME"
	case cmdRegEvent:
		return "CMD_REG_EVENT"
	case cmdVersion:
		return "CMD_VERSION"
	default:
		return "CMD_UNKNOWN"
	}
}

// maxChunk is the largest byte count requested per DATA_RDY during chunked
// bulk reassembly.
const maxChunk = 65535

// Canonical request bodies used by the thin operations in client.go.
func getUsersRequest() []byte           { return packByte(fctUser) }
func getAttendanceLogsRequest() []byte  { return packByte(fctAttlog) }
func getRealTimeEventRequest() []byte   { return packUint32(efAttlog) }
func disableDeviceRequest() []byte      { return []byte{} }
