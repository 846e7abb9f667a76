package cache

import "fmt"

// Redis key layout. Session keys carry independent TTLs; the liveness
// ZSET is trimmed explicitly, never by TTL.
//
//	booking:session:{sessionId}            -> scheduleId
//	booking:session:device:{sessionId}     -> deviceId
//	booking:session:user:{sessionId}       -> userId
//	booking:session:{userId}:{scheduleId}  -> sessionId
//	active:{scheduleId}                    ZSET sessionId -> heartbeat millis
//	waiting:{token}                        -> "qsid:scheduleId" (queue service)
//	qsid:{qsid}                            -> "deviceId:scheduleId" (queue service)
//	seat:hold:owner:{scheduleId}:{seatId}  -> userId (hold TTL)
//	seat:sold:{scheduleId}                 SET of seatIds
//	seat:version:{scheduleId}              INCR change-feed version
//	seat:changes:{scheduleId}:{version}    -> event JSON (short TTL)

func SessionKey(sessionID string) string { return "booking:session:" + sessionID }

func SessionDeviceKey(sessionID string) string { return "booking:session:device:" + sessionID }

func SessionUserKey(sessionID string) string { return "booking:session:user:" + sessionID }

func UserSessionKey(userID, scheduleID uint64) string {
	return fmt.Sprintf("booking:session:%d:%d", userID, scheduleID)
}

func ActiveKey(scheduleID uint64) string { return fmt.Sprintf("active:%d", scheduleID) }

func WaitingKey(token string) string { return "waiting:" + token }

func WaitingLockKey(token string) string { return "waiting:lock:" + token }

func QueueSlotKey(qsid string) string { return "qsid:" + qsid }

func AdmittedKey(scheduleID uint64) string { return fmt.Sprintf("admitted:%d", scheduleID) }

func DeviceKey(scheduleID uint64, deviceID string) string {
	return fmt.Sprintf("device:%d:%s", scheduleID, deviceID)
}

func HoldOwnerKey(scheduleID, seatID uint64) string {
	return fmt.Sprintf("seat:hold:owner:%d:%d", scheduleID, seatID)
}

func SoldSetKey(scheduleID uint64) string { return fmt.Sprintf("seat:sold:%d", scheduleID) }

func VersionKey(scheduleID uint64) string { return fmt.Sprintf("seat:version:%d", scheduleID) }

func ChangesKey(scheduleID, version uint64) string {
	return fmt.Sprintf("seat:changes:%d:%d", scheduleID, version)
}
