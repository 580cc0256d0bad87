package common

const (
	PacketSize = 188
	PtsWrap    = 1 << 33
	// TimeScale is the 90 kHz clock of MPEG-TS timestamps.
	TimeScale = 90000
	// FLVTimeScale is the millisecond clock of RTMP and FLV timestamps.
	FLVTimeScale = 1000
)

// SignedPTSDiff returns p2-p1 taking a single 33-bit wrap into account.
func SignedPTSDiff(p2, p1 int64) int64 {
	return (p2-p1+3*PtsWrap/2)%PtsWrap - PtsWrap/2
}
