package common

// ElementaryStreamInfo describes one elementary stream of a PMT.
type ElementaryStreamInfo struct {
	PID   uint16 `json:"pid"`
	Codec string `json:"codec"`
	Type  string `json:"type"`
}

// IsAVC reports an H.264 video stream.
func (e ElementaryStreamInfo) IsAVC() bool {
	return e.Codec == "AVC"
}
