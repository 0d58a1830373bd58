package session

import "sync/atomic"

// Stats counts traffic over one session.
type Stats struct {
	framesIn     atomic.Uint64
	framesOut    atomic.Uint64
	bytesIn      atomic.Uint64
	bytesOut     atomic.Uint64
	errorReplies atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	FramesIn     uint64
	FramesOut    uint64
	BytesIn      uint64
	BytesOut     uint64
	ErrorReplies uint64
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		FramesIn:     s.framesIn.Load(),
		FramesOut:    s.framesOut.Load(),
		BytesIn:      s.bytesIn.Load(),
		BytesOut:     s.bytesOut.Load(),
		ErrorReplies: s.errorReplies.Load(),
	}
}
