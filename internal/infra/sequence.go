package infra

import (
	"sync"
	"time"
)

// Message ids are snowflakes: 41 bits of milliseconds since the epoch,
// 10 bits of worker id, 12 bits of per-millisecond sequence. Ids from one
// allocator are strictly increasing, so they double as the sync cursor;
// client clocks never participate in ordering.
const (
	epoch          = int64(1640995200000)
	workerIDBits   = uint(10)
	sequenceBits   = uint(12)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
	sequenceMask   = int64(-1) ^ (int64(-1) << sequenceBits)
)

type SequenceAllocator struct {
	mu        sync.Mutex
	workerID  int64
	sequence  int64
	timestamp int64
}

func NewSequenceAllocator(workerID int64) *SequenceAllocator {
	return &SequenceAllocator{
		workerID: workerID & ((1 << workerIDBits) - 1),
	}
}

func (s *SequenceAllocator) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < s.timestamp {
		// Clock went backwards; hold the line at the last timestamp.
		now = s.timestamp
	}

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & sequenceMask
		if s.sequence == 0 {
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

func (s *SequenceAllocator) ExtractTimestamp(id int64) time.Time {
	timestamp := (id >> timestampShift) + epoch
	return time.UnixMilli(timestamp)
}
