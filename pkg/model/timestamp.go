package model

import (
	"fmt"
	"time"
)

const usecPerSec = 1_000_000

// Timestamp is a wall-clock time with microsecond resolution.
// The zero value is the Unix epoch.
type Timestamp struct {
	Sec  int64 `json:"sec"`
	Usec int64 `json:"usec"`
}

// NewTimestamp returns a normalized timestamp (0 <= Usec < 1e6).
func NewTimestamp(sec, usec int64) Timestamp {
	sec += usec / usecPerSec
	usec %= usecPerSec
	if usec < 0 {
		usec += usecPerSec
		sec--
	}
	return Timestamp{Sec: sec, Usec: usec}
}

// FromTime converts a time.Time.
func FromTime(t time.Time) Timestamp {
	return NewTimestamp(t.Unix(), int64(t.Nanosecond()/1000))
}

// Time converts back to a time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Sec, t.Usec*1000).UTC()
}

// Seconds returns the whole-second part.
func (t Timestamp) Seconds() int64 { return t.Sec }

// Microseconds returns the sub-second part.
func (t Timestamp) Microseconds() int64 { return t.Usec }

// Add returns t shifted by a whole number of seconds.
func (t Timestamp) Add(seconds int64) Timestamp {
	return Timestamp{Sec: t.Sec + seconds, Usec: t.Usec}
}

// Compare returns -1, 0 or +1.
func (t Timestamp) Compare(o Timestamp) int {
	switch {
	case t.Sec < o.Sec:
		return -1
	case t.Sec > o.Sec:
		return 1
	case t.Usec < o.Usec:
		return -1
	case t.Usec > o.Usec:
		return 1
	}
	return 0
}

// Before reports t < o.
func (t Timestamp) Before(o Timestamp) bool { return t.Compare(o) < 0 }

// BeforeOrEqual reports t <= o.
func (t Timestamp) BeforeOrEqual(o Timestamp) bool { return t.Compare(o) <= 0 }

// Equal reports t == o.
func (t Timestamp) Equal(o Timestamp) bool { return t.Compare(o) == 0 }

// Round returns t rounded to the nearest whole second, together with the
// signed offset of t from that second.
func (t Timestamp) Round() (Timestamp, time.Duration) {
	rounded := Timestamp{Sec: t.Sec}
	if t.Usec >= usecPerSec/2 {
		rounded.Sec++
	}
	offset := time.Duration(t.Sec-rounded.Sec)*time.Second + time.Duration(t.Usec)*time.Microsecond
	return rounded, offset
}

// IsZero reports whether t is the zero timestamp.
func (t Timestamp) IsZero() bool { return t.Sec == 0 && t.Usec == 0 }

func (t Timestamp) String() string {
	return fmt.Sprintf("%d.%06d", t.Sec, t.Usec)
}
