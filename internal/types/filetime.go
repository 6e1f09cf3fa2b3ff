package types

import "time"

// Filetime is a Windows FILETIME: the number of 100-nanosecond intervals
// since January 1, 1601 (UTC).
type Filetime uint64

// filetimeEpochOffset is the number of 100-nanosecond intervals between the
// FILETIME epoch and the Unix epoch.
const filetimeEpochOffset = 116444736000000000

// Time converts the FILETIME to a time.Time in UTC. The zero FILETIME maps
// to the zero time.Time.
func (ft Filetime) Time() time.Time {
	if ft == 0 {
		return time.Time{}
	}
	ticks := int64(ft) - filetimeEpochOffset
	return time.Unix(ticks/10000000, (ticks%10000000)*100).UTC()
}

// NewFiletime converts a time.Time to a FILETIME.
func NewFiletime(t time.Time) Filetime {
	if t.IsZero() {
		return 0
	}
	return Filetime(t.UnixNano()/100 + filetimeEpochOffset)
}
