package model

import (
	"sync"
	"time"
)

var (
	seoulOnce sync.Once
	seoulLoc  *time.Location
)

// Seoul returns the KST location. All timestamps in the evidence pack are
// normalized to this zone for merge-key comparability. Falls back to a
// fixed UTC+9 zone when the tzdata is unavailable.
func Seoul() *time.Location {
	seoulOnce.Do(func() {
		loc, err := time.LoadLocation("Asia/Seoul")
		if err != nil {
			loc = time.FixedZone("KST", 9*60*60)
		}
		seoulLoc = loc
	})
	return seoulLoc
}
