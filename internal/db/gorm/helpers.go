package gorm

import "time"

func epochToTime(epochMs int64) time.Time {
	if epochMs == 0 {
		return time.Time{}
	}
	return time.UnixMilli(epochMs).UTC()
}
