package workflow

import (
	"time"

	"github.com/tradeup/x-engager/internal/core/domain"
)

// ScheduleSlots computes n posting times spread over the job's posting
// window: the window is divided into n whole-minute slices and slot i
// starts at window start plus i slices. Minutes truncate, so the slices
// never overrun the window end.
func ScheduleSlots(settings domain.JobSettings, n int) ([]time.Time, error) {
	if n <= 0 {
		n = 1
	}
	start, end, err := settings.Window()
	if err != nil {
		return nil, err
	}

	date := time.Now()
	if settings.PostingDate != "" {
		if d, err := time.Parse("2006-01-02", settings.PostingDate); err == nil {
			date = d
		}
	}

	windowMinutes := int(end.Sub(start).Minutes())
	width := windowMinutes / n

	base := time.Date(date.Year(), date.Month(), date.Day(),
		start.Hour(), start.Minute(), 0, 0, time.Local)

	slots := make([]time.Time, n)
	for i := 0; i < n; i++ {
		slots[i] = base.Add(time.Duration(i*width) * time.Minute)
	}
	return slots, nil
}
