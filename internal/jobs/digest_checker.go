package jobs

import (
	"context"
	"log"

	"nightpress/internal/services"
)

// DigestChecker fires at the configured UTC hour: it runs the day-recap
// check (in case no publish event triggered it today) and prepares the
// daily digest.
type DigestChecker struct {
	days    *services.DayRecapService
	digests *services.DigestService
}

// NewDigestChecker creates the daily digest job.
func NewDigestChecker(days *services.DayRecapService, digests *services.DigestService) *DigestChecker {
	return &DigestChecker{days: days, digests: digests}
}

func (j *DigestChecker) Name() string { return "digest-checker" }

func (j *DigestChecker) Run(ctx context.Context) error {
	if err := j.days.CheckYesterday(ctx); err != nil {
		log.Printf("⚠️ [DIGEST] Day recap check failed: %v", err)
	}
	return j.digests.RunDaily(ctx)
}
