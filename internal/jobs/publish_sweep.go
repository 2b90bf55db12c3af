package jobs

import (
	"context"

	"nightpress/internal/services"
)

// PublishSweep is the coarse periodic readiness check. Readiness is also
// evaluated lazily on read paths; this sweep bounds publish latency for
// records nobody is reading.
type PublishSweep struct {
	records *services.RecordService
}

// NewPublishSweep creates the sweep job.
func NewPublishSweep(records *services.RecordService) *PublishSweep {
	return &PublishSweep{records: records}
}

func (j *PublishSweep) Name() string { return "publish-sweep" }

func (j *PublishSweep) Run(ctx context.Context) error {
	return j.records.PromoteDue(ctx)
}
