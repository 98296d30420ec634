package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatusTransitions(t *testing.T) {
	allowed := map[JobStatus][]JobStatus{
		JobQueued:     {JobProcessing},
		JobFailed:     {JobProcessing},
		JobProcessing: {JobReview, JobFailed},
	}
	all := []JobStatus{JobQueued, JobProcessing, JobReview, JobFailed}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestClaimableStatuses(t *testing.T) {
	assert.ElementsMatch(t, []string{"queued", "failed"}, ClaimableStatuses())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, JobReview.Valid())
	assert.False(t, JobStatus("published").Valid())
	assert.True(t, ReviewNeedsChanges.Valid())
	assert.False(t, ReviewStatus("").Valid())
}
