package scraper

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (r *recordingIngester) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func TestScheduler_AcquisitionJob(t *testing.T) {
	hs := newHarness(t, "id", results(4))

	s := NewScheduler()
	// yearly, so only the manual trigger below runs it
	require.NoError(t, s.ScheduleAcquisition("0 3 1 1 *", hs.h, map[string]int{"Divorcio": 2}))
	s.Start()
	defer s.Stop()

	require.NoError(t, s.scheduler.RunByTag(acquisitionTag))
	assert.Eventually(t, func() bool { return hs.ingester.count() == 2 }, 5*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		names, err := listFiles(filepath.Join(hs.dir, "divorcio"), ".pdf")
		return err == nil && len(names) == 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestScheduler_RejectsBadCron(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	assert.Error(t, s.ScheduleAcquisition("every day", &Harvester{}, nil))
}
