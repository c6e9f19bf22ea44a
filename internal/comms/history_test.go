package comms

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxline/workday/internal/model"
)

func TestHistoryRing_EvictsOldestAtCapacity(t *testing.T) {
	var ring historyRing
	for i := 1; i <= historyCap+3; i++ {
		ring.add(model.EmailRecord{EmailID: fmt.Sprintf("email-%d", i)})
	}

	all := ring.all()
	require.Len(t, all, historyCap)
	assert.Equal(t, "email-4", all[0].EmailID)
	assert.Equal(t, fmt.Sprintf("email-%d", historyCap+3), all[len(all)-1].EmailID)

	_, ok := ring.find("email-1")
	assert.False(t, ok, "evicted records are no longer resolvable")
	_, ok = ring.find("email-4")
	assert.True(t, ok)
}

func TestHistoryRing_FindReturnsMatch(t *testing.T) {
	var ring historyRing
	ring.add(model.EmailRecord{EmailID: "email-1", ThreadID: "t-1", From: "alice@example.com"})
	ring.add(model.EmailRecord{EmailID: "email-2", ThreadID: "t-2", From: "bob@example.com"})

	rec, ok := ring.find("email-1")
	require.True(t, ok)
	assert.Equal(t, "t-1", rec.ThreadID)
	assert.Equal(t, "alice@example.com", rec.From)

	_, ok = ring.find("email-9")
	assert.False(t, ok)
}
