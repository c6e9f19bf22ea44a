package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxline/workday/internal/events"
	"github.com/voxline/workday/internal/model"
)

func quietDayScenario() Scenario {
	return Scenario{
		Name:  "quiet_day",
		Seed:  1,
		Ticks: 4,
		Events: events.Config{
			FeatureRequestPeriodTicks: 16,
		},
		Balancing: true,
		People: []model.Person{
			{ID: "a-1", Name: "Alice", Email: "alice@example.com", Handle: "@alice", Role: "engineer", Active: true},
			{ID: "b-1", Name: "Bob", Email: "bob@example.com", Handle: "@bob", Role: "designer", Active: true},
		},
		Plans: map[string]map[int64]string{
			"a-1": {
				1: "Draft the design doc this morning.\n" +
					"Email at 10:30 to bob@example.com: Status | Day one summary\n" +
					"Chat at 11:00 to @bob: lunch?",
			},
		},
	}
}

func TestHarness_QuietDay_MatchesGolden(t *testing.T) {
	res, err := RunWithGolden(t, quietDayScenario())
	require.NoError(t, err)

	require.Len(t, res.Reports, 4)
	assert.Equal(t, 1, res.Reports[2].EmailsSent)
	assert.Equal(t, 1, res.Reports[3].ChatsSent)
}

func TestHarness_SameSeedSameTrace(t *testing.T) {
	sc := quietDayScenario()
	sc.Name = "replay"
	sc.Events.AbsenceProbability = 1.0
	sc.Seed = 42
	sc.Ticks = 20

	first, err := Run(sc)
	require.NoError(t, err)
	second, err := Run(sc)
	require.NoError(t, err)

	assert.Equal(t, first.Trace(), second.Trace())
}

func TestHarness_FallbackEveryQuietTick(t *testing.T) {
	sc := quietDayScenario()
	sc.Name = "fallback"
	sc.Plans = nil
	sc.Balancing = false // fallback decision becomes unconditional
	sc.Fallbacks = map[string]*model.ScheduledComm{
		"a-1": {
			Channel: model.ChannelChat,
			Targets: []string{"@bob"},
			Body:    "nothing blocking on my side",
		},
	}

	res, err := Run(sc)
	require.NoError(t, err)
	for _, report := range res.Reports {
		assert.Equal(t, 1, report.Fallbacks, "tick %d", report.Tick)
		assert.Equal(t, 1, report.ChatsSent, "tick %d", report.Tick)
	}
}
