package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncidentStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusReported.IsTerminal())
	assert.True(t, StatusVerified.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.False(t, IncidentStatus("archived").IsTransitionTarget())
}

func TestDispatchReport_Count(t *testing.T) {
	report := DispatchReport{
		Attempts: []DispatchAttempt{
			{Category: CategoryAmbulance, Outcome: OutcomeFailed},
			{Category: CategoryHospital, Outcome: OutcomeDelivered},
			{Category: CategoryHospital, Outcome: OutcomeSkipped},
			{Channel: ChannelRealtime, Outcome: OutcomeDelivered},
		},
	}

	assert.Equal(t, 2, report.Count(OutcomeDelivered))
	assert.Equal(t, 1, report.Count(OutcomeFailed))
	assert.Len(t, report.AttemptsFor(CategoryHospital), 2)
	assert.Empty(t, report.AttemptsFor(CategoryPoliceStation))
}

func TestNearbyResponders_ByCategory(t *testing.T) {
	nearby := NearbyResponders{
		Ambulances: []Responder{{ID: "a1"}},
		Hospitals:  []Responder{{ID: "h1"}, {ID: "h2"}},
	}

	assert.Len(t, nearby.ByCategory(CategoryAmbulance), 1)
	assert.Empty(t, nearby.ByCategory(CategoryPoliceStation))
	assert.Len(t, nearby.ByCategory(CategoryHospital), 2)
	assert.Nil(t, nearby.ByCategory(Category("fire")))
}
