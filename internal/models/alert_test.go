package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeClassifiesLegacyPayloads(t *testing.T) {
	tests := []struct {
		name string
		in   Alert
		want AlertCategory
	}{
		{
			name: "explicit category wins",
			in:   Alert{Category: AlertCategoryPredictive, Message: EmergencyMarker + ": machine halted"},
			want: AlertCategoryPredictive,
		},
		{
			name: "emergency marker in message",
			in:   Alert{Message: EmergencyMarker + ": machine machine-002 halted manually"},
			want: AlertCategoryEmergency,
		},
		{
			name: "plain message defaults to anomaly",
			in:   Alert{Message: "temperature above threshold"},
			want: AlertCategoryAnomaly,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.Normalize()
			assert.Equal(t, tc.want, tc.in.Category)
			assert.Equal(t, AlertStatusActive, tc.in.Status)
			assert.False(t, tc.in.Timestamp.IsZero())
		})
	}
}

func TestNormalizeKeepsResolvedStatus(t *testing.T) {
	a := Alert{Status: AlertStatusResolved, Message: "done"}
	a.Normalize()
	assert.Equal(t, AlertStatusResolved, a.Status)
	assert.False(t, a.IsActive())
}

func TestSeverityForRisk(t *testing.T) {
	tests := []struct {
		risk int
		want Severity
	}{
		{risk: 0, want: SeverityInfo},
		{risk: 49, want: SeverityInfo},
		{risk: 50, want: SeverityMedium},
		{risk: 69, want: SeverityMedium},
		{risk: 70, want: SeverityHigh},
		{risk: 89, want: SeverityHigh},
		{risk: 90, want: SeverityCritical},
		{risk: 100, want: SeverityCritical},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SeverityForRisk(tc.risk), "risk %d", tc.risk)
	}
}
