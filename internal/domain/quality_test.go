package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGradeQuality(t *testing.T) {
	tests := []struct {
		name string
		rtt  time.Duration
		loss float64
		want Quality
	}{
		{"clean link", 40 * time.Millisecond, 0, QualityExcellent},
		{"slight loss", 40 * time.Millisecond, 0.03, QualityGood},
		{"slow rtt", 320 * time.Millisecond, 0, QualityFair},
		{"heavy loss wins over fast rtt", 10 * time.Millisecond, 0.2, QualityPoor},
		{"very slow rtt", 600 * time.Millisecond, 0.01, QualityPoor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GradeQuality(tt.rtt, tt.loss))
		})
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("patient")
	assert.NoError(t, err)
	assert.Equal(t, RolePatient, r)

	_, err = ParseRole("nurse")
	assert.Error(t, err)
}

func TestFacingOpposite(t *testing.T) {
	assert.Equal(t, FacingEnvironment, FacingUser.Opposite())
	assert.Equal(t, FacingUser, FacingEnvironment.Opposite())
}
