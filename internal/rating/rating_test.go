package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeltaFirstRound(t *testing.T) {
	tests := []struct {
		name string
		rank int
		want int
	}{
		{"winner", 1, 40},
		{"second", 2, 30},
		{"third", 3, 20},
		{"fourth", 4, 10},
		{"fifth", 5, 0},
		{"sixth", 6, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Delta(Initial, tt.rank, 0, true))
		})
	}
}

func TestDeltaFirstRoundIgnoresBoundaries(t *testing.T) {
	// The fixed table is used as-is regardless of current rating.
	assert.Equal(t, 40, Delta(1500, 1, 0, true))
	assert.Equal(t, 40, Delta(500, 1, 0, true))
}

func TestDeltaUnknownPreviousRank(t *testing.T) {
	// A player whose previous rank is unknown is treated like a first-round
	// player even when the cohort is past round one.
	assert.Equal(t, 30, Delta(Initial, 2, 0, false))
}

func TestDeltaSubsequentRounds(t *testing.T) {
	tests := []struct {
		name     string
		rating   int
		rank     int
		prevRank int
		want     int
	}{
		{"improved two places", 1000, 1, 3, 160},
		{"improved one place", 1000, 2, 3, 80},
		{"dropped two places", 1000, 3, 1, -160},
		{"held rank", 1000, 2, 2, 100},
		{"high rating dampens gain", 1300, 1, 3, 128},
		{"low rating boosts gain", 700, 1, 3, 192},
		{"high rating does not soften loss", 1300, 3, 1, -160},
		{"low rating does not amplify loss", 700, 3, 1, -160},
		{"held rank at high rating", 1400, 2, 2, 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Delta(tt.rating, tt.rank, tt.prevRank, false))
		})
	}
}

func TestApply(t *testing.T) {
	assert.Equal(t, 1160, Apply(1000, 160))
	assert.Equal(t, 840, Apply(1000, -160))

	// Ratings never drop below the floor.
	assert.Equal(t, Floor, Apply(Floor+50, -200))
	assert.Equal(t, Floor, Apply(Floor, -1))
}
