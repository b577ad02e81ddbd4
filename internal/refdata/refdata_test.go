package refdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceDataConsistency(t *testing.T) {
	points, err := Points()
	require.NoError(t, err)
	require.NotEmpty(t, points)

	regions, err := Regions()
	require.NoError(t, err)
	require.NotEmpty(t, regions)

	levels, err := AlertLevels()
	require.NoError(t, err)
	require.NotEmpty(t, levels)

	// Every region member must resolve to a known point in that region.
	pointsByID := map[string]string{}
	for _, p := range points {
		assert.NotEmpty(t, p.ID)
		assert.NotEmpty(t, p.RegionKey)
		pointsByID[p.ID] = p.RegionKey
	}
	for _, r := range regions {
		require.NotEmpty(t, r.Points, "region %s has no points", r.Key)
		for _, id := range r.Points {
			regionKey, ok := pointsByID[id]
			require.True(t, ok, "region %s references unknown point %s", r.Key, id)
			assert.Equal(t, r.Key, regionKey)
		}
	}

	// Priorities must be unique and ranges well-formed in the shipped table.
	seen := map[int]string{}
	for _, l := range levels {
		assert.LessOrEqual(t, l.MinValue, l.MaxValue, "level %s", l.Key)
		prev, dup := seen[l.Priority]
		assert.False(t, dup, "levels %s and %s share priority %d", prev, l.Key, l.Priority)
		seen[l.Priority] = l.Key
	}
}
