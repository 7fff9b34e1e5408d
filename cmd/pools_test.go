package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/review"
	"github.com/theirongolddev/costfall/internal/source"
)

func TestSuggestionRecordsSkipsExistingPools(t *testing.T) {
	sc := suggestionRecords([]review.PoolSuggestion{
		{Pool: model.CostPool{ID: "P1", Name: "Ops - UK", ServiceID: "S1", SourceLE: "UK"}, Existing: true, Units: []string{"U1"}},
		{Pool: model.CostPool{ID: "P2", Name: "Ops - US", ServiceID: "S1", SourceLE: "US"}, Units: []string{"U2", "U3"}},
	})

	require.Len(t, sc.Pools, 1)
	assert.Equal(t, "P2", sc.Pools[0].ID)
	require.Len(t, sc.Assignments, 3)
	for _, a := range sc.Assignments {
		assert.Equal(t, "pool", a.Stage)
	}
	assert.Equal(t, "P1", sc.Assignments[0].Group)

	var buf bytes.Buffer
	require.NoError(t, source.Encode(&buf, sc))
	assert.Contains(t, buf.String(), "[[pool]]")
	assert.Contains(t, buf.String(), "[[assignment]]")
	assert.NotContains(t, buf.String(), "[[unit]]")
}
