package rebuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanCoversTargetRange(t *testing.T) {
	cases := []struct {
		frameCount int
		batchSize  int
	}{
		{frameCount: 2, batchSize: 500},
		{frameCount: 8, batchSize: 3},
		{frameCount: 501, batchSize: 500},
		{frameCount: 502, batchSize: 500},
		{frameCount: 1001, batchSize: 500},
		{frameCount: 1250, batchSize: 500},
		{frameCount: 100, batchSize: 1},
		{frameCount: 7, batchSize: 100},
	}
	for _, c := range cases {
		batches := Plan(c.frameCount, c.batchSize)

		targets := c.frameCount - 1
		want := (targets + c.batchSize - 1) / c.batchSize
		assert.Len(t, batches, want, "frameCount=%d batchSize=%d", c.frameCount, c.batchSize)

		next := 1
		for i, b := range batches {
			assert.Equal(t, i, b.Index)
			assert.Equal(t, next, b.Start, "batches must be contiguous")
			assert.GreaterOrEqual(t, b.End, b.Start)
			assert.LessOrEqual(t, b.Len(), c.batchSize)
			next = b.End + 1
		}
		if len(batches) > 0 {
			assert.Equal(t, c.frameCount-1, batches[len(batches)-1].End, "last batch must end at the last frame")
		}
	}
}

func TestPlanSevenTargetsBatchThree(t *testing.T) {
	// Reference frame plus seven targets, three per batch.
	batches := Plan(8, 3)
	require.Len(t, batches, 3)
	assert.Equal(t, Batch{Index: 0, Start: 1, End: 3}, batches[0])
	assert.Equal(t, Batch{Index: 1, Start: 4, End: 6}, batches[1])
	assert.Equal(t, Batch{Index: 2, Start: 7, End: 7}, batches[2])
}

func TestPlanDegenerate(t *testing.T) {
	assert.Nil(t, Plan(1, 500), "single-frame trajectory has no targets")
	assert.Nil(t, Plan(0, 500))
	assert.Nil(t, Plan(10, 0))
}
