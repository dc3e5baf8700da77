package db

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageOf(ids ...int64) []MessageWithSender {
	out := make([]MessageWithSender, len(ids))
	for i, id := range ids {
		out[i] = MessageWithSender{Message: MessageRow{ID: id}}
	}
	return out
}

func TestHistoryQueryNewestPage(t *testing.T) {
	query, args := historyQuery(7, 0, 50)

	assert.Contains(t, query, "ORDER BY m.id DESC")
	assert.NotContains(t, query, "m.id <", "no cursor predicate without a beforeID")
	assert.Equal(t, []any{int64(7), 50}, args)
}

func TestHistoryQueryBackwardPage(t *testing.T) {
	query, args := historyQuery(7, 120, 50)

	assert.Contains(t, query, "m.id < $2")
	assert.Contains(t, query, "ORDER BY m.id DESC")
	assert.Equal(t, []any{int64(7), int64(120), 50}, args)
}

func TestAscendingByIDFlipsDescendingFetch(t *testing.T) {
	// A page arrives the way the statement returns it: newest first.
	page := ascendingByID(pageOf(9, 7, 4, 2))

	ids := make([]int64, len(page))
	for i, row := range page {
		ids[i] = row.Message.ID
	}

	assert.Equal(t, []int64{2, 4, 7, 9}, ids)
	require.True(t, sort.SliceIsSorted(ids, func(i, j int) bool { return ids[i] < ids[j] }))

	// Strictly increasing: no id repeats within a page.
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}
}

func TestAscendingByIDEdgeSizes(t *testing.T) {
	assert.Empty(t, ascendingByID(nil))

	one := ascendingByID(pageOf(3))
	require.Len(t, one, 1)
	assert.Equal(t, int64(3), one[0].Message.ID)
}
