package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportGroupsMessagesByCategory(t *testing.T) {
	rep := NewReport(true)
	rep.AddSuccess("read ok", CategoryResult)
	rep.AddError("bad email", CategoryUser)
	rep.AddWarning("dup row", CategoryIgnored)
	rep.AddError("another bad email", CategoryUser)
	rep.AddError("bad sheet", CategorySchema)

	msgs := rep.Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, CategorySchema, msgs[0].Category)
	assert.Equal(t, CategoryUser, msgs[1].Category)
	assert.Equal(t, "bad email", msgs[1].Text)
	assert.Equal(t, CategoryUser, msgs[2].Category)
	assert.Equal(t, "another bad email", msgs[2].Text)
	assert.Equal(t, CategoryIgnored, msgs[3].Category)
	assert.Equal(t, CategoryResult, msgs[4].Category)
}

func TestReportRaiseIfErrors(t *testing.T) {
	rep := NewReport(false)
	require.NoError(t, rep.RaiseIfErrors())

	rep.AddWarning("just a warning", CategoryGeneral)
	require.NoError(t, rep.RaiseIfErrors())
	assert.False(t, rep.HasErrors())

	rep.AddError("boom", CategoryGeneral)
	assert.ErrorIs(t, rep.RaiseIfErrors(), ErrAborted)
	assert.True(t, rep.HasErrors())
}

func TestReportWarnings(t *testing.T) {
	rep := NewReport(false)
	rep.AddError("err", CategoryGeneral)
	rep.AddWarning("w1", CategoryIgnored)
	rep.AddWarning("w2", CategoryName)
	rep.AddSuccess("ok", CategoryResult)

	assert.Equal(t, []string{"w2", "w1"}, rep.Warnings())
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "Sheet 'MA-1', row 3", Location{Sheet: "MA-1", Row: 3}.String())
	assert.Equal(t, "row 7", Location{Row: 7}.String())
}

func TestFirstLocationAndCountTracker(t *testing.T) {
	tracker := NewFirstLocationAndCountTracker()
	tracker.Add(CategoryIgnored, "a@example.com", Location{Sheet: "S", Row: 2})
	tracker.Add(CategoryIgnored, "a@example.com", Location{Sheet: "S", Row: 5})
	tracker.Add(CategoryIgnored, "a@example.com", Location{Sheet: "T", Row: 1})
	tracker.Add(CategoryIgnored, "b@example.com", Location{Sheet: "S", Row: 9})

	assert.Equal(t, "Sheet 'S', row 2 and 2 other places", tracker.AggregatedLocation(CategoryIgnored, "a@example.com"))
	assert.Equal(t, "Sheet 'S', row 9", tracker.AggregatedLocation(CategoryIgnored, "b@example.com"))
	assert.Equal(t, 3, tracker.Count(CategoryIgnored, "a@example.com"))
	assert.Equal(t, 0, tracker.Count(CategoryUser, "a@example.com"))

	var keys []string
	tracker.Each(func(_ Category, key string, _ string) {
		keys = append(keys, key)
	})
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, keys)
}
