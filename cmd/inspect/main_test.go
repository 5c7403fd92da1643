package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/danielpatrickdp/svg-eval/internal/dataset"
)

func sampleEntries() []dataset.Entry {
	return []dataset.Entry{
		{ID: "a", Dir: "/data/a", Frames: []string{"0.png", "1.png"}},
		{ID: "b", Dir: "/data/b", Frames: []string{"0.png"}},
		{ID: "c", Dir: "/data/c"},
	}
}

func TestFirstKeepsLeadingEntries(t *testing.T) {
	got := first(sampleEntries(), 2)
	if assert.Len(t, got, 2) {
		assert.Equal(t, "/data/a", got[0].Dir)
		assert.Equal(t, "/data/b", got[1].Dir)
	}
	assert.Len(t, first(sampleEntries(), 0), 3)
	assert.Len(t, first(sampleEntries(), 10), 3)
}

func TestToRowsFirstAndLastFrame(t *testing.T) {
	es := sampleEntries()
	es[0].CreatedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := toRows(es)
	assert.Equal(t, "0.png", rows[0].First)
	assert.Equal(t, "1.png", rows[0].Last)
	assert.Equal(t, 2, rows[0].Frames)
	assert.Equal(t, "2024-03-01T12:00:00Z", rows[0].CreatedAt)
	assert.Empty(t, rows[2].First)
}
