package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveReferenceTime_Default(t *testing.T) {
	ts, err := resolveReferenceTime("")
	require.NoError(t, err)
	assert.Equal(t, 0, ts.Hour())
	assert.Equal(t, 0, ts.Minute())
	assert.Equal(t, time.UTC, ts.Location())
}

func TestResolveReferenceTime_Date(t *testing.T) {
	ts, err := resolveReferenceTime("2025-06-01")
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestResolveReferenceTime_RFC3339(t *testing.T) {
	ts, err := resolveReferenceTime("2025-06-01T12:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 12, ts.Hour())
}

func TestResolveReferenceTime_Invalid(t *testing.T) {
	_, err := resolveReferenceTime("June 1st")
	require.Error(t, err)
}
