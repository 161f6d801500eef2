package main

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
)

func TestWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 30, 0, 0, time.FixedZone("UTC+3", 3*3600))

	start, end := window(now, 1)
	assert.Equal(t, civil.Date{Year: 2025, Month: 2, Day: 27}, start, "computed in UTC")
	assert.Equal(t, start, end)

	start, end = window(now, 7)
	assert.Equal(t, civil.Date{Year: 2025, Month: 2, Day: 21}, start)
	assert.Equal(t, civil.Date{Year: 2025, Month: 2, Day: 27}, end)
}
