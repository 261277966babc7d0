package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSpan_Intersects(t *testing.T) {
	tests := []struct {
		name string
		a, b HourRange
		want bool
	}{
		{"overlap", HourRange{From: 8, To: 10}, HourRange{From: 9, To: 11}, true},
		{"touching", HourRange{From: 8, To: 10}, HourRange{From: 10, To: 12}, false},
		{"disjoint", HourRange{From: 6, To: 7}, HourRange{From: 9, To: 11}, false},
		{"nested", HourRange{From: 6, To: 22}, HourRange{From: 7, To: 9}, true},
		{"identical", HourRange{From: 7, To: 9}, HourRange{From: 7, To: 9}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Intersects(tt.b))
			assert.Equal(t, tt.a.Intersects(tt.b), tt.b.Intersects(tt.a), "intersects must be symmetric")
		})
	}
}

func TestSpan_ContainsIsReflexive(t *testing.T) {
	for from := 0; from < 24; from++ {
		for to := from + 1; to <= 24; to++ {
			h := HourRange{From: from, To: to}
			assert.True(t, h.Contains(h), "%v", h)
		}
	}

	assert.True(t, HourRange{From: 6, To: 22}.Contains(HourRange{From: 7, To: 9}))
	assert.False(t, HourRange{From: 6, To: 22}.Contains(HourRange{From: 21, To: 23}))
}

func TestPeriod_Intersects(t *testing.T) {
	booked := Period{From: at("2024-05-01T08:00:00Z"), To: at("2024-05-01T10:00:00Z")}

	tests := []struct {
		name string
		p    Period
		want bool
	}{
		{"overlapping tail", Period{From: at("2024-05-01T09:00:00Z"), To: at("2024-05-01T11:00:00Z")}, true},
		{"adjacent after", Period{From: at("2024-05-01T10:00:00Z"), To: at("2024-05-01T11:00:00Z")}, false},
		{"adjacent before", Period{From: at("2024-05-01T07:00:00Z"), To: at("2024-05-01T08:00:00Z")}, false},
		{"inside", Period{From: at("2024-05-01T08:30:00Z"), To: at("2024-05-01T09:00:00Z")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, booked.Intersects(tt.p))
			assert.Equal(t, tt.want, tt.p.Intersects(booked))
		})
	}

	assert.True(t, booked.Contains(booked))
}

func TestNewPeriod(t *testing.T) {
	_, err := NewPeriod(at("2024-05-01T10:00:00Z"), at("2024-05-01T10:00:00Z"))
	require.ErrorIs(t, err, ErrInvalidInterval)

	_, err = NewPeriod(at("2024-05-01T11:00:00Z"), at("2024-05-01T10:00:00Z"))
	require.ErrorIs(t, err, ErrInvalidInterval)

	p, err := NewPeriod(at("2024-05-01T09:00:00Z"), at("2024-05-01T10:30:00Z"))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, p.Duration())
}

func TestNewHourRange(t *testing.T) {
	_, err := NewHourRange(-1, 5)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = NewHourRange(22, 25)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	h, err := NewHourRange(6, 24)
	require.NoError(t, err)
	assert.Equal(t, HourRange{From: 6, To: 24}, h)
}
