package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	d := day(s)
	return &d
}

func TestNew(t *testing.T) {
	iv, err := New(day("2024-01-01"), dayPtr("2024-03-01"))
	require.NoError(t, err)
	assert.False(t, iv.Open())

	iv, err = New(day("2024-01-01"), nil)
	require.NoError(t, err)
	assert.True(t, iv.Open())

	_, err = New(day("2024-03-01"), dayPtr("2024-01-01"))
	assert.ErrorIs(t, err, ErrInvalidRange)

	// Zero-length intervals are invalid too.
	_, err = New(day("2024-01-01"), dayPtr("2024-01-01"))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestContains(t *testing.T) {
	closed := Interval{Start: day("2024-01-01"), End: dayPtr("2024-02-01")}

	assert.True(t, closed.Contains(day("2024-01-01")), "start is inclusive")
	assert.True(t, closed.Contains(day("2024-01-15")))
	assert.False(t, closed.Contains(day("2024-02-01")), "end is exclusive")
	assert.False(t, closed.Contains(day("2023-12-31")))

	open := Interval{Start: day("2024-01-01")}
	assert.True(t, open.Contains(day("2030-06-01")))
	assert.False(t, open.Contains(day("2023-12-31")))
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Interval
		want bool
	}{
		{
			name: "disjoint",
			a:    Interval{Start: day("2024-01-01"), End: dayPtr("2024-02-01")},
			b:    Interval{Start: day("2024-03-01"), End: dayPtr("2024-04-01")},
			want: false,
		},
		{
			name: "adjacent share boundary",
			a:    Interval{Start: day("2024-01-01"), End: dayPtr("2024-02-01")},
			b:    Interval{Start: day("2024-02-01"), End: dayPtr("2024-03-01")},
			want: false,
		},
		{
			name: "partial overlap",
			a:    Interval{Start: day("2024-01-01"), End: dayPtr("2024-02-15")},
			b:    Interval{Start: day("2024-02-01"), End: dayPtr("2024-03-01")},
			want: true,
		},
		{
			name: "containment",
			a:    Interval{Start: day("2024-01-01"), End: dayPtr("2024-12-01")},
			b:    Interval{Start: day("2024-03-01"), End: dayPtr("2024-04-01")},
			want: true,
		},
		{
			name: "open end overlaps later interval",
			a:    Interval{Start: day("2024-01-01")},
			b:    Interval{Start: day("2030-01-01"), End: dayPtr("2030-02-01")},
			want: true,
		},
		{
			name: "closed interval before open start",
			a:    Interval{Start: day("2024-01-01"), End: dayPtr("2024-02-01")},
			b:    Interval{Start: day("2024-02-01")},
			want: false,
		},
		{
			name: "two open intervals",
			a:    Interval{Start: day("2024-01-01")},
			b:    Interval{Start: day("2025-01-01")},
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Overlaps(tc.b))
			assert.Equal(t, tc.want, tc.b.Overlaps(tc.a), "overlap must be symmetric")
		})
	}
}

func TestClose(t *testing.T) {
	open := Interval{Start: day("2024-01-01")}

	closed, err := open.Close(day("2024-03-01"))
	require.NoError(t, err)
	require.NotNil(t, closed.End)
	assert.Equal(t, day("2024-03-01"), *closed.End)
	assert.True(t, open.Open(), "Close must not mutate the receiver")

	_, err = open.Close(day("2024-01-01"))
	assert.ErrorIs(t, err, ErrInvalidRange, "close at start is invalid")

	_, err = open.Close(day("2023-12-01"))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestString(t *testing.T) {
	assert.Equal(t, "[2024-01-01, open)", Interval{Start: day("2024-01-01")}.String())
	assert.Equal(t, "[2024-01-01, 2024-02-01)",
		Interval{Start: day("2024-01-01"), End: dayPtr("2024-02-01")}.String())
}
