package diario

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRangeRejectsInvertedBounds(t *testing.T) {
	t.Parallel()

	_, err := NewRange(
		time.Date(2024, time.February, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
	)
	require.Error(t, err)
}

func TestRangeDays(t *testing.T) {
	t.Parallel()

	r, err := NewRange(
		time.Date(2024, time.February, 27, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	require.Equal(t, 4, r.Days(), "leap day must be counted")
}

func TestYearsBackStartsJanuaryFirst(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 23, 15, 4, 5, 0, time.UTC)
	r := YearsBack(2, now)
	require.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), r.Start)
	require.Equal(t, time.Date(2026, time.August, 23, 0, 0, 0, 0, time.UTC), r.End)
}

func TestEnumeratorYieldsAscendingInclusive(t *testing.T) {
	t.Parallel()

	r, err := NewRange(
		time.Date(1999, time.December, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2000, time.January, 2, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	var keys []string
	it := r.Editions()
	for {
		ed, ok := it.Next()
		if !ok {
			break
		}
		keys = append(keys, ed.Key())
	}
	require.Equal(t, []string{
		"1999_30/12/1999",
		"1999_31/12/1999",
		"2000_01/01/2000",
		"2000_02/01/2000",
	}, keys)

	_, ok := it.Next()
	require.False(t, ok, "exhausted enumerator must stay exhausted")
}

func TestRangeContains(t *testing.T) {
	t.Parallel()

	r, err := NewRange(
		time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	require.True(t, r.Contains(time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)))
	require.True(t, r.Contains(time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC)))
	require.False(t, r.Contains(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)))
}
