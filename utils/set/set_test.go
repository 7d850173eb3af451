// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package set

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	require := require.New(t)

	s := Set[string]{}
	s.Add("a")
	require.True(s.Contains("a"))

	s.Remove("a")
	require.False(s.Contains("a"))

	s.Add("a", "a", "b")
	require.Equal(2, s.Len())
	require.Equal([]string{"a", "b"}, Sorted(s))
}

func TestSetNilAdd(t *testing.T) {
	var s Set[int]
	s.Add(1)
	require.True(t, s.Contains(1))
}

func TestIsSubsetOf(t *testing.T) {
	tests := []struct {
		name     string
		sub      Set[string]
		super    Set[string]
		expected bool
	}{
		{
			name:     "empty is a subset of empty",
			sub:      Of[string](),
			super:    Of[string](),
			expected: true,
		},
		{
			name:     "empty is a subset of anything",
			sub:      Of[string](),
			super:    Of("genesis"),
			expected: true,
		},
		{
			name:     "proper subset",
			sub:      Of("a1", "b1"),
			super:    Of("genesis", "a1", "b1"),
			expected: true,
		},
		{
			name:     "missing element",
			sub:      Of("a1", "c1"),
			super:    Of("genesis", "a1", "b1"),
			expected: false,
		},
		{
			name:     "larger set",
			sub:      Of("a", "b", "c"),
			super:    Of("a", "b"),
			expected: false,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, test.sub.IsSubsetOf(test.super))
		})
	}
}

func TestDifference(t *testing.T) {
	require := require.New(t)

	diff := Of("a", "b", "c").Difference(Of("b"))
	require.True(diff.Equals(Of("a", "c")))
	require.Equal("{a, c}", diff.String())
}

func TestUnionAndOverlaps(t *testing.T) {
	require := require.New(t)

	s := Of(1, 2)
	require.False(s.Overlaps(Of(3)))

	s.Union(Of(3, 4))
	require.True(s.Overlaps(Of(3)))
	require.Equal([]int{1, 2, 3, 4}, Sorted(s))
}
