package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMinMaxInt(t *testing.T) {
	require.Equal(t, 3, Min(3, 5))
	require.Equal(t, 3, Min(5, 3))
	require.Equal(t, 5, Max(3, 5))
	require.Equal(t, 5, Max(5, 3))
}

func TestMinMaxEqual(t *testing.T) {
	require.Equal(t, 4, Min(4, 4))
	require.Equal(t, 4, Max(4, 4))
}

func TestMinMaxDuration(t *testing.T) {
	require.Equal(t, time.Millisecond, Min(time.Millisecond, 2*time.Millisecond))
}
