package utils_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-console-session/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestToStringSlice(t *testing.T) {
	require.Equal(t, []string{"a", "c"}, utils.ToStringSlice([]any{"a", 1, "c", nil}))
	require.Empty(t, utils.ToStringSlice(nil))
}

func TestToString(t *testing.T) {
	require.Equal(t, "7", utils.ToString(float64(7)))
	require.Equal(t, "7.5", utils.ToString(7.5))
	require.Equal(t, "role-1", utils.ToString("role-1"))
	require.Equal(t, "12", utils.ToString(json.Number("12")))
	require.Equal(t, "", utils.ToString(true))
}

func TestValueAndPtr(t *testing.T) {
	require.Equal(t, "", utils.Value[string](nil))
	require.Equal(t, 3, utils.Value(utils.Ptr(3)))
}
