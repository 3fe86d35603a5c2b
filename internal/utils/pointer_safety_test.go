package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	require.Equal(t, 0, utils.Value[int](nil))
	require.Equal(t, 7, utils.Value(utils.Ptr(7)))
	require.Equal(t, 600, utils.ValueOr[int](nil, 600))
	require.Equal(t, 30, utils.ValueOr(utils.Ptr(30), 600))
}

func TestShortID(t *testing.T) {
	require.Equal(t, "abc", utils.ShortID("abc"))
	require.Equal(t, "abcdefgh…", utils.ShortID("abcdefghijkl"))
}
