package gen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"adagency-backoffice/pkg/config"
)

func TestNewSnowflakeNode(t *testing.T) {
	node, err := NewSnowflakeNode(&config.Config{NodeID: 3})
	require.NoError(t, err)

	a, b := node.Generate(), node.Generate()
	require.NotEqual(t, a, b)
	require.EqualValues(t, 3, a.Node())

	_, err = NewSnowflakeNode(&config.Config{NodeID: 5000})
	require.Error(t, err)
}
