package utils

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	id := GenerateID("auction")
	require.True(t, strings.HasPrefix(id, "auction_"))

	_, err := uuid.Parse(strings.TrimPrefix(id, "auction_"))
	require.NoError(t, err)

	require.NotEqual(t, id, GenerateID("auction"))

	_, err = uuid.Parse(GenerateID(""))
	require.NoError(t, err)
}
