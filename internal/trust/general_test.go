package trust

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/store"
)

func TestStageGeneralVerifier(t *testing.T) {
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	g, err := GeneralVerifier(s)
	require.NoError(t, err)
	require.False(t, g.IsSet())

	signer := newKey(t, model.Sr25519, "//verifier").signer
	b := store.NewBatch()
	require.NoError(t, StageGeneralVerifier(b, &signer))
	require.NoError(t, s.Apply(b))

	g, err = GeneralVerifier(s)
	require.NoError(t, err)
	require.Equal(t, &signer, g.Value)
}
