package trust

import (
	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/store"
)

// GeneralVerifier reads the general verifier. An unset verifier has a nil Value.
func GeneralVerifier(st Store) (model.Verifier, error) {
	return st.GeneralVerifier()
}

// StageGeneralVerifier adds setting the general verifier to b. Only commits
// of an evaluated Outcome and the defaults of a fresh database call it.
func StageGeneralVerifier(b *store.Batch, v *model.MultiSigner) error {
	return b.PutJSON(store.GeneralVerifierKey(), model.Verifier{Value: v})
}
