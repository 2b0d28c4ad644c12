package decoder

import (
	"fmt"
	"strings"

	"github.com/AlexZinkM/cold-signer/internal/cards"
	"github.com/AlexZinkM/cold-signer/internal/metadata"
	"github.com/AlexZinkM/cold-signer/internal/model"
)

// Candidate is one stored metadata version of a network.
type Candidate struct {
	Version uint32
	Meta    *metadata.Metadata
}

// TransactionInput is a transaction split into its parts.
type TransactionInput struct {
	Method     []byte
	Extensions []byte
	Genesis    model.H256
	Specs      model.NetworkSpecs
	// Candidates are tried in order; callers pass newest first.
	Candidates []Candidate
	Types      metadata.Registry
}

// TransactionOutput is what decoding a transaction produced. On a method
// decoding error Method holds the cards decoded before the failure.
type TransactionOutput struct {
	Method     cards.Set
	Extensions cards.Set
	Ext        Extensions
	Version    uint32
}

// Transaction finds the metadata version the transaction was built for and
// decodes it. A version is accepted when the extensions decode with it and
// name it as the spec version. When no version fits, the error lists every
// version tried.
func Transaction(in TransactionInput) (TransactionOutput, error) {
	var out TransactionOutput
	if len(in.Candidates) == 0 {
		return out, model.DecodeError(nil, "no metadata on file for %s", in.Specs.Name)
	}

	var tried []string
	for _, c := range in.Candidates {
		ctx := Context{Specs: in.Specs, Meta: c.Meta, Types: in.Types}
		ext, extCards, err := DecodeExtensions(in.Extensions, ctx)
		if err != nil {
			tried = append(tried, fmt.Sprintf("%s%d: %v", in.Specs.Name, c.Version, err))
			continue
		}
		if ext.SpecVersion != c.Version {
			tried = append(tried, fmt.Sprintf("%s%d: transaction is built for version %d", in.Specs.Name, c.Version, ext.SpecVersion))
			continue
		}
		if ext.GenesisHash != in.Genesis {
			return out, model.DecodeError(nil, "genesis hash %s in extensions does not match network %s (%s)",
				ext.GenesisHash, in.Specs.Name, in.Genesis)
		}

		out.Extensions = extCards
		out.Ext = ext
		out.Version = c.Version
		if err := Method(in.Method, ctx, &out.Method); err != nil {
			return out, model.DecodeError(err, "failed to decode method with %s%d", in.Specs.Name, c.Version)
		}
		return out, nil
	}
	return out, model.DecodeError(nil, "failed to decode transaction with any metadata on file; tried %s",
		strings.Join(tried, "; "))
}
