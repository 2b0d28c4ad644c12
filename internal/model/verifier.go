package model

// VerifierKind is the state of a network's current verifier.
type VerifierKind string

const (
	VerifierNone    VerifierKind = "none"
	VerifierCustom  VerifierKind = "custom"
	VerifierGeneral VerifierKind = "general"
)

// CurrentVerifier is the verifier record of one network, keyed by genesis hash.
// Custom carries the verifier key; General aliases the device-wide general verifier.
type CurrentVerifier struct {
	Kind   VerifierKind `json:"kind"`
	Custom *MultiSigner `json:"custom,omitempty"`
}

// NoVerifier returns the verifier state of a network that was only ever
// updated with unsigned payloads.
func NoVerifier() CurrentVerifier { return CurrentVerifier{Kind: VerifierNone} }

// CustomVerifier returns a network-specific verifier.
func CustomVerifier(m MultiSigner) CurrentVerifier {
	return CurrentVerifier{Kind: VerifierCustom, Custom: &m}
}

// GeneralVerifier returns a verifier aliasing the general verifier.
func GeneralVerifier() CurrentVerifier { return CurrentVerifier{Kind: VerifierGeneral} }

// Equal compares two verifier records.
func (v CurrentVerifier) Equal(o CurrentVerifier) bool {
	if v.Kind != o.Kind {
		return false
	}
	if v.Kind != VerifierCustom {
		return true
	}
	return v.Custom != nil && o.Custom != nil && v.Custom.Equal(*o.Custom)
}

func (v CurrentVerifier) String() string {
	switch v.Kind {
	case VerifierCustom:
		if v.Custom != nil {
			return "custom " + v.Custom.String()
		}
	case VerifierGeneral:
		return "general"
	}
	return "none"
}

// Verifier is the device-wide general verifier. A nil Value means no
// general verifier has been set yet.
type Verifier struct {
	Value *MultiSigner `json:"value,omitempty"`
}

// IsSet reports whether a general verifier is established.
func (v Verifier) IsSet() bool { return v.Value != nil }

// Is reports whether the general verifier equals m.
func (v Verifier) Is(m MultiSigner) bool { return v.Value != nil && v.Value.Equal(m) }

func (v Verifier) String() string {
	if v.Value == nil {
		return "none"
	}
	return v.Value.String()
}
