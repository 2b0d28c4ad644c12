package model

// AddressDetails is the stored record of one derived public key.
// Private keys are never stored; the key is re-derived from the seed
// phrase, Path and (when HasPassword) the operator-supplied password.
type AddressDetails struct {
	SeedName    string            `json:"seed_name"`
	Path        string            `json:"path"`
	HasPassword bool              `json:"has_pwd"`
	Encryption  Encryption        `json:"encryption"`
	PublicKey   []byte            `json:"public_key"`
	Networks    []NetworkSpecsKey `json:"network_id"`
}

// Signer returns the scheme-tagged public key of the address.
func (a AddressDetails) Signer() MultiSigner {
	return MultiSigner{Encryption: a.Encryption, PublicKey: a.PublicKey}
}

// InNetwork reports whether the address is registered for key.
func (a AddressDetails) InNetwork(key NetworkSpecsKey) bool {
	for _, n := range a.Networks {
		if n == key {
			return true
		}
	}
	return false
}

// AddNetwork registers the address for key, if not already registered.
func (a *AddressDetails) AddNetwork(key NetworkSpecsKey) bool {
	if a.InNetwork(key) {
		return false
	}
	a.Networks = append(a.Networks, key)
	return true
}

// RemoveNetwork drops key from the registered networks.
func (a *AddressDetails) RemoveNetwork(key NetworkSpecsKey) bool {
	for i, n := range a.Networks {
		if n == key {
			a.Networks = append(a.Networks[:i], a.Networks[i+1:]...)
			return true
		}
	}
	return false
}
