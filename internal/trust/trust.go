// Package trust decides whether a network update may be accepted given the
// verifier it is signed with and the verifiers already on file. Evaluation
// only reads; the returned Outcome describes the change to commit.
package trust

import (
	"fmt"
	"strings"

	"github.com/AlexZinkM/cold-signer/internal/crypto"
	"github.com/AlexZinkM/cold-signer/internal/model"
	"github.com/AlexZinkM/cold-signer/internal/payload"
)

// Store is the read access the evaluator needs.
type Store interface {
	GeneralVerifier() (model.Verifier, error)
	NetworkVerifier(genesis model.H256) (model.CurrentVerifier, bool, error)
	AllNetworkVerifiers() (map[model.H256]model.CurrentVerifier, error)
	AllNetworkSpecs() ([]model.NetworkSpecs, error)
	AllMetadata() ([]model.MetadataRecord, error)
	Types() (*model.TypesRecord, error)
}

// Scope says which verifier governs an update.
type Scope int

const (
	// ScopeNetwork updates are governed by the verifier of one network.
	ScopeNetwork Scope = iota
	// ScopeGeneral updates are governed by the general verifier only.
	ScopeGeneral
)

// Request is an update to evaluate.
type Request struct {
	Kind   payload.Kind
	Signed payload.Signed
	// Genesis is the target network for ScopeNetwork requests.
	Genesis model.H256
	Scope   Scope
}

// Purge lists entries that an accepted update removes.
type Purge struct {
	Specs    []model.NetworkSpecs
	Metadata []model.MetaKey
	Types    bool
}

// Empty reports whether nothing is purged.
func (p Purge) Empty() bool {
	return len(p.Specs) == 0 && len(p.Metadata) == 0 && !p.Types
}

func (p Purge) String() string {
	var parts []string
	for _, s := range p.Specs {
		parts = append(parts, fmt.Sprintf("network specs %s (%s)", s.Name, s.Encryption))
	}
	for _, m := range p.Metadata {
		parts = append(parts, "metadata "+m.String())
	}
	if p.Types {
		parts = append(parts, "types information")
	}
	return strings.Join(parts, ", ")
}

// Outcome is an accepted evaluation.
type Outcome struct {
	// Signer is the verified signer, nil for unsigned updates.
	Signer *model.MultiSigner
	// NewGeneral is set when the signer becomes the general verifier.
	NewGeneral *model.MultiSigner
	// NetworkVerifier is the verifier record to store for the target
	// network; nil leaves it unchanged.
	NetworkVerifier *model.CurrentVerifier
	Purge           Purge
	Warnings        []string
}

// Evaluate applies the verifier rules to req. Rejections are TrustErrors.
func Evaluate(st Store, req Request) (Outcome, error) {
	var out Outcome
	if req.Signed.IsSigned() {
		signer := *req.Signed.Verifier
		if err := crypto.Verify(signer, req.Signed.Content, req.Signed.Signature); err != nil {
			return out, model.TrustError("bad signature on %s payload from %s", req.Kind, signer)
		}
		out.Signer = &signer
	}

	general, err := st.GeneralVerifier()
	if err != nil {
		return out, err
	}

	if req.Scope == ScopeGeneral {
		return evaluateGeneral(st, req, general, out)
	}

	current, known, err := st.NetworkVerifier(req.Genesis)
	if err != nil {
		return out, err
	}
	switch current.Kind {
	case model.VerifierCustom:
		return evaluateCustom(st, req, general, *current.Custom, out)
	case model.VerifierGeneral:
		return evaluateGeneral(st, req, general, out)
	default:
		return evaluateUnverified(st, req, general, known, out)
	}
}

func evaluateCustom(st Store, req Request, general model.Verifier, custom model.MultiSigner, out Outcome) (Outcome, error) {
	if out.Signer == nil {
		return out, model.TrustError("network %s is verified by %s, unsigned %s payloads are not accepted",
			req.Genesis, custom, req.Kind)
	}
	if !out.Signer.Equal(custom) {
		return out, model.TrustError("network %s is verified by %s, payload is signed by %s; wipe the device to change the verifier",
			req.Genesis, custom, out.Signer)
	}
	if general.Is(custom) {
		v := model.GeneralVerifier()
		out.NetworkVerifier = &v
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"custom verifier of network %s is the general verifier; the network is now verified by the general verifier", req.Genesis))
	}
	return out, nil
}

func evaluateGeneral(st Store, req Request, general model.Verifier, out Outcome) (Outcome, error) {
	switch {
	case out.Signer == nil && general.IsSet():
		return out, model.TrustError("%s payloads must be signed by the general verifier %s", req.Kind, general)
	case out.Signer == nil:
		return out, nil
	case general.IsSet() && !general.Is(*out.Signer):
		return out, model.TrustError("general verifier is %s, payload is signed by %s; wipe the device to change the general verifier",
			general, out.Signer)
	case general.IsSet():
		return out, nil
	}
	var keep *model.H256
	if req.Scope == ScopeNetwork && req.Kind == payload.KindLoadMetadata {
		// the target network stays; only its unverified metadata goes
		keep = &req.Genesis
	}
	return adoptGeneral(st, out, keep)
}

func dropGenesis(specs []model.NetworkSpecs, genesis model.H256) []model.NetworkSpecs {
	var out []model.NetworkSpecs
	for _, s := range specs {
		if s.GenesisHash != genesis {
			out = append(out, s)
		}
	}
	return out
}

// adoptGeneral makes the signer the general verifier. Everything accepted
// while the general verifier was unset loses its trust basis and is purged,
// except the specs of the keep network.
func adoptGeneral(st Store, out Outcome, keep *model.H256) (Outcome, error) {
	verifiers, err := st.AllNetworkVerifiers()
	if err != nil {
		return out, err
	}
	purged := make(map[model.H256]bool)
	for genesis, v := range verifiers {
		if v.Kind == model.VerifierGeneral {
			purged[genesis] = true
		}
	}
	p, err := purgeNetworks(st, purged)
	if err != nil {
		return out, err
	}
	if keep != nil {
		p.Specs = dropGenesis(p.Specs, *keep)
	}
	out.Purge = mergePurge(out.Purge, p)
	types, err := st.Types()
	if err != nil {
		return out, err
	}
	out.Purge.Types = out.Purge.Types || types != nil

	signer := *out.Signer
	out.NewGeneral = &signer
	msg := fmt.Sprintf("%s becomes the general verifier; this can only be undone by wiping the device", signer)
	if !out.Purge.Empty() {
		msg += "; the following entries were accepted without it and will be removed: " + out.Purge.String()
	}
	out.Warnings = append(out.Warnings, msg)
	return out, nil
}

func evaluateUnverified(st Store, req Request, general model.Verifier, known bool, out Outcome) (Outcome, error) {
	if out.Signer == nil {
		if !known {
			v := model.NoVerifier()
			out.NetworkVerifier = &v
		}
		return out, nil
	}
	signer := *out.Signer

	if !general.IsSet() && req.Kind == payload.KindAddSpecs {
		v := model.GeneralVerifier()
		out.NetworkVerifier = &v
		out, err := purgeTarget(st, req, out)
		if err != nil {
			return out, err
		}
		return adoptGeneral(st, out, nil)
	}

	var v model.CurrentVerifier
	var msg string
	if general.Is(signer) {
		v = model.GeneralVerifier()
		msg = fmt.Sprintf("network %s is now verified by the general verifier", req.Genesis)
	} else {
		v = model.CustomVerifier(signer)
		msg = fmt.Sprintf("network %s is now verified by %s; this can only be undone by wiping the device", req.Genesis, signer)
	}
	out.NetworkVerifier = &v
	var err error
	if out, err = purgeTarget(st, req, out); err != nil {
		return out, err
	}
	if !out.Purge.Empty() {
		msg += "; the following entries were accepted without verification and will be removed: " + out.Purge.String()
	}
	out.Warnings = append(out.Warnings, msg)
	return out, nil
}

// purgeTarget adds the target network's entries to the purge list. Metadata
// updates keep the specs they are loaded for.
func purgeTarget(st Store, req Request, out Outcome) (Outcome, error) {
	extra, err := purgeNetworks(st, map[model.H256]bool{req.Genesis: true})
	if err != nil {
		return out, err
	}
	if req.Kind == payload.KindLoadMetadata {
		extra.Specs = dropGenesis(extra.Specs, req.Genesis)
	}
	out.Purge = mergePurge(out.Purge, extra)
	return out, nil
}

// purgeNetworks collects specs and metadata of the given networks.
func purgeNetworks(st Store, networks map[model.H256]bool) (Purge, error) {
	var p Purge
	if len(networks) == 0 {
		return p, nil
	}
	specs, err := st.AllNetworkSpecs()
	if err != nil {
		return p, err
	}
	names := make(map[string]bool)
	for _, s := range specs {
		if networks[s.GenesisHash] {
			p.Specs = append(p.Specs, s)
			names[s.Name] = true
		}
	}
	metas, err := st.AllMetadata()
	if err != nil {
		return p, err
	}
	for _, m := range metas {
		if names[m.Name] {
			p.Metadata = append(p.Metadata, model.MetaKey{Name: m.Name, Version: m.Version})
		}
	}
	return p, nil
}

func mergePurge(a, b Purge) Purge {
	seenSpecs := make(map[model.NetworkSpecsKey]bool)
	for _, s := range a.Specs {
		seenSpecs[s.Key()] = true
	}
	for _, s := range b.Specs {
		if !seenSpecs[s.Key()] {
			a.Specs = append(a.Specs, s)
		}
	}
	seenMeta := make(map[model.MetaKey]bool)
	for _, m := range a.Metadata {
		seenMeta[m] = true
	}
	for _, m := range b.Metadata {
		if !seenMeta[m] {
			a.Metadata = append(a.Metadata, m)
		}
	}
	a.Types = a.Types || b.Types
	return a
}
