package model

import "time"

// EventKind enumerates audit log events.
type EventKind string

const (
	EventDatabaseInitiated    EventKind = "DatabaseInitiated"
	EventDeviceWiped          EventKind = "DeviceWiped"
	EventHistoryCleared       EventKind = "HistoryCleared"
	EventGeneralVerifierSet   EventKind = "GeneralVerifierSet"
	EventNetworkVerifierSet   EventKind = "NetworkVerifierSet"
	EventNetworkSpecsAdded    EventKind = "NetworkSpecsAdded"
	EventNetworkSpecsRemoved  EventKind = "NetworkSpecsRemoved"
	EventMetadataAdded        EventKind = "MetadataAdded"
	EventMetadataRemoved      EventKind = "MetadataRemoved"
	EventTypesAdded           EventKind = "TypesAdded"
	EventTypesRemoved         EventKind = "TypesRemoved"
	EventSeedCreated          EventKind = "SeedCreated"
	EventSeedRemoved          EventKind = "SeedRemoved"
	EventIdentityAdded        EventKind = "IdentityAdded"
	EventIdentityRemoved      EventKind = "IdentityRemoved"
	EventDerivationsImported  EventKind = "DerivationsImported"
	EventTransactionSigned    EventKind = "TransactionSigned"
	EventTransactionSignError EventKind = "TransactionSignError"
	EventMessageSigned        EventKind = "MessageSigned"
	EventMessageSignError     EventKind = "MessageSignError"
	EventWarning              EventKind = "Warning"
)

// NetworkEvent identifies network specs touched by an event.
type NetworkEvent struct {
	Name        string     `json:"name"`
	GenesisHash H256       `json:"genesis_hash"`
	Encryption  Encryption `json:"encryption"`
	Verifier    string     `json:"verifier,omitempty"`
}

// MetadataEvent identifies a metadata version touched by an event.
type MetadataEvent struct {
	Name    string `json:"name"`
	Version uint32 `json:"version"`
	Hash    H256   `json:"hash"`
}

// VerifierEvent records a verifier change.
type VerifierEvent struct {
	GenesisHash *H256  `json:"genesis_hash,omitempty"`
	Verifier    string `json:"verifier"`
}

// IdentityEvent records an identity change.
type IdentityEvent struct {
	SeedName   string     `json:"seed_name"`
	Path       string     `json:"path"`
	PublicKey  []byte     `json:"public_key,omitempty"`
	Encryption Encryption `json:"encryption"`
	Network    *H256      `json:"network,omitempty"`
}

// SignEvent records a signing attempt.
type SignEvent struct {
	Transaction []byte `json:"transaction"`
	NetworkName string `json:"network_name"`
	SignedBy    string `json:"signed_by"`
	UserComment string `json:"user_comment"`
}

// Event is one typed audit log event. Exactly one of the detail fields is
// populated according to Kind; Message carries free text.
type Event struct {
	Kind     EventKind      `json:"kind"`
	Network  *NetworkEvent  `json:"network,omitempty"`
	Metadata *MetadataEvent `json:"metadata,omitempty"`
	Verifier *VerifierEvent `json:"verifier,omitempty"`
	Identity *IdentityEvent `json:"identity,omitempty"`
	Sign     *SignEvent     `json:"sign,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// Entry is one timestamped audit log entry holding one or more events.
type Entry struct {
	Order     uint32    `json:"order"`
	Timestamp time.Time `json:"timestamp"`
	Events    []Event   `json:"events"`
}
