package checksum

import (
	"context"
	"fmt"
)

// Null is the canonical registry value for "no content has been pushed
// yet" — the state of a freshly created, not-yet-pushed document.
const Null = "null"

// Deleted is the distinguished sentinel written at deletion time to
// prevent a worker from resurrecting a document from a stale local copy
// (spec.md §3 invariant 4).
const Deleted = "DELETED"

// Registry is the shared, durable key→string map the HSM uses as its
// consistency oracle. Implementations must be safe for concurrent use
// across an entire worker fleet, not just one process.
type Registry interface {
	// Get returns the current value for docID, and ok=false if the key
	// has never been set.
	Get(ctx context.Context, docID string) (value string, ok bool, err error)

	// Set writes value for docID, creating or overwriting the entry.
	Set(ctx context.Context, docID, value string) error

	// Delete removes docID's entry outright. The HSM calls this rarely:
	// ordinary deletion writes Deleted via Set and leaves the key
	// present, per spec.md §6 ("never simply removing the key during
	// HSM operation").
	Delete(ctx context.Context, docID string) error
}

// KeyFor returns the registry key a docID is stored under, per spec.md §6:
// "doc-<docId>-checksum".
func KeyFor(docID string) string {
	return fmt.Sprintf("doc-%s-checksum", docID)
}

// State is a docID's registry entry as observed by a reconciliation call:
// Present distinguishes "key absent" from "key present with value Null",
// which the decision matrix treats differently only at the margins.
type State struct {
	Present bool
	Value   string
}

// LocalState is what a worker's LocalStore copy looks like going into
// reconciliation: either there is no local file (Present == false), or
// there is one and Token is its derived checksum.
type LocalState struct {
	Present bool
	Token   string
}

// Decision is the action Reconcile recommends for a (local, registry)
// pair, per the table in spec.md §4.3.
type Decision int

const (
	// DecisionCreateFresh means: no usable content exists anywhere;
	// create an empty document locally and push it asynchronously.
	DecisionCreateFresh Decision = iota

	// DecisionDownloadVerify means: the registry holds a token but there
	// is no local copy; download the latest snapshot and verify its
	// derived token equals the registry's.
	DecisionDownloadVerify

	// DecisionRefuseDeleted means: the registry says Deleted and the
	// caller did not opt into creation-on-fetch; refuse with Deleted.
	DecisionRefuseDeleted

	// DecisionOpenLocal means: the local token already matches the
	// registry; open without touching the network.
	DecisionOpenLocal

	// DecisionPreferRegistryDownload means: the local token and the
	// registry's disagree; rename the local copy aside and download the
	// registry's version, then verify.
	DecisionPreferRegistryDownload

	// DecisionTrustLocalWriteRegistry means: the local token exists but
	// the registry has no entry for this docID; trust the local copy
	// and publish its token.
	DecisionTrustLocalWriteRegistry
)

// String renders d for logging.
func (d Decision) String() string {
	switch d {
	case DecisionCreateFresh:
		return "create-fresh"
	case DecisionDownloadVerify:
		return "download-verify"
	case DecisionRefuseDeleted:
		return "refuse-deleted"
	case DecisionOpenLocal:
		return "open-local"
	case DecisionPreferRegistryDownload:
		return "prefer-registry-download"
	case DecisionTrustLocalWriteRegistry:
		return "trust-local-write-registry"
	default:
		return "unknown"
	}
}

// Reconcile implements the decision matrix of spec.md §4.3. allowCreate
// gates the "open question" behavior of spec.md §9: whether a Deleted
// entry may be treated as a fresh-creation opportunity. Callers pass true
// only from explicitly creation-intended entry points.
//
// A registry value of Deleted always wins over any local state: spec.md
// §3 invariant 4 forbids resurrecting a document from a local copy once
// the registry has recorded its deletion, regardless of what a stale
// local file happens to contain.
func Reconcile(local LocalState, registry State, allowCreate bool) Decision {
	if registry.Present && registry.Value == Deleted {
		if allowCreate {
			return DecisionCreateFresh
		}
		return DecisionRefuseDeleted
	}

	if !local.Present {
		if !registry.Present || registry.Value == Null {
			return DecisionCreateFresh
		}
		return DecisionDownloadVerify
	}

	if !registry.Present {
		return DecisionTrustLocalWriteRegistry
	}
	if registry.Value == local.Token {
		return DecisionOpenLocal
	}
	return DecisionPreferRegistryDownload
}
