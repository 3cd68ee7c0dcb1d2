package cluster

import "strings"

// DocRef is the parsed form of a document identifier per spec.md §3/§6:
//
//	docId                     — a trunk document
//	docId~suffix              — a fork, branched from docId
//	docId~v=snapshotId        — a snapshot reference of docId (trunk or fork)
//	docId~suffix~v=snapshotId — a snapshot reference of a fork
//
// The parser is total: every string produces a DocRef, never an error.
// Strings with no "~" are plain trunk ids; everything else is decomposed
// best-effort per the grammar above.
type DocRef struct {
	// Raw is the original, unparsed string.
	Raw string

	// TrunkID is the root document id with no fork suffix or version tag.
	TrunkID string

	// ForkSuffix is the token between the first "~" and (if present) the
	// "~v=" version tag. Empty for a plain trunk reference.
	ForkSuffix string

	// SnapshotID is the opaque version token after "~v=", if this ref
	// names a specific snapshot. Empty otherwise.
	SnapshotID string
}

// ParseDocRef decomposes id per the grammar documented on DocRef. It never
// fails: input with no "~" is a plain TrunkID, and any other input is split
// at its last "~v=" and then at the first remaining "~", even when the
// resulting parts are empty.
func ParseDocRef(id string) DocRef {
	base := id
	snapshotID := ""
	if idx := strings.LastIndex(id, "~v="); idx >= 0 {
		base = id[:idx]
		snapshotID = id[idx+len("~v="):]
	}

	trunk := base
	forkSuffix := ""
	if idx := strings.Index(base, "~"); idx >= 0 {
		trunk = base[:idx]
		forkSuffix = base[idx+1:]
	}

	return DocRef{
		Raw:        id,
		TrunkID:    trunk,
		ForkSuffix: forkSuffix,
		SnapshotID: snapshotID,
	}
}

// IsFork reports whether this reference names a fork rather than a trunk.
func (r DocRef) IsFork() bool { return r.ForkSuffix != "" }

// IsSnapshotRef reports whether this reference pins a specific snapshot.
func (r DocRef) IsSnapshotRef() bool { return r.SnapshotID != "" }

// DocID is the reference with any "~v=..." version tag stripped — the id
// under which the document (trunk or fork) is assigned to a worker and
// stored locally.
func (r DocRef) DocID() string {
	if r.ForkSuffix == "" {
		return r.TrunkID
	}
	return r.TrunkID + "~" + r.ForkSuffix
}

// ForkID builds the child document id for a fork of trunkID identified by
// suffix, per the "<docId>~<suffix>" grammar.
func ForkID(trunkID, suffix string) string {
	return trunkID + "~" + suffix
}

// SnapshotRef builds a snapshot reference for docID at snapshotID, per the
// "<docId>~v=<opaque>" grammar.
func SnapshotRef(docID, snapshotID string) string {
	return docID + "~v=" + snapshotID
}
