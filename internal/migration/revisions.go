package migration

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Base is the revision before any migration has been applied.
	Base = "base"
	// Head is the latest revision.
	Head = "head"
)

var ErrUnknownRevision = errors.New("unknown revision")

// Revision ties a golang-migrate version to its revision id.
type Revision struct {
	Version      uint
	ID           string
	DownRevision string
	Description  string
}

var revisions = []Revision{
	{Version: 1, ID: "076619c4f740", DownRevision: "", Description: "create product table"},
	{Version: 2, ID: "aedf7a150dce", DownRevision: "076619c4f740", Description: "add reason_company_id_hash_index"},
	{Version: 3, ID: "7bcca5a2905d", DownRevision: "aedf7a150dce", Description: "replace reason_company_id_hash_index with product_company_id_hash_index"},
}

// Revisions returns the revision chain, oldest first.
func Revisions() []Revision {
	out := make([]Revision, len(revisions))
	copy(out, revisions)
	return out
}

// HeadVersion is the version of the latest revision.
func HeadVersion() uint {
	return revisions[len(revisions)-1].Version
}

// VersionFor resolves a revision id, Base or Head to its version. A unique
// prefix of a revision id is accepted.
func VersionFor(revision string) (uint, error) {
	revision = strings.ToLower(strings.TrimSpace(revision))
	switch revision {
	case Base:
		return 0, nil
	case Head:
		return HeadVersion(), nil
	case "":
		return 0, fmt.Errorf("%w: empty", ErrUnknownRevision)
	}

	var match *Revision
	for i := range revisions {
		if !strings.HasPrefix(revisions[i].ID, revision) {
			continue
		}
		if match != nil {
			return 0, fmt.Errorf("%w: %q is ambiguous", ErrUnknownRevision, revision)
		}
		match = &revisions[i]
	}
	if match == nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRevision, revision)
	}
	return match.Version, nil
}

// RevisionFor maps a version back to its revision id.
func RevisionFor(version uint) (string, error) {
	if version == 0 {
		return Base, nil
	}
	for _, r := range revisions {
		if r.Version == version {
			return r.ID, nil
		}
	}
	return "", fmt.Errorf("%w: version %d", ErrUnknownRevision, version)
}
