package draft

import (
	"log"

	"github.com/matthewbaird/proforma/internal/types"
)

// collectionKind names which child collection a partial save mutated.
type collectionKind int

const (
	brokersCollection collectionKind = iota
	tenantsCollection
)

// persistCollectionUpdate reconciles the response of a single-entity
// save back into the draft. Only the just-mutated collection in the
// response is trustworthy as the new source of truth: the scalar
// sections and the other collection may already carry newer unsaved
// edits, so those come from the pre-save draft. The persisted snapshot
// becomes the full server response regardless — it reflects only what
// the server confirmed, never the merge.
//
// gen is the aggregate generation captured when the request was
// dispatched; a response for a since-replaced aggregate is discarded.
func (s *Store) persistCollectionUpdate(saved *types.PropertyVersion, kind collectionKind, gen int64) *types.PropertyVersion {
	normalized := saved.Clone()

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		log.Printf("store: discarding stale response for %s %s", normalized.PropertyID, normalized.Version)
		return normalized
	}
	s.persisted = normalized.Clone()
	s.mu.Unlock()

	currentDraft := s.draftSig.Get()
	if currentDraft == nil {
		s.draftSig.Set(normalized)
		s.refreshDirty()
		return normalized
	}

	merged := normalized.Clone()
	merged.PropertyDetails = currentDraft.PropertyDetails
	merged.UnderwritingInputs = currentDraft.UnderwritingInputs
	switch kind {
	case brokersCollection:
		merged.Tenants = append([]types.Tenant(nil), currentDraft.Tenants...)
	case tenantsCollection:
		merged.Brokers = append([]types.Broker(nil), currentDraft.Brokers...)
	}

	s.draftSig.Set(merged)
	s.refreshDirty()
	s.validationSig.Set([]string{})
	s.refreshVersionsAsync()
	return merged
}
