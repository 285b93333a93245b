// Package draft implements the draft synchronization engine: a single
// authoritative in-memory draft of one property version, tracked against
// the last server-confirmed snapshot and saved through an optimistic
// concurrency protocol.
//
// The store owns two copies of the aggregate. The draft is what the user
// edits; the persisted snapshot is what the server last confirmed. They
// never share mutable substructure: every read-modify-write clones the
// aggregate first. Dirtiness is derived by deep comparison, never stored.
package draft

import (
	"context"
	"log"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/matthewbaird/proforma/internal/fielderr"
	"github.com/matthewbaird/proforma/internal/signal"
	"github.com/matthewbaird/proforma/internal/transport"
	"github.com/matthewbaird/proforma/internal/types"
	"github.com/matthewbaird/proforma/internal/validate"
)

// Store is the draft store for one property. All state replacements are
// broadcast through signals; subscribers see the new state before the
// triggering operation returns. There is one writer context and any
// number of readers — the mutex only serializes asynchronous
// interleavings of distinct logical operations.
type Store struct {
	propertyID string
	client     Client

	mu        sync.Mutex
	persisted *types.PropertyVersion
	gen       int64 // bumped on every aggregate replacement from a load

	draftSig      *signal.Value[*types.PropertyVersion]
	versionsSig   *signal.Value[[]types.VersionOption]
	dirtySig      *signal.Value[bool]
	validationSig *signal.Value[[]string]
	fieldErrSig   *signal.Value[map[string]string]
}

// NewStore creates a store for the given property, saving through the
// client collaborator.
func NewStore(propertyID string, client Client) *Store {
	return &Store{
		propertyID:    propertyID,
		client:        client,
		draftSig:      signal.New[*types.PropertyVersion](nil),
		versionsSig:   signal.New([]types.VersionOption{}),
		dirtySig:      signal.New(false),
		validationSig: signal.New([]string{}),
		fieldErrSig:   signal.New(map[string]string{}),
	}
}

// Draft exposes the current draft stream. The published aggregate is
// owned by the store; callers must treat it as read-only.
func (s *Store) Draft() *signal.Value[*types.PropertyVersion] { return s.draftSig }

// Versions exposes the version summary stream.
func (s *Store) Versions() *signal.Value[[]types.VersionOption] { return s.versionsSig }

// Dirty exposes the unsaved-changes stream.
func (s *Store) Dirty() *signal.Value[bool] { return s.dirtySig }

// ValidationErrors exposes the ordered violation list stream.
func (s *Store) ValidationErrors() *signal.Value[[]string] { return s.validationSig }

// FieldErrors exposes the field-path → message stream.
func (s *Store) FieldErrors() *signal.Value[map[string]string] { return s.fieldErrSig }

// LoadVersion fetches the aggregate and makes it both the draft and the
// persisted snapshot. Validation and field errors are cleared; dirty is
// recomputed and is always false immediately after a load. On failure
// the store is left untouched.
func (s *Store) LoadVersion(ctx context.Context, version string) (*types.PropertyVersion, error) {
	fetched, err := s.client.GetVersion(ctx, s.propertyID, version)
	if err != nil {
		return nil, err
	}
	normalized := fetched.Clone()

	s.mu.Lock()
	s.persisted = normalized.Clone()
	s.gen++
	s.mu.Unlock()

	s.draftSig.Set(normalized)
	s.validationSig.Set([]string{})
	s.fieldErrSig.Set(map[string]string{})
	s.refreshDirty()
	return normalized, nil
}

// LoadVersions fetches and publishes the version summaries. The draft is
// not touched.
func (s *Store) LoadVersions(ctx context.Context) ([]types.VersionOption, error) {
	versions, err := s.client.GetVersions(ctx, s.propertyID)
	if err != nil {
		return nil, err
	}
	s.versionsSig.Set(versions)
	return versions, nil
}

// PatchDraft applies mutator to a deep copy of the draft and publishes
// the result. Every mutation funnels through here, so dirty tracking
// cannot be bypassed. While validation errors are on display they are
// recomputed live against the new draft.
func (s *Store) PatchDraft(mutator func(*types.PropertyVersion)) {
	current := s.draftSig.Get()
	if current == nil {
		return
	}
	next := current.Clone()
	mutator(next)
	s.draftSig.Set(next)

	if len(s.validationSig.Get()) > 0 {
		violations := validate.Draft(next)
		s.validationSig.Set(violations)
		s.fieldErrSig.Set(fielderr.FromValidation(violations, next))
	}
	s.refreshDirty()
}

// UpdatePropertyDetailsField edits one property-details field. The field
// name is the JSON name; its pending field error is cleared so stale
// highlighting never survives a correction attempt.
func (s *Store) UpdatePropertyDetailsField(field string, apply func(*types.PropertyDetails)) {
	s.clearFieldErrors("propertyDetails." + field)
	s.PatchDraft(func(draft *types.PropertyVersion) {
		apply(&draft.PropertyDetails)
	})
}

// UpdateUnderwritingField edits one underwriting field.
func (s *Store) UpdateUnderwritingField(field string, apply func(*types.UnderwritingInputs)) {
	s.clearFieldErrors("underwritingInputs." + field)
	s.PatchDraft(func(draft *types.PropertyVersion) {
		apply(&draft.UnderwritingInputs)
	})
}

// UpdateBrokerField edits one field of the identified broker.
func (s *Store) UpdateBrokerField(brokerID, field string, apply func(*types.Broker)) {
	if current := s.draftSig.Get(); current != nil {
		for i := range current.Brokers {
			if current.Brokers[i].ID == brokerID {
				s.clearFieldErrors(brokerFieldPath(i, field), "brokers."+field)
			}
		}
	}
	s.PatchDraft(func(draft *types.PropertyVersion) {
		if b := draft.FindBroker(brokerID); b != nil {
			apply(b)
		}
	})
}

// UpdateTenantField edits one field of the identified tenant. The vacant
// row and soft-deleted rows are never edited through this path.
func (s *Store) UpdateTenantField(tenantID, field string, apply func(*types.Tenant)) {
	if current := s.draftSig.Get(); current != nil {
		for i := range current.Tenants {
			if current.Tenants[i].ID == tenantID {
				s.clearFieldErrors(tenantFieldPath(i, field), "tenants."+field)
			}
		}
	}
	s.PatchDraft(func(draft *types.PropertyVersion) {
		if t := draft.FindTenant(tenantID); t != nil && !t.IsVacant && !t.IsDeleted {
			apply(t)
		}
	})
}

// AddBrokerDraft appends an empty broker with a transient id.
func (s *Store) AddBrokerDraft() {
	broker := types.Broker{ID: generateID(transientBrokerPrefix)}
	s.PatchDraft(func(draft *types.PropertyVersion) {
		draft.Brokers = append(draft.Brokers, broker)
	})
}

// AddTenantDraft inserts a tenant draft before the vacant row so the
// vacant row stays last. Lease dates default to the underwriting start
// date and one year out.
func (s *Store) AddTenantDraft() {
	current := s.draftSig.Get()
	if current == nil {
		return
	}

	baseDate := current.UnderwritingInputs.EstStartDate
	start, ok := validate.ParseDate(baseDate)
	if !ok {
		start = time.Now()
		baseDate = start.Format("2006-01-02")
	}
	tenant := types.Tenant{
		ID:         generateID(transientTenantPrefix),
		CreditType: "Local",
		LeaseStart: baseDate,
		LeaseEnd:   start.AddDate(1, 0, 0).Format("2006-01-02"),
		LeaseType:  "Gross",
		Renew:      "No",
	}

	s.PatchDraft(func(draft *types.PropertyVersion) {
		var active, vacant []types.Tenant
		for _, t := range draft.Tenants {
			if t.IsVacant {
				vacant = append(vacant, t)
			} else {
				active = append(active, t)
			}
		}
		draft.Tenants = append(append(active, tenant), vacant...)
	})
}

// SaveBroker persists one broker: create when the id is client-only,
// update otherwise, both tagged with the draft's current revision. The
// response is reconciled so unrelated pending edits survive.
func (s *Store) SaveBroker(ctx context.Context, brokerID string) (*types.PropertyVersion, error) {
	current := s.draftSig.Get()
	if current == nil {
		return nil, ErrNotLoaded
	}
	broker := current.FindBroker(brokerID)
	if broker == nil {
		return nil, ErrBrokerNotInDraft
	}

	payload := broker.Sanitize()
	if payload.Name == "" || payload.Phone == "" || payload.Email == "" || payload.Company == "" {
		return nil, ErrBrokerFieldsRequired
	}

	gen := s.generation()
	var saved *types.PropertyVersion
	var err error
	if s.isClientOnlyBroker(brokerID) {
		saved, err = s.client.CreateBroker(ctx, s.propertyID, current.Version, current.Revision, payload)
	} else {
		saved, err = s.client.UpdateBroker(ctx, s.propertyID, current.Version, brokerID, current.Revision, payload)
	}
	if err != nil {
		return nil, err
	}
	return s.persistCollectionUpdate(saved, brokersCollection, gen), nil
}

// DeleteBroker removes a client-only broker locally; persisted brokers
// are soft-deleted server-side against the current revision.
func (s *Store) DeleteBroker(ctx context.Context, brokerID string) (*types.PropertyVersion, error) {
	current := s.draftSig.Get()
	if current == nil {
		return nil, ErrNotLoaded
	}

	if s.isClientOnlyBroker(brokerID) {
		s.PatchDraft(func(draft *types.PropertyVersion) {
			draft.Brokers = removeBroker(draft.Brokers, brokerID)
		})
		return s.draftSig.Get(), nil
	}

	broker := current.FindBroker(brokerID)
	if broker == nil || broker.IsDeleted {
		return nil, ErrBrokerNotFound
	}

	gen := s.generation()
	saved, err := s.client.SoftDeleteBroker(ctx, s.propertyID, current.Version, brokerID, current.Revision)
	if err != nil {
		return nil, err
	}
	return s.persistCollectionUpdate(saved, brokersCollection, gen), nil
}

// SaveTenant persists one tenant; the vacant row is refused.
func (s *Store) SaveTenant(ctx context.Context, tenantID string) (*types.PropertyVersion, error) {
	current := s.draftSig.Get()
	if current == nil {
		return nil, ErrNotLoaded
	}
	if tenantID == types.VacantTenantID {
		return nil, ErrVacantRowManaged
	}
	tenant := current.FindTenant(tenantID)
	if tenant == nil {
		return nil, ErrTenantNotInDraft
	}

	payload := tenant.Sanitize()
	if payload.TenantName == "" {
		return nil, ErrTenantNameRequired
	}

	gen := s.generation()
	var saved *types.PropertyVersion
	var err error
	if s.isClientOnlyTenant(tenantID) {
		saved, err = s.client.CreateTenant(ctx, s.propertyID, current.Version, current.Revision, payload)
	} else {
		saved, err = s.client.UpdateTenant(ctx, s.propertyID, current.Version, tenantID, current.Revision, payload)
	}
	if err != nil {
		return nil, err
	}
	return s.persistCollectionUpdate(saved, tenantsCollection, gen), nil
}

// DeleteTenant removes a client-only tenant locally; persisted tenants
// are soft-deleted server-side. The vacant row and already-deleted rows
// are refused.
func (s *Store) DeleteTenant(ctx context.Context, tenantID string) (*types.PropertyVersion, error) {
	current := s.draftSig.Get()
	if current == nil {
		return nil, ErrNotLoaded
	}
	if tenantID == types.VacantTenantID {
		return nil, ErrVacantRowManaged
	}

	if s.isClientOnlyTenant(tenantID) {
		s.PatchDraft(func(draft *types.PropertyVersion) {
			draft.Tenants = removeTenant(draft.Tenants, tenantID)
		})
		return s.draftSig.Get(), nil
	}

	tenant := current.FindTenant(tenantID)
	if tenant == nil || tenant.IsDeleted || tenant.IsVacant {
		return nil, ErrTenantNotFound
	}

	gen := s.generation()
	saved, err := s.client.SoftDeleteTenant(ctx, s.propertyID, current.Version, tenantID, current.Revision)
	if err != nil {
		return nil, err
	}
	return s.persistCollectionUpdate(saved, tenantsCollection, gen), nil
}

// SaveCurrent validates the draft and persists the full aggregate. When
// validation fails the violations are published and no request is made.
// Client-only ids are materialized in the payload so the backend never
// sees a client-minted identifier. On success both draft and persisted
// snapshot become the server's response and the version list refreshes
// in the background.
func (s *Store) SaveCurrent(ctx context.Context) (*types.PropertyVersion, string, error) {
	current := s.draftSig.Get()
	if current == nil {
		return nil, "", ErrNotLoaded
	}

	violations := validate.Draft(current)
	s.validationSig.Set(violations)
	if len(violations) > 0 {
		s.fieldErrSig.Set(fielderr.FromValidation(violations, current))
		return nil, "", &ValidationError{Violations: violations}
	}

	gen := s.generation()
	saved, message, err := s.client.SaveVersion(ctx, s.propertyID, current.Version, s.buildSavePayload(current))
	if err != nil {
		return nil, "", err
	}

	normalized := saved.Clone()
	if s.replaceAggregate(normalized, gen) {
		s.validationSig.Set([]string{})
		s.fieldErrSig.Set(map[string]string{})
		s.refreshDirty()
		s.refreshVersionsAsync()
	}
	return normalized, message, nil
}

// SaveAsNextVersion persists the draft as a new version. Unlike
// SaveCurrent it does not insist on a valid draft first; the backend is
// the gate. It still refuses with no aggregate loaded.
func (s *Store) SaveAsNextVersion(ctx context.Context) (*types.PropertyVersion, string, error) {
	current := s.draftSig.Get()
	if current == nil {
		return nil, "", ErrNotLoaded
	}

	gen := s.generation()
	saved, message, err := s.client.SaveAs(ctx, s.propertyID, current.Version, s.buildSavePayload(current))
	if err != nil {
		return nil, "", err
	}

	normalized := saved.Clone()
	if s.replaceAggregate(normalized, gen) {
		s.fieldErrSig.Set(map[string]string{})
		s.refreshDirty()
		s.refreshVersionsAsync()
	}
	return normalized, message, nil
}

// HasUnsavedChanges reports whether the draft diverges from the
// persisted snapshot. Consumed by the navigation guard.
func (s *Store) HasUnsavedChanges() bool {
	return s.dirtySig.Get()
}

// CurrentVersion returns the loaded version string, or "".
func (s *Store) CurrentVersion() string {
	if current := s.draftSig.Get(); current != nil {
		return current.Version
	}
	return ""
}

// SetServerErrors publishes field errors extracted from a backend
// rejection.
func (s *Store) SetServerErrors(err error) {
	info := transport.ExtractErrorInfo(err)
	s.fieldErrSig.Set(info.FieldErrors)
}

// FieldError returns the message for a field path, letting an indexed
// path fall back to its coarse form.
func (s *Store) FieldError(path string) string {
	return fielderr.Lookup(s.fieldErrSig.Get(), path)
}

// HasFieldErrors reports whether any field error is on display.
func (s *Store) HasFieldErrors() bool {
	return len(s.fieldErrSig.Get()) > 0
}

// ClearFieldErrors drops the given paths from the field-error map.
func (s *Store) ClearFieldErrors(paths ...string) {
	s.clearFieldErrors(paths...)
}

func (s *Store) clearFieldErrors(paths ...string) {
	current := s.fieldErrSig.Get()
	next := make(map[string]string, len(current))
	for k, v := range current {
		next[k] = v
	}
	changed := false
	for _, p := range paths {
		if _, ok := next[p]; ok {
			delete(next, p)
			changed = true
		}
	}
	if changed {
		s.fieldErrSig.Set(next)
	}
}

func (s *Store) buildSavePayload(current *types.PropertyVersion) types.SavePayload {
	s.mu.Lock()
	persisted := s.persisted
	s.mu.Unlock()

	brokers, tenants := materializeTransientIDs(current, persisted)
	return types.SavePayload{
		ExpectedRevision:   current.Revision,
		PropertyDetails:    current.PropertyDetails,
		UnderwritingInputs: current.UnderwritingInputs,
		Brokers:            brokers,
		Tenants:            tenants,
	}
}

// replaceAggregate installs a server response as both draft and
// persisted snapshot. Returns false when the loaded aggregate changed
// while the request was in flight; the stale response is discarded.
func (s *Store) replaceAggregate(normalized *types.PropertyVersion, gen int64) bool {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		log.Printf("store: discarding stale save response for %s %s", normalized.PropertyID, normalized.Version)
		return false
	}
	s.persisted = normalized.Clone()
	s.mu.Unlock()
	s.draftSig.Set(normalized)
	return true
}

func (s *Store) generation() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Store) isClientOnlyBroker(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return isClientOnlyBrokerID(id, s.persisted)
}

func (s *Store) isClientOnlyTenant(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return isClientOnlyTenantID(id, s.persisted)
}

func (s *Store) refreshDirty() {
	current := s.draftSig.Get()
	s.mu.Lock()
	persisted := s.persisted
	s.mu.Unlock()

	if current == nil || persisted == nil {
		s.dirtySig.Set(false)
		return
	}
	s.dirtySig.Set(!reflect.DeepEqual(current, persisted))
}

func (s *Store) refreshVersionsAsync() {
	go func() {
		if _, err := s.LoadVersions(context.Background()); err != nil {
			log.Printf("store: refreshing versions: %v", err)
		}
	}()
}

func removeBroker(brokers []types.Broker, id string) []types.Broker {
	out := brokers[:0]
	for _, b := range brokers {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}

func removeTenant(tenants []types.Tenant, id string) []types.Tenant {
	out := tenants[:0]
	for _, t := range tenants {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func brokerFieldPath(index int, field string) string {
	return "brokers." + strconv.Itoa(index) + "." + field
}

func tenantFieldPath(index int, field string) string {
	return "tenants." + strconv.Itoa(index) + "." + field
}
