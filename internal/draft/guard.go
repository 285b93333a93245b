package draft

// ConfirmDiscard is the pending-changes guard: navigation away from the
// editor may proceed freely when the draft is clean, otherwise the
// decision is deferred to confirm (typically a user prompt).
func (s *Store) ConfirmDiscard(confirm func() bool) bool {
	if !s.HasUnsavedChanges() {
		return true
	}
	return confirm()
}
