package session

// PermanentKey is the reserved values key that marks a session as permanent.
// It travels inside the signed payload so the flag survives round trips.
const PermanentKey = "_permanent"

// Session is a string-keyed mapping with dirty tracking. It is not safe for
// concurrent use; each request works on its own instance.
type Session struct {
	values   map[string]any
	id       string
	isNew    bool
	modified bool
	accessed bool
}

// New returns an empty, fresh session. Fresh sessions produce no Set-Cookie
// header unless something is written into them.
func New() *Session {
	return &Session{values: map[string]any{}, isNew: true}
}

// FromValues returns a session restored from a decoded cookie payload. The
// map is adopted, not copied; callers must not retain it.
func FromValues(values map[string]any) *Session {
	if values == nil {
		values = map[string]any{}
	}
	return &Session{values: values}
}

// FromStored returns a session restored from the server-side store under id.
func FromStored(id string, values map[string]any) *Session {
	s := FromValues(values)
	s.id = id
	return s
}

// Get returns the value under key and marks the session accessed.
func (s *Session) Get(key string) (any, bool) {
	s.accessed = true
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key and marks the session accessed and modified.
func (s *Session) Set(key string, value any) {
	s.accessed = true
	s.modified = true
	s.values[key] = value
}

// Delete removes key. The session is marked modified only when the key was
// actually present.
func (s *Session) Delete(key string) {
	s.accessed = true
	if _, ok := s.values[key]; !ok {
		return
	}
	s.modified = true
	delete(s.values, key)
}

// Clear removes every key, the permanent flag included. A clear on an already
// empty session still counts as a modification so a stale cookie gets deleted.
func (s *Session) Clear() {
	s.accessed = true
	s.modified = true
	s.values = map[string]any{}
}

// Len returns the number of keys without touching the accessed flag.
func (s *Session) Len() int { return len(s.values) }

// Empty reports whether the session carries no keys at all.
func (s *Session) Empty() bool { return len(s.values) == 0 }

// Keys returns the key set in unspecified order without touching the
// accessed flag.
func (s *Session) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// Values returns a shallow copy of the mapping for serialization. The copy
// keeps bookkeeping reads from flipping the accessed flag.
func (s *Session) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// IsNew reports whether the session was created fresh this request rather
// than restored from a cookie or the store.
func (s *Session) IsNew() bool { return s.isNew }

// Modified reports whether any write happened this request.
func (s *Session) Modified() bool { return s.modified }

// Accessed reports whether application code read or wrote the session this
// request. The HTTP layer emits Vary: Cookie when it did.
func (s *Session) Accessed() bool { return s.accessed }

// Permanent reports whether the reserved permanent flag is set. Reading it
// counts as an access because the answer depends on session content.
func (s *Session) Permanent() bool {
	v, ok := s.Get(PermanentKey)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// SetPermanent sets or clears the reserved permanent flag.
func (s *Session) SetPermanent(permanent bool) {
	if permanent {
		s.Set(PermanentKey, true)
		return
	}
	s.Delete(PermanentKey)
}

// StoreID returns the server-side store ID, empty for cookie-embedded
// sessions and sessions not yet saved.
func (s *Session) StoreID() string { return s.id }

// BindStoreID attaches a freshly issued store ID. Used once, on first save.
func (s *Session) BindStoreID(id string) { s.id = id }
