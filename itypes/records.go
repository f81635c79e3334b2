package itypes

import (
	"fmt"
	"sync"
)

// RecordID identifies a registered record type. Zero is reserved and never
// assigned by Register.
type RecordID uint32

// RecordType is an ordered, named struct of fields exchanged as an interface
// value. Every RecordID referenced by a field's IType (directly, or via an
// Array element) must already exist in the owning RecordRegistry.
type RecordType struct {
	ID     RecordID
	Name   string
	Fields []NamedType
}

// DuplicateRecordError is returned when two distinct structural shapes claim
// the same logical record name within one module.
type DuplicateRecordError struct {
	Name string
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("itypes: record %q already registered with a different shape", e.Name)
}

// UnresolvedRecordRefError is returned when a field references a record ID
// not yet known to the registry.
type UnresolvedRecordRefError struct {
	Name     string
	RecordID RecordID
}

func (e *UnresolvedRecordRefError) Error() string {
	return fmt.Sprintf("itypes: record %q references unresolved record id %d", e.Name, e.RecordID)
}

// RecordRegistry assigns dense, stable RecordIDs scoped to one module's
// lifetime. Registration is append-only: ids are never reused or
// renumbered, per the "Shared resources" invariant in the data model.
type RecordRegistry struct {
	mu      sync.RWMutex
	byID    map[RecordID]RecordType
	byName  map[string]RecordID
	nextID  RecordID
}

// NewRecordRegistry returns an empty registry, ready for Register calls.
func NewRecordRegistry() *RecordRegistry {
	return &RecordRegistry{
		byID:   make(map[RecordID]RecordType),
		byName: make(map[string]RecordID),
		nextID: 1,
	}
}

// Register assigns a fresh RecordID to name/fields, or returns the existing
// id if name was already registered with a structurally identical shape.
// Fields referencing a Record or Array-of-Record IType must resolve against
// records already present in this registry.
func (r *RecordRegistry) Register(name string, fields []NamedType) (RecordID, error) {
	for _, f := range fields {
		if err := r.checkResolved(name, f.Type); err != nil {
			return 0, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existingID, ok := r.byName[name]; ok {
		existing := r.byID[existingID]
		if sameShape(existing.Fields, fields) {
			return existingID, nil
		}
		return 0, &DuplicateRecordError{Name: name}
	}

	id := r.nextID
	r.nextID++
	r.byID[id] = RecordType{ID: id, Name: name, Fields: fields}
	r.byName[name] = id
	return id, nil
}

func (r *RecordRegistry) checkResolved(name string, t IType) error {
	switch t.Kind {
	case KindRecord:
		if _, ok := r.Resolve(t.RecordID); !ok {
			return &UnresolvedRecordRefError{Name: name, RecordID: t.RecordID}
		}
	case KindArray:
		return r.checkResolved(name, *t.Elem)
	}
	return nil
}

func sameShape(a, b []NamedType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !a[i].Type.Equal(b[i].Type) {
			return false
		}
	}
	return true
}

// Resolve looks up a record type by id in O(1).
func (r *RecordRegistry) Resolve(id RecordID) (RecordType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.byID[id]
	return rt, ok
}

// ResolveByName looks up a record type by its registered name.
func (r *RecordRegistry) ResolveByName(name string) (RecordType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return RecordType{}, false
	}
	return r.byID[id], true
}

// List enumerates all records in ascending id order.
func (r *RecordRegistry) List() []RecordType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RecordType, 0, len(r.byID))
	for id := RecordID(1); id < r.nextID; id++ {
		if rt, ok := r.byID[id]; ok {
			out = append(out, rt)
		}
	}
	return out
}
