package model

// Record types assigned by the harvesting pipeline.
const (
	TypeCommit = "commit"
	TypeReview = "review"
	TypeEmail  = "email"
	TypeMember = "member"
)

// Well-known record fields.
const (
	FieldRecordType = "record_type"
	FieldPrimaryKey = "primary_key"
	FieldBranches   = "branches"
	FieldDate       = "date"
	FieldWeek       = "week"
)

// Record is one unit of harvested activity. Records are schemaless: sources
// emit whatever fields they know about, the processor adds the primary key
// and derived fields, and storage persists the map as JSON.
type Record map[string]interface{}

// Type returns the record type label, or "" when the record is untyped.
func (r Record) Type() string {
	return r.GetString(FieldRecordType)
}

// SetType stamps the record type label.
func (r Record) SetType(recordType string) {
	r[FieldRecordType] = recordType
}

// PrimaryKey returns the storage primary key, or "" when not yet assigned.
func (r Record) PrimaryKey() string {
	return r.GetString(FieldPrimaryKey)
}

// SetPrimaryKey assigns the storage primary key.
func (r Record) SetPrimaryKey(pk string) {
	r[FieldPrimaryKey] = pk
}

// GetString returns the field as a string, or "" when absent or not a string.
func (r Record) GetString(field string) string {
	if v, ok := r[field].(string); ok {
		return v
	}
	return ""
}

// GetInt64 returns the field as an int64. JSON decoding yields float64 for
// numbers, so both are accepted.
func (r Record) GetInt64(field string) (int64, bool) {
	switch v := r[field].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Branches returns the record's branch set, coercing the JSON decoded form.
// A missing or malformed field yields an empty set.
func (r Record) Branches() StringSet {
	set, _ := StringSetFromAny(r[FieldBranches])
	return set
}

// SetBranches stores the branch set on the record. The set marshals as a
// sorted array, so stored records are stable across merges.
func (r Record) SetBranches(branches StringSet) {
	r[FieldBranches] = branches
}

// Clone returns a shallow copy of the record with its branch set duplicated.
// Nested values other than the branch set are shared.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	if _, present := r[FieldBranches]; present {
		out[FieldBranches] = r.Branches().Copy()
	}
	return out
}

// Equal compares two records field by field. Branch sets compare as sets,
// other values by their JSON decoded forms.
func (r Record) Equal(other Record) bool {
	if len(r) != len(other) {
		return false
	}
	for k, v := range r {
		ov, ok := other[k]
		if !ok {
			return false
		}
		if k == FieldBranches {
			a, _ := StringSetFromAny(v)
			b, _ := StringSetFromAny(ov)
			if !a.Equal(b) {
				return false
			}
			continue
		}
		if !looseEqual(v, ov) {
			return false
		}
	}
	return true
}

// ValueEqual compares two field values across the int/float divide
// introduced by JSON round-trips.
func ValueEqual(a, b interface{}) bool {
	return looseEqual(a, b)
}

// looseEqual compares values across the int/float divide introduced by JSON
// round-trips.
func looseEqual(a, b interface{}) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !looseEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, present := bv[k]
			if !present || !looseEqual(v, bvv) {
				return false
			}
		}
		return true
	}
	return false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
