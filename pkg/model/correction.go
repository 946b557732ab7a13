package model

// Correction is an out-of-band fix for one stored record. The primary key
// names the record to amend; every other field overwrites the record's field
// of the same name. Corrections for absent records are skipped.
type Correction map[string]interface{}

// PrimaryKey returns the key of the record this correction amends, or ""
// when the correction is invalid.
func (c Correction) PrimaryKey() string {
	if pk, ok := c[FieldPrimaryKey].(string); ok {
		return pk
	}
	return ""
}

// CorrectionsDocument is the shape of the corrections file.
type CorrectionsDocument struct {
	Corrections []Correction `json:"corrections"`
}
