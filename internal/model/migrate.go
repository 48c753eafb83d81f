package model

// FieldMigration renames a serialized field that older snapshot versions used.
type FieldMigration struct {
	Until string // last snapshot version that wrote the old name
	From  string
	To    string
}

// FieldMigrations is applied, in order, before an entry map is decoded.
// Add new rows here when a field is renamed.
var FieldMigrations = []FieldMigration{
	{Until: "1.0.0", From: "cue", To: "x"},
	{Until: "1.0.0", From: "response", To: "y"},
	{Until: "1.0.0", From: "outcome", To: "feedback"},
	{Until: "1.0.0", From: "label", To: "tag"},
	{Until: "1.0.0", From: "created_at", To: "timestamp"},
	{Until: "1.0.0", From: "uuid", To: "id"},
}

// Migrate returns a copy of raw with legacy field names rewritten.
// A field already present under its current name wins over the legacy one.
func Migrate(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	for _, m := range FieldMigrations {
		v, ok := out[m.From]
		if !ok {
			continue
		}
		delete(out, m.From)
		if _, exists := out[m.To]; !exists {
			out[m.To] = v
		}
	}
	return out
}
