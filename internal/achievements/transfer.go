package achievements

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/jsonc"
)

//go:embed import.schema.json
var importSchemaJSON string

var importSchema = jsonschema.MustCompileString("import.schema.json", importSchemaJSON)

// Export serializes every achievement, completion state included, in store
// order.
func (s *Store) Export() ([]byte, error) {
	return json.MarshalIndent(s.All(), "", "  ")
}

// ParseImport decodes an export blob. Comments and trailing commas are
// tolerated. Every record needs id, title and description, and ids must be
// unique within the blob.
func ParseImport(data []byte) ([]Achievement, error) {
	stripped := jsonc.ToJSON(data)

	dec := json.NewDecoder(bytes.NewReader(stripped))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if err := importSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	var list []Achievement
	if err := json.Unmarshal(stripped, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	seen := make(map[string]struct{}, len(list))
	for i, a := range list {
		if a.ID == "" || a.Title == "" || a.Description == "" {
			return nil, fmt.Errorf("%w: record %d lacks id, title or description", ErrFormat, i)
		}
		if _, dup := seen[a.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrFormat, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return list, nil
}

// Import replaces every definition and award with list. completedActors is
// split out into the award record.
func (s *Store) Import(list []Achievement) error {
	defs := make([]Definition, 0, len(list))
	awards := make(map[string][]string, len(list))
	for _, a := range list {
		defs = append(defs, a.Definition)
		if len(a.CompletedActors) > 0 {
			awards[a.ID] = append([]string(nil), a.CompletedActors...)
		}
	}
	return s.Replace(defs, awards)
}
