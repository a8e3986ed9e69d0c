package config

import "encoding/json"

// Document is a nested key-value settings document, the unit of storage for a
// (guild, cog) pair. Values hold whatever encoding/json produced, so numbers
// are float64 and nested objects are map[string]any.
type Document map[string]any

// DecodeDocument parses a raw JSON object into a Document.
func DecodeDocument(raw json.RawMessage) (Document, error) {
	doc := Document{}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Encode serializes the document back to JSON.
func (d Document) Encode() (json.RawMessage, error) {
	return json.Marshal(d)
}

// String returns the string at key, or fallback when absent or not a string.
func (d Document) String(key, fallback string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return fallback
}

// Bool returns the bool at key, or fallback when absent or not a bool.
func (d Document) Bool(key string, fallback bool) bool {
	if v, ok := d[key].(bool); ok {
		return v
	}
	return fallback
}

// Int64 returns the integer at key. JSON decoding yields float64, so both
// numeric representations are accepted.
func (d Document) Int64(key string, fallback int64) int64 {
	switch v := d[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return fallback
}

// StringSlice returns the string list at key, or nil when absent.
func (d Document) StringSlice(key string) []string {
	raw, ok := d[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Sub returns the nested document at key, creating it when absent so callers
// can mutate in place before committing.
func (d Document) Sub(key string) Document {
	if v, ok := d[key].(map[string]any); ok {
		return Document(v)
	}
	if v, ok := d[key].(Document); ok {
		return v
	}
	sub := map[string]any{}
	d[key] = sub
	return Document(sub)
}

// Has reports whether key is present.
func (d Document) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// mergeDefaults copies every default key absent from the document. Nested
// documents merge recursively so a partially-written document still sees new
// default fields.
func mergeDefaults(doc Document, defaults Document) Document {
	for key, def := range defaults {
		existing, ok := doc[key]
		if !ok {
			doc[key] = clone(def)
			continue
		}
		defMap, defIsMap := def.(map[string]any)
		curMap, curIsMap := existing.(map[string]any)
		if defIsMap && curIsMap {
			mergeDefaults(Document(curMap), Document(defMap))
		}
	}
	return doc
}

func clone(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = clone(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = clone(item)
		}
		return out
	default:
		return v
	}
}
