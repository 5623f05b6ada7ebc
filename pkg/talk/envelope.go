package talk

import (
	"fmt"
	"strconv"
	"strings"
)

// Meta is the status block of a response envelope.
type Meta struct {
	Status     string
	StatusCode int
	Message    string
}

// Failed reports whether the service marked the response as a failure.
func (m Meta) Failed() bool {
	return strings.EqualFold(m.Status, "failure")
}

// Envelope is a decoded response: status metadata plus the raw payload.
type Envelope struct {
	Meta Meta
	Data any
}

// DecodeEnvelope parses body with dec and extracts the envelope parts.
// A body that cannot be decoded returns a *ParseError; a decoded document
// without the expected envelope fields returns a *StructureError.
func DecodeEnvelope(dec Decoder, body []byte) (*Envelope, error) {
	doc, err := dec.Decode(body)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	root, ok := asMap(doc["ocs"])
	if !ok {
		return nil, &StructureError{Path: "ocs"}
	}
	rawMeta, ok := asMap(root["meta"])
	if !ok {
		return nil, &StructureError{Path: "ocs.meta"}
	}

	meta := Meta{
		Status:  scalarString(rawMeta["status"]),
		Message: scalarString(rawMeta["message"]),
	}
	if code := scalarString(rawMeta["statuscode"]); code != "" {
		meta.StatusCode, err = strconv.Atoi(code)
		if err != nil {
			return nil, &StructureError{Path: "ocs.meta.statuscode", Reason: fmt.Sprintf("not a number: %q", code)}
		}
	}

	return &Envelope{Meta: meta, Data: root["data"]}, nil
}

// Classify maps envelope metadata to an error kind. httpStatus is kept on the
// returned *ServiceError for diagnostics only.
func Classify(meta Meta, httpStatus int) error {
	code := meta.StatusCode
	if code == 0 {
		code = httpStatus
	}
	return &ServiceError{
		HTTPStatus: httpStatus,
		StatusCode: code,
		Status:     meta.Status,
		Message:    meta.Message,
	}
}

// Elements normalizes a payload holding repeated "element" children into a
// list. A lone mapping yields one element, a list yields all of them, and an
// absent or empty payload yields none.
func Elements(data any) ([]map[string]any, error) {
	if isEmpty(data) {
		return nil, nil
	}
	m, ok := asMap(data)
	if !ok {
		return nil, &StructureError{Path: "data", Reason: fmt.Sprintf("unexpected %T", data)}
	}
	return elementList(m["element"], "data.element")
}

func elementList(v any, path string) ([]map[string]any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if val == "" {
			return nil, nil
		}
	case map[string]any:
		if len(val) == 0 {
			return nil, nil
		}
		return []map[string]any{val}, nil
	case []any:
		out := make([]map[string]any, 0, len(val))
		for i, item := range val {
			m, ok := asMap(item)
			if !ok {
				if isEmpty(item) {
					m = map[string]any{}
				} else {
					return nil, &StructureError{Path: fmt.Sprintf("%s[%d]", path, i), Reason: fmt.Sprintf("unexpected %T", item)}
				}
			}
			out = append(out, m)
		}
		return out, nil
	case []map[string]any:
		return val, nil
	}
	return nil, &StructureError{Path: path, Reason: fmt.Sprintf("unexpected %T", v)}
}

// Strings applies the same zero/one/many rule to a payload of scalar
// "element" children, as used by the feature list.
func Strings(data any) ([]string, error) {
	if isEmpty(data) {
		return nil, nil
	}
	m, ok := asMap(data)
	if !ok {
		return nil, &StructureError{Path: "element", Reason: fmt.Sprintf("unexpected %T", data)}
	}
	switch val := m["element"].(type) {
	case nil:
		return nil, nil
	case string:
		if val == "" {
			return nil, nil
		}
		return []string{val}, nil
	case []any:
		out := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, &StructureError{Path: fmt.Sprintf("element[%d]", i), Reason: fmt.Sprintf("unexpected %T", item)}
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		return val, nil
	default:
		return nil, &StructureError{Path: "element", Reason: fmt.Sprintf("unexpected %T", val)}
	}
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	}
	return false
}

// scalarString reads a leaf value. Leaves carrying XML attributes decode to
// a mapping whose text sits under "#text".
func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any:
		if text, ok := val["#text"].(string); ok {
			return text
		}
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// lookup walks a dotted path through nested mappings.
func lookup(m map[string]any, path string) (any, bool) {
	var cur any = m
	for _, key := range strings.Split(path, ".") {
		node, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
