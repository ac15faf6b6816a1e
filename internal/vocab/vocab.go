package vocab

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/magda-omr/pkg/embedded"
)

const (
	// BlankID is the reserved CTC blank symbol.
	BlankID = 0

	// Unknown is returned by LabelOrUnknown for ids outside the table.
	Unknown = "unknown"
)

// Configuration errors. Any of these means the table cannot be used.
var (
	ErrEmptyVocabulary  = errors.New("vocab: vocabulary is empty")
	ErrEmptyLabel       = errors.New("vocab: empty label")
	ErrDuplicateLabel   = errors.New("vocab: label bound to more than one id")
	ErrDuplicateID      = errors.New("vocab: id bound to more than one label")
	ErrNonContiguousIDs = errors.New("vocab: ids must be contiguous from 0")
	ErrMixedShape       = errors.New("vocab: object mixes label->id and id->label members")
)

// Entry binds one token id to its semantic label.
type Entry struct {
	ID    int
	Label string
}

// Table is an immutable bijection between token ids and semantic labels.
// It is safe for concurrent use once constructed.
type Table struct {
	idToLabel []string
	labelToID map[string]int
}

// New builds a Table from entries. Ids must cover 0..len(entries)-1 exactly
// once and every label must be unique.
func New(entries []Entry) (*Table, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyVocabulary
	}

	idToLabel := make([]string, len(entries))
	for _, e := range entries {
		if e.ID < 0 || e.ID >= len(entries) {
			return nil, fmt.Errorf("%w: id %d out of range for %d entries", ErrNonContiguousIDs, e.ID, len(entries))
		}
		if e.Label == "" {
			return nil, fmt.Errorf("%w: id %d", ErrEmptyLabel, e.ID)
		}
		if idToLabel[e.ID] != "" {
			return nil, fmt.Errorf("%w: id %d (%q, %q)", ErrDuplicateID, e.ID, idToLabel[e.ID], e.Label)
		}
		idToLabel[e.ID] = e.Label
	}

	// The reverse map is derived from the forward table, never authored.
	labelToID := make(map[string]int, len(idToLabel))
	for id, label := range idToLabel {
		if prev, ok := labelToID[label]; ok {
			return nil, fmt.Errorf("%w: %q (ids %d and %d)", ErrDuplicateLabel, label, prev, id)
		}
		labelToID[label] = id
	}

	return &Table{idToLabel: idToLabel, labelToID: labelToID}, nil
}

// FromLabels builds a Table where each label's id is its index.
func FromLabels(labels []string) (*Table, error) {
	entries := make([]Entry, len(labels))
	for i, l := range labels {
		entries[i] = Entry{ID: i, Label: l}
	}
	return New(entries)
}

// ParseJSON reads a vocabulary in one of three shapes:
//
//	{"note_C4": 1, ...}   label -> id (what the inference process writes)
//	{"1": "note_C4", ...} id -> label
//	["blank", "note_C4"]  label list, id = index
func ParseJSON(data []byte) (*Table, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var labels []string
		if err := json.Unmarshal(trimmed, &labels); err != nil {
			return nil, fmt.Errorf("vocab: parse label list: %w", err)
		}
		return FromLabels(labels)
	}

	return parseObject(trimmed)
}

// shape of a JSON object vocabulary, fixed by its first member.
type shape int

const (
	shapeUnknown shape = iota
	shapeLabelToID
	shapeIDToLabel
)

// parseObject walks the object member by member so duplicate keys and
// mixed shapes are seen instead of collapsed by a map decode.
func parseObject(data []byte) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("vocab: parse: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("vocab: parse: expected object or array, got %v", tok)
	}

	var entries []Entry
	seen := make(map[string]bool)
	objShape := shapeUnknown

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("vocab: parse: %w", err)
		}
		key := keyTok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("vocab: parse %q: %w", key, err)
		}

		var e Entry
		var memberShape shape
		switch v := value.(type) {
		case json.Number:
			id, err := strconv.Atoi(v.String())
			if err != nil {
				return nil, fmt.Errorf("vocab: label %q has non-integer id %s", key, v)
			}
			e, memberShape = Entry{ID: id, Label: key}, shapeLabelToID
		case string:
			id, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("vocab: key %q is not a token id", key)
			}
			e, memberShape = Entry{ID: id, Label: v}, shapeIDToLabel
		default:
			return nil, fmt.Errorf("vocab: unsupported value for %q", key)
		}

		if objShape == shapeUnknown {
			objShape = memberShape
		} else if memberShape != objShape {
			return nil, fmt.Errorf("%w: member %q", ErrMixedShape, key)
		}

		if seen[key] {
			if objShape == shapeLabelToID {
				return nil, fmt.Errorf("%w: %q appears twice", ErrDuplicateLabel, key)
			}
			return nil, fmt.Errorf("%w: %s appears twice", ErrDuplicateID, key)
		}
		seen[key] = true

		entries = append(entries, e)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("vocab: parse: %w", err)
	}
	return New(entries)
}

// Load reads a vocabulary JSON file from disk.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	return ParseJSON(data)
}

// Default returns the vocabulary shipped with the binary.
func Default() (*Table, error) {
	return ParseJSON(embedded.VocabJSON)
}

// Label returns the label bound to id.
func (t *Table) Label(id int) (string, bool) {
	if id < 0 || id >= len(t.idToLabel) {
		return "", false
	}
	return t.idToLabel[id], true
}

// ID returns the id bound to label.
func (t *Table) ID(label string) (int, bool) {
	id, ok := t.labelToID[label]
	return id, ok
}

// LabelOrUnknown is Label with the Unknown sentinel on a miss.
func (t *Table) LabelOrUnknown(id int) string {
	if label, ok := t.Label(id); ok {
		return label
	}
	return Unknown
}

// Labels maps a decoded id sequence to labels, one per id.
func (t *Table) Labels(ids []int) []string {
	labels := make([]string, len(ids))
	for i, id := range ids {
		labels[i] = t.LabelOrUnknown(id)
	}
	return labels
}

// SemanticText renders ids as space-separated labels, the plain-text
// encoding consumed by external OMR engines. Unknown and blank ids are
// dropped.
func (t *Table) SemanticText(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == BlankID {
			continue
		}
		if label, ok := t.Label(id); ok {
			parts = append(parts, label)
		}
	}
	return strings.Join(parts, " ")
}

// Size returns the number of classes, i.e. the expected logits width.
func (t *Table) Size() int {
	return len(t.idToLabel)
}
