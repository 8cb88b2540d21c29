package schema

// FieldChanges carries a partial edit to a field descriptor. Nil fields are
// left untouched.
type FieldChanges struct {
	Label       *string
	Type        *FieldType
	Placeholder *string
}

// Editor holds an input schema while an admin edits it. The in-memory list
// is authoritative until the next load; saving serializes it and sends it
// to storage wholesale.
type Editor struct {
	fields []FieldDescriptor
}

// NewEditor starts an editing session from an already parsed schema.
func NewEditor(fields []FieldDescriptor) *Editor {
	e := &Editor{fields: make([]FieldDescriptor, len(fields))}
	copy(e.fields, fields)
	return e
}

// Load starts an editing session from persisted schema text. Parse failures
// are surfaced, not degraded to an empty form.
func Load(text string) (*Editor, error) {
	fields, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return NewEditor(fields), nil
}

// AddField appends a blank descriptor with a fresh short id and default
// type "text". There is no maximum field count.
func (e *Editor) AddField() FieldDescriptor {
	f := FieldDescriptor{ID: NewFieldID(), Type: FieldTypeText}
	e.fields = append(e.fields, f)
	return f
}

// UpdateField merges changes into the descriptor at index. An out-of-range
// index is a no-op; guarding is the caller's job.
func (e *Editor) UpdateField(index int, changes FieldChanges) {
	if index < 0 || index >= len(e.fields) {
		return
	}
	f := &e.fields[index]
	if changes.Label != nil {
		f.Label = *changes.Label
	}
	if changes.Type != nil {
		f.Type = *changes.Type
	}
	if changes.Placeholder != nil {
		f.Placeholder = *changes.Placeholder
	}
}

// RemoveField deletes the descriptor at index, shifting later fields down.
// Out-of-range indices are a no-op.
func (e *Editor) RemoveField(index int) {
	if index < 0 || index >= len(e.fields) {
		return
	}
	e.fields = append(e.fields[:index], e.fields[index+1:]...)
}

// Fields returns the descriptors in presentation order.
func (e *Editor) Fields() []FieldDescriptor {
	out := make([]FieldDescriptor, len(e.fields))
	copy(out, e.fields)
	return out
}

// Len returns the number of fields.
func (e *Editor) Len() int { return len(e.fields) }

// Serialize renders the current state to its persisted form.
func (e *Editor) Serialize() (string, error) {
	return Serialize(e.fields)
}
