package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("valid schema", func(t *testing.T) {
		text := `[{"id":"a1b2c3d4","label":"API Key","type":"password","placeholder":"{{KEY}}"}]`
		fields, err := Parse(text)
		require.NoError(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, "API Key", fields[0].Label)
		assert.Equal(t, FieldTypePassword, fields[0].Type)
		assert.Equal(t, "{{KEY}}", fields[0].Placeholder)
	})

	t.Run("empty text is an empty schema", func(t *testing.T) {
		fields, err := Parse("")
		require.NoError(t, err)
		assert.Empty(t, fields)
	})

	t.Run("malformed text is surfaced, not emptied", func(t *testing.T) {
		_, err := Parse(`[{"label": "broken"`)
		assert.Error(t, err)
	})

	t.Run("missing type defaults to text", func(t *testing.T) {
		fields, err := Parse(`[{"id":"x","label":"Name","placeholder":"{{N}}"}]`)
		require.NoError(t, err)
		assert.Equal(t, FieldTypeText, fields[0].Type)
	})
}

func TestSerializeRoundTrip(t *testing.T) {
	fields := []FieldDescriptor{
		{ID: "11112222", Label: "Chat ID", Type: FieldTypeText, Placeholder: "{{CHAT}}"},
		{ID: "33334444", Label: "Bot Token", Type: FieldTypeCredential, Placeholder: "{{TOKEN}}"},
	}
	text, err := Serialize(fields)
	require.NoError(t, err)

	parsed, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, fields, parsed)
}

func TestSerializeNil(t *testing.T) {
	text, err := Serialize(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", text)
}

func TestEditorAddField(t *testing.T) {
	e := NewEditor(nil)
	f := e.AddField()

	assert.Len(t, f.ID, 8)
	assert.Equal(t, FieldTypeText, f.Type)
	assert.Empty(t, f.Label)
	assert.Empty(t, f.Placeholder)
	assert.Equal(t, 1, e.Len())

	// ids are fresh per field
	g := e.AddField()
	assert.NotEqual(t, f.ID, g.ID)
}

func TestEditorUpdateField(t *testing.T) {
	e := NewEditor(nil)
	e.AddField()

	label := "Telegram Account"
	placeholder := "zzI60nCS38c38MsJ"
	typ := FieldTypeCredential
	e.UpdateField(0, FieldChanges{Label: &label, Placeholder: &placeholder, Type: &typ})

	f := e.Fields()[0]
	assert.Equal(t, label, f.Label)
	assert.Equal(t, placeholder, f.Placeholder)
	assert.Equal(t, typ, f.Type)

	// partial update keeps the rest
	other := "Renamed"
	e.UpdateField(0, FieldChanges{Label: &other})
	f = e.Fields()[0]
	assert.Equal(t, "Renamed", f.Label)
	assert.Equal(t, placeholder, f.Placeholder)
}

func TestEditorUpdateFieldOutOfRange(t *testing.T) {
	e := NewEditor(nil)
	e.AddField()
	before := e.Fields()

	label := "ignored"
	e.UpdateField(5, FieldChanges{Label: &label})
	e.UpdateField(-1, FieldChanges{Label: &label})

	assert.Equal(t, before, e.Fields())
}

func TestEditorRemoveField(t *testing.T) {
	e := NewEditor([]FieldDescriptor{
		{ID: "a", Label: "first"},
		{ID: "b", Label: "second"},
		{ID: "c", Label: "third"},
	})

	e.RemoveField(1)

	fields := e.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "first", fields[0].Label)
	assert.Equal(t, "third", fields[1].Label)

	// out of range is a no-op
	e.RemoveField(7)
	assert.Equal(t, 2, e.Len())
}

func TestLoadRejectsMalformedSchema(t *testing.T) {
	_, err := Load("{not json")
	assert.Error(t, err)
}
