package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQName(t *testing.T) {
	for _, tc := range []struct {
		description string
		name        string
		expectErr   bool
	}{
		{description: "single segment", name: "Assets"},
		{description: "nested segments", name: "Assets:Bank:Checking"},
		{description: "empty name", name: "", expectErr: true},
		{description: "empty middle segment", name: "Assets::Checking", expectErr: true},
		{description: "trailing delimiter", name: "Assets:", expectErr: true},
		{description: "leading delimiter", name: ":Assets", expectErr: true},
	} {
		t.Run(tc.description, func(t *testing.T) {
			q, err := ParseQName(tc.name)
			if tc.expectErr {
				require.Error(t, err)
				assert.IsType(t, InvalidNameError{}, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.name, q.String())
		})
	}
}

func TestQNameFromSegments(t *testing.T) {
	q, err := QNameFromSegments("Assets", "Bank", "Checking")
	require.NoError(t, err)
	assert.Equal(t, "Assets:Bank:Checking", q.String())

	_, err = QNameFromSegments()
	assert.Error(t, err)
	_, err = QNameFromSegments("Assets", "")
	assert.Error(t, err)
	_, err = QNameFromSegments("Assets:Bank")
	assert.Error(t, err)
}

func TestQNameParts(t *testing.T) {
	q := MustParseQName("Assets:Bank:Checking")
	assert.Equal(t, []string{"Assets", "Bank", "Checking"}, q.Segments())
	assert.Equal(t, "Checking", q.Base())
	assert.Equal(t, 3, q.Depth())

	parent, ok := q.Parent()
	require.True(t, ok)
	assert.Equal(t, "Assets:Bank", parent.String())

	top := MustParseQName("Assets")
	_, ok = top.Parent()
	assert.False(t, ok)
	assert.Equal(t, "Assets", top.Base())
	assert.Equal(t, 1, top.Depth())
}

func TestQNameDescendants(t *testing.T) {
	for _, tc := range []struct {
		description    string
		child, parent  string
		descendant     bool
		equalOrDescend bool
	}{
		{description: "direct child", child: "Assets:Bank", parent: "Assets", descendant: true, equalOrDescend: true},
		{description: "deep descendant", child: "Assets:Bank:Checking", parent: "Assets", descendant: true, equalOrDescend: true},
		{description: "same name", child: "Assets", parent: "Assets", descendant: false, equalOrDescend: true},
		{description: "prefix but not segment boundary", child: "Assets2:Bank", parent: "Assets", descendant: false, equalOrDescend: false},
		{description: "unrelated", child: "Expenses:Food", parent: "Assets", descendant: false, equalOrDescend: false},
		{description: "inverted", child: "Assets", parent: "Assets:Bank", descendant: false, equalOrDescend: false},
	} {
		t.Run(tc.description, func(t *testing.T) {
			child, parent := MustParseQName(tc.child), MustParseQName(tc.parent)
			assert.Equal(t, tc.descendant, child.IsDescendantOf(parent))
			assert.Equal(t, tc.equalOrDescend, child.IsEqualOrDescendantOf(parent))
		})
	}
}

func TestQNameLess(t *testing.T) {
	assert.True(t, MustParseQName("Assets").Less(MustParseQName("Assets:Bank")))
	assert.False(t, MustParseQName("Assets:Bank").Less(MustParseQName("Assets")))
	assert.True(t, MustParseQName("Assets:Bank").Less(MustParseQName("Assets:Cash")))
	assert.False(t, MustParseQName("Assets").Less(MustParseQName("Assets")))
}

func TestCategoryOrderLess(t *testing.T) {
	order := DefaultCategoryOrder
	// Liabilities sorts before Expenses despite alphabetical order
	assert.True(t, order.Less(MustParseQName("Liabilities:Visa"), MustParseQName("Expenses:Food")))
	// unlisted categories sort after all listed ones
	assert.True(t, order.Less(MustParseQName("Expenses:Food"), MustParseQName("Custom:Thing")))
	// within a category, segment order applies
	assert.True(t, order.Less(MustParseQName("Assets:Bank"), MustParseQName("Assets:Cash")))
}

func TestQNameTextMarshaling(t *testing.T) {
	q := MustParseQName("Assets:Bank")
	text, err := q.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Assets:Bank", string(text))

	var decoded QName
	require.NoError(t, decoded.UnmarshalText([]byte("Expenses:Food")))
	assert.Equal(t, "Expenses:Food", decoded.String())
	assert.Error(t, decoded.UnmarshalText([]byte("bad::name")))
}
