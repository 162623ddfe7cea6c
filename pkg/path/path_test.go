package path

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	tests := []struct {
		name string
		path Path
		want string
	}{
		{"root", Root(), "$"},
		{"single key", Root().Field("user"), "$.user"},
		{"nested keys", Root().Field("user").Field("name"), "$.user.name"},
		{"index", Root().Field("user").Field("addresses").At(0), "$.user.addresses[0]"},
		{"index then key", Root().Field("posts").At(2).Field("title"), "$.posts[2].title"},
		{"quoted key", Root().Field("odd key"), "$['odd key']"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.path.String())
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	paths := []Path{
		Root(),
		Root().Field("count"),
		Root().Field("user").Field("addresses").At(0).Field("city"),
		Root().Field("items").At(10),
	}
	for _, p := range paths {
		got, err := Parse(p.String())
		require.NoError(t, err, "parse %q", p.String())
		assert.True(t, got.Equal(p), "round trip %q -> %q", p.String(), got.String())
	}
}

func TestParse_Errors(t *testing.T) {
	for _, s := range []string{"user.*", "..name", "items[1:3]"} {
		_, err := Parse(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestHasPrefix(t *testing.T) {
	user := Root().Field("user")
	name := user.Field("name")

	assert.True(t, name.HasPrefix(user))
	assert.True(t, name.HasPrefix(Root()))
	assert.True(t, name.HasPrefix(name))
	assert.False(t, user.HasPrefix(name))
	assert.False(t, Root().Field("posts").HasPrefix(user))
}

func TestIsStrictPrefixOf(t *testing.T) {
	user := Root().Field("user")
	assert.True(t, user.IsStrictPrefixOf(user.Field("name")))
	assert.False(t, user.IsStrictPrefixOf(user))
	assert.True(t, Root().IsStrictPrefixOf(user))
}

func TestChild_DoesNotAliasParent(t *testing.T) {
	base := Root().Field("a")
	one := base.Field("b")
	two := base.Field("c")

	assert.Equal(t, "$.a.b", one.String())
	assert.Equal(t, "$.a.c", two.String())
	assert.Equal(t, "$.a", base.String())
}

func TestParentAndSegments(t *testing.T) {
	p := Root().Field("user").Field("addresses").At(1)
	require.Equal(t, 3, p.Len())
	assert.Equal(t, "$.user.addresses", p.Parent().String())
	assert.True(t, p.Segment(2).IsIndex())

	idx, ok := p.Segment(2).Index()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	_, ok = p.Segment(2).Key()
	assert.False(t, ok)

	key, ok := p.Segment(1).Key()
	assert.True(t, ok)
	assert.Equal(t, "addresses", key)
	assert.True(t, Root().Parent().IsRoot())
}

func TestSlashString(t *testing.T) {
	assert.Equal(t, "$", Root().SlashString())
	assert.Equal(t, "user/addresses/0", Root().Field("user").Field("addresses").At(0).SlashString())
}
