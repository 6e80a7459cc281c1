package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslatePath(t *testing.T) {
	path, params, ok := TranslatePath(Path("/users/:userId/posts/:postId"), nil)
	require.True(t, ok)
	assert.Equal(t, "/users/{userId}/posts/{postId}", path)
	assert.Equal(t, []Parameter{
		{Name: "userId", In: "path", Required: true},
		{Name: "postId", In: "path", Required: true},
	}, params)
}

func TestTranslatePathOverrides(t *testing.T) {
	overrides := map[string]Parameter{
		"id":     {Name: "other", In: "query", Required: false, Description: "Room identifier", Type: "string"},
		"unused": {Description: "never emitted"},
	}

	path, params, ok := TranslatePath(Path("/rooms/:id"), overrides)
	require.True(t, ok)
	assert.Equal(t, "/rooms/{id}", path)
	require.Len(t, params, 1)
	assert.Equal(t, Parameter{
		Name:        "id",
		In:          "path",
		Required:    true,
		Description: "Room identifier",
		Type:        "string",
	}, params[0])
}

func TestTranslatePathWithoutParams(t *testing.T) {
	path, params, ok := TranslatePath(Path("/api/health"), nil)
	require.True(t, ok)
	assert.Equal(t, "/api/health", path)
	assert.Empty(t, params)
}

func TestTranslatePathNoCanonicalPath(t *testing.T) {
	tests := []struct {
		name    string
		pattern PathPattern
	}{
		{"regexp", Regexp(`/files/{name:[a-z]+\.txt}`)},
		{"paths", Paths{"/a/:id", "/b/:id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, params, ok := TranslatePath(tt.pattern, nil)
			assert.False(t, ok)
			assert.Empty(t, path)
			assert.Nil(t, params)
		})
	}
}

func TestTranslateMethod(t *testing.T) {
	tests := []struct {
		verb Verb
		want APIMethod
		ok   bool
	}{
		{VerbGet, "get", true},
		{VerbPut, "put", true},
		{VerbPost, "post", true},
		{VerbDelete, "delete", true},
		{VerbOptions, "options", true},
		{VerbHead, "head", true},
		{VerbPatch, "patch", true},
		{VerbTrace, "trace", true},
		{VerbAll, "", false},
		{VerbMSearch, "", false},
		{VerbPurge, "", false},
		{Verb("connect"), "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.verb), func(t *testing.T) {
			got, ok := TranslateMethod(tt.verb)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChiPattern(t *testing.T) {
	assert.Equal(t, "/rooms/{id}/admin", ChiPattern("/rooms/:id/admin"))
	assert.Equal(t, "/rooms/*", ChiPattern("/rooms/*"))
	assert.Equal(t, []string{"/a/{x}", "/b"}, Paths{"/a/:x", "/b"}.chiPatterns())
	assert.Equal(t, []string{"/f/{n:[0-9]+}"}, Regexp("/f/{n:[0-9]+}").chiPatterns())
}

func TestVerbTable(t *testing.T) {
	assert.Equal(t, "M-SEARCH", VerbMSearch.Method())
	for _, v := range Verbs() {
		assert.True(t, v.supported(), v)
	}
	assert.True(t, VerbAll.supported())
	assert.False(t, Verb("brew").supported())
	assert.Len(t, Verbs(), 8+len(extensionVerbs))
}
