package routing

import (
	"regexp"
)

// PathPattern is a route path as declared on a controller.
type PathPattern interface {
	// chiPatterns returns the patterns handed to chi for registration.
	chiPatterns() []string
}

// Path is a literal route with ":name" parameters, e.g. "/users/:id".
type Path string

// Regexp is a chi pattern whose parameters carry regular expressions,
// e.g. "/files/{name:[a-z]+\\.txt}". It has no canonical API path.
type Regexp string

// Paths registers the same handler on several ":name" style routes.
// It has no canonical API path.
type Paths []string

func (p Path) chiPatterns() []string { return []string{ChiPattern(string(p))} }

func (p Regexp) chiPatterns() []string { return []string{string(p)} }

func (p Paths) chiPatterns() []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = ChiPattern(s)
	}
	return out
}

var pathParamPattern = regexp.MustCompile(`:([A-Za-z0-9_]+)`)

// ChiPattern rewrites ":name" parameters to chi's "{name}" form.
func ChiPattern(path string) string {
	return pathParamPattern.ReplaceAllString(path, "{$1}")
}

// TranslatePath converts p into an API path and one required path parameter
// per ":name" segment, each merged over the caller's override for that name.
// Only Path patterns have a canonical API path; the third result is false
// for everything else.
func TranslatePath(p PathPattern, overrides map[string]Parameter) (string, []Parameter, bool) {
	path, ok := p.(Path)
	if !ok {
		return "", nil, false
	}

	matches := pathParamPattern.FindAllStringSubmatch(string(path), -1)
	params := make([]Parameter, 0, len(matches))
	for _, m := range matches {
		param := overrides[m[1]]
		param.Name = m[1]
		param.In = "path"
		param.Required = true
		params = append(params, param)
	}

	return ChiPattern(string(path)), params, true
}

// TranslateMethod maps a verb to its API method. Verbs outside the standard
// HTTP set are not representable.
func TranslateMethod(v Verb) (APIMethod, bool) {
	switch v {
	case VerbGet, VerbPut, VerbPost, VerbDelete, VerbOptions, VerbHead, VerbPatch, VerbTrace:
		return APIMethod(v), true
	default:
		return "", false
	}
}
