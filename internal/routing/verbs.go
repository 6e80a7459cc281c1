package routing

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Verb is a lower-case HTTP verb a route can be declared on.
type Verb string

// Standard verbs, representable in API metadata.
const (
	VerbGet     Verb = "get"
	VerbPut     Verb = "put"
	VerbPost    Verb = "post"
	VerbDelete  Verb = "delete"
	VerbOptions Verb = "options"
	VerbHead    Verb = "head"
	VerbPatch   Verb = "patch"
	VerbTrace   Verb = "trace"
)

// VerbAll matches every method chi knows about.
const VerbAll Verb = "all"

// Extension verbs, registered with chi at init.
const (
	VerbCheckout    Verb = "checkout"
	VerbCopy        Verb = "copy"
	VerbLock        Verb = "lock"
	VerbMerge       Verb = "merge"
	VerbMkActivity  Verb = "mkactivity"
	VerbMkCol       Verb = "mkcol"
	VerbMove        Verb = "move"
	VerbMSearch     Verb = "m-search"
	VerbNotify      Verb = "notify"
	VerbPurge       Verb = "purge"
	VerbReport      Verb = "report"
	VerbSearch      Verb = "search"
	VerbSubscribe   Verb = "subscribe"
	VerbUnlock      Verb = "unlock"
	VerbUnsubscribe Verb = "unsubscribe"
)

var extensionVerbs = []Verb{
	VerbCheckout, VerbCopy, VerbLock, VerbMerge, VerbMkActivity, VerbMkCol,
	VerbMove, VerbMSearch, VerbNotify, VerbPurge, VerbReport, VerbSearch,
	VerbSubscribe, VerbUnlock, VerbUnsubscribe,
}

// verbRegistrar registers h for one verb on app.
type verbRegistrar func(app chi.Router, pattern string, h http.HandlerFunc)

// verbTable is the only place verbs are mapped to chi calls. It is built by
// a variable initializer so route tables declared in package-level vars,
// anywhere, see it populated.
var verbTable = newVerbTable()

func newVerbTable() map[Verb]verbRegistrar {
	table := map[Verb]verbRegistrar{
		VerbGet:     func(app chi.Router, p string, h http.HandlerFunc) { app.Get(p, h) },
		VerbPut:     func(app chi.Router, p string, h http.HandlerFunc) { app.Put(p, h) },
		VerbPost:    func(app chi.Router, p string, h http.HandlerFunc) { app.Post(p, h) },
		VerbDelete:  func(app chi.Router, p string, h http.HandlerFunc) { app.Delete(p, h) },
		VerbOptions: func(app chi.Router, p string, h http.HandlerFunc) { app.Options(p, h) },
		VerbHead:    func(app chi.Router, p string, h http.HandlerFunc) { app.Head(p, h) },
		VerbPatch:   func(app chi.Router, p string, h http.HandlerFunc) { app.Patch(p, h) },
		VerbTrace:   func(app chi.Router, p string, h http.HandlerFunc) { app.Trace(p, h) },
		VerbAll:     func(app chi.Router, p string, h http.HandlerFunc) { app.HandleFunc(p, h) },
	}

	for _, v := range extensionVerbs {
		method := v.Method()
		chi.RegisterMethod(method)
		table[v] = func(app chi.Router, p string, h http.HandlerFunc) { app.MethodFunc(method, p, h) }
	}
	return table
}

// Method returns the request method for v, e.g. "M-SEARCH".
func (v Verb) Method() string {
	return strings.ToUpper(string(v))
}

// Verbs lists every declarable verb except VerbAll.
func Verbs() []Verb {
	out := []Verb{VerbGet, VerbPut, VerbPost, VerbDelete, VerbOptions, VerbHead, VerbPatch, VerbTrace}
	return append(out, extensionVerbs...)
}

func (v Verb) supported() bool {
	_, ok := verbTable[v]
	return ok
}
