package openapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/render"
	"github.com/go-openapi/spec"

	"routekit/internal/config"
	"routekit/internal/routing"
)

// Collector accumulates route metadata and renders it as a Swagger 2.0
// document. Its Consume method is a routing.MetadataConsumer.
type Collector struct {
	cfg config.DocsConfig

	mu      sync.RWMutex
	records []routing.APIMetadata
}

// NewCollector creates an empty collector
func NewCollector(cfg config.DocsConfig) *Collector {
	return &Collector{cfg: cfg}
}

// Consume records one route's metadata.
func (c *Collector) Consume(md routing.APIMetadata) {
	c.mu.Lock()
	c.records = append(c.records, md)
	c.mu.Unlock()
}

// Records returns every record received so far, in arrival order
func (c *Collector) Records() []routing.APIMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]routing.APIMetadata, len(c.records))
	copy(out, c.records)
	return out
}

// Reset drops every record, for reloads
func (c *Collector) Reset() {
	c.mu.Lock()
	c.records = nil
	c.mu.Unlock()
}

// Swagger builds the document. Swagger 2.0 has no trace operation, so
// trace records stay in Records but are left out.
func (c *Collector) Swagger() *spec.Swagger {
	doc := &spec.Swagger{
		SwaggerProps: spec.SwaggerProps{
			Swagger:  "2.0",
			BasePath: c.cfg.BasePath,
			Consumes: []string{"application/json"},
			Produces: []string{"application/json"},
			Info: &spec.Info{
				InfoProps: spec.InfoProps{
					Title:       c.cfg.Title,
					Version:     c.cfg.Version,
					Description: c.cfg.Description,
				},
			},
			Paths: &spec.Paths{Paths: make(map[string]spec.PathItem)},
		},
	}

	tags := make(map[string]struct{})
	ids := make(map[string]struct{})
	for _, md := range c.Records() {
		if !documented(md.Method) {
			continue
		}
		tag := controllerTag(md.Controller)

		id := operationID(tag, md.Handler, md.Method)
		if _, dup := ids[id]; dup {
			id += strings.ToUpper(string(md.Method[:1])) + string(md.Method[1:]) + strings.NewReplacer("/", "_", "{", "", "}", "").Replace(md.Path)
		}
		ids[id] = struct{}{}
		op := operation(md, tag, id)

		item := doc.Paths.Paths[md.Path]
		setOperation(&item, md.Method, op)
		doc.Paths.Paths[md.Path] = item
		if tag != "" {
			tags[tag] = struct{}{}
		}
	}

	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		doc.Tags = append(doc.Tags, spec.NewTag(name, "", nil))
	}

	return doc
}

// JSON renders the document
func (c *Collector) JSON() ([]byte, error) {
	return json.MarshalIndent(c.Swagger(), "", "  ")
}

// Handler serves the document as JSON
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, c.Swagger())
	}
}

func operation(md routing.APIMetadata, tag, id string) *spec.Operation {
	op := spec.NewOperation(id).
		WithDescription(md.Description)
	if tag != "" {
		op.WithTags(tag)
	}

	for _, p := range md.Parameters {
		param := spec.PathParam(p.Name)
		if p.In != "" {
			param.In = p.In
		}
		param.Required = p.Required
		typ := p.Type
		if typ == "" {
			typ = "string"
		}
		param.Typed(typ, "").WithDescription(p.Description)
		op.AddParam(param)
	}

	keys := make([]string, 0, len(md.Responses))
	for key := range md.Responses {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		resp := spec.NewResponse().WithDescription(md.Responses[key].Description)
		if key == "default" {
			op.WithDefaultResponse(resp)
			continue
		}
		if code, err := strconv.Atoi(key); err == nil {
			op.RespondsWith(code, resp)
		}
	}

	return op
}

// documented reports whether Swagger 2.0 has a slot for method.
func documented(method routing.APIMethod) bool {
	switch method {
	case "get", "put", "post", "delete", "options", "head", "patch":
		return true
	}
	return false
}

func setOperation(item *spec.PathItem, method routing.APIMethod, op *spec.Operation) {
	switch method {
	case "get":
		item.Get = op
	case "put":
		item.Put = op
	case "post":
		item.Post = op
	case "delete":
		item.Delete = op
	case "options":
		item.Options = op
	case "head":
		item.Head = op
	case "patch":
		item.Patch = op
	}
}

// controllerTag turns "*http.HealthController" into "Health".
func controllerTag(controller string) string {
	name := strings.TrimLeft(controller, "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "Controller")
}

func operationID(tag, handler string, method routing.APIMethod) string {
	if handler == "" {
		return string(method) + tag
	}
	if tag == "" {
		return handler
	}
	return strings.ToLower(tag[:1]) + tag[1:] + handler
}
