package routing

import (
	"context"
	"log/slog"
)

// APIMethod is a lower-case HTTP method as used in API documents.
type APIMethod string

// Parameter describes one operation parameter.
type Parameter struct {
	Name        string `json:"name"`
	In          string `json:"in"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
}

// Response describes one operation response.
type Response struct {
	Description string `json:"description"`
}

// Metadata is the optional documentation attached to a route declaration.
type Metadata struct {
	Description string
	// Parameters overrides the inferred path parameters by name.
	Parameters map[string]Parameter
	// Responses defaults to {"default": {Description: ""}}.
	Responses map[string]Response
}

// APIMetadata is emitted once for every standard-verb route registered
// on a canonical path.
type APIMetadata struct {
	Description string              `json:"description"`
	Method      APIMethod           `json:"method"`
	Path        string              `json:"path"`
	Parameters  []Parameter         `json:"parameters"`
	Responses   map[string]Response `json:"responses"`
	Controller  string              `json:"controller,omitempty"`
	Handler     string              `json:"handler,omitempty"`
}

// MetadataConsumer receives API metadata as routes are registered.
type MetadataConsumer func(APIMetadata)

func defaultResponses() map[string]Response {
	return map[string]Response{"default": {Description: ""}}
}

// emitMetadata forwards the metadata for one registration to consume.
// Untranslatable verbs and paths are skipped.
func emitMetadata(ctx context.Context, logger *slog.Logger, consume MetadataConsumer, r *route) {
	if consume == nil {
		return
	}

	method, ok := TranslateMethod(r.verb)
	if !ok {
		logger.DebugContext(ctx, "Skipping metadata for non-standard verb",
			slog.String("verb", string(r.verb)),
			slog.String("handler", r.handler.name))
		return
	}
	path, params, ok := TranslatePath(r.pattern, r.meta.Parameters)
	if !ok {
		logger.DebugContext(ctx, "Skipping metadata for non-literal path",
			slog.String("verb", string(r.verb)),
			slog.String("handler", r.handler.name))
		return
	}

	// Only an absent map gets the default; an explicit empty one is kept.
	responses := r.meta.Responses
	if responses == nil {
		responses = defaultResponses()
	}

	consume(APIMetadata{
		Description: r.meta.Description,
		Method:      method,
		Path:        path,
		Parameters:  params,
		Responses:   responses,
		Controller:  r.handler.class.String(),
		Handler:     r.handler.name,
	})
}
