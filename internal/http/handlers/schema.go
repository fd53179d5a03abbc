package handlers

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/invopop/jsonschema"

	"postergen/internal/domain"
)

var schemaTypes = map[string]any{
	"rephrase-request":   rephraseRequest{},
	"generation-request": generateInput{},
	"generation-record":  domain.GenerationRecord{},
	"upscale-result":     domain.UpscaleResult{},
}

// Schema serves the JSON schema of an API payload by name.
func (a *App) Schema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, ok := schemaTypes[name]
	if !ok {
		names := make([]string, 0, len(schemaTypes))
		for n := range schemaTypes {
			names = append(names, n)
		}
		sort.Strings(names)
		a.json(w, http.StatusNotFound, map[string]any{
			"error":     "not_found",
			"message":   "unknown schema " + name,
			"available": names,
		})
		return
	}
	reflector := &jsonschema.Reflector{ExpandedStruct: true}
	a.json(w, http.StatusOK, reflector.Reflect(v))
}
