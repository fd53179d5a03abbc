package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status": "ok",
		"services": map[string]bool{
			"rephrase": a.Rephraser != nil,
			"generate": a.Generator != nil,
			"upscale":  a.Upscaler != nil,
			"history":  a.History != nil,
		},
	})
}
