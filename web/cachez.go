package web

import (
	"net/http"

	"github.com/mtraver/sensorstats/cache"
)

type cachezHandler struct {
	Cache cache.Cache
}

func (h cachezHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.Cache.Stats())
}
