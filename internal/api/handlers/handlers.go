package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/psp-ledger/internal/api/middleware"
	"github.com/dvloznov/psp-ledger/internal/cache"
	"github.com/dvloznov/psp-ledger/internal/reporting"
	"github.com/rs/zerolog"
)

// cachedJSON serves GET payloads from a namespaced cache keyed by path and query.
type cachedJSON struct {
	cache cache.Cache
	log   zerolog.Logger
}

// serve writes the cached body for r when present. Otherwise it calls build,
// stores the encoded result and writes it. The key carries the namespace
// generation read before build runs, so a result built while the namespace was
// being invalidated is never served. Cache failures are logged and never fail
// the request.
func (c cachedJSON) serve(w http.ResponseWriter, r *http.Request, namespace string, build func() (interface{}, error)) error {
	ctx := r.Context()
	key := cache.KeyFromQuery(r.URL.Path, r.URL.Query())

	cacheable := true
	gen, err := c.cache.Generation(ctx, namespace)
	if err != nil {
		cacheable = false
		c.log.Warn().Err(err).Str("namespace", namespace).Msg("Cache generation read failed")
	}
	key = cache.VersionedKey(gen, key)

	if cacheable {
		body, ok, err := c.cache.Get(ctx, namespace, key)
		if err != nil {
			c.log.Warn().Err(err).Str("namespace", namespace).Str("key", key).Msg("Cache read failed")
		} else if ok {
			w.Header().Set("X-Cache", "HIT")
			writeBody(w, http.StatusOK, body)
			return nil
		}
	}

	data, err := build()
	if err != nil {
		return err
	}

	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if cacheable {
		if err := c.cache.Set(ctx, namespace, key, body); err != nil {
			c.log.Warn().Err(err).Str("namespace", namespace).Str("key", key).Msg("Cache write failed")
		}
	}

	w.Header().Set("X-Cache", "MISS")
	writeBody(w, http.StatusOK, body)
	return nil
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
	w.Write([]byte("\n"))
}

// writeServiceError maps a service error to a JSON error response.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error, message string) {
	if errors.Is(err, reporting.ErrInvalidQuery) {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Error().Err(err).Msg(message)
	middleware.WriteError(w, http.StatusInternalServerError, message)
}

// parseDateParam parses an optional YYYY-MM-DD query parameter.
func parseDateParam(r *http.Request, name string) (civil.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return civil.Date{}, nil
	}
	d, err := civil.ParseDate(v)
	if err != nil {
		return civil.Date{}, errInvalidDate(name)
	}
	return d, nil
}

type errInvalidDate string

func (e errInvalidDate) Error() string {
	return "Invalid " + string(e) + " format. Use YYYY-MM-DD"
}

// parseQuery reads start_date, end_date and psp.
func parseQuery(r *http.Request) (reporting.Query, error) {
	start, err := parseDateParam(r, "start_date")
	if err != nil {
		return reporting.Query{}, err
	}
	end, err := parseDateParam(r, "end_date")
	if err != nil {
		return reporting.Query{}, err
	}
	q := reporting.Query{
		StartDate: start,
		EndDate:   end,
		PSP:       strings.TrimSpace(r.URL.Query().Get("psp")),
	}
	if err := q.Validate(); err != nil {
		return reporting.Query{}, err
	}
	return q, nil
}

// MethodHandler dispatches on the request method and answers 405 otherwise.
type MethodHandler map[string]http.HandlerFunc

func (m MethodHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := m[r.Method]; ok {
		h(w, r)
		return
	}
	middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
