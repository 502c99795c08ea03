package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gitlab.com/nevasik7/alerting/logger"

	"tipstream/internal/domain"
	"tipstream/internal/extract"
	"tipstream/internal/service"
	"tipstream/pkg/httputil"
)

const defaultPageLimit = 20

type API struct {
	log logger.Logger
	svc *service.IndexerService
}

func NewAPI(log logger.Logger, svc *service.IndexerService) *API {
	return &API{log: log, svc: svc}
}

// IngestEvents is the chainhook webhook entry point. Body must be a
// JSON batch payload; anything unparsable is rejected with nothing
// appended. A parsable batch with no qualifying tips is fine.
func (a *API) IngestEvents(w http.ResponseWriter, r *http.Request) {
	var p extract.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		_ = httputil.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}

	indexed, err := a.svc.ProcessPayload(r.Context(), &p)
	if err != nil {
		a.log.Errorf("ingest failed: %v", err)
		_ = httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	_ = httputil.JSON(w, http.StatusOK, httputil.Envelope{"ok": true, "indexed": indexed})
}

func (a *API) ListTips(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)

	page, err := a.svc.ListTips(r.Context(), offset, limit)
	if err != nil {
		a.log.Errorf("list tips failed: %v", err)
		_ = httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	_ = httputil.JSON(w, http.StatusOK, tipPageBody(page))
}

func (a *API) TipsByUser(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	offset, limit := pageParams(r)

	page, err := a.svc.TipsByUser(r.Context(), addr, offset, limit)
	if err != nil {
		a.log.Errorf("tips by user failed: %v", err)
		_ = httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	_ = httputil.JSON(w, http.StatusOK, tipPageBody(page))
}

func (a *API) TipByID(w http.ResponseWriter, r *http.Request) {
	tipID, err := strconv.ParseUint(chi.URLParam(r, "tipID"), 10, 64)
	if err != nil {
		// the route pattern keeps non-digits out, this is belt and braces
		_ = httputil.Error(w, http.StatusNotFound, "tip not found")
		return
	}

	ev, err := a.svc.TipByID(r.Context(), tipID)
	if err != nil {
		if errors.Is(err, service.ErrTipNotFound) {
			_ = httputil.Error(w, http.StatusNotFound, "tip not found")
			return
		}
		a.log.Errorf("tip by id failed: %v", err)
		_ = httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	_ = httputil.JSON(w, http.StatusOK, ev)
}

func (a *API) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Stats(r.Context())
	if err != nil {
		a.log.Errorf("stats failed: %v", err)
		_ = httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	_ = httputil.JSON(w, http.StatusOK, stats)
}

func (a *API) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := a.svc.Leaderboard(r.Context())
	if err != nil {
		a.log.Errorf("leaderboard failed: %v", err)
		_ = httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	total := len(entries)
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n < len(entries) {
			entries = entries[:n]
		}
	}

	_ = httputil.JSON(w, http.StatusOK, httputil.Envelope{"entries": entries, "total": total})
}

func (a *API) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readiness fans out to every wired dependency.
func (a *API) Readiness(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.CheckDependency(r.Context()); err != nil {
		a.log.Warnf("readiness: %v", err)
		_ = httputil.Error(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func pageParams(r *http.Request) (offset, limit int) {
	limit = defaultPageLimit
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	return offset, limit
}

// tips is always a JSON array, never null, even when the page is empty.
func tipPageBody(p *service.TipPage) httputil.Envelope {
	tips := p.Tips
	if tips == nil {
		tips = []domain.TipEvent{}
	}
	return httputil.Envelope{"tips": tips, "total": p.Total}
}
