package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/auth"
	"github.com/cnwhli/CF-Worker-BestIP-collector/internal/pipeline"
)

// Handler is the HTTP handler for the collector's control surface.
// Reads are open; mutations go through the credential manager.
type Handler struct {
	orch *pipeline.Orchestrator
	auth *auth.Manager
	mux  *http.ServeMux
}

// New creates a Handler wired to the given orchestrator and credential
// manager and registers all routes.
func New(orch *pipeline.Orchestrator, am *auth.Manager) http.Handler {
	h := &Handler{orch: orch, auth: am, mux: http.NewServeMux()}

	h.mux.HandleFunc("/", h.summary)
	h.mux.HandleFunc("/update", h.update)
	h.mux.HandleFunc("/ips", h.ipsText)
	h.mux.HandleFunc("/ip.txt", h.ipsText)
	h.mux.HandleFunc("/raw", h.raw)
	h.mux.HandleFunc("/speedtest", h.speedTest)
	h.mux.HandleFunc("/fast-ips", h.fastIPs)
	h.mux.HandleFunc("/fast-ips.txt", h.fastIPsText)
	h.mux.HandleFunc("/itdog-data", h.itdogData)
	h.mux.HandleFunc("/admin-login", h.adminLogin)
	h.mux.HandleFunc("/admin-logout", h.adminLogout)
	h.mux.HandleFunc("/admin-status", h.adminStatus)
	h.mux.HandleFunc("/admin-token", h.adminToken)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Browser front ends are served from other origins; answer preflight
	// here so no route has to.
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Token")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// summary returns GET / — pool counts and gate status.
func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		jsonErr(w, http.StatusNotFound, "endpoint not found")
		return
	}
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap, err := h.orch.Collection(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	ranked, err := h.orch.Ranked(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := SummaryResponse{
		AddressCount:     len(snap.Addresses),
		FastCount:        len(ranked.Best),
		HasAdminPassword: h.auth.PasswordConfigured(),
	}
	if !snap.CollectedAt.IsZero() {
		t := snap.CollectedAt
		resp.LastUpdated = &t
	}
	if !ranked.ProbedAt.IsZero() {
		t := ranked.ProbedAt
		resp.LastProbed = &t
	}
	jsonResp(w, http.StatusOK, resp)
}

// update handles POST /update — gated trigger of a full collect+probe run.
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.auth.AuthorizeRequest(r.Context(), r) {
		jsonErr(w, http.StatusUnauthorized, "admin credentials required")
		return
	}

	snap, _, err := h.orch.RunFull(r.Context())
	if err != nil {
		slog.Error("api: update run failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, UpdateResponse{Success: true, Count: len(snap.Addresses)})
}

// ipsText returns GET /ips and /ip.txt — one collected address per line.
func (h *Handler) ipsText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap, err := h.orch.Collection(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	lines := make([]string, len(snap.Addresses))
	for i, rec := range snap.Addresses {
		lines[i] = rec.Address
	}
	textResp(w, strings.Join(lines, "\n"))
}

// raw returns GET /raw — the full CollectionSnapshot.
func (h *Handler) raw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap, err := h.orch.Collection(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, snap)
}

// speedTest handles GET /speedtest?ip=<addr> — probes one address and
// patches its stored latency.
func (h *Handler) speedTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	addr := r.URL.Query().Get("ip")
	if addr == "" {
		jsonErr(w, http.StatusBadRequest, "missing ip parameter")
		return
	}

	res, err := h.orch.ProbeOne(r.Context(), addr)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, SpeedTestResponse{
		Address:   res.Address,
		LatencyMs: res.LatencyMs,
		Error:     res.Err,
	})
}

// fastIPs returns GET /fast-ips — the current RankedSnapshot.
func (h *Handler) fastIPs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ranked, err := h.orch.Ranked(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, ranked)
}

// fastIPsText returns GET /fast-ips.txt — one top-ranked address per line.
func (h *Handler) fastIPsText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ranked, err := h.orch.Ranked(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	lines := make([]string, len(ranked.Best))
	for i, rec := range ranked.Best {
		lines[i] = rec.Address
	}
	textResp(w, strings.Join(lines, "\n"))
}

// itdogData returns GET /itdog-data — collected addresses as host:443
// lines for bulk latency testers.
func (h *Handler) itdogData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap, err := h.orch.Collection(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	lines := make([]string, len(snap.Addresses))
	for i, rec := range snap.Addresses {
		lines[i] = fmt.Sprintf("%s:443", rec.Address)
	}
	textResp(w, strings.Join(lines, "\n"))
}

// adminLogin handles POST /admin-login — password in, session id out.
func (h *Handler) adminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID, token, err := h.auth.Login(r.Context(), req.Password)
	switch {
	case errors.Is(err, auth.ErrNoPasswordConfigured):
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		jsonErr(w, http.StatusUnauthorized, "invalid password")
		return
	case err != nil:
		slog.Error("api: login failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "login failed")
		return
	}

	jsonResp(w, http.StatusOK, LoginResponse{
		Success:   true,
		SessionID: sessionID,
		Token:     toTokenView(token),
	})
}

// adminLogout handles POST /admin-logout — revokes the presented
// session. Always succeeds; logging out twice is a no-op.
func (h *Handler) adminLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.auth.Logout(r.Context(), r)
	jsonResp(w, http.StatusOK, LogoutResponse{Success: true})
}

// adminStatus returns GET /admin-status — gate configuration and
// non-secret token metadata. Open by convention so the front end can
// decide which controls to show.
func (h *Handler) adminStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token, err := h.auth.Token(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "status unavailable")
		return
	}
	jsonResp(w, http.StatusOK, StatusResponse{
		HasAdminPassword: h.auth.PasswordConfigured(),
		HasToken:         token != nil,
		Token:            toTokenMeta(token),
	})
}

// adminToken handles /admin-token — GET reads the full token config,
// POST replaces it. Both require authorization.
func (h *Handler) adminToken(w http.ResponseWriter, r *http.Request) {
	if !h.auth.AuthorizeRequest(r.Context(), r) {
		jsonErr(w, http.StatusUnauthorized, "admin credentials required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		token, err := h.auth.Token(r.Context())
		if err != nil {
			jsonErr(w, http.StatusInternalServerError, "token unavailable")
			return
		}
		jsonResp(w, http.StatusOK, TokenResponse{Success: true, Token: toTokenView(token)})

	case http.MethodPost:
		var req TokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid request body")
			return
		}
		token, err := h.auth.SetAccessToken(r.Context(), req.Token, req.ExpiresDays, req.NeverExpire)
		if errors.Is(err, auth.ErrInvalidInput) {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			slog.Error("api: set token failed", "err", err)
			jsonErr(w, http.StatusInternalServerError, "token update failed")
			return
		}
		jsonResp(w, http.StatusOK, TokenResponse{Success: true, Token: toTokenView(token)})

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func textResp(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
