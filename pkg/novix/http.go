package novix

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/novix-ai/novix/pkg/novix/converters"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
)

const maxBodyBytes = 1 << 20

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"sessions": a.Registry.Len(),
	})
}

func (a *App) handleListSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, converters.Success(a.Registry.List()))
}

func (a *App) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := a.Registry.Create(r.Context())
	if err != nil {
		respondError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusCreated, converters.Success(s.ID))
}

func (a *App) handleInteract(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	var req converters.InteractRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, err, nil)
		return
	}

	fragments, err := a.Dispatcher.Interact(r.Context(), sessionID, req.Message)

	verbose, _ := strconv.ParseBool(r.URL.Query().Get("verbose"))
	var data interface{} = converters.FragmentTexts(fragments)
	if verbose {
		data = fragments
	}

	if err != nil {
		if len(fragments) == 0 {
			data = nil
		}
		respondError(w, err, data)
		return
	}
	respondJSON(w, http.StatusOK, converters.Success(data))
}

func (a *App) handleRemoveSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	if !a.Registry.Delete(sessionID) {
		respondError(w, apperrors.New(apperrors.ErrCodeSessionNotFound,
			fmt.Sprintf("Session not found: %s", sessionID), nil), nil)
		return
	}
	respondJSON(w, http.StatusOK, converters.SuccessMsg("Session removed"))
}

func (a *App) handleAddWallet(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	var req converters.AddWalletRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, err, nil)
		return
	}

	s, err := a.Registry.AttachWallet(r.Context(), sessionID, req.PrivateKey)
	if err != nil {
		respondError(w, err, nil)
		return
	}

	respondJSON(w, http.StatusOK, converters.Success(walletAdded(s.ID, s.Binding())))
}

// decodeBody reads a JSON request body into v. An empty body leaves v zero
// so that field validation reports what is missing.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "Malformed request body", err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, err error, data interface{}) {
	respondJSON(w, converters.HTTPStatus(err), converters.Failure(err, data))
}

// loggingMiddleware puts the app logger into the request context and logs
// each request at V(1).
func (a *App) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := a.log.WithValues("method", r.Method, "path", r.URL.Path)
		r = r.WithContext(ctrllog.IntoContext(r.Context(), log))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		log.V(1).Info("Handled request", "status", rec.status, "duration", time.Since(start))
	})
}

// corsMiddleware allows browser clients from the configured origins
func (a *App) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && a.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *App) originAllowed(origin string) bool {
	allowed := a.Settings.Server.AllowedOrigins
	return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the socket upgrade take over the connection
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
