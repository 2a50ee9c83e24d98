package main

import (
	"crypto/subtle"
	"net"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agentarena/pkg/bridge"
	"agentarena/pkg/config"
	"agentarena/pkg/ipc"
	"agentarena/pkg/sim"
	"agentarena/pkg/wire"
)

func buildRouter(hub *sim.Hub, cfg *config.Config) http.Handler {
	r := mux.NewRouter()

	r.Handle("/ipc", ipc.New(ipc.Options{
		Hub:       hub,
		PublicURL: cfg.PublicURL,
		InfoLog:   InfoLog.Printf,
		ErrorLog:  ErrorLog.Printf,
	})).Methods(http.MethodPost, http.MethodOptions)

	r.Handle("/ws", bridge.New(hub, ErrorLog.Printf)).Methods(http.MethodGet)

	r.HandleFunc("/healthz", handleHealth(hub)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(adminAuth(cfg.AdminToken))
	admin.HandleFunc("/status", handleStatus(hub)).Methods(http.MethodGet)
	admin.HandleFunc("/survival/start", handleSurvivalStart(hub)).Methods(http.MethodPost)
	admin.HandleFunc("/survival/end", handleSurvivalEnd(hub)).Methods(http.MethodPost)
	admin.HandleFunc("/survival/reset", handleSurvivalReset(hub)).Methods(http.MethodPost)
	admin.HandleFunc("/revive", handleRevive(hub)).Methods(http.MethodPost)
	admin.HandleFunc("/phase", handlePhase(hub)).Methods(http.MethodPost)
	admin.HandleFunc("/ban", handleBan(hub)).Methods(http.MethodPost)

	var h http.Handler = r
	h = middlewareSecurity(h)
	h = middlewareCORS(h)
	return h
}

// middlewareCORS adds headers so browser viewers can talk to us.
func middlewareCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Admin-Token")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func middlewareSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !getLimiter(ip).Allow() {
			http.Error(w, "Rate Limit", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// adminAuth gates the admin subtree. With no token configured the
// subtree is disabled outright rather than left open.
func adminAuth(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, "admin disabled (no admin_token configured)", http.StatusServiceUnavailable)
				return
			}
			got := r.Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, "bad token", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ErrorLog.Printf("http: encode response: %v", err)
	}
}

func handleHealth(hub *sim.Hub) http.HandlerFunc {
	type health struct {
		OK       bool   `json:"ok"`
		RoomID   string `json:"roomId"`
		Tick     int64  `json:"tick"`
		UptimeMs int64  `json:"uptimeMs"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		info := hub.RoomInfo()
		writeJSON(w, http.StatusOK, health{
			OK:       true,
			RoomID:   info.RoomID,
			Tick:     hub.Tick(),
			UptimeMs: info.UptimeMs,
		})
	}
}

func handleStatus(hub *sim.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, hub.Status())
	}
}

type survivalReply struct {
	OK       bool               `json:"ok"`
	Survival wire.SurvivalState `json:"survival"`
}

func handleSurvivalStart(hub *sim.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DurationMs   int64   `json:"durationMs"`
			PrizePoolUsd float64 `json:"prizePoolUsd"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, survivalReply{OK: true, Survival: hub.StartSurvival(req.DurationMs, req.PrizePoolUsd)})
	}
}

func handleSurvivalEnd(hub *sim.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, survivalReply{OK: true, Survival: hub.EndSurvival()})
	}
}

func handleSurvivalReset(hub *sim.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, survivalReply{OK: true, Survival: hub.ResetSurvival()})
	}
}

func handleRevive(hub *sim.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AgentID string `json:"agentId"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		revived := hub.Revive(req.AgentID)
		writeJSON(w, http.StatusOK, struct {
			OK      bool `json:"ok"`
			Revived bool `json:"revived"`
		}{OK: true, Revived: revived})
	}
}

func handlePhase(hub *sim.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Phase string `json:"phase"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		state, ok := hub.ForcePhase(req.Phase)
		if !ok {
			http.Error(w, "phase must be lobby, battle or showdown", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			OK    bool            `json:"ok"`
			Phase wire.PhaseState `json:"phase"`
		}{OK: true, Phase: state})
	}
}

func handleBan(hub *sim.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AgentID string `json:"agentId"`
			Banned  bool   `json:"banned"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.AgentID == "" {
			http.Error(w, "agentId required", http.StatusBadRequest)
			return
		}
		hub.SetBanned(req.AgentID, req.Banned)
		InfoLog.Printf("admin: agent %s banned=%v", req.AgentID, req.Banned)
		writeJSON(w, http.StatusOK, struct {
			OK bool `json:"ok"`
		}{OK: true})
	}
}
