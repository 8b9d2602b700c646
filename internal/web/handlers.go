package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/vikdev/delta_trigger_bot/internal/domain"
	"github.com/vikdev/delta_trigger_bot/internal/usecase"
	"go.uber.org/zap"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidParameter), errors.Is(err, domain.ErrMissingField):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRaceRejected):
		status = http.StatusConflict
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// --- Exit levels ---

func (s *Server) handleGetExitLevels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Levels())
}

func (s *Server) handleSetExitLevels(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Above     *string `json:"above"`
		AboveKind *string `json:"above_kind"`
		Below     *string `json:"below"`
		BelowKind *string `json:"below_kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.ErrInvalidParameter)
		return
	}

	levels, err := s.engine.SetLevels(r.Context(), usecase.LevelUpdate{
		Above:     req.Above,
		AboveKind: req.AboveKind,
		Below:     req.Below,
		BelowKind: req.BelowKind,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, levels)
}

func (s *Server) handleClearExitLevels(w http.ResponseWriter, r *http.Request) {
	s.engine.ClearLevels(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// --- Countdown ---

func (s *Server) handleCountdownStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.CountdownStatus())
}

func (s *Server) handleCancelCountdown(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.CancelCountdown(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// --- Trigger orders ---

func (s *Server) handleListTriggerOrders(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.orders.ListPending())
}

func (s *Server) handleAddTriggerOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol       string  `json:"symbol"`
		InstrumentID int64   `json:"instrument_id"`
		Side         string  `json:"side"`
		Size         int     `json:"size"`
		TriggerPrice float64 `json:"trigger_price"`
		Condition    string  `json:"condition"`
		TimeLimitMin int     `json:"time_limit_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.ErrInvalidParameter)
		return
	}

	id, err := s.orders.Add(r.Context(), usecase.OrderSpec{
		Symbol:       req.Symbol,
		InstrumentID: req.InstrumentID,
		Side:         domain.OrderSide(req.Side),
		Size:         req.Size,
		TriggerPrice: req.TriggerPrice,
		Condition:    domain.TriggerCondition(req.Condition),
		TimeLimit:    time.Duration(req.TimeLimitMin) * time.Minute,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleCancelTriggerOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.orders.Cancel(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "id": id})
}

// --- Price alerts ---

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.alerts.List())
}

func (s *Server) handleAddAlert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price     float64 `json:"price"`
		Condition string  `json:"condition"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.ErrInvalidParameter)
		return
	}

	id, err := s.alerts.Add(req.Price, domain.TriggerCondition(req.Condition))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.alerts.Delete(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

// --- Account state and history ---

// handleState aggregates the live feed snapshot with the venue account view.
// Gateway failures degrade the response rather than fail it: the price
// snapshot is always available.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"feed":      s.feed.Snapshot(),
		"levels":    s.engine.Levels(),
		"countdown": s.engine.CountdownStatus(),
	}

	if positions, err := s.gateway.GetPositions(r.Context()); err == nil {
		resp["positions"] = positions
	} else {
		s.logger.Warn("Failed to fetch positions", zap.Error(err))
		resp["positions_error"] = err.Error()
	}
	if balances, err := s.gateway.GetWalletBalances(r.Context()); err == nil {
		resp["balances"] = balances
	} else {
		s.logger.Warn("Failed to fetch balances", zap.Error(err))
		resp["balances_error"] = err.Error()
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			s.writeError(w, domain.ErrInvalidParameter)
			return
		}
		limit = v
	}

	trades, err := s.tradeRepo.ListTrades(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if trades == nil {
		trades = []*domain.TradeRecord{}
	}
	s.writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	_, ok := s.feed.Price()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"price_feed": ok,
	})
}
