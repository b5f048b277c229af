package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/robertarktes/seat-reservations/internal/domain"
)

type TicketService interface {
	SeatsAvailable() int
	Counts() domain.SeatCounts
	FindAndHoldSeats(ctx context.Context, count int, email string) (domain.Hold, error)
	ReserveSeats(ctx context.Context, holdID int64, email string) (string, error)
}

// ReadinessCheck reports whether a backing service is reachable.
type ReadinessCheck func(ctx context.Context) error

type Handlers struct {
	tickets TicketService
	checks  map[string]ReadinessCheck
}

func NewHandlers(tickets TicketService, checks map[string]ReadinessCheck) *Handlers {
	return &Handlers{tickets: tickets, checks: checks}
}

type seatJSON struct {
	Row  int `json:"row"`
	Seat int `json:"seat"`
}

type holdResult struct {
	ID               int64      `json:"id"`
	Status           string     `json:"status"`
	RequestedCount   int        `json:"requested_count"`
	GrantedSeatCount int        `json:"granted_seat_count"`
	Seats            []seatJSON `json:"seats"`
	StatusDetail     string     `json:"status_detail"`
	CustomerEmail    string     `json:"customer_email"`
}

func toHoldResult(h domain.Hold) holdResult {
	seats := make([]seatJSON, len(h.Seats))
	for i, s := range h.Seats {
		seats[i] = seatJSON{Row: s.Row, Seat: s.Seat}
	}
	return holdResult{
		ID:               h.ID,
		Status:           string(h.Status),
		RequestedCount:   h.RequestedCount,
		GrantedSeatCount: h.GrantedCount(),
		Seats:            seats,
		StatusDetail:     h.StatusDetail,
		CustomerEmail:    h.Customer,
	}
}

func (h *Handlers) SeatsAvailable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"available": h.tickets.SeatsAvailable()})
}

func (h *Handlers) SeatCounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tickets.Counts())
}

func (h *Handlers) CreateHold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count         int    `json:"count"`
		CustomerEmail string `json:"customer_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hold, err := h.tickets.FindAndHoldSeats(r.Context(), req.Count, req.CustomerEmail)
	if err != nil {
		LoggerFrom(r.Context()).WithError(err).Error("find and hold failed")
		http.Error(w, "unable to hold seats", http.StatusInternalServerError)
		return
	}

	status := http.StatusCreated
	switch hold.Status {
	case domain.HoldFailureInvalidParameters:
		status = http.StatusBadRequest
	case domain.HoldFailureInsufficientSeats:
		status = http.StatusConflict
	}

	data, _ := json.Marshal(toHoldResult(hold))
	respond(w, status, data)
}

func (h *Handlers) ReserveHold(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid hold id", http.StatusBadRequest)
		return
	}

	var req struct {
		CustomerEmail string `json:"customer_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	code, err := h.tickets.ReserveSeats(r.Context(), id, req.CustomerEmail)
	switch {
	case errors.Is(err, domain.ErrNoSuchHold):
		http.Error(w, domain.ErrNoSuchHold.Error(), http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrHolderMismatch):
		http.Error(w, domain.ErrHolderMismatch.Error(), http.StatusForbidden)
		return
	case errors.Is(err, domain.ErrInvalidParameter):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		LoggerFrom(r.Context()).WithError(err).Error("reserve failed")
		http.Error(w, "unable to reserve seats", http.StatusInternalServerError)
		return
	}

	data, _ := json.Marshal(map[string]interface{}{
		"hold_id":           id,
		"confirmation_code": code,
	})
	respond(w, http.StatusOK, data)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			LoggerFrom(r.Context()).WithError(err).WithField("dependency", name).Warn("not ready")
			http.Error(w, name+" unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

func respond(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
