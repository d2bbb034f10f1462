package handler

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	apperrors "github.com/hazolab/sms-gateway-go/internal/errors"
	"github.com/hazolab/sms-gateway-go/internal/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type TransactionHandler struct {
	repo repository.TransactionRepository
}

func NewTransactionHandler(repo repository.TransactionRepository) *TransactionHandler {
	return &TransactionHandler{repo: repo}
}

// GET /transactions
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	txs, err := h.repo.ListRecent(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list transactions")
		writeError(w, apperrors.Database(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"limit":        limit,
		"offset":       offset,
	})
}

func pagination(r *http.Request) (limit, offset int, err error) {
	limit = defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, apperrors.InvalidInput("limit", "expected a positive integer")
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, apperrors.InvalidInput("offset", "expected a non-negative integer")
		}
	}
	return limit, offset, nil
}
