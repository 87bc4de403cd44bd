package handler

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a ledger error to its HTTP status and sends it.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusOf(err), err.Error())
}

// statusOf classifies a domain error per the error taxonomy: validation
// errors are 400, missing entities 404, state conflicts 409, authorization
// failures 403.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidQuestion),
		errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrInsufficientBond),
		errors.Is(err, domain.ErrBetTooSmall):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrMarketNotFound),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotCreator),
		errors.Is(err, domain.ErrNotOwner),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrMarketNotActive),
		errors.Is(err, domain.ErrMarketExpired),
		errors.Is(err, domain.ErrMarketNotExpired),
		errors.Is(err, domain.ErrMarketNotResolved),
		errors.Is(err, domain.ErrMarketNotCancelled),
		errors.Is(err, domain.ErrAlreadyBet),
		errors.Is(err, domain.ErrAlreadySubscribed),
		errors.Is(err, domain.ErrNoBet),
		errors.Is(err, domain.ErrNotAWinner),
		errors.Is(err, domain.ErrAlreadyClaimed),
		errors.Is(err, domain.ErrNothingToWithdraw):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// parseListOpts extracts standard pagination parameters from the query
// string. Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// marketIDParam extracts and parses the {id} path parameter.
func marketIDParam(r *http.Request) (uint64, error) {
	return strconv.ParseUint(r.PathValue("id"), 10, 64)
}

// parseAddress validates and parses a hex address field.
func parseAddress(s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// parseWei parses a decimal wei string into a non-negative big.Int.
func parseWei(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

// decodeBody decodes a JSON request body into dst, rejecting unknown
// fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
