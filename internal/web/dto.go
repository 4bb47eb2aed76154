package web

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/cryptosim/internal/domain"
)

const dateTimeLayout = "2006-01-02 15:04:05"

// number renders a decimal as a bare JSON number without going through float64.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

type transactionDTO struct {
	ID       uint64      `json:"id"`
	Crypto   string      `json:"crypto"`
	Amount   json.Number `json:"amount"`
	Price    json.Number `json:"price"`
	Total    json.Number `json:"total"`
	DateTime string      `json:"dateTime"`
	Type     string      `json:"type"`
}

func newTransactionDTO(tx domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:       tx.ID,
		Crypto:   tx.Asset,
		Amount:   number(tx.Quantity),
		Price:    number(tx.UnitPrice),
		Total:    number(tx.Total),
		DateTime: tx.Timestamp.Format(dateTimeLayout),
		Type:     string(tx.Type),
	}
}

type quoteDTO struct {
	Asset string      `json:"asset"`
	Price json.Number `json:"price"`
	TS    int64       `json:"ts"`
}

func newQuoteDTO(q domain.PriceQuote) quoteDTO {
	return quoteDTO{Asset: q.Asset, Price: number(q.Price), TS: q.ObservedAt.UnixMilli()}
}

type holdingValueDTO struct {
	Asset    string       `json:"asset"`
	Quantity json.Number  `json:"quantity"`
	Price    *json.Number `json:"price"`
	Value    json.Number  `json:"value"`
}

type portfolioDTO struct {
	Balance       json.Number `json:"balance"`
	HoldingsValue json.Number `json:"holdings_value"`
	Total         json.Number `json:"total"`
}

type orderResponse struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Transaction *transactionDTO `json:"transaction,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Status  int    `json:"status"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status string      `json:"status"`
	Feed   *feedHealth `json:"feed,omitempty"`
}

type feedHealth struct {
	Source    string `json:"source"`
	Connected bool   `json:"connected"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Transport-level kinds that never reach the domain.
const (
	kindInvalidRequest = "invalid_request"
	kindRateLimited    = "rate_limited"
	kindInternal       = "internal"
)

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidQuantity, domain.KindInsufficientFunds, domain.KindInsufficientHoldings:
		return http.StatusBadRequest
	case domain.KindUnknownAsset:
		return http.StatusNotFound
	case domain.KindTransportUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Success: false, Status: status, Kind: kind, Message: message})
}

func writeDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	if kind == "" {
		writeError(w, http.StatusInternalServerError, kindInternal, err.Error())
		return
	}
	writeError(w, statusFor(kind), string(kind), err.Error())
}
