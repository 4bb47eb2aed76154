package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/cryptosim/internal/domain"
)

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, number(s.gw.Balance()))
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]json.Number)
	for _, h := range s.gw.Holdings() {
		out[h.Asset] = number(h.Quantity)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHoldingValues(w http.ResponseWriter, r *http.Request) {
	values := s.gw.HoldingValues()
	out := make([]holdingValueDTO, 0, len(values))
	for _, hv := range values {
		dto := holdingValueDTO{Asset: hv.Asset, Quantity: number(hv.Quantity), Value: number(hv.Value)}
		if hv.Priced {
			p := number(hv.Price)
			dto.Price = &p
		}
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	p := s.gw.Portfolio()
	writeJSON(w, http.StatusOK, portfolioDTO{
		Balance:       number(p.Balance),
		HoldingsValue: number(p.HoldingsValue),
		Total:         number(p.Total),
	})
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pricesMap(s.gw.Prices()))
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	asset := mux.Vars(r)["asset"]
	q, ok := s.gw.Price(asset)
	if !ok {
		writeError(w, http.StatusNotFound, string(domain.KindUnknownAsset),
			fmt.Sprintf("Cryptocurrency not found: %s", strings.ToUpper(asset)))
		return
	}
	writeJSON(w, http.StatusOK, newQuoteDTO(q))
}

func pricesMap(quotes map[string]domain.PriceQuote) map[string]json.Number {
	out := make(map[string]json.Number, len(quotes))
	for asset, q := range quotes {
		out[asset] = number(q.Price)
	}
	return out
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	history := s.gw.Transactions()
	out := make([]transactionDTO, 0, len(history))
	for _, tx := range history {
		out = append(out, newTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProfitLoss(w http.ResponseWriter, r *http.Request) {
	pl := s.gw.ProfitLoss()
	out := make(map[string]json.Number, len(pl))
	for asset, v := range pl {
		out[asset] = number(v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOrder(kind domain.TradeType) http.HandlerFunc {
	verb := "bought"
	submit := s.gw.Buy
	if kind == domain.TradeTypeSell {
		verb = "sold"
		submit = s.gw.Sell
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			return
		}
		if s.orderLimit != nil && !s.orderLimit.Allow() {
			writeError(w, http.StatusTooManyRequests, kindRateLimited, "Too many orders, try again later")
			return
		}

		asset := strings.TrimSpace(r.FormValue("crypto"))
		if asset == "" {
			writeError(w, http.StatusBadRequest, kindInvalidRequest, "Parameter 'crypto' is required")
			return
		}
		amount, err := parseAmount(r.FormValue("amount"))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		tx, err := submit(r.Context(), asset, amount)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		dto := newTransactionDTO(tx)
		writeJSON(w, http.StatusOK, orderResponse{
			Success:     true,
			Message:     fmt.Sprintf("Successfully %s %s %s for $%s", verb, tx.Quantity.String(), tx.Asset, tx.Total.String()),
			Transaction: &dto,
		})
	}
}

// maxAmountLength caps the raw amount before parsing; no in-range quantity needs more characters.
const maxAmountLength = 64

// parseAmount parses and range-checks an order amount without doing arithmetic on it.
func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > maxAmountLength {
		return decimal.Decimal{}, domain.NewError(domain.KindInvalidQuantity, "Amount is too long")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, domain.NewError(domain.KindInvalidQuantity, "Amount must be a number")
	}
	if err := domain.ValidateQuantity(amount); err != nil {
		return decimal.Decimal{}, err
	}
	return amount, nil
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		return
	}
	balance, err := s.gw.Reset()
	if err != nil {
		s.logger.Error("reset failed", zap.Error(err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{
		Success: true,
		Message: fmt.Sprintf("Account has been reset to the initial balance of $%s", balance.String()),
	})
}
