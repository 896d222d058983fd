/*
handlers.go - HTTP API handlers for the stock ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Transactions:
    POST   /api/transfers               Deposit, shipment, or retirement
    POST   /api/distributions           School-to-students fan-out
    GET    /api/transactions            Filtered transaction listing
    GET    /api/transactions/{id}       Get one transaction
    PUT    /api/transactions/{id}       Edit (revert + reapply)
    DELETE /api/transactions/{id}       Delete (revert + remove)

  Balances:
    GET    /api/balances/{tier}         All balances of a tier
    GET    /api/balances/{tier}/{owner} One owner's balances

  Catalog:
    GET    /api/items                   List medicines
    POST   /api/items                   Create/update a medicine
    GET    /api/owners/{tier}           List owners of a tier
    POST   /api/owners                  Create/update an owner

  Reports:
    GET    /api/reports/summary         Per-owner movement summary
    GET    /api/reports/coverage        Institutional distribution coverage
    GET    /api/reports/conservation    Conservation check per item

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid tier pairs, unknown references
  - 404: Transaction, item, or owner not found
  - 409: Insufficient stock, reversal conflicts, retry budget exhausted
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware. Authorization is assumed granted upstream
  (reverse proxy or gateway).

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/warp/stock-ledger/catalog"
	"github.com/warp/stock-ledger/ledger"
	"github.com/warp/stock-ledger/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine  *ledger.Engine
	Catalog catalog.Catalog
	Roster  catalog.Roster
	Reports *report.Service
}

// NewHandler creates a new handler.
func NewHandler(engine *ledger.Engine, cat catalog.Catalog, roster catalog.Roster, reports *report.Service) *Handler {
	return &Handler{Engine: engine, Catalog: cat, Roster: roster, Reports: reports}
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransfer handles deposits, tier-to-tier shipments, and retirements.
// POST /api/transfers
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return
	}

	id, err := h.Engine.CreateTransfer(r.Context(), ledger.TransferSpec{
		ItemID:      ledger.ItemID(req.ItemID),
		Source:      refFromDTO(req.Source),
		Destination: refFromDTO(req.Destination),
		Quantity:    req.Quantity,
		Date:        date,
		Note:        req.Note,
	})
	if err != nil {
		writeLedgerError(w, "Failed to create transfer", err)
		return
	}

	writeJSON(w, http.StatusCreated, CreatedResponse{ID: string(id)})
}

// CreateDistribution handles the school-to-students fan-out.
// POST /api/distributions
func (h *Handler) CreateDistribution(w http.ResponseWriter, r *http.Request) {
	var req CreateDistributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return
	}

	recipients := make([]ledger.OwnerID, len(req.Recipients))
	for i, rcp := range req.Recipients {
		recipients[i] = ledger.OwnerID(rcp)
	}

	id, err := h.Engine.CreateDistribution(r.Context(), ledger.DistributionSpec{
		ItemID:       ledger.ItemID(req.ItemID),
		Institution:  ledger.Ref{Tier: ledger.TierInstitutional, Owner: ledger.OwnerID(req.Institution)},
		Recipients:   recipients,
		PerRecipient: req.PerRecipient,
		Date:         date,
		Note:         req.Note,
	})
	if err != nil {
		writeLedgerError(w, "Failed to create distribution", err)
		return
	}

	writeJSON(w, http.StatusCreated, CreatedResponse{ID: string(id)})
}

// ListTransactions returns the filtered transaction log.
// GET /api/transactions?from=&to=&item_id=&tier=&owner=&scope=&offset=&limit=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	it := h.Engine.Transactions(r.Context(), filter)
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	dtos := []TransactionDTO{}
	skipped := 0
	for it.Next() {
		if skipped < offset {
			skipped++
			continue
		}
		dtos = append(dtos, toTransactionDTO(it.Transaction()))
		if limit > 0 && len(dtos) >= limit {
			break
		}
	}
	if err := it.Err(); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, dtos)
}

// GetTransaction returns one stored transaction.
// GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	tx, err := h.Engine.Transaction(r.Context(), id)
	if err != nil {
		writeLedgerError(w, "Failed to get transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// EditTransaction replaces a transaction's movement fields. The stored
// effect is reverted and the new one applied in a single unit of work.
// PUT /api/transactions/{id}
func (h *Handler) EditTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	var req EditTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return
	}

	recipients := make([]ledger.OwnerID, len(req.Recipients))
	for i, rcp := range req.Recipients {
		recipients[i] = ledger.OwnerID(rcp)
	}

	err = h.Engine.EditTransaction(r.Context(), id, ledger.EditPayload{
		ItemID:       ledger.ItemID(req.ItemID),
		Source:       refFromDTO(req.Source),
		Destination:  refFromDTO(req.Destination),
		Quantity:     req.Quantity,
		Recipients:   recipients,
		PerRecipient: req.PerRecipient,
		Date:         date,
		Note:         req.Note,
	})
	if err != nil {
		writeLedgerError(w, "Failed to edit transaction", err)
		return
	}

	tx, err := h.Engine.Transaction(r.Context(), id)
	if err != nil {
		writeLedgerError(w, "Failed to reload transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// DeleteTransaction reverts and removes a transaction.
// DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	if err := h.Engine.DeleteTransaction(r.Context(), id); err != nil {
		writeLedgerError(w, "Failed to delete transaction", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// ListTierBalances returns all balances of one tier.
// GET /api/balances/{tier}
func (h *Handler) ListTierBalances(w http.ResponseWriter, r *http.Request) {
	tier := ledger.Tier(chi.URLParam(r, "tier"))
	if !tier.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown tier", nil)
		return
	}

	rows, err := h.Engine.Balances(r.Context(), tier, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list balances", err)
		return
	}

	dtos := make([]BalanceDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toBalanceDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListOwnerBalances returns one owner's balances across all items.
// GET /api/balances/{tier}/{owner}
func (h *Handler) ListOwnerBalances(w http.ResponseWriter, r *http.Request) {
	tier := ledger.Tier(chi.URLParam(r, "tier"))
	owner := ledger.OwnerID(chi.URLParam(r, "owner"))
	if !tier.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown tier", nil)
		return
	}

	rows, err := h.Engine.Balances(r.Context(), tier, owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list balances", err)
		return
	}

	dtos := make([]BalanceDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toBalanceDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListItems returns the medicine catalog, default item first.
// GET /api/items
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Catalog.ListItems(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list items", err)
		return
	}

	dtos := make([]ItemDTO, len(items))
	for i, item := range items {
		dtos[i] = toItemDTO(item)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetItem returns one catalog item.
// GET /api/items/{id}
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Catalog.Item(r.Context(), ledger.ItemID(chi.URLParam(r, "id")))
	if errors.Is(err, catalog.ErrItemNotFound) {
		writeError(w, http.StatusNotFound, "Item not found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get item", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemDTO(item))
}

// SaveItem creates or updates a catalog item.
// POST /api/items
func (h *Handler) SaveItem(w http.ResponseWriter, r *http.Request) {
	var req SaveItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Item id and name are required", nil)
		return
	}
	if req.Category == "" {
		req.Category = "Umum"
	}
	if req.Unit == "" {
		req.Unit = "tablet"
	}

	item := catalog.Item{
		ID:        ledger.ItemID(req.ID),
		Name:      req.Name,
		Category:  req.Category,
		Unit:      req.Unit,
		IsDefault: req.IsDefault,
	}
	if err := h.Catalog.SaveItem(r.Context(), item); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemDTO(item))
}

// ListOwners returns the roster of one tier.
// GET /api/owners/{tier}
func (h *Handler) ListOwners(w http.ResponseWriter, r *http.Request) {
	tier := ledger.Tier(chi.URLParam(r, "tier"))
	if !tier.Valid() || tier == ledger.TierCentral {
		writeError(w, http.StatusBadRequest, "Unknown roster tier", nil)
		return
	}

	owners, err := h.Roster.ListOwners(r.Context(), tier)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list owners", err)
		return
	}

	dtos := make([]OwnerDTO, len(owners))
	for i, owner := range owners {
		dtos[i] = toOwnerDTO(owner)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveOwner creates or updates a roster entry.
// POST /api/owners
func (h *Handler) SaveOwner(w http.ResponseWriter, r *http.Request) {
	var req SaveOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tier := ledger.Tier(req.Tier)
	if !tier.Valid() || tier == ledger.TierCentral {
		writeError(w, http.StatusBadRequest, "Unknown roster tier", nil)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Owner id and name are required", nil)
		return
	}

	owner := catalog.Owner{
		Tier:   tier,
		ID:     ledger.OwnerID(req.ID),
		Name:   req.Name,
		Parent: ledger.OwnerID(req.Parent),
	}
	if err := h.Roster.SaveOwner(r.Context(), owner); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save owner", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOwnerDTO(owner))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetSummary returns one owner's movement summary for an item.
// GET /api/reports/summary?tier=&owner=&item_id=&from=&to=
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	tier := ledger.Tier(r.URL.Query().Get("tier"))
	owner := ledger.OwnerID(r.URL.Query().Get("owner"))
	item := ledger.ItemID(r.URL.Query().Get("item_id"))
	if !tier.Valid() || owner == "" || item == "" {
		writeError(w, http.StatusBadRequest, "tier, owner, and item_id are required", nil)
		return
	}

	from, to, err := periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return
	}

	summary, err := h.Reports.Summarize(r.Context(), ledger.Ref{Tier: tier, Owner: owner}, item, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// GetCoverage returns an institution's distribution coverage for an item.
// GET /api/reports/coverage?institution=&item_id=&from=&to=
func (h *Handler) GetCoverage(w http.ResponseWriter, r *http.Request) {
	institution := ledger.OwnerID(r.URL.Query().Get("institution"))
	item := ledger.ItemID(r.URL.Query().Get("item_id"))
	if institution == "" || item == "" {
		writeError(w, http.StatusBadRequest, "institution and item_id are required", nil)
		return
	}

	from, to, err := periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return
	}

	cov, err := h.Reports.InstitutionCoverage(r.Context(), institution, item, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build coverage", err)
		return
	}
	writeJSON(w, http.StatusOK, toCoverageDTO(cov))
}

// GetConservation runs the conservation check and returns one row per item.
// GET /api/reports/conservation
func (h *Handler) GetConservation(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Reports.VerifyConservation(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to verify conservation", err)
		return
	}

	dtos := make([]ConservationDTO, len(reports))
	for i, rep := range reports {
		dtos[i] = toConservationDTO(rep)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func filterFromQuery(r *http.Request) (ledger.Filter, error) {
	var filter ledger.Filter
	q := r.URL.Query()

	if v := q.Get("from"); v != "" {
		d, err := ledger.ParseDate(v)
		if err != nil {
			return filter, err
		}
		filter.From = &d
	}
	if v := q.Get("to"); v != "" {
		d, err := ledger.ParseDate(v)
		if err != nil {
			return filter, err
		}
		filter.To = &d
	}
	if v := q.Get("item_id"); v != "" {
		item := ledger.ItemID(v)
		filter.ItemID = &item
	}
	if v := q.Get("tier"); v != "" {
		tier := ledger.Tier(v)
		filter.Tier = &tier
	}
	if v := q.Get("owner"); v != "" {
		owner := ledger.OwnerID(v)
		filter.Owner = &owner
	}
	if v := q.Get("scope"); v != "" {
		scope := ledger.TierScope(v)
		filter.Scope = &scope
	}
	return filter, nil
}

func periodFromQuery(r *http.Request) (from, to *ledger.Date, err error) {
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := ledger.ParseDate(v)
		if err != nil {
			return nil, nil, err
		}
		from = &d
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := ledger.ParseDate(v)
		if err != nil {
			return nil, nil, err
		}
		to = &d
	}
	return from, to, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// writeLedgerError maps engine errors to HTTP statuses.
func writeLedgerError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrInsufficientStock),
		errors.Is(err, ledger.ErrReversalConflict),
		errors.Is(err, ledger.ErrConflict):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, ledger.ErrInvalidReference),
		errors.Is(err, ledger.ErrContractViolation):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
