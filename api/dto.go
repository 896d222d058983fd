/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and in the ledger engine, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/stock-ledger/catalog"
	"github.com/warp/stock-ledger/ledger"
	"github.com/warp/stock-ledger/report"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// RefDTO names one balance owner in a request or response.
type RefDTO struct {
	Tier  string `json:"tier"`
	Owner string `json:"owner"`
}

// CreateTransferRequest creates a deposit, tier-to-tier shipment, or
// retirement. Omit source for a deposit, destination for a retirement.
type CreateTransferRequest struct {
	ItemID      string  `json:"item_id"`
	Source      *RefDTO `json:"source,omitempty"`
	Destination *RefDTO `json:"destination,omitempty"`
	Quantity    int64   `json:"quantity"`
	Date        string  `json:"date"` // YYYY-MM-DD
	Note        string  `json:"note,omitempty"`
}

// CreateDistributionRequest fans stock out from one school to many students.
type CreateDistributionRequest struct {
	ItemID       string   `json:"item_id"`
	Institution  string   `json:"institution"`
	Recipients   []string `json:"recipients"`
	PerRecipient int64    `json:"per_recipient"`
	Date         string   `json:"date"`
	Note         string   `json:"note,omitempty"`
}

// EditTransactionRequest replaces the movement fields of a stored
// transaction. A non-empty recipients list makes the new shape a fan-out.
type EditTransactionRequest struct {
	ItemID       string   `json:"item_id"`
	Source       *RefDTO  `json:"source,omitempty"`
	Destination  *RefDTO  `json:"destination,omitempty"`
	Quantity     int64    `json:"quantity"`
	Recipients   []string `json:"recipients,omitempty"`
	PerRecipient int64    `json:"per_recipient,omitempty"`
	Date         string   `json:"date"`
	Note         string   `json:"note,omitempty"`
}

// SaveItemRequest creates or updates a catalog item.
type SaveItemRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category,omitempty"`
	Unit      string `json:"unit,omitempty"`
	IsDefault bool   `json:"is_default,omitempty"`
}

// SaveOwnerRequest creates or updates a roster entry.
type SaveOwnerRequest struct {
	Tier   string `json:"tier"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// TransactionDTO represents one ledger transaction in API responses.
type TransactionDTO struct {
	ID           string   `json:"id"`
	Date         string   `json:"date"`
	ItemID       string   `json:"item_id"`
	Scope        string   `json:"scope"`
	Source       *RefDTO  `json:"source,omitempty"`
	Destination  *RefDTO  `json:"destination,omitempty"`
	Quantity     int64    `json:"quantity"`
	Recipients   []string `json:"recipients,omitempty"`
	PerRecipient int64    `json:"per_recipient,omitempty"`
	Note         string   `json:"note,omitempty"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// BalanceDTO is one stored balance row.
type BalanceDTO struct {
	Tier     string `json:"tier"`
	Owner    string `json:"owner"`
	ItemID   string `json:"item_id"`
	Quantity int64  `json:"quantity"`
}

// ItemDTO represents a catalog item.
type ItemDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Unit      string `json:"unit"`
	IsDefault bool   `json:"is_default"`
}

// OwnerDTO represents a roster entry.
type OwnerDTO struct {
	Tier   string `json:"tier"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
}

// SummaryDTO is the per-owner movement summary.
type SummaryDTO struct {
	Tier        string `json:"tier"`
	Owner       string `json:"owner"`
	ItemID      string `json:"item_id"`
	Received    int64  `json:"received"`
	Shipped     int64  `json:"shipped"`
	Distributed int64  `json:"distributed"`
	Consumed    int64  `json:"consumed"`
	WrittenOff  int64  `json:"written_off"`
	Balance     int64  `json:"balance"`
}

// CoverageDTO reports distribution coverage rates for one school.
type CoverageDTO struct {
	Institution      string `json:"institution"`
	ItemID           string `json:"item_id"`
	Received         int64  `json:"received"`
	Distributed      int64  `json:"distributed"`
	WrittenOff       int64  `json:"written_off"`
	DistributionRate string `json:"distribution_rate"`
	WriteOffRate     string `json:"write_off_rate"`
}

// ConservationDTO is one item's conservation-check outcome.
type ConservationDTO struct {
	ItemID    string `json:"item_id"`
	Deposited int64  `json:"deposited"`
	Retired   int64  `json:"retired"`
	Held      int64  `json:"held"`
	Drift     int64  `json:"drift"`
	Balanced  bool   `json:"balanced"`
}

// CreatedResponse acknowledges a create with the new transaction id.
type CreatedResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func refToDTO(r *ledger.Ref) *RefDTO {
	if r == nil {
		return nil
	}
	return &RefDTO{Tier: string(r.Tier), Owner: string(r.Owner)}
}

func refFromDTO(d *RefDTO) *ledger.Ref {
	if d == nil {
		return nil
	}
	return &ledger.Ref{Tier: ledger.Tier(d.Tier), Owner: ledger.OwnerID(d.Owner)}
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:           string(tx.ID),
		Date:         tx.Date.String(),
		ItemID:       string(tx.ItemID),
		Scope:        string(tx.Scope),
		Source:       refToDTO(tx.Source),
		Destination:  refToDTO(tx.Destination),
		Quantity:     tx.Quantity,
		PerRecipient: tx.PerRecipient,
		Note:         tx.Note,
		CreatedAt:    tx.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    tx.UpdatedAt.Format(time.RFC3339),
	}
	for _, r := range tx.Recipients {
		dto.Recipients = append(dto.Recipients, string(r))
	}
	return dto
}

func toBalanceDTO(row ledger.BalanceRow) BalanceDTO {
	return BalanceDTO{
		Tier:     string(row.Tier),
		Owner:    string(row.Owner),
		ItemID:   string(row.ItemID),
		Quantity: row.Quantity,
	}
}

func toItemDTO(item catalog.Item) ItemDTO {
	return ItemDTO{
		ID:        string(item.ID),
		Name:      item.Name,
		Category:  item.Category,
		Unit:      item.Unit,
		IsDefault: item.IsDefault,
	}
}

func toOwnerDTO(owner catalog.Owner) OwnerDTO {
	return OwnerDTO{
		Tier:   string(owner.Tier),
		ID:     string(owner.ID),
		Name:   owner.Name,
		Parent: string(owner.Parent),
	}
}

func toSummaryDTO(s report.OwnerSummary) SummaryDTO {
	return SummaryDTO{
		Tier:        string(s.Tier),
		Owner:       string(s.Owner),
		ItemID:      string(s.ItemID),
		Received:    s.Received,
		Shipped:     s.Shipped,
		Distributed: s.Distributed,
		Consumed:    s.Consumed,
		WrittenOff:  s.WrittenOff,
		Balance:     s.Balance,
	}
}

func toCoverageDTO(c report.Coverage) CoverageDTO {
	return CoverageDTO{
		Institution:      string(c.Institution),
		ItemID:           string(c.ItemID),
		Received:         c.Received,
		Distributed:      c.Distributed,
		WrittenOff:       c.WrittenOff,
		DistributionRate: c.DistributionRate.String(),
		WriteOffRate:     c.WriteOffRate.String(),
	}
}

func toConservationDTO(r report.ConservationReport) ConservationDTO {
	return ConservationDTO{
		ItemID:    string(r.ItemID),
		Deposited: r.Deposited,
		Retired:   r.Retired,
		Held:      r.Held,
		Drift:     r.Drift(),
		Balanced:  r.Balanced(),
	}
}
