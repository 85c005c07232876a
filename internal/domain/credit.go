package domain

import "time"

// CreditBalance is the per-user spendable credit counter. The balance only
// changes through the store's atomic deduct/refund/add operations.
type CreditBalance struct {
	UserID            string    `json:"user_id"            db:"user_id"`
	Balance           int       `json:"balance"            db:"balance"`
	LifetimePurchased int       `json:"lifetime_purchased" db:"lifetime_purchased"`
	LifetimeUsed      int       `json:"lifetime_used"      db:"lifetime_used"`
	UpdatedAt         time.Time `json:"updated_at"         db:"updated_at"`
}

// CreditTransaction is one row in the credit journal.
type CreditTransaction struct {
	ID           string    `json:"id"            db:"id"`
	UserID       string    `json:"user_id"       db:"user_id"`
	Amount       int       `json:"amount"        db:"amount"` // negative for deductions
	Type         string    `json:"type"          db:"type"`
	OperationRef string    `json:"operation_ref" db:"operation_ref"`
	Description  string    `json:"description"   db:"description"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
}

// Credit transaction types.
const (
	CreditTxDeduct   = "deduct"
	CreditTxRefund   = "refund"
	CreditTxPurchase = "purchase"
	CreditTxBonus    = "bonus"
	CreditTxAdmin    = "admin_adjustment"
)

// OperationType identifies a paid analysis operation for the cost table.
type OperationType string

const (
	OperationQuickAnalysis    OperationType = "quick_analysis"
	OperationTimelineAnalysis OperationType = "timeline_analysis"
	OperationStoryAnalysis    OperationType = "story_analysis"
)

// operationCosts is the fixed per-operation credit cost table.
var operationCosts = map[OperationType]int{
	OperationQuickAnalysis:    1,
	OperationTimelineAnalysis: 2,
	OperationStoryAnalysis:    3,
}

// Cost returns the credit cost of the operation, zero for unknown types.
func (op OperationType) Cost() int {
	return operationCosts[op]
}
