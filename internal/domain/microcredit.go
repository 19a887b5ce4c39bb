package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CampaignStatus is the editorial state of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignPublished CampaignStatus = "published"
)

// MicrocreditCampaign is a partner's fundraising campaign. Registered
// tracks whether the campaign contract has been deployed on the chain;
// Address is the contract address once it has.
type MicrocreditCampaign struct {
	ID           uuid.UUID       `json:"id"`
	PartnerID    uuid.UUID       `json:"partner_id"`
	Title        string          `json:"title"`
	Quantitative bool            `json:"quantitative"`
	MinAllowed   decimal.Decimal `json:"min_allowed"`
	MaxAllowed   decimal.Decimal `json:"max_allowed"`
	MaxAmount    decimal.Decimal `json:"max_amount"`
	StepAmount   decimal.Decimal `json:"step_amount"`
	StartsAt     time.Time       `json:"starts_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
	RedeemStarts time.Time       `json:"redeem_starts"`
	RedeemEnds   time.Time       `json:"redeem_ends"`
	Redeemable   bool            `json:"redeemable"`
	Status       CampaignStatus  `json:"status"`
	Registered   TxStatus        `json:"registered"`
	Address      string          `json:"address,omitempty"`
	Receipt      *Receipt        `json:"receipt,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SupportStatus is the payment state of a pledge.
type SupportStatus string

const (
	SupportUnpaid    SupportStatus = "unpaid"
	SupportPaid      SupportStatus = "paid"
	SupportCompleted SupportStatus = "completed"
)

// MicrocreditSupport is one backer's pledge to a campaign. CurrentTokens
// must always equal InitialTokens plus the sum of SpendFund deltas for the
// support. ContractRef and ContractIndex locate the pledge inside the
// on-chain campaign record once the PromiseFund call lands.
type MicrocreditSupport struct {
	ID            uuid.UUID       `json:"id"`
	CampaignID    uuid.UUID       `json:"campaign_id"`
	MemberID      uuid.UUID       `json:"member_id"`
	InitialTokens int64           `json:"initial_tokens"`
	CurrentTokens int64           `json:"current_tokens"`
	Amount        decimal.Decimal `json:"amount"`
	Status        SupportStatus   `json:"status"`
	Payment       string          `json:"payment,omitempty"`
	ContractRef   string          `json:"contract_ref,omitempty"`
	ContractIndex *int            `json:"contract_index,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// MicrocreditTxType enumerates the lifecycle events of a pledge's funds.
type MicrocreditTxType string

const (
	PromiseFund MicrocreditTxType = "PromiseFund"
	ReceiveFund MicrocreditTxType = "ReceiveFund"
	RevertFund  MicrocreditTxType = "RevertFund"
	SpendFund   MicrocreditTxType = "SpendFund"
)

// MicrocreditTransaction is one chain-facing event for a support. Tokens
// carries the currentTokens delta (zero for Receive and Revert, which only
// move the Payoff figure). The log is strictly append-only.
type MicrocreditTransaction struct {
	ID        uuid.UUID         `json:"id"`
	SupportID uuid.UUID         `json:"support_id"`
	Tokens    int64             `json:"tokens"`
	Payoff    decimal.Decimal   `json:"payoff"`
	Type      MicrocreditTxType `json:"type"`
	Status    TxStatus          `json:"status"`
	Receipt   *Receipt          `json:"receipt,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
