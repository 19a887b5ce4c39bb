package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role is a user's access level on the platform.
type Role string

const (
	RoleAdmin   Role = "admin"
	RolePartner Role = "partner"
	RoleMember  Role = "member"
)

// TxStatus tracks whether the chain mirror of a record has landed.
type TxStatus string

const (
	StatusPending   TxStatus = "pending"
	StatusCompleted TxStatus = "completed"
)

// User is an identity record. Account holds the opaque (encrypted) key
// material used as the user's address on the chain. Either Email or Card
// identifies the user.
type User struct {
	ID        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	Account   string    `json:"-"`
	Email     string    `json:"email,omitempty"`
	Card      string    `json:"card,omitempty"`
	Verified  bool      `json:"verified"`
	Activated bool      `json:"activated"`
	CreatedAt time.Time `json:"created_at"`
}

// RegistrationType distinguishes member and partner account registration.
type RegistrationType string

const (
	RegisterMember  RegistrationType = "RegisterMember"
	RegisterPartner RegistrationType = "RegisterPartner"
)

// RegistrationTransaction records the act of registering a user's account
// on the chain. Receipt fields are populated only once the call succeeds.
type RegistrationTransaction struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Type      RegistrationType `json:"type"`
	Status    TxStatus         `json:"status"`
	Receipt   *Receipt         `json:"receipt,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// LoyaltyTxType enumerates points movements.
type LoyaltyTxType string

const (
	EarnPoints        LoyaltyTxType = "EarnPoints"
	RedeemPoints      LoyaltyTxType = "RedeemPoints"
	RedeemPointsOffer LoyaltyTxType = "RedeemPointsOffer"
)

// LoyaltyTransaction records one points movement between a partner and a
// member. Redeem records carry pre-negated Points; the stored delta is
// always directly summable. Immutable once completed; only Status and
// Receipt change while pending.
type LoyaltyTransaction struct {
	ID        uuid.UUID       `json:"id"`
	PartnerID uuid.UUID       `json:"partner_id"`
	MemberID  uuid.UUID       `json:"member_id"`
	OfferID   *uuid.UUID      `json:"offer_id,omitempty"`
	Points    int64           `json:"points"`
	Amount    decimal.Decimal `json:"amount"`
	Quantity  int             `json:"quantity,omitempty"`
	Type      LoyaltyTxType   `json:"type"`
	Status    TxStatus        `json:"status"`
	Receipt   *Receipt        `json:"receipt,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Loyalty is the stored balance projection for one member. CurrentPoints
// must always equal the sum of that member's LoyaltyTransaction.Points,
// pending and completed alike.
type Loyalty struct {
	MemberID      uuid.UUID `json:"member_id"`
	CurrentPoints int64     `json:"current_points"`
	UpdatedAt     time.Time `json:"updated_at"`
}
