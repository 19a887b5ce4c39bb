package domain

// Hydrated pending records. A retry call must be derivable from the stored
// record alone, so the store materializes the full referenced graph before
// handing a pending record to the reconciler.

// PendingRegistration is a pending registration transaction with its user.
type PendingRegistration struct {
	Tx   RegistrationTransaction
	User User
}

// PendingLoyalty is a pending loyalty transaction with both parties.
type PendingLoyalty struct {
	Tx      LoyaltyTransaction
	Partner User
	Member  User
}

// PendingCampaign is an unregistered campaign with its owning partner.
type PendingCampaign struct {
	Campaign MicrocreditCampaign
	Partner  User
}

// PendingMicrocredit is a pending microcredit transaction with its full
// graph: support, campaign and backing member.
type PendingMicrocredit struct {
	Tx       MicrocreditTransaction
	Support  MicrocreditSupport
	Campaign MicrocreditCampaign
	Member   User
}
