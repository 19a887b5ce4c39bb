package domain

// ReceiptLog is one event log entry from a chain receipt. PromiseFund
// receipts carry the contract-side position of the pledge here.
type ReceiptLog struct {
	Index int    `json:"index"`
	Ref   string `json:"ref"`
}

// Receipt is the chain's acknowledgement of a mirrored call.
type Receipt struct {
	TxHash          string       `json:"tx_hash"`
	BlockNumber     int64        `json:"block_number,omitempty"`
	ContractAddress string       `json:"contract_address,omitempty"`
	Logs            []ReceiptLog `json:"logs,omitempty"`
}

// LedgerOutcome is the tagged result of a single chain call attempt.
// Exactly one of Receipt and Err is set; there is no implicit nil
// sentinel flowing through the write path.
type LedgerOutcome struct {
	Receipt *Receipt
	Err     error
}

// LedgerSuccess wraps a receipt in a successful outcome.
func LedgerSuccess(r *Receipt) LedgerOutcome {
	return LedgerOutcome{Receipt: r}
}

// LedgerFailed wraps a chain error in a failed outcome.
func LedgerFailed(err error) LedgerOutcome {
	return LedgerOutcome{Err: err}
}

// OK reports whether the chain call produced a receipt.
func (o LedgerOutcome) OK() bool {
	return o.Err == nil && o.Receipt != nil
}

// Status maps the outcome to the record status it implies: completed when
// the chain acknowledged the call, pending otherwise.
func (o LedgerOutcome) Status() TxStatus {
	if o.OK() {
		return StatusCompleted
	}
	return StatusPending
}
