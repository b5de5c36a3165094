package chain

import (
	"github.com/toddfratello/pyomcore/block"
	"github.com/toddfratello/pyomcore/errs"
)

// TransactionState is the transaction lifecycle. Permitted transitions:
//
//	Pending   -> Cancelled  (cancel_transaction)
//	Pending   -> Confirmed  (confirm_transaction)
//	Confirmed -> Annulled   (annul_transaction)
//	Annulled  -> Confirmed  (reinstate_transaction)
type TransactionState int

const (
	Pending TransactionState = iota
	Confirmed
	Cancelled
	Annulled
)

func (s TransactionState) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Confirmed:
		return "CONFIRMED"
	case Cancelled:
		return "CANCELLED"
	case Annulled:
		return "ANNULLED"
	default:
		return "UNKNOWN"
	}
}

// TransactionStatus tracks one registered transaction's lifecycle state
// from the perspective of a single verifier.
type TransactionStatus struct {
	Transaction         *block.Transaction
	BlockIdx            int64
	PendingParticipants map[string]struct{}
	Signatures          map[string]*block.Blockref
	State               TransactionState
}

// NewTransactionStatus creates a Pending status with every participant
// still owed a signature.
func NewTransactionStatus(tx *block.Transaction, blockIdx int64) *TransactionStatus {
	pending := make(map[string]struct{}, len(tx.Participants))
	for _, p := range tx.Participants {
		pending[p.Gpg] = struct{}{}
	}
	return &TransactionStatus{
		Transaction:         tx,
		BlockIdx:            blockIdx,
		PendingParticipants: pending,
		Signatures:          make(map[string]*block.Blockref),
		State:               Pending,
	}
}

// RemovePendingParticipant marks fpr as having signed.
func (s *TransactionStatus) RemovePendingParticipant(fpr string) error {
	if _, ok := s.PendingParticipants[fpr]; !ok {
		return errs.Newf(errs.InvalidParticipant, "remove_pending_participant: fpr not found: %s", fpr)
	}
	delete(s.PendingParticipants, fpr)
	return nil
}

func (s *TransactionStatus) IsPending() bool   { return s.State == Pending }
func (s *TransactionStatus) IsConfirmed() bool { return s.State == Confirmed }
func (s *TransactionStatus) IsAnnulled() bool  { return s.State == Annulled }

// RequireState returns a StateTransitionDenied error unless s is in want.
func (s *TransactionStatus) RequireState(want TransactionState, action string) error {
	if s.State != want {
		return errs.Newf(errs.StateTransitionDenied, "%s: transaction is not %s (is %s)", action, want, s.State)
	}
	return nil
}

// RequireStatePending is shorthand for RequireState(Pending, action).
func (s *TransactionStatus) RequireStatePending(action string) error {
	return s.RequireState(Pending, action)
}
