package domain

// CheckTransition validates moving the payment to status to.
// It returns nil for a permitted change, ErrAlreadyCompleted when completing a
// completed payment and ErrInvalidTransition for every other rejected pair.
// Failing an already failed payment is accepted; callers treat it as a no-op.
func (p *PrizePayment) CheckTransition(to PaymentStatus) error {
	switch p.Status {
	case PaymentPending:
		if to == PaymentCompleted || to == PaymentFailed {
			return nil
		}
	case PaymentCompleted:
		if to == PaymentCompleted {
			return &TransitionError{Base: ErrAlreadyCompleted, From: p.Status, To: to}
		}
	case PaymentFailed:
		if to == PaymentFailed {
			return nil
		}
	}
	return &TransitionError{Base: ErrInvalidTransition, From: p.Status, To: to}
}

// Open reports whether the payment still blocks a new attempt for the same
// prize and participant.
func (p *PrizePayment) Open() bool {
	return p.Status != PaymentFailed
}
