package jobs

import "errors"

var (
	ErrInvalidSchedule = errors.New("invalid charge schedule")
	ErrJobPanicked     = errors.New("job panicked")

	// errAttemptExists aborts a charge transaction when the current window
	// already holds an attempt, whatever its outcome.
	errAttemptExists = errors.New("charge attempt already exists in window")

	// errNoPriorPayment marks a subscription with no completed payment to
	// template an offline charge from (manual grants, imported data).
	errNoPriorPayment = errors.New("no completed payment to charge against")
)
