package voucher

import (
	"errors"
	"fmt"
)

// ErrUnbalanced is returned by Build when the ledger amounts of the
// assembled voucher do not sum to zero within tolerance. An unbalanced
// voucher is never submitted.
var ErrUnbalanced = errors.New("voucher does not balance")

// PostingError wraps a gateway rejection or transport failure during
// submission. The voucher itself was well formed.
type PostingError struct {
	VoucherType string
	Reference   string
	Err         error
}

func (e *PostingError) Error() string {
	if e.Reference != "" {
		return fmt.Sprintf("failed to post %s voucher %s: %v", e.VoucherType, e.Reference, e.Err)
	}
	return fmt.Sprintf("failed to post %s voucher: %v", e.VoucherType, e.Err)
}

func (e *PostingError) Unwrap() error { return e.Err }
