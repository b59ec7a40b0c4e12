package gift

import "errors"

var (
	ErrNilState      = errors.New("gift: state not configured")
	ErrNilCustody    = errors.New("gift: custody not configured")
	ErrNilValuer     = errors.New("gift: price oracle not configured")
	ErrGiftNotFound  = errors.New("gift: gift not found")
	ErrReentrantCall = errors.New("gift: reentrant call")

	ErrSelfGift           = errors.New("gift: giver and receiver match")
	ErrZeroAddress        = errors.New("gift: zero address")
	ErrZeroAmount         = errors.New("gift: amount must be positive")
	ErrAssetNotAllowed    = errors.New("gift: asset not allowed")
	ErrInsufficientValue  = errors.New("gift: supplied value below required")
	ErrNotReceiver        = errors.New("gift: caller is not the receiver")
	ErrNotGiver           = errors.New("gift: caller is not the giver")
	ErrAlreadyClaimed     = errors.New("gift: already claimed")
	ErrAlreadyRefunded    = errors.New("gift: already refunded")
	ErrRefundWindowClosed = errors.New("gift: refund window closed")
	ErrNoSurplus          = errors.New("gift: no surplus to claim")
	ErrTransferFailed     = errors.New("gift: transfer rejected by recipient")

	ErrLengthMismatch        = errors.New("gift: array length mismatch")
	ErrAssetAlreadyAllowed   = errors.New("gift: asset already allowed")
	ErrCommissionOutstanding = errors.New("gift: commission balance not empty")
	ErrCommissionBalance     = errors.New("gift: insufficient commission balance")

	ErrInvalidSignature   = errors.New("gift: invalid claim signature")
	ErrUnauthorizedSigner = errors.New("gift: claim not signed by receiver")
)
