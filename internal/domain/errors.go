package domain

import "errors"

var (
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrAuctionExists        = errors.New("auction already exists")
	ErrAlreadyTerminal      = errors.New("auction already completed or cancelled")
	ErrInvalidAuction       = errors.New("invalid auction")
	ErrCancelReasonRequired = errors.New("cancel reason required")
	ErrBidderRequired       = errors.New("bidder id required")
	ErrInvalidCursor        = errors.New("invalid bid history cursor")
	ErrBusy                 = errors.New("auction busy, retry later")
	ErrInvalidAmount        = errors.New("invalid bid amount")
)
