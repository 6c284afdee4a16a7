// Package errors classifies failures returned by the ledger node into stable
// kinds and categories shared by the RPC layer, metrics and logs.
package errors

import (
	stderrors "errors"

	"raisemoney/core/clock"
	"raisemoney/native/campaign"
	"raisemoney/native/token"
)

var (
	// ErrClockNotManual is returned by time travel helpers on nodes running on
	// the system clock.
	ErrClockNotManual = stderrors.New("node: clock is not manual")
	// ErrMintDisabled is returned when minting is requested on a node that
	// does not allow it.
	ErrMintDisabled = stderrors.New("node: token minting disabled")
)

var tokenKinds = []struct {
	err      error
	kind     string
	category string
}{
	{token.ErrInvalidAmount, "InvalidAmount", campaign.CategoryValidation},
	{token.ErrZeroAddress, "ZeroAddress", campaign.CategoryValidation},
	{token.ErrInvalidMetadata, "InvalidMetadata", campaign.CategoryValidation},
	{token.ErrInsufficientBalance, "InsufficientBalance", campaign.CategoryState},
	{token.ErrInsufficientAllowance, "InsufficientAllowance", campaign.CategoryAuthorization},
	{ErrMintDisabled, "MintDisabled", campaign.CategoryAuthorization},
	{ErrClockNotManual, "ClockNotManual", campaign.CategoryState},
	{clock.ErrBackwards, "ClockBackwards", campaign.CategoryValidation},
}

// Kind returns the stable failure kind for err. Campaign errors take
// precedence so a wrapped token failure inside TransferFailed reports as
// TransferFailed.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	if kind := campaign.Kind(err); kind != "Internal" {
		return kind
	}
	for _, entry := range tokenKinds {
		if stderrors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return "Internal"
}

// Category returns the category for err; see the campaign package for the
// category names.
func Category(err error) string {
	if err == nil {
		return ""
	}
	if category := campaign.Category(err); category != campaign.CategoryInternal {
		return category
	}
	for _, entry := range tokenKinds {
		if stderrors.Is(err, entry.err) {
			return entry.category
		}
	}
	return campaign.CategoryInternal
}
