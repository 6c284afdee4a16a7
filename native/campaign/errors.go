package campaign

import "errors"

var (
	ErrInvalidDuration          = errors.New("campaign: duration must be between 1 and 30 days")
	ErrInvalidTarget            = errors.New("campaign: target must be positive")
	ErrInvalidBeneficiary       = errors.New("campaign: beneficiary must be set")
	ErrInvalidAmount            = errors.New("campaign: amount must be a positive 256-bit value")
	ErrNotFound                 = errors.New("campaign: not found")
	ErrCampaignExpired          = errors.New("campaign: expired")
	ErrTargetReached            = errors.New("campaign: target reached")
	ErrTooEarly                 = errors.New("cannot withdraw before ending")
	ErrUnauthorized             = errors.New("Error, only the beneficiary can withdraw!")
	ErrAlreadySettled           = errors.New("campaign: already settled")
	ErrTargetAlreadyMet         = errors.New("campaign: target already met")
	ErrInsufficientContribution = errors.New("campaign: insufficient contribution")
	ErrTransferFailed           = errors.New("campaign: token transfer failed")
)

// Error categories group failures by how a caller should react to them.
const (
	CategoryValidation    = "validation"
	CategoryTemporal      = "temporal"
	CategoryAuthorization = "authorization"
	CategoryState         = "state"
	CategoryCollaborator  = "collaborator"
	CategoryInternal      = "internal"
)

type errorInfo struct {
	err      error
	kind     string
	category string
}

var errorTable = []errorInfo{
	{ErrInvalidDuration, "InvalidDuration", CategoryValidation},
	{ErrInvalidTarget, "InvalidTarget", CategoryValidation},
	{ErrInvalidBeneficiary, "InvalidBeneficiary", CategoryValidation},
	{ErrInvalidAmount, "InvalidAmount", CategoryValidation},
	{ErrInsufficientContribution, "InsufficientContribution", CategoryValidation},
	{ErrCampaignExpired, "CampaignExpired", CategoryTemporal},
	{ErrTooEarly, "TooEarly", CategoryTemporal},
	{ErrTargetReached, "TargetReached", CategoryTemporal},
	{ErrTargetAlreadyMet, "TargetAlreadyMet", CategoryTemporal},
	{ErrUnauthorized, "Unauthorized", CategoryAuthorization},
	{ErrAlreadySettled, "AlreadySettled", CategoryState},
	{ErrNotFound, "NotFound", CategoryState},
	{ErrTransferFailed, "TransferFailed", CategoryCollaborator},
}

func lookup(err error) (errorInfo, bool) {
	if err == nil {
		return errorInfo{}, false
	}
	for _, info := range errorTable {
		if errors.Is(err, info.err) {
			return info, true
		}
	}
	return errorInfo{}, false
}

// Kind returns the stable failure kind for err, or "Internal" when err is not
// a campaign error. Kind returns "" for a nil error.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	if info, ok := lookup(err); ok {
		return info.kind
	}
	return "Internal"
}

// Category returns the error category for err.
func Category(err error) string {
	if err == nil {
		return ""
	}
	if info, ok := lookup(err); ok {
		return info.category
	}
	return CategoryInternal
}
