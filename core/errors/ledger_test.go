package errors

import (
	"fmt"
	"testing"

	"raisemoney/native/campaign"
	"raisemoney/native/token"
)

func TestKindPrefersCampaignErrors(t *testing.T) {
	wrapped := fmt.Errorf("%w: %v", campaign.ErrTransferFailed, token.ErrInsufficientAllowance)
	if got := Kind(wrapped); got != "TransferFailed" {
		t.Fatalf("expected TransferFailed, got %s", got)
	}
	if got := Category(wrapped); got != campaign.CategoryCollaborator {
		t.Fatalf("expected collaborator, got %s", got)
	}
}

func TestKindClassifiesTokenAndNodeErrors(t *testing.T) {
	cases := map[error]string{
		token.ErrInsufficientBalance:                      "InsufficientBalance",
		fmt.Errorf("mint: %w", ErrMintDisabled):           "MintDisabled",
		ErrClockNotManual:                                 "ClockNotManual",
		fmt.Errorf("boom"):                                "Internal",
		fmt.Errorf("ctx: %w", campaign.ErrAlreadySettled): "AlreadySettled",
	}
	for err, want := range cases {
		if got := Kind(err); got != want {
			t.Fatalf("%v: expected %s, got %s", err, want, got)
		}
	}
	if Category(ErrMintDisabled) != campaign.CategoryAuthorization {
		t.Fatalf("unexpected category for mint disabled")
	}
	if Kind(nil) != "" || Category(nil) != "" {
		t.Fatalf("nil must not be classified")
	}
}
