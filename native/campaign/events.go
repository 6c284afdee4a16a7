package campaign

import (
	"math/big"
	"strconv"

	"raisemoney/core/types"
)

const (
	EventTypeCampaignCreated     = "campaign.created"
	EventTypeContributed         = "campaign.contributed"
	EventTypeContributionUndone  = "campaign.contribution_undone"
	EventTypeCampaignWithdrawn   = "campaign.withdrawn"
	EventTypeCampaignRefunded    = "campaign.refunded"
	EventTypeCampaignRefundPaid  = "campaign.refund_paid"
	AttributeCampaignID          = "campaignId"
	AttributeBeneficiary         = "beneficiary"
	AttributeContributor         = "contributor"
	AttributeAmount              = "amount"
	AttributeContributionBalance = "contribution"
	AttributeTarget              = "target"
	AttributeRaised              = "raised"
	AttributeDeadline            = "deadline"
	AttributeStatus              = "status"
	AttributeTotal               = "total"
	AttributeRecipients          = "recipients"
	AttributeCaller              = "caller"
)

// NewCreatedEvent returns the canonical payload for a newly opened campaign.
func NewCreatedEvent(c *Campaign) *types.Event {
	evt := newCampaignEvent(EventTypeCampaignCreated, c)
	evt.Attributes[AttributeTarget] = amountString(c.Target)
	evt.Attributes[AttributeDeadline] = strconv.FormatInt(c.Deadline, 10)
	return evt
}

// NewContributedEvent is emitted after a contribution has been credited.
func NewContributedEvent(c *Campaign, contributor types.Principal, amount, balance *big.Int) *types.Event {
	evt := newCampaignEvent(EventTypeContributed, c)
	evt.Attributes[AttributeContributor] = contributor.String()
	evt.Attributes[AttributeAmount] = amountString(amount)
	evt.Attributes[AttributeContributionBalance] = amountString(balance)
	return evt
}

// NewContributionUndoneEvent is emitted after part of a contribution was
// returned.
func NewContributionUndoneEvent(c *Campaign, contributor types.Principal, amount, balance *big.Int) *types.Event {
	evt := newCampaignEvent(EventTypeContributionUndone, c)
	evt.Attributes[AttributeContributor] = contributor.String()
	evt.Attributes[AttributeAmount] = amountString(amount)
	evt.Attributes[AttributeContributionBalance] = amountString(balance)
	return evt
}

// NewWithdrawnEvent is emitted when the beneficiary collected the funds.
func NewWithdrawnEvent(c *Campaign, amount *big.Int) *types.Event {
	evt := newCampaignEvent(EventTypeCampaignWithdrawn, c)
	evt.Attributes[AttributeAmount] = amountString(amount)
	return evt
}

// NewRefundPaidEvent records a single refund transfer.
func NewRefundPaidEvent(c *Campaign, contributor types.Principal, amount *big.Int) *types.Event {
	evt := newCampaignEvent(EventTypeCampaignRefundPaid, c)
	evt.Attributes[AttributeContributor] = contributor.String()
	evt.Attributes[AttributeAmount] = amountString(amount)
	return evt
}

// NewRefundedEvent closes a refund sweep triggered by caller.
func NewRefundedEvent(c *Campaign, caller types.Principal, total *big.Int, recipients int) *types.Event {
	evt := newCampaignEvent(EventTypeCampaignRefunded, c)
	evt.Attributes[AttributeCaller] = caller.String()
	evt.Attributes[AttributeTotal] = amountString(total)
	evt.Attributes[AttributeRecipients] = strconv.Itoa(recipients)
	return evt
}

func newCampaignEvent(eventType string, c *Campaign) *types.Event {
	attrs := make(map[string]string)
	if c != nil {
		attrs[AttributeCampaignID] = strconv.FormatUint(c.ID, 10)
		attrs[AttributeBeneficiary] = c.Beneficiary.String()
		attrs[AttributeRaised] = amountString(c.Raised)
		attrs[AttributeStatus] = c.Status.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
