package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"raisemoney/core/types"
	"raisemoney/native/campaign"
)

type campaignJSON struct {
	ID           string `json:"id"`
	Beneficiary  string `json:"beneficiary"`
	Target       string `json:"target"`
	Raised       string `json:"raised"`
	CreatedAt    int64  `json:"createdAt"`
	DurationDays uint32 `json:"durationDays"`
	Deadline     int64  `json:"deadline"`
	Status       string `json:"status"`
	Successful   bool   `json:"successful"`
	Ended        bool   `json:"ended"`
}

func formatCampaignJSON(c *campaign.Campaign, now int64) campaignJSON {
	return campaignJSON{
		ID:           strconv.FormatUint(c.ID, 10),
		Beneficiary:  c.Beneficiary.String(),
		Target:       amountString(c.Target),
		Raised:       amountString(c.Raised),
		CreatedAt:    c.CreatedAt,
		DurationDays: c.DurationDays,
		Deadline:     c.Deadline,
		Status:       c.Status.String(),
		Successful:   c.Successful(),
		Ended:        c.Ended(now),
	}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// decodeParams unmarshals the single parameter object of req into dst.
func decodeParams(req *RPCRequest, dst interface{}) error {
	if len(req.Params) != 1 {
		return invalidParams("exactly one parameter object expected")
	}
	decoder := json.NewDecoder(strings.NewReader(string(req.Params[0])))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return invalidParams("%s", err.Error())
	}
	return nil
}

// campaignID accepts ids as JSON numbers or decimal strings.
type campaignID uint64

func (id *campaignID) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" {
		return fmt.Errorf("campaign id required")
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid campaign id %q", raw)
	}
	*id = campaignID(parsed)
	return nil
}

func parsePrincipal(field, raw string) (types.Principal, error) {
	p, err := types.ParsePrincipal(raw)
	if err != nil {
		return types.ZeroPrincipal, invalidParams("%s: %v", field, err)
	}
	return p, nil
}

// parseAmount decodes a base-10 integer. Sign and range checks are left to
// the ledger so the caller sees the ledger's error kind.
func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, invalidParams("%s required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, invalidParams("%s must be a base-10 integer", field)
	}
	return amount, nil
}
