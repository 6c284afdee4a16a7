package rpc

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"raisemoney/core/types"
)

type campaignKickOffParams struct {
	// Beneficiary defaults to the caller.
	Beneficiary  string `json:"beneficiary,omitempty"`
	Target       string `json:"target"`
	DurationDays uint32 `json:"durationDays"`
}

type campaignKickOffResult struct {
	ID       string `json:"id"`
	Deadline int64  `json:"deadline"`
}

type campaignIDParams struct {
	ID campaignID `json:"id"`
}

type campaignAmountParams struct {
	ID     campaignID `json:"id"`
	Amount string     `json:"amount"`
}

type campaignContributorParams struct {
	ID          campaignID `json:"id"`
	Contributor string     `json:"contributor"`
}

type campaignListEventsParams struct {
	ID    campaignID `json:"id"`
	Limit int        `json:"limit,omitempty"`
}

type campaignStatusResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type campaignSuccessResult struct {
	ID         string `json:"id"`
	Successful bool   `json:"successful"`
}

type campaignRaisedResult struct {
	ID          string `json:"id"`
	Contributor string `json:"contributor"`
	Amount      string `json:"amount"`
}

type campaignBenefactorsResult struct {
	ID          string   `json:"id"`
	Benefactors []string `json:"benefactors"`
}

type campaignCountResult struct {
	Count uint64 `json:"count"`
}

func formatID(id uint64) string { return strconv.FormatUint(id, 10) }

func (s *Server) handleCampaignKickOff(ctx context.Context, req *RPCRequest) (interface{}, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	var params campaignKickOffParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	beneficiary := caller
	if strings.TrimSpace(params.Beneficiary) != "" {
		if beneficiary, err = parsePrincipal("beneficiary", params.Beneficiary); err != nil {
			return nil, err
		}
	}
	target, err := parseAmount("target", params.Target)
	if err != nil {
		return nil, err
	}
	id, err := s.node.KickOff(ctx, beneficiary, target, params.DurationDays)
	if err != nil {
		return nil, err
	}
	c, err := s.node.GetCampaign(id)
	if err != nil {
		return nil, err
	}
	return campaignKickOffResult{ID: formatID(id), Deadline: c.Deadline}, nil
}

func (s *Server) handleCampaignGive(ctx context.Context, req *RPCRequest) (interface{}, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	var params campaignAmountParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.Give(ctx, uint64(params.ID), caller, amount); err != nil {
		return nil, err
	}
	return s.raisedResult(uint64(params.ID), caller)
}

func (s *Server) handleCampaignUndoGiving(ctx context.Context, req *RPCRequest) (interface{}, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	var params campaignAmountParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.UndoGiving(ctx, uint64(params.ID), caller, amount); err != nil {
		return nil, err
	}
	return s.raisedResult(uint64(params.ID), caller)
}

func (s *Server) raisedResult(id uint64, contributor types.Principal) (interface{}, error) {
	amount, err := s.node.TrackRaisedMoney(id, contributor)
	if err != nil {
		return nil, err
	}
	return campaignRaisedResult{ID: formatID(id), Contributor: contributor.String(), Amount: amountString(amount)}, nil
}

func (s *Server) handleCampaignWithdrawal(ctx context.Context, req *RPCRequest) (interface{}, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	var params campaignIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	if err := s.node.Withdrawal(ctx, uint64(params.ID), caller); err != nil {
		return nil, err
	}
	return s.statusResult(uint64(params.ID))
}

func (s *Server) handleCampaignRefund(ctx context.Context, req *RPCRequest) (interface{}, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	var params campaignIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	if err := s.node.Refund(ctx, uint64(params.ID), caller); err != nil {
		return nil, err
	}
	return s.statusResult(uint64(params.ID))
}

func (s *Server) statusResult(id uint64) (interface{}, error) {
	c, err := s.node.GetCampaign(id)
	if err != nil {
		return nil, err
	}
	return campaignStatusResult{ID: formatID(id), Status: c.Status.String()}, nil
}

func (s *Server) handleCampaignCheckSuccess(ctx context.Context, req *RPCRequest) (interface{}, error) {
	var params campaignIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	ok, err := s.node.CheckSuccess(uint64(params.ID))
	if err != nil {
		return nil, err
	}
	return campaignSuccessResult{ID: formatID(uint64(params.ID)), Successful: ok}, nil
}

func (s *Server) handleCampaignGet(ctx context.Context, req *RPCRequest) (interface{}, error) {
	var params campaignIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	c, err := s.node.GetCampaign(uint64(params.ID))
	if err != nil {
		return nil, err
	}
	return formatCampaignJSON(c, s.node.Now()), nil
}

func (s *Server) handleCampaignCount(ctx context.Context, req *RPCRequest) (interface{}, error) {
	if len(req.Params) > 1 {
		return nil, invalidParams("no parameters expected")
	}
	count, err := s.node.CampaignCount()
	if err != nil {
		return nil, err
	}
	return campaignCountResult{Count: count}, nil
}

func (s *Server) handleCampaignTrackRaisedMoney(ctx context.Context, req *RPCRequest) (interface{}, error) {
	var params campaignContributorParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	var contributor types.Principal
	if strings.TrimSpace(params.Contributor) == "" {
		caller, ok := callerFrom(ctx)
		if !ok {
			return nil, invalidParams("contributor required")
		}
		contributor = caller
	} else {
		var err error
		if contributor, err = parsePrincipal("contributor", params.Contributor); err != nil {
			return nil, err
		}
	}
	return s.raisedResult(uint64(params.ID), contributor)
}

func (s *Server) handleCampaignGetBenefactors(ctx context.Context, req *RPCRequest) (interface{}, error) {
	var params campaignIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	list, err := s.node.GetBenefactors(uint64(params.ID))
	if err != nil {
		return nil, err
	}
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.String()
	}
	return campaignBenefactorsResult{ID: formatID(uint64(params.ID)), Benefactors: out}, nil
}

func (s *Server) handleCampaignListEvents(ctx context.Context, req *RPCRequest) (interface{}, error) {
	if s.index == nil {
		return nil, &rpcFailure{
			status: http.StatusServiceUnavailable,
			err:    &RPCError{Code: codeServerError, Message: "event index disabled"},
		}
	}
	var params campaignListEventsParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	if params.Limit < 0 {
		return nil, invalidParams("limit must not be negative")
	}
	if params.ID != 0 {
		if _, err := s.node.GetCampaign(uint64(params.ID)); err != nil {
			return nil, err
		}
	}
	return s.index.List(ctx, uint64(params.ID), params.Limit)
}
