package rpc

import (
	"context"
	"time"
)

type devIncreaseTimeParams struct {
	Seconds int64 `json:"seconds"`
}

type devNowResult struct {
	Now         int64 `json:"now"`
	ManualClock bool  `json:"manualClock"`
}

func (s *Server) handleDevIncreaseTime(ctx context.Context, req *RPCRequest) (interface{}, error) {
	if _, err := requireCaller(ctx); err != nil {
		return nil, err
	}
	var params devIncreaseTimeParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	if params.Seconds < 0 {
		return nil, invalidParams("seconds must not be negative")
	}
	now, err := s.node.AdvanceTime(time.Duration(params.Seconds) * time.Second)
	if err != nil {
		return nil, err
	}
	return devNowResult{Now: now, ManualClock: true}, nil
}

func (s *Server) handleDevNow(ctx context.Context, req *RPCRequest) (interface{}, error) {
	return devNowResult{Now: s.node.Now(), ManualClock: s.node.ManualClock()}, nil
}
