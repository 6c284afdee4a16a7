package rpc

import (
	"context"
	"strings"
)

type tokenMetadataResult struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"totalSupply"`
	Custody     string `json:"custody"`
}

type tokenBalanceParams struct {
	Owner string `json:"owner"`
}

type tokenBalanceResult struct {
	Owner   string `json:"owner"`
	Balance string `json:"balance"`
}

type tokenAllowanceParams struct {
	Owner string `json:"owner"`
	// Spender defaults to the campaign custody principal.
	Spender string `json:"spender,omitempty"`
}

type tokenAllowanceResult struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance string `json:"allowance"`
}

type tokenApproveParams struct {
	Spender string `json:"spender,omitempty"`
	Amount  string `json:"amount"`
}

type tokenTransferParams struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleTokenMetadata(ctx context.Context, req *RPCRequest) (interface{}, error) {
	meta, err := s.node.TokenMetadata()
	if err != nil {
		return nil, err
	}
	supply, err := s.node.TotalSupply()
	if err != nil {
		return nil, err
	}
	return tokenMetadataResult{
		Symbol:      meta.Symbol,
		Name:        meta.Name,
		Decimals:    meta.Decimals,
		TotalSupply: amountString(supply),
		Custody:     s.node.Custody().String(),
	}, nil
}

func (s *Server) handleTokenBalanceOf(ctx context.Context, req *RPCRequest) (interface{}, error) {
	var params tokenBalanceParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	owner, err := parsePrincipal("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	balance, err := s.node.BalanceOf(owner)
	if err != nil {
		return nil, err
	}
	return tokenBalanceResult{Owner: owner.String(), Balance: amountString(balance)}, nil
}

func (s *Server) handleTokenAllowance(ctx context.Context, req *RPCRequest) (interface{}, error) {
	var params tokenAllowanceParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	owner, err := parsePrincipal("owner", params.Owner)
	if err != nil {
		return nil, err
	}
	spender := s.node.Custody()
	if strings.TrimSpace(params.Spender) != "" {
		if spender, err = parsePrincipal("spender", params.Spender); err != nil {
			return nil, err
		}
	}
	allowance, err := s.node.Allowance(owner, spender)
	if err != nil {
		return nil, err
	}
	return tokenAllowanceResult{Owner: owner.String(), Spender: spender.String(), Allowance: amountString(allowance)}, nil
}

func (s *Server) handleTokenApprove(ctx context.Context, req *RPCRequest) (interface{}, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	var params tokenApproveParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	spender := s.node.Custody()
	if strings.TrimSpace(params.Spender) != "" {
		if spender, err = parsePrincipal("spender", params.Spender); err != nil {
			return nil, err
		}
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.Approve(ctx, caller, spender, amount); err != nil {
		return nil, err
	}
	allowance, err := s.node.Allowance(caller, spender)
	if err != nil {
		return nil, err
	}
	return tokenAllowanceResult{Owner: caller.String(), Spender: spender.String(), Allowance: amountString(allowance)}, nil
}

func (s *Server) handleTokenTransfer(ctx context.Context, req *RPCRequest) (interface{}, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	var params tokenTransferParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	to, err := parsePrincipal("to", params.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.Transfer(ctx, caller, to, amount); err != nil {
		return nil, err
	}
	balance, err := s.node.BalanceOf(caller)
	if err != nil {
		return nil, err
	}
	return tokenBalanceResult{Owner: caller.String(), Balance: amountString(balance)}, nil
}

func (s *Server) handleTokenMint(ctx context.Context, req *RPCRequest) (interface{}, error) {
	if _, err := requireCaller(ctx); err != nil {
		return nil, err
	}
	var params tokenTransferParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	to, err := parsePrincipal("to", params.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.Mint(ctx, to, amount); err != nil {
		return nil, err
	}
	balance, err := s.node.BalanceOf(to)
	if err != nil {
		return nil, err
	}
	return tokenBalanceResult{Owner: to.String(), Balance: amountString(balance)}, nil
}
