package rpc

import (
	"errors"
	"net/http"

	nodeerrors "raisemoney/core/errors"
	"raisemoney/native/campaign"
)

const (
	codeValidation    = -32031
	codeTemporal      = -32032
	codeAuthorization = -32033
	codeState         = -32034
	codeNotFound      = -32035
	codeCollaborator  = -32036
)

// errorData is attached to every ledger failure so clients can branch on
// the stable kind rather than the message.
type errorData struct {
	Kind     string `json:"kind"`
	Category string `json:"category"`
}

// translateError maps a handler failure onto an HTTP status and JSON-RPC
// error object.
func (s *Server) translateError(err error) (int, *RPCError) {
	var failure *rpcFailure
	if errors.As(err, &failure) {
		return failure.status, failure.err
	}
	kind := nodeerrors.Kind(err)
	category := nodeerrors.Category(err)
	data := errorData{Kind: kind, Category: category}

	if errors.Is(err, campaign.ErrNotFound) {
		return http.StatusNotFound, &RPCError{Code: codeNotFound, Message: err.Error(), Data: data}
	}
	switch category {
	case campaign.CategoryValidation:
		return http.StatusBadRequest, &RPCError{Code: codeValidation, Message: err.Error(), Data: data}
	case campaign.CategoryTemporal:
		return http.StatusConflict, &RPCError{Code: codeTemporal, Message: err.Error(), Data: data}
	case campaign.CategoryAuthorization:
		return http.StatusForbidden, &RPCError{Code: codeAuthorization, Message: err.Error(), Data: data}
	case campaign.CategoryState:
		return http.StatusConflict, &RPCError{Code: codeState, Message: err.Error(), Data: data}
	case campaign.CategoryCollaborator:
		return http.StatusBadGateway, &RPCError{Code: codeCollaborator, Message: err.Error(), Data: data}
	default:
		return http.StatusInternalServerError, &RPCError{Code: codeServerError, Message: "internal_error", Data: data}
	}
}
