package handler

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/FACorreiaa/storelink-api/internal/domain/referral"
	"github.com/FACorreiaa/storelink-api/internal/types"
	"github.com/FACorreiaa/storelink-api/pkg/interceptors"
)

const (
	ReferralServiceName = "storelink.v1.ReferralService"

	ReferralServiceRedeemProcedure = "/storelink.v1.ReferralService/Redeem"
)

type RedeemRequest struct {
	Code string `json:"code"`
}

type ReferralHandler struct {
	service referral.Service
}

func NewReferralHandler(svc referral.Service) *ReferralHandler {
	return &ReferralHandler{service: svc}
}

func NewReferralServiceHandler(h *ReferralHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(ReferralServiceRedeemProcedure, connect.NewUnaryHandler(ReferralServiceRedeemProcedure, h.Redeem, opts...))
	return "/" + ReferralServiceName + "/", mux
}

// Redeem always answers with a RedeemResult; failures are reported in its Error field.
func (h *ReferralHandler) Redeem(ctx context.Context, req *connect.Request[RedeemRequest]) (*connect.Response[types.RedeemResult], error) {
	userID := uuid.Nil
	if id, ok := interceptors.IdentityFromContext(ctx); ok {
		userID = id.UserID
	}
	res := h.service.Redeem(ctx, req.Msg.Code, userID)
	return connect.NewResponse(&res), nil
}
