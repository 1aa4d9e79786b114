package handler

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/allshop-fulfillment/internal/adapter/handler/pb"
	"github.com/rl1809/allshop-fulfillment/internal/core/domain"
	"github.com/rl1809/allshop-fulfillment/internal/core/service"
	"github.com/rl1809/allshop-fulfillment/internal/port"
)

type actorContextKey struct{}

type GRPCHandler struct {
	pb.UnimplementedFulfillmentServer
	fulfillment *service.FulfillmentService
	identity    port.IdentityProvider
	logger      *zap.Logger
}

func NewGRPCHandler(fulfillment *service.FulfillmentService, identity port.IdentityProvider, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{
		fulfillment: fulfillment,
		identity:    identity,
		logger:      logger.Named("grpc"),
	}
}

// UnaryInterceptor resolves the operator from the authorization metadata
// before any method runs.
func (h *GRPCHandler) UnaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
	var credential string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("authorization"); len(v) > 0 {
			credential = v[0]
		}
	}

	actor, err := h.identity.Resolve(ctx, credential)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	resp, err := next(context.WithValue(ctx, actorContextKey{}, actor), req)
	if err != nil {
		h.logger.Info("rpc failed",
			zap.String("method", info.FullMethod),
			zap.String("actor", actor.DisplayName()),
			zap.Error(err),
		)
	}
	return resp, err
}

func (h *GRPCHandler) OpenSession(ctx context.Context, req *pb.OpenSessionRequest) (*pb.SessionResponse, error) {
	if req.GetOrderId() == "" {
		return nil, status.Error(codes.InvalidArgument, "orderId is required")
	}
	view, err := h.fulfillment.OpenSession(ctx, req.GetOrderId())
	if err != nil {
		return nil, grpcError(err)
	}
	return toSessionResponse(view), nil
}

func (h *GRPCHandler) Scan(ctx context.Context, req *pb.ScanRequest) (*pb.SessionResponse, error) {
	view, err := h.fulfillment.Scan(req.GetSessionId(), req.GetCode())
	if err != nil {
		return nil, grpcError(err)
	}
	return toSessionResponse(view), nil
}

func (h *GRPCHandler) Commit(ctx context.Context, req *pb.CommitRequest) (*pb.CommitResponse, error) {
	actor, _ := ctx.Value(actorContextKey{}).(domain.Actor)

	result, err := h.fulfillment.Commit(ctx, req.GetSessionId(), actor, req.GetTrackingNumber())
	if err != nil {
		return nil, grpcError(err)
	}
	return &pb.CommitResponse{
		OrderId:     result.OrderID,
		MovementId:  result.MovementID,
		Serials:     result.Serials,
		LotsUpdated: result.LotsUpdated,
	}, nil
}

func (h *GRPCHandler) Cancel(ctx context.Context, req *pb.CancelRequest) (*pb.CancelResponse, error) {
	if err := h.fulfillment.Cancel(req.GetSessionId()); err != nil {
		return nil, grpcError(err)
	}
	return &pb.CancelResponse{}, nil
}

func toSessionResponse(view service.SessionView) *pb.SessionResponse {
	resp := &pb.SessionResponse{
		Id:        view.ID,
		OrderId:   view.OrderID,
		Items:     make([]*pb.ItemProgress, 0, len(view.Items)),
		Complete:  view.Complete,
		LastError: view.LastError,
	}
	for _, it := range view.Items {
		resp.Items = append(resp.Items, &pb.ItemProgress{
			Key:       it.Key,
			ProductId: it.ProductID,
			Variant:   it.Variant,
			Needed:    int32(it.Needed),
			Scanned:   int32(it.Scanned),
			Serials:   it.Serials,
		})
	}
	return resp
}

func grpcError(err error) error {
	switch {
	case service.IsOperatorError(err),
		errors.Is(err, service.ErrIncompleteScan),
		errors.Is(err, service.ErrNothingToFulfill):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		return status.Error(codes.NotFound, err.Error())
	case service.IsConflict(err), errors.Is(err, port.ErrTransactionConflict):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
