package utils

import (
	"context"

	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/appctx"
)

var (
	ContextKeyCorrelationId  = appctx.ContextKeyCorrelationId
	ContextKeyAdminActor     = appctx.ContextKeyAdminActor
	ContextKeyInternalCaller = appctx.ContextKeyInternalCaller
)

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func GetAdminActorFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyAdminActor)
}

func SetAdminActorInContext(ctx context.Context, actor string) context.Context {
	return appctx.Set(ctx, ContextKeyAdminActor, actor)
}

func GetInternalCallerFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeyInternalCaller)
}

func SetInternalCallerInContext(ctx context.Context, internal bool) context.Context {
	return appctx.Set(ctx, ContextKeyInternalCaller, internal)
}
