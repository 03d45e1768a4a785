package host

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/record-plugins/pkg/commsutil"
)

const subscribeLogPrefix = "host:subscribe"

// Subscribe answers invocation requests on subject with h. Each request gets
// its own context bounded by timeout; a shorter caller deadline or timeout wins.
// ctx cancels in-flight requests on shutdown.
func Subscribe(ctx context.Context, nc *comms.Conn, subject string, h *Handler, timeout time.Duration) (*comms.Subscription, error) {
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		req, err := commsutil.DecodePayload[InvocationRequest](msg.Data)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - failed to decode request: %v", subscribeLogPrefix, err))
			respond(msg, errorResponse("", CodeInvalidRequest, "Failed to decode request", false))
			return
		}

		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout(req.Ctx, timeout))
		defer cancel()

		respond(msg, h.Handle(reqCtx, req))
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", subscribeLogPrefix, subject, err)
	}
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", subscribeLogPrefix, subject))
	return sub, nil
}

// requestTimeout picks the caller's deadline (or timeout) when it is shorter than def.
func requestTimeout(cc *CallerContext, def time.Duration) time.Duration {
	if cc == nil {
		return def
	}
	ms := cc.DeadlineMs
	if ms <= 0 {
		ms = cc.TimeoutMs
	}
	if ms > 0 && time.Duration(ms)*time.Millisecond < def {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

func respond(msg *comms.Msg, resp *InvocationResponse) {
	data, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", subscribeLogPrefix, err))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to respond: %v", subscribeLogPrefix, err))
	}
}

// Call sends req to subject and decodes the response.
func Call(ctx context.Context, nc *comms.Conn, subject string, req *InvocationRequest) (*InvocationResponse, error) {
	data, err := commsutil.EncodePayload(req)
	if err != nil {
		return nil, err
	}
	msg, err := nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("%s - request to %s failed: %w", subscribeLogPrefix, subject, err)
	}
	return commsutil.DecodePayload[InvocationResponse](msg.Data)
}
