package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Client calls a remote schedule service
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Evaluate sends req. Failures come back as gRPC status errors.
func (c *Client) Evaluate(ctx context.Context, req Request, opts ...grpc.CallOption) (*Reply, error) {
	out := dynamicpb.NewMessage(replyDesc)
	if err := c.cc.Invoke(ctx, EvaluateMethod, req.message(), out, opts...); err != nil {
		return nil, err
	}

	return replyFromMessage(out), nil
}
