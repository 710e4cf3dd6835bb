package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// fullListingLimit is the page size sent with full-listing requests
const fullListingLimit = 9999

var serverStream = &grpc.StreamDesc{ServerStreams: true}

// streamMessages opens a server-streaming call and yields every message until
// the server closes the stream. The call is cancelled when the consumer stops
// early.
func streamMessages(ctx context.Context, conn grpc.ClientConnInterface, method upstreamMethod, req *dynamicpb.Message) iter.Seq2[protoreflect.Message, error] {
	return func(yield func(protoreflect.Message, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stream, err := conn.NewStream(ctx, serverStream, method.path)
		if err != nil {
			yield(nil, fmt.Errorf("%w: open %s: %w", ErrStream, method.path, err))
			return
		}
		// io.EOF here means the server already finished; RecvMsg reports the status
		if err := stream.SendMsg(req); err != nil && !errors.Is(err, io.EOF) {
			yield(nil, fmt.Errorf("%w: send %s: %w", ErrStream, method.path, err))
			return
		}
		if err := stream.CloseSend(); err != nil {
			yield(nil, fmt.Errorf("%w: close send %s: %w", ErrStream, method.path, err))
			return
		}

		for {
			msg := dynamicpb.NewMessage(method.output)
			err := stream.RecvMsg(msg)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("%w: recv %s: %w", ErrStream, method.path, err))
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// decodeStream maps every streamed message through decode. A message that does
// not decode ends the sequence with an error.
func decodeStream[T any](source string, messages iter.Seq2[protoreflect.Message, error], decode func(protoreflect.Message) (T, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		for msg, err := range messages {
			if err != nil {
				yield(zero, NewAdapterError(source, "stream", err, nil))
				return
			}
			item, err := decode(msg)
			if err != nil {
				yield(zero, NewAdapterError(source, "decode", err, nil))
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// limitRequest builds a full-listing request
func limitRequest(method upstreamMethod) *dynamicpb.Message {
	req := dynamicpb.NewMessage(method.input)
	req.Set(method.input.Fields().ByName("limit"), protoreflect.ValueOfInt32(fullListingLimit))
	return req
}

// idRequest builds a request naming one user
func idRequest(method upstreamMethod, id string) *dynamicpb.Message {
	req := dynamicpb.NewMessage(method.input)
	req.Set(method.input.Fields().ByName("id"), protoreflect.ValueOfString(id))
	return req
}

// walletIDsRequest builds a request naming a set of wallets
func walletIDsRequest(method upstreamMethod, walletIDs []string) *dynamicpb.Message {
	req := dynamicpb.NewMessage(method.input)
	list := req.Mutable(method.input.Fields().ByName("wallet_id")).List()
	for _, id := range walletIDs {
		list.Append(protoreflect.ValueOfString(id))
	}
	return req
}

// call opens the stream and decodes every message
func call[T any](ctx context.Context, conn grpc.ClientConnInterface, source string, method upstreamMethod, req *dynamicpb.Message, decode func(protoreflect.Message) (T, error)) iter.Seq2[T, error] {
	return decodeStream(source, streamMessages(ctx, conn, method, req), decode)
}
