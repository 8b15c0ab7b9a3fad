package riva

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// fakeRiva serves the recognition and synthesis methods from dynamic messages.
type fakeRiva struct {
	responses []*dynamicpb.Message
	streamErr error

	audio      []byte
	synthErr   error
	voiceParam []map[string]string

	mu             sync.Mutex
	receivedConfig *dynamicpb.Message
	audioChunks    int
	synthRequests  []*dynamicpb.Message
}

func (f *fakeRiva) streamingRecognize(_ any, stream grpc.ServerStream) error {
	for {
		req := newMessage(schema.streamingRequest)
		err := stream.RecvMsg(req)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		f.mu.Lock()
		if cfgField := field(schema.streamingRequest, "streaming_config"); req.Has(cfgField) {
			f.receivedConfig = req.Get(cfgField).Message().Interface().(*dynamicpb.Message)
		} else if len(req.Get(field(schema.streamingRequest, "audio_content")).Bytes()) > 0 {
			f.audioChunks++
		}
		f.mu.Unlock()
	}

	for _, resp := range f.responses {
		if err := stream.SendMsg(resp); err != nil {
			return err
		}
	}
	return f.streamErr
}

func (f *fakeRiva) synthesize(_ any, _ context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := newMessage(schema.synthesizeRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.synthRequests = append(f.synthRequests, req)
	f.mu.Unlock()
	if f.synthErr != nil {
		return nil, f.synthErr
	}
	resp := newMessage(schema.synthesizeResponse)
	setField(resp, "audio", protoreflect.ValueOfBytes(f.audio))
	return resp, nil
}

func (f *fakeRiva) synthesisConfig(_ any, _ context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	if err := dec(newMessage(schema.synthesisConfigReq)); err != nil {
		return nil, err
	}
	resp := newMessage(schema.synthesisConfigResp)
	configs := resp.Mutable(field(schema.synthesisConfigResp, "model_config")).List()
	for _, params := range f.voiceParam {
		cfg := newMessage(schema.synthesisModelConfig)
		m := cfg.Mutable(field(schema.synthesisModelConfig, "parameters")).Map()
		for k, v := range params {
			m.Set(protoreflect.ValueOfString(k).MapKey(), protoreflect.ValueOfString(v))
		}
		configs.Append(protoreflect.ValueOfMessage(cfg))
	}
	return resp, nil
}

func (f *fakeRiva) config() *dynamicpb.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receivedConfig
}

func startFakeRiva(t *testing.T, f *fakeRiva) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := grpc.NewServer()
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: asrService,
		HandlerType: (*any)(nil),
		Streams: []grpc.StreamDesc{{
			StreamName:    "StreamingRecognize",
			Handler:       f.streamingRecognize,
			ServerStreams: true,
			ClientStreams: true,
		}},
	}, f)
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: ttsService,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Synthesize", Handler: f.synthesize},
			{MethodName: "GetRivaSynthesisConfig", Handler: f.synthesisConfig},
		},
	}, f)

	go func() {
		_ = server.Serve(lis)
	}()
	t.Cleanup(func() {
		server.Stop()
		_ = lis.Close()
	})
	return lis.Addr().String()
}

// recognized builds a response carrying one result.
func recognized(transcript string, final bool) *dynamicpb.Message {
	resultDesc := field(schema.streamingResponse, "results").Message()
	altDesc := resultDesc.Fields().ByName("alternatives").Message()

	alt := dynamicpb.NewMessage(altDesc)
	alt.Set(altDesc.Fields().ByName("transcript"), protoreflect.ValueOfString(transcript))

	result := dynamicpb.NewMessage(resultDesc)
	result.Mutable(resultDesc.Fields().ByName("alternatives")).List().Append(protoreflect.ValueOfMessage(alt))
	result.Set(resultDesc.Fields().ByName("is_final"), protoreflect.ValueOfBool(final))

	resp := newMessage(schema.streamingResponse)
	resp.Mutable(field(schema.streamingResponse, "results")).List().Append(protoreflect.ValueOfMessage(result))
	return resp
}

// getString reads a string field by name from a dynamic message.
func getString(msg protoreflect.Message, name protoreflect.Name) string {
	return msg.Get(msg.Descriptor().Fields().ByName(name)).String()
}
