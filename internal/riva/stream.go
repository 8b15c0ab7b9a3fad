package riva

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// SampleRate is the PCM sample rate sent to the recognizer.
const SampleRate = 16000

// SpeechPhrase is one vocabulary boost phrase in request-ready form.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}

// StreamConfig controls stream initialization and recognition behavior.
type StreamConfig struct {
	Endpoint              string
	LanguageCode          string
	Model                 string
	AutomaticPunctuation  bool
	SpeechPhrases         []SpeechPhrase
	DialTimeout           time.Duration
	OpenTimeout           time.Duration
	DebugResponseSinkJSON io.Writer
}

// Stream wraps one active StreamingRecognize RPC.
type Stream struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream

	recvDone chan struct{}

	mu            sync.Mutex
	segments      []string // committed segments: finals plus interims that diverged
	lastInterim   string
	recvErr       error
	closedSend    bool
	debugSinkJSON io.Writer
}

var streamingRecognizeDesc = &grpc.StreamDesc{
	StreamName:    "StreamingRecognize",
	ServerStreams: true,
	ClientStreams: true,
}

// DialStream establishes a stream, sends config, and starts the receive loop.
func DialStream(ctx context.Context, cfg StreamConfig) (*Stream, error) {
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = "en-US"
	}

	conn, err := dialReady(ctx, cfg.Endpoint, cfg.DialTimeout)
	if err != nil {
		return nil, err
	}

	stream, err := openStreamWithTimeout(ctx, cfg.OpenTimeout, func() (grpc.ClientStream, error) {
		return conn.NewStream(ctx, streamingRecognizeDesc, methodStreamingRecognize)
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open streaming recognizer: %w", err)
	}

	req := streamingConfigRequest(cfg)
	if err := runWithTimeout(ctx, cfg.OpenTimeout, func() error { return stream.SendMsg(req) }); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send initial streaming config: %w", err)
	}

	s := &Stream{
		conn:          conn,
		stream:        stream,
		recvDone:      make(chan struct{}),
		debugSinkJSON: cfg.DebugResponseSinkJSON,
	}
	go s.recvLoop()
	return s, nil
}

func streamingConfigRequest(cfg StreamConfig) *dynamicpb.Message {
	recognition := newMessage(schema.recognitionConfig)
	setField(recognition, "encoding", protoreflect.ValueOfEnum(encodingLinearPCM))
	setField(recognition, "sample_rate_hertz", protoreflect.ValueOfInt32(SampleRate))
	setField(recognition, "language_code", protoreflect.ValueOfString(cfg.LanguageCode))
	setField(recognition, "max_alternatives", protoreflect.ValueOfInt32(1))
	setField(recognition, "audio_channel_count", protoreflect.ValueOfInt32(1))
	setField(recognition, "enable_automatic_punctuation", protoreflect.ValueOfBool(cfg.AutomaticPunctuation))
	if model := strings.TrimSpace(cfg.Model); model != "" {
		setField(recognition, "model", protoreflect.ValueOfString(model))
	}

	contexts := recognition.Mutable(field(schema.recognitionConfig, "speech_contexts")).List()
	for _, phrase := range cfg.SpeechPhrases {
		text := strings.TrimSpace(phrase.Phrase)
		if text == "" {
			continue
		}
		sc := newMessage(schema.speechContext)
		sc.Mutable(field(schema.speechContext, "phrases")).List().Append(protoreflect.ValueOfString(text))
		setField(sc, "boost", protoreflect.ValueOfFloat32(phrase.Boost))
		contexts.Append(protoreflect.ValueOfMessage(sc))
	}

	streaming := newMessage(schema.streamingConfig)
	setField(streaming, "config", protoreflect.ValueOfMessage(recognition))
	setField(streaming, "interim_results", protoreflect.ValueOfBool(true))

	req := newMessage(schema.streamingRequest)
	setField(req, "streaming_config", protoreflect.ValueOfMessage(streaming))
	return req
}

func audioRequest(chunk []byte) *dynamicpb.Message {
	req := newMessage(schema.streamingRequest)
	setField(req, "audio_content", protoreflect.ValueOfBytes(chunk))
	return req
}

// recvLoop receives recognition responses until the stream closes or fails.
func (s *Stream) recvLoop() {
	defer close(s.recvDone)

	for {
		resp := newMessage(schema.streamingResponse)
		err := s.stream.RecvMsg(resp)
		if err == nil {
			s.recordResponse(resp)
			continue
		}
		if errors.Is(err, io.EOF) {
			return
		}

		s.mu.Lock()
		s.recvErr = err
		s.mu.Unlock()
		return
	}
}

type recognitionResult struct {
	transcript string
	final      bool
}

// decodeResults flattens a response to the first alternative of each result.
func decodeResults(resp protoreflect.Message) []recognitionResult {
	resultsField := field(schema.streamingResponse, "results")
	list := resp.Get(resultsField).List()
	out := make([]recognitionResult, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		result := list.Get(i).Message()
		desc := result.Descriptor()
		alternatives := result.Get(desc.Fields().ByName("alternatives")).List()
		if alternatives.Len() == 0 {
			continue
		}
		first := alternatives.Get(0).Message()
		out = append(out, recognitionResult{
			transcript: first.Get(first.Descriptor().Fields().ByName("transcript")).String(),
			final:      result.Get(desc.Fields().ByName("is_final")).Bool(),
		})
	}
	return out
}

// recordResponse merges final and interim segments into stream state.
func (s *Stream) recordResponse(resp protoreflect.ProtoMessage) {
	if sink := s.debugSinkJSON; sink != nil {
		b, err := protojson.Marshal(resp)
		if err == nil {
			_, _ = sink.Write(append(b, '\n'))
		}
	}

	results := decodeResults(resp.ProtoReflect())

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, result := range results {
		transcript := cleanSegment(result.transcript)
		if transcript == "" {
			continue
		}
		if result.final {
			s.segments = appendSegment(s.segments, transcript)
			s.lastInterim = ""
			continue
		}

		if s.lastInterim != "" && !isInterimContinuation(s.lastInterim, transcript) {
			s.segments = appendSegment(s.segments, s.lastInterim)
		}
		s.lastInterim = transcript
	}
}

// SendAudio sends one chunk of PCM audio over the active stream.
func (s *Stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.mu.Lock()
	closed := s.closedSend
	recvErr := s.recvErr
	s.mu.Unlock()

	if closed {
		return errors.New("stream already closed for sending")
	}
	if recvErr != nil {
		return fmt.Errorf("stream receive loop failed: %w", recvErr)
	}

	return s.stream.SendMsg(audioRequest(chunk))
}

// CloseAndCollect closes the send side and returns merged transcript segments.
func (s *Stream) CloseAndCollect(ctx context.Context) ([]string, time.Duration, error) {
	closedAt := time.Now()

	s.mu.Lock()
	if !s.closedSend {
		s.closedSend = true
		_ = s.stream.CloseSend()
	}
	s.mu.Unlock()

	select {
	case <-s.recvDone:
	case <-ctx.Done():
		_ = s.conn.Close()
		return nil, 0, ctx.Err()
	}
	latency := time.Since(closedAt)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { _ = s.conn.Close() }()

	if s.recvErr != nil {
		return nil, latency, s.recvErr
	}
	return collectSegments(s.segments, s.lastInterim), latency, nil
}

// Cancel aborts stream processing and closes the connection.
func (s *Stream) Cancel() error {
	s.mu.Lock()
	if !s.closedSend {
		s.closedSend = true
		_ = s.stream.CloseSend()
	}
	s.mu.Unlock()
	return s.conn.Close()
}

func field(desc protoreflect.MessageDescriptor, name protoreflect.Name) protoreflect.FieldDescriptor {
	fd := desc.Fields().ByName(name)
	if fd == nil {
		panic(fmt.Sprintf("riva schema: %s has no field %s", desc.FullName(), name))
	}
	return fd
}

func setField(msg *dynamicpb.Message, name protoreflect.Name, value protoreflect.Value) {
	msg.Set(field(msg.Descriptor(), name), value)
}
