package riva

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Riva wire schema, limited to the messages voxlate exchanges. Field numbers
// match the published riva_asr.proto, riva_tts.proto and riva_audio.proto.

const (
	asrService = "nvidia.riva.asr.RivaSpeechRecognition"
	ttsService = "nvidia.riva.tts.RivaSpeechSynthesis"

	methodStreamingRecognize = "/" + asrService + "/StreamingRecognize"
	methodSynthesize         = "/" + ttsService + "/Synthesize"
	methodSynthesisConfig    = "/" + ttsService + "/GetRivaSynthesisConfig"

	encodingLinearPCM protoreflect.EnumNumber = 1
)

type descriptors struct {
	streamingRequest  protoreflect.MessageDescriptor
	streamingConfig   protoreflect.MessageDescriptor
	recognitionConfig protoreflect.MessageDescriptor
	speechContext     protoreflect.MessageDescriptor
	streamingResponse protoreflect.MessageDescriptor

	synthesizeRequest    protoreflect.MessageDescriptor
	synthesizeResponse   protoreflect.MessageDescriptor
	synthesisConfigReq   protoreflect.MessageDescriptor
	synthesisConfigResp  protoreflect.MessageDescriptor
	synthesisModelConfig protoreflect.MessageDescriptor
}

var schema = mustBuildSchema()

func newMessage(desc protoreflect.MessageDescriptor) *dynamicpb.Message {
	return dynamicpb.NewMessage(desc)
}

func mustBuildSchema() descriptors {
	d, err := buildSchema()
	if err != nil {
		panic(fmt.Sprintf("riva schema: %v", err))
	}
	return d
}

func buildSchema() (descriptors, error) {
	files := new(protoregistry.Files)

	audio := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("riva/proto/riva_audio.proto"),
		Package: proto.String("nvidia.riva"),
		Syntax:  proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("AudioEncoding"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				enumValue("ENCODING_UNSPECIFIED", 0),
				enumValue("LINEAR_PCM", 1),
				enumValue("FLAC", 2),
				enumValue("MULAW", 3),
				enumValue("OGGOPUS", 4),
				enumValue("ALAW", 20),
			},
		}},
	}

	asr := &descriptorpb.FileDescriptorProto{
		Name:       proto.String("riva/proto/riva_asr.proto"),
		Package:    proto.String("nvidia.riva.asr"),
		Syntax:     proto.String("proto3"),
		Dependency: []string{"riva/proto/riva_audio.proto"},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("RecognitionConfig"),
				Field: []*descriptorpb.FieldDescriptorProto{
					enumField("encoding", 1, ".nvidia.riva.AudioEncoding"),
					scalar("sample_rate_hertz", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("language_code", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("max_alternatives", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					repeatedMessage("speech_contexts", 6, ".nvidia.riva.asr.SpeechContext"),
					scalar("audio_channel_count", 7, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("enable_automatic_punctuation", 11, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
					scalar("model", 13, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				},
			},
			{
				Name: proto.String("SpeechContext"),
				Field: []*descriptorpb.FieldDescriptorProto{
					repeatedScalar("phrases", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("boost", 4, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
				},
			},
			{
				Name: proto.String("StreamingRecognitionConfig"),
				Field: []*descriptorpb.FieldDescriptorProto{
					message("config", 1, ".nvidia.riva.asr.RecognitionConfig"),
					scalar("interim_results", 2, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
				},
			},
			{
				Name: proto.String("StreamingRecognizeRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					inOneof(message("streaming_config", 1, ".nvidia.riva.asr.StreamingRecognitionConfig"), 0),
					inOneof(scalar("audio_content", 2, descriptorpb.FieldDescriptorProto_TYPE_BYTES), 0),
				},
				OneofDecl: []*descriptorpb.OneofDescriptorProto{{Name: proto.String("streaming_request")}},
			},
			{
				Name: proto.String("SpeechRecognitionAlternative"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("transcript", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("confidence", 2, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
				},
			},
			{
				Name: proto.String("StreamingRecognitionResult"),
				Field: []*descriptorpb.FieldDescriptorProto{
					repeatedMessage("alternatives", 1, ".nvidia.riva.asr.SpeechRecognitionAlternative"),
					scalar("is_final", 2, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
					scalar("stability", 3, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
					scalar("channel_tag", 5, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("audio_processed", 6, descriptorpb.FieldDescriptorProto_TYPE_FLOAT),
				},
			},
			{
				Name: proto.String("StreamingRecognizeResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					repeatedMessage("results", 1, ".nvidia.riva.asr.StreamingRecognitionResult"),
				},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("RivaSpeechRecognition"),
			Method: []*descriptorpb.MethodDescriptorProto{{
				Name:            proto.String("StreamingRecognize"),
				InputType:       proto.String(".nvidia.riva.asr.StreamingRecognizeRequest"),
				OutputType:      proto.String(".nvidia.riva.asr.StreamingRecognizeResponse"),
				ClientStreaming: proto.Bool(true),
				ServerStreaming: proto.Bool(true),
			}},
		}},
	}

	tts := &descriptorpb.FileDescriptorProto{
		Name:       proto.String("riva/proto/riva_tts.proto"),
		Package:    proto.String("nvidia.riva.tts"),
		Syntax:     proto.String("proto3"),
		Dependency: []string{"riva/proto/riva_audio.proto"},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("SynthesizeSpeechRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("text", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalar("language_code", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					enumField("encoding", 3, ".nvidia.riva.AudioEncoding"),
					scalar("sample_rate_hz", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					scalar("voice_name", 5, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				},
			},
			{
				Name: proto.String("SynthesizeSpeechResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("audio", 1, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
				},
			},
			{
				Name: proto.String("RivaSynthesisConfigRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("model_name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				},
			},
			{
				Name: proto.String("RivaSynthesisConfigResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					repeatedMessage("model_config", 1, ".nvidia.riva.tts.RivaSynthesisConfigResponse.Config"),
				},
				NestedType: []*descriptorpb.DescriptorProto{{
					Name: proto.String("Config"),
					Field: []*descriptorpb.FieldDescriptorProto{
						scalar("model_name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
						repeatedMessage("parameters", 2, ".nvidia.riva.tts.RivaSynthesisConfigResponse.Config.ParametersEntry"),
					},
					NestedType: []*descriptorpb.DescriptorProto{{
						Name: proto.String("ParametersEntry"),
						Field: []*descriptorpb.FieldDescriptorProto{
							scalar("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
							scalar("value", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
						},
						Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
					}},
				}},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("RivaSpeechSynthesis"),
			Method: []*descriptorpb.MethodDescriptorProto{
				{
					Name:       proto.String("Synthesize"),
					InputType:  proto.String(".nvidia.riva.tts.SynthesizeSpeechRequest"),
					OutputType: proto.String(".nvidia.riva.tts.SynthesizeSpeechResponse"),
				},
				{
					Name:       proto.String("GetRivaSynthesisConfig"),
					InputType:  proto.String(".nvidia.riva.tts.RivaSynthesisConfigRequest"),
					OutputType: proto.String(".nvidia.riva.tts.RivaSynthesisConfigResponse"),
				},
			},
		}},
	}

	var built []protoreflect.FileDescriptor
	for _, fd := range []*descriptorpb.FileDescriptorProto{audio, asr, tts} {
		file, err := protodesc.NewFile(fd, files)
		if err != nil {
			return descriptors{}, fmt.Errorf("build %s: %w", fd.GetName(), err)
		}
		if err := files.RegisterFile(file); err != nil {
			return descriptors{}, fmt.Errorf("register %s: %w", fd.GetName(), err)
		}
		built = append(built, file)
	}

	asrMessages := built[1].Messages()
	ttsMessages := built[2].Messages()
	configResp := ttsMessages.ByName("RivaSynthesisConfigResponse")

	return descriptors{
		recognitionConfig: asrMessages.ByName("RecognitionConfig"),
		speechContext:     asrMessages.ByName("SpeechContext"),
		streamingConfig:   asrMessages.ByName("StreamingRecognitionConfig"),
		streamingRequest:  asrMessages.ByName("StreamingRecognizeRequest"),
		streamingResponse: asrMessages.ByName("StreamingRecognizeResponse"),

		synthesizeRequest:    ttsMessages.ByName("SynthesizeSpeechRequest"),
		synthesizeResponse:   ttsMessages.ByName("SynthesizeSpeechResponse"),
		synthesisConfigReq:   ttsMessages.ByName("RivaSynthesisConfigRequest"),
		synthesisConfigResp:  configResp,
		synthesisModelConfig: configResp.Messages().ByName("Config"),
	}, nil
}

func enumValue(name string, number int32) *descriptorpb.EnumValueDescriptorProto {
	return &descriptorpb.EnumValueDescriptorProto{Name: proto.String(name), Number: proto.Int32(number)}
}

func scalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
		JsonName: proto.String(jsonName(name)),
	}
}

func repeatedScalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	field := scalar(name, number, typ)
	field.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return field
}

func enumField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	field := scalar(name, number, descriptorpb.FieldDescriptorProto_TYPE_ENUM)
	field.TypeName = proto.String(typeName)
	return field
}

func message(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	field := scalar(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	field.TypeName = proto.String(typeName)
	return field
}

func repeatedMessage(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	field := message(name, number, typeName)
	field.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return field
}

func inOneof(field *descriptorpb.FieldDescriptorProto, index int32) *descriptorpb.FieldDescriptorProto {
	field.OneofIndex = proto.Int32(index)
	return field
}

func jsonName(name string) string {
	out := make([]byte, 0, len(name))
	upper := false
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if ch == '_' {
			upper = true
			continue
		}
		if upper && ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		upper = false
		out = append(out, ch)
	}
	return string(out)
}
