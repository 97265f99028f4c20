package server

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Wire names of the schedule service
const (
	ServiceName    = "polysched.v1.ScheduleService"
	EvaluateMethod = "/" + ServiceName + "/Evaluate"

	protoFile    = "polysched/v1/schedule.proto"
	protoPackage = "polysched.v1"
)

var (
	requestDesc   protoreflect.MessageDescriptor
	replyDesc     protoreflect.MessageDescriptor
	operationDesc protoreflect.EnumDescriptor
)

func init() {
	fd, err := protodesc.NewFile(scheduleFile(), nil)
	if err != nil {
		panic(fmt.Sprintf("server: invalid %s: %v", protoFile, err))
	}

	requestDesc = fd.Messages().ByName("EvaluateRequest")
	replyDesc = fd.Messages().ByName("EvaluateReply")
	operationDesc = fd.Enums().ByName("Operation")
}

// scheduleFile describes the service as it would be written in
// polysched/v1/schedule.proto:
//
//	enum Operation { LEGALITY = 0; EXECUTION = 1; ANNOTATIONS = 2; }
//	message EvaluateRequest { string name = 1; string schedule = 2; Operation operation = 3; }
//	message EvaluateReply {
//	  string name = 1; bool legality = 2; string execution_times = 3;
//	  string ir = 4; string additional_info = 5;
//	}
//	service ScheduleService { rpc Evaluate(EvaluateRequest) returns (EvaluateReply); }
func scheduleFile() *descriptorpb.FileDescriptorProto {
	str := descriptorpb.FieldDescriptorProto_TYPE_STRING
	boolean := descriptorpb.FieldDescriptorProto_TYPE_BOOL

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(protoFile),
		Package: proto.String(protoPackage),
		Syntax:  proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("Operation"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("LEGALITY"), Number: proto.Int32(0)},
				{Name: proto.String("EXECUTION"), Number: proto.Int32(1)},
				{Name: proto.String("ANNOTATIONS"), Number: proto.Int32(2)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("EvaluateRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("name", 1, str, ""),
					field("schedule", 2, str, ""),
					field("operation", 3, descriptorpb.FieldDescriptorProto_TYPE_ENUM, "."+protoPackage+".Operation"),
				},
			},
			{
				Name: proto.String("EvaluateReply"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("name", 1, str, ""),
					field("legality", 2, boolean, ""),
					field("execution_times", 3, str, ""),
					field("ir", 4, str, ""),
					field("additional_info", 5, str, ""),
				},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("ScheduleService"),
			Method: []*descriptorpb.MethodDescriptorProto{{
				Name:       proto.String("Evaluate"),
				InputType:  proto.String("." + protoPackage + ".EvaluateRequest"),
				OutputType: proto.String("." + protoPackage + ".EvaluateReply"),
			}},
		}},
	}
}

func field(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
	if typeName != "" {
		f.TypeName = proto.String(typeName)
	}
	return f
}
