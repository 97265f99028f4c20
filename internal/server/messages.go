package server

import (
	"fmt"

	"github.com/Norgate-AV/polysched/internal/pipeline"
	"github.com/Norgate-AV/polysched/internal/result"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Request asks for one schedule evaluation
type Request struct {
	// Program name, or its numeric id
	Name      string
	Schedule  string
	Operation pipeline.Operation
}

// Reply carries the fields of a result a remote client sees
type Reply struct {
	Name           string
	Legality       bool
	ExecutionTimes string
	IR             string
	AdditionalInfo string
}

func replyFromResult(res *result.Result) *Reply {
	return &Reply{
		Name:           res.Name,
		Legality:       res.Legality,
		ExecutionTimes: res.ExecTimes,
		IR:             res.IR,
		AdditionalInfo: res.AdditionalInfo,
	}
}

func (r Request) message() *dynamicpb.Message {
	m := dynamicpb.NewMessage(requestDesc)
	fields := requestDesc.Fields()
	m.Set(fields.ByName("name"), protoreflect.ValueOfString(r.Name))
	m.Set(fields.ByName("schedule"), protoreflect.ValueOfString(r.Schedule))
	m.Set(fields.ByName("operation"), protoreflect.ValueOfEnum(protoreflect.EnumNumber(r.Operation)))
	return m
}

func requestFromMessage(m *dynamicpb.Message) (Request, error) {
	fields := requestDesc.Fields()
	num := m.Get(fields.ByName("operation")).Enum()
	if operationDesc.Values().ByNumber(num) == nil {
		return Request{}, fmt.Errorf("unknown operation %d", num)
	}

	return Request{
		Name:      m.Get(fields.ByName("name")).String(),
		Schedule:  m.Get(fields.ByName("schedule")).String(),
		Operation: pipeline.Operation(num),
	}, nil
}

func (r *Reply) message() *dynamicpb.Message {
	m := dynamicpb.NewMessage(replyDesc)
	fields := replyDesc.Fields()
	m.Set(fields.ByName("name"), protoreflect.ValueOfString(r.Name))
	m.Set(fields.ByName("legality"), protoreflect.ValueOfBool(r.Legality))
	m.Set(fields.ByName("execution_times"), protoreflect.ValueOfString(r.ExecutionTimes))
	m.Set(fields.ByName("ir"), protoreflect.ValueOfString(r.IR))
	m.Set(fields.ByName("additional_info"), protoreflect.ValueOfString(r.AdditionalInfo))
	return m
}

func replyFromMessage(m *dynamicpb.Message) *Reply {
	fields := replyDesc.Fields()
	return &Reply{
		Name:           m.Get(fields.ByName("name")).String(),
		Legality:       m.Get(fields.ByName("legality")).Bool(),
		ExecutionTimes: m.Get(fields.ByName("execution_times")).String(),
		IR:             m.Get(fields.ByName("ir")).String(),
		AdditionalInfo: m.Get(fields.ByName("additional_info")).String(),
	}
}
