package protoquery

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/theplant/condfilter"
)

var jsoniterStd = jsoniter.ConfigCompatibleWithStandardLibrary

// ToStruct converts a query to a google.protobuf.Struct using its JSON field names.
// Range values become {"min": ..., "max": ...} objects.
func ToStruct(query *condfilter.Query) (*structpb.Struct, error) {
	if query == nil {
		return nil, nil
	}

	data, err := jsoniterStd.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "marshal query to json")
	}

	var m map[string]any
	if err := jsoniterStd.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "unmarshal json to map")
	}

	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, errors.Wrap(err, "convert map to struct")
	}
	return s, nil
}

// FromStruct parses a query from a google.protobuf.Struct.
// Unknown operators and logics are rejected, an empty global logic becomes AND.
func FromStruct(s *structpb.Struct) (*condfilter.Query, error) {
	if s == nil {
		return nil, nil
	}

	data, err := protojson.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "marshal struct to json")
	}

	query := &condfilter.Query{}
	if err := jsoniterStd.Unmarshal(data, query); err != nil {
		return nil, errors.Wrap(err, "unmarshal query")
	}
	if query.Conditions == nil {
		query.Conditions = []condfilter.Condition{}
	}

	query.GlobalLogic = query.GlobalLogic.OrDefault()
	if !query.GlobalLogic.IsValid() {
		return nil, errors.Errorf("invalid global logic %q", query.GlobalLogic)
	}
	for i, c := range query.Conditions {
		if !c.Operator.IsValid() {
			return nil, errors.Errorf("conditions[%d]: unsupported operator %q", i, c.Operator)
		}
		if c.Logic != "" && !c.Logic.IsValid() {
			return nil, errors.Errorf("conditions[%d]: invalid logic %q", i, c.Logic)
		}
	}
	return query, nil
}

// MarshalJSON renders a query with protojson, the way a proto/gRPC gateway would.
func MarshalJSON(query *condfilter.Query) ([]byte, error) {
	s, err := ToStruct(query)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return []byte("null"), nil
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "marshal struct with protojson")
	}
	return data, nil
}

// UnmarshalJSON parses protojson produced by MarshalJSON.
func UnmarshalJSON(data []byte) (*condfilter.Query, error) {
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, errors.Wrap(err, "unmarshal protojson")
	}
	return FromStruct(s)
}
