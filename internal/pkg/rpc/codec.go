package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Decode converts a Struct request into dst and validates it. Numbers are
// decoded as json.Number so integer inputs keep their precision.
func Decode(req *structpb.Struct, dst any) error {
	if req == nil {
		req = &structpb.Struct{}
	}
	data, err := protojson.Marshal(req)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		return validationStatus(err)
	}
	return nil
}

// Encode renders v as a Struct response through its JSON form.
func Encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func validationStatus(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	br := &errdetails.BadRequest{}
	for _, fe := range verrs {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       fieldPath(fe.Namespace()),
			Description: "failed on " + fe.Tag(),
		})
	}
	return withDetails(codes.InvalidArgument, "invalid request", br)
}

// fieldPath drops the leading struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func withDetails(code codes.Code, msg string, br *errdetails.BadRequest) error {
	st := status.New(code, msg)
	if detailed, err := st.WithDetails(br); err == nil {
		st = detailed
	}
	return st.Err()
}
