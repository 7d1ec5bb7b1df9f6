package adaptor

import (
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/pkg/errors"
)

// Number is the store's fixed-point numeric representation. Values are kept
// as decimal strings and marshaled as DynamoDB N attributes.
type Number string

func (x Number) MarshalDynamo() (*dynamodb.AttributeValue, error) {
	return &dynamodb.AttributeValue{N: aws.String(string(x))}, nil
}

func (x *Number) UnmarshalDynamo(av *dynamodb.AttributeValue) error {
	if av.N == nil {
		return errors.New("attribute is not a number")
	}
	*x = Number(*av.N)
	return nil
}

// Float64 parses the number back to a float.
func (x Number) Float64() (float64, error) {
	return strconv.ParseFloat(string(x), 64)
}

// FloatsToNumbers converts every float64 in v to Number, recursing through
// maps and slices. The shortest-round-trip formatting guarantees the exact
// float64 value is recovered by NumbersToFloats.
func FloatsToNumbers(v interface{}) interface{} {
	switch val := v.(type) {
	case float64:
		return Number(strconv.FormatFloat(val, 'g', -1, 64))
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = FloatsToNumbers(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = FloatsToNumbers(item)
		}
		return out
	default:
		return v
	}
}

// NumbersToFloats is the inverse of FloatsToNumbers. Plain float64 values
// pass through unchanged because the SDK already decodes N attributes to
// float64 on read.
func NumbersToFloats(v interface{}) interface{} {
	switch val := v.(type) {
	case Number:
		f, err := val.Float64()
		if err != nil {
			return string(val)
		}
		return f
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = NumbersToFloats(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = NumbersToFloats(item)
		}
		return out
	default:
		return v
	}
}
