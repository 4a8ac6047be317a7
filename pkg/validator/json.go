package validator

import (
	"fmt"

	"github.com/valyala/fastjson"

	"github.com/SafeNest/QueryShield/pkg/types"
)

var jsonParserPool fastjson.ParserPool

// ValidateDocument walks a JSON payload and validates every object key and
// string scalar it contains. The first blocked value decides the verdict.
// Malformed JSON is an error, not a verdict; the caller decides whether a
// payload that cannot be parsed should be rejected.
func (v *Validator) ValidateDocument(body []byte, context string) (types.Verdict, error) {
	parser := jsonParserPool.Get()
	defer jsonParserPool.Put(parser)

	root, err := parser.ParseBytes(body)
	if err != nil {
		return types.Verdict{}, fmt.Errorf("parse json document: %w", err)
	}

	// The raw text catches structural attacks that only appear once keys
	// and values are seen together, like operator-object shapes.
	if verdict := v.Validate(string(body), context+".raw"); !verdict.Allowed {
		return verdict, nil
	}
	return v.walkValue(root, context), nil
}

func (v *Validator) walkValue(value *fastjson.Value, context string) types.Verdict {
	switch value.Type() {
	case fastjson.TypeObject:
		obj, err := value.Object()
		if err != nil {
			return allowedVerdict()
		}
		verdict := allowedVerdict()
		obj.Visit(func(key []byte, child *fastjson.Value) {
			if !verdict.Allowed {
				return
			}
			if kv := v.Validate(string(key), context+".key"); !kv.Allowed {
				verdict = kv
				return
			}
			if cv := v.walkValue(child, context); !cv.Allowed {
				verdict = cv
			}
		})
		return verdict

	case fastjson.TypeArray:
		items, err := value.Array()
		if err != nil {
			return allowedVerdict()
		}
		for _, item := range items {
			if verdict := v.walkValue(item, context); !verdict.Allowed {
				return verdict
			}
		}
		return allowedVerdict()

	case fastjson.TypeString:
		return v.Validate(string(value.GetStringBytes()), context)

	default:
		// Numbers, booleans and nulls cannot carry injection payloads.
		return allowedVerdict()
	}
}
