package receiptparser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// replySchema describes what an extraction reply must look like to be
// accepted. Extra keys are allowed; missing optional values may be null.
const replySchema = `{
  "type": "object",
  "required": ["total"],
  "properties": {
    "vendor": {"type": ["string", "null"]},
    "date":   {"type": ["string", "null"]},
    "total":  {"type": "number"},
    "lineItems": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["description", "totalPrice"],
        "properties": {
          "description": {"type": "string", "minLength": 1},
          "quantity":    {"type": ["number", "null"]},
          "unitPrice":   {"type": ["number", "null"]},
          "totalPrice":  {"type": "number"},
          "sku":         {"type": ["string", "null"]}
        }
      }
    }
  }
}`

var compiledReplySchema = mustCompile("receipt-reply.json", replySchema)

func mustCompile(name, src string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	return c.MustCompile(name)
}

// ValidateReply checks that raw is a single JSON object matching the reply
// schema.
func ValidateReply(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("reply is not JSON: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("reply has trailing data after the JSON object")
	}
	if err := compiledReplySchema.Validate(v); err != nil {
		return fmt.Errorf("reply does not match schema: %w", err)
	}
	return nil
}
