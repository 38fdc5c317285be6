package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const createEscrowJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["order_id", "amount", "currency", "buyer_wallet", "buyer_name",
               "seller_wallet", "seller_name", "escrow_wallet", "escrow_name"],
  "properties": {
    "order_id":            {"type": "string", "minLength": 1, "maxLength": 128},
    "amount":              {"type": ["number", "string"]},
    "currency":            {"type": "string", "pattern": "^[A-Z]{3}$"},
    "buyer_wallet":        {"type": "string", "minLength": 1, "maxLength": 128},
    "buyer_name":          {"type": "string", "minLength": 1, "maxLength": 256},
    "buyer_aadhaar_hash":  {"type": "string", "maxLength": 256},
    "seller_wallet":       {"type": "string", "minLength": 1, "maxLength": 128},
    "seller_name":         {"type": "string", "minLength": 1, "maxLength": 256},
    "seller_aadhaar_hash": {"type": "string", "maxLength": 256},
    "escrow_wallet":       {"type": "string", "minLength": 1, "maxLength": 128},
    "escrow_name":         {"type": "string", "minLength": 1, "maxLength": 256},
    "metadata": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    }
  },
  "additionalProperties": false
}`

// CreateEscrow validates POST /escrows bodies.
var CreateEscrow = mustCompile(createEscrowJSON)

type Validator struct {
	schema *gojsonschema.Schema
}

func mustCompile(src string) *Validator {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return &Validator{schema: s}
}

// Validate returns nil when payload conforms, otherwise an error listing every violation.
func (v *Validator) Validate(payload []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("payload failed schema validation: %s", strings.Join(msgs, "; "))
}
