package judge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/microsoft/chatbench/internal/models"
)

// verdictSchemaJSON is the contract every judge reply must satisfy.
const verdictSchemaJSON = `{
  "type": "object",
  "properties": {
    "score": {"type": "integer", "minimum": 1, "maximum": 5},
    "reasoning": {"type": "string", "minLength": 1},
    "evidence": {"type": "string"}
  },
  "required": ["score", "reasoning"],
  "additionalProperties": false
}`

// verdictSchema is the compiled JSON Schema for judge replies.
var verdictSchema *jsonschema.Schema

func init() {
	verdictSchema = mustCompileSchema(verdictSchemaJSON, "verdict.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// verdict is a validated judge reply.
type verdict struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
	Evidence  string `json:"evidence,omitempty"`
}

// parseVerdict validates a raw judge reply against the scoring schema.
// Models sometimes wrap JSON in a code fence despite instructions, so
// fences are removed before parsing. Anything else non-conforming is a
// parse error wrapping models.ErrJudgeParse.
func parseVerdict(raw string) (verdict, error) {
	cleaned := stripCodeFence(raw)

	var instance any
	if err := json.Unmarshal([]byte(cleaned), &instance); err != nil {
		return verdict{}, fmt.Errorf("%w: invalid JSON: %v", models.ErrJudgeParse, err)
	}

	if err := verdictSchema.Validate(instance); err != nil {
		return verdict{}, fmt.Errorf("%w: %v", models.ErrJudgeParse, err)
	}

	var v verdict
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return verdict{}, fmt.Errorf("%w: %v", models.ErrJudgeParse, err)
	}
	return v, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
