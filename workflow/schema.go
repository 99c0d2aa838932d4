package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const conditionSchema = `{
	"type": "object",
	"required": ["operator"],
	"properties": {
		"field": {"type": "string"},
		"source": {"enum": ["subject", "variable"]},
		"operator": {"enum": ["equals", "not_equals", "gt", "lt", "contains", "exists", "expr"]},
		"expression": {"type": "string"}
	}
}`

// stepSchemas holds the JSON Schema of each action's step config.
var stepSchemas = map[ActionKind]string{
	ActionSendEmail: `{
		"type": "object",
		"required": ["subject"],
		"properties": {
			"to": {"type": "string"},
			"subject": {"type": "string", "minLength": 1},
			"body": {"type": "string"},
			"template": {"type": "string"}
		}
	}`,
	ActionSendSMS: `{
		"type": "object",
		"required": ["message"],
		"properties": {
			"to": {"type": "string"},
			"message": {"type": "string", "minLength": 1}
		}
	}`,
	ActionSendPush: `{
		"type": "object",
		"required": ["title"],
		"properties": {
			"title": {"type": "string", "minLength": 1},
			"body": {"type": "string"},
			"data": {"type": "object"}
		}
	}`,
	ActionUpdateField: `{
		"type": "object",
		"required": ["field", "value"],
		"properties": {
			"field": {"type": "string", "minLength": 1}
		}
	}`,
	ActionAddToSegment: `{
		"type": "object",
		"required": ["segment"],
		"properties": {"segment": {"type": "string", "minLength": 1}}
	}`,
	ActionRemoveFromSegment: `{
		"type": "object",
		"required": ["segment"],
		"properties": {"segment": {"type": "string", "minLength": 1}}
	}`,
	ActionWait: `{
		"type": "object",
		"required": ["duration"],
		"properties": {"duration": {"type": "string", "minLength": 2}}
	}`,
	ActionWebhook: `{
		"type": "object",
		"required": ["url"],
		"properties": {
			"url": {"type": "string", "pattern": "^https?://"},
			"method": {"enum": ["POST", "PUT", "PATCH"]},
			"headers": {"type": "object", "additionalProperties": {"type": "string"}},
			"body": {"type": "object"},
			"secret": {"type": "string"},
			"timeout": {"type": "string"}
		}
	}`,
	ActionCreateTask: `{
		"type": "object",
		"required": ["title"],
		"properties": {
			"title": {"type": "string", "minLength": 1},
			"description": {"type": "string"},
			"assignee": {"type": "string"},
			"due_in": {"type": "string"}
		}
	}`,
	ActionAddTag: `{
		"type": "object",
		"required": ["tag"],
		"properties": {"tag": {"type": "string", "minLength": 1}}
	}`,
	ActionUpdateScore: `{
		"type": "object",
		"required": ["delta"],
		"properties": {"delta": {"type": "number"}}
	}`,
	ActionBranch: `{
		"type": "object",
		"required": ["branches"],
		"properties": {
			"branches": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["name", "conditions"],
					"properties": {
						"name": {"type": "string", "minLength": 1},
						"conditions": {"type": "array", "items": {"$ref": "beacon://schema/condition.json"}}
					}
				}
			},
			"default": {"type": "string"}
		}
	}`,
}

// Schemas validates step configs against the schema of their action. The
// zero value is not usable; call NewSchemas.
type Schemas struct {
	once     sync.Once
	err      error
	mu       sync.RWMutex
	compiled map[ActionKind]*jsonschema.Schema
}

// NewSchemas creates a step config validator.
func NewSchemas() *Schemas {
	return &Schemas{compiled: make(map[ActionKind]*jsonschema.Schema, len(stepSchemas))}
}

// Validate checks config against the schema registered for kind.
func (s *Schemas) Validate(kind ActionKind, config map[string]any) error {
	if err := s.compile(); err != nil {
		return err
	}

	s.mu.RLock()
	sch, ok := s.compiled[kind]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no schema for action %q", kind)
	}

	if config == nil {
		config = map[string]any{}
	}
	inst, err := normalize(config)
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}

func (s *Schemas) compile() error {
	s.once.Do(func() {
		c := jsonschema.NewCompiler()

		cond, err := jsonschema.UnmarshalJSON(strings.NewReader(conditionSchema))
		if err != nil {
			s.err = fmt.Errorf("parse condition schema: %w", err)
			return
		}
		if err := c.AddResource("beacon://schema/condition.json", cond); err != nil {
			s.err = fmt.Errorf("add condition schema: %w", err)
			return
		}

		for kind, src := range stepSchemas {
			doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
			if err != nil {
				s.err = fmt.Errorf("parse %s schema: %w", kind, err)
				return
			}
			if err := c.AddResource(schemaURL(kind), doc); err != nil {
				s.err = fmt.Errorf("add %s schema: %w", kind, err)
				return
			}
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		for kind := range stepSchemas {
			sch, err := c.Compile(schemaURL(kind))
			if err != nil {
				s.err = fmt.Errorf("compile %s schema: %w", kind, err)
				return
			}
			s.compiled[kind] = sch
		}
	})
	return s.err
}

func schemaURL(kind ActionKind) string {
	return "beacon://schema/steps/" + string(kind) + ".json"
}

// normalize re-decodes v the way the schema library expects (json.Number
// for numbers), so configs built in Go validate like decoded JSON.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal step config: %w", err)
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(raw))
}
