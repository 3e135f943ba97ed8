package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// RankRequestSchema describes the body accepted by the recommender's POST /rank.
var RankRequestSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"products"},
	"properties": map[string]interface{}{
		"products": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"id"},
				"properties": map[string]interface{}{
					"id":                   map[string]interface{}{"type": "string", "minLength": 1},
					"name":                 map[string]interface{}{"type": "string"},
					"description":          map[string]interface{}{"type": "string"},
					"categories":           map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"eco_tags":             map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"price_usd":            map[string]interface{}{"type": "number", "minimum": 0},
					"sustainability_score": map[string]interface{}{"type": "number"},
					"carbon_score":         map[string]interface{}{"type": "number"},
				},
			},
		},
		"user_preferences": map[string]interface{}{"type": "object"},
		"request_metadata": map[string]interface{}{"type": "object"},
	},
}

// RankResponseSchema accepts either a flat list of ranked products or an
// object carrying them under ranked_products or products.
var RankResponseSchema = map[string]interface{}{
	"definitions": map[string]interface{}{
		"rankedList": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "object"},
		},
	},
	"oneOf": []interface{}{
		map[string]interface{}{"$ref": "#/definitions/rankedList"},
		map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"ranked_products"},
			"properties": map[string]interface{}{
				"ranked_products": map[string]interface{}{"$ref": "#/definitions/rankedList"},
			},
		},
		map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"products"},
			"not":      map[string]interface{}{"required": []interface{}{"ranked_products"}},
			"properties": map[string]interface{}{
				"products": map[string]interface{}{"$ref": "#/definitions/rankedList"},
			},
		},
	},
}

var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*gojsonschema.Schema{}
)

func compiled(name string, schema map[string]interface{}) (*gojsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	if s, ok := schemaCache[name]; ok {
		return s, nil
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	schemaCache[name] = s
	return s, nil
}

// ValidateJSON validates a raw JSON document against one of the named schemas
// above. The returned error lists every violation.
func ValidateJSON(name string, schema map[string]interface{}, document []byte) error {
	s, err := compiled(name, schema)
	if err != nil {
		return err
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		errs[i] = desc.String()
	}
	return fmt.Errorf("document does not match %s: %s", name, strings.Join(errs, "; "))
}

// ValidateRankRequest checks a POST /rank body.
func ValidateRankRequest(body []byte) error {
	return ValidateJSON("rank-request", RankRequestSchema, body)
}

// ValidateRankResponse checks a collaborator response body.
func ValidateRankResponse(body []byte) error {
	return ValidateJSON("rank-response", RankResponseSchema, body)
}
