package validator

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const finalOutputSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["document_id", "success", "analysis", "validation", "meta"],
  "properties": {
    "document_id": {"type": "string", "minLength": 1},
    "success": {"type": "boolean"},
    "analysis": {
      "type": "object",
      "required": ["ozet", "data", "critical_fields"],
      "properties": {
        "ozet": {"type": "string"},
        "data": {
          "type": "object",
          "properties": {
            "dates": {"$ref": "#/$defs/findings"},
            "amounts": {"$ref": "#/$defs/findings"},
            "penalties": {"type": "array"},
            "menus": {"type": "object"},
            "personnel": {"type": "object"}
          }
        },
        "critical_fields": {
          "type": "object",
          "additionalProperties": {
            "type": "object",
            "additionalProperties": {"type": "string"}
          }
        }
      }
    },
    "validation": {
      "type": "object",
      "required": ["valid", "completeness_score", "quality_score", "checks"],
      "properties": {
        "valid": {"type": "boolean"},
        "completeness_score": {"type": "number", "minimum": 0, "maximum": 1},
        "quality_score": {"type": "number", "minimum": 0, "maximum": 1},
        "checks": {"type": "array"}
      }
    },
    "conflicts": {"type": ["array", "null"]},
    "references": {"type": ["array", "null"]},
    "meta": {
      "type": "object",
      "required": ["pipeline_version", "file_info"],
      "properties": {
        "pipeline_version": {"type": "string"},
        "file_info": {"type": "object"}
      }
    }
  },
  "$defs": {
    "findings": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type", "value"],
        "properties": {
          "type": {"type": "string"},
          "value": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    }
  }
}`

var outputSchema = jsonschema.MustCompileString("final_output.json", finalOutputSchema)

// CheckSchema validates the serialized final output against the wire
// schema. A non-conforming output is a producer bug, so the errors come
// back for the report rather than panicking.
func CheckSchema(output any) []string {
	raw, err := json.Marshal(output)
	if err != nil {
		return []string{fmt.Sprintf("cikti serilestirilemedi: %v", err)}
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return []string{fmt.Sprintf("cikti okunamadi: %v", err)}
	}
	if err := outputSchema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return flattenCauses(verr)
		}
		return []string{err.Error()}
	}
	return nil
}

func flattenCauses(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := verr.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Message)}
	}
	var out []string
	for _, c := range verr.Causes {
		out = append(out, flattenCauses(c)...)
	}
	return out
}
