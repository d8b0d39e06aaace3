package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema describes the shape of one configuration document. A
// document is a partial layer, so nothing is required at the top level;
// the schema catches misspelled sections, wrong types, and out-of-range
// values with field-level messages before the merge, while Validate()
// enforces cross-field semantics on the merged result.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "version": {"type": "string"},
    "identity": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "uid": {"type": "string"},
        "callsign": {"type": "string"},
        "team": {"type": "string"},
        "role": {"type": "string"},
        "lat": {"type": "number", "minimum": -90, "maximum": 90},
        "lon": {"type": "number", "minimum": -180, "maximum": 180}
      }
    },
    "security": {"type": "object"},
    "nats": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "urls": {"type": "array", "items": {"type": "string"}},
        "maxReconnects": {"type": "integer"},
        "reconnectWait": {"type": ["integer", "number"]},
        "username": {"type": "string"},
        "password": {"type": "string"},
        "token": {"type": "string"},
        "tls": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "enabled": {"type": "boolean"},
            "certFile": {"type": "string"},
            "keyFile": {"type": "string"},
            "caFile": {"type": "string"}
          }
        }
      }
    },
    "servers": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["id", "connection"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "connection": {
            "type": "object",
            "additionalProperties": false,
            "required": ["host", "port"],
            "properties": {
              "host": {"type": "string", "minLength": 1},
              "port": {"type": "integer", "minimum": 1, "maximum": 65535},
              "protocol": {"enum": ["tcp", "udp", "tls", "ssl", "websocket", "ws", "wss"]},
              "useTls": {"type": "boolean"},
              "certificateId": {"type": "string"},
              "reconnect": {"type": "boolean"},
              "reconnectDelayMs": {"type": "integer", "minimum": 0},
              "path": {"type": "string"}
            }
          },
          "policy": {
            "type": "object",
            "additionalProperties": false,
            "properties": {
              "receiveTypes": {"type": "array", "items": {"enum": ["all", "friendly", "hostile", "neutral", "unknown", "sensor", "geofence", "route", "casevac", "target"]}},
              "sendTypes": {"type": "array", "items": {"enum": ["all", "friendly", "hostile", "neutral", "unknown", "sensor", "geofence", "route", "casevac", "target"]}},
              "autoShare": {"type": "boolean"},
              "blueTeamOnly": {"type": "boolean"},
              "bidirectional": {"type": "boolean"}
            }
          }
        }
      }
    },
    "markers": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "maxMarkers": {"type": "integer", "minimum": 1},
        "sweepInterval": {"type": ["integer", "number"]},
        "gracePeriod": {"type": ["integer", "number"]}
      }
    },
    "chat": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "selfUid": {"type": "string"},
        "selfCallsign": {"type": "string"},
        "roomHistory": {"type": "integer", "minimum": 1}
      }
    },
    "alert": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "sweepInterval": {"type": ["integer", "number"]},
        "expiryGrace": {"type": ["integer", "number"]},
        "recentHistory": {"type": "integer", "minimum": 1}
      }
    },
    "federation": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "fanoutWorkers": {"type": "integer", "minimum": 1},
        "fanoutQueue": {"type": "integer", "minimum": 1},
        "sendRate": {"type": "number"},
        "sendBurst": {"type": "integer"},
        "cacheRetention": {"type": ["integer", "number"]},
        "cacheSweepInterval": {"type": ["integer", "number"]},
        "maxEventSize": {"type": "integer", "minimum": 1}
      }
    },
    "bridge": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "subjectPrefix": {"type": "string"}
      }
    },
    "gateway": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "addr": {"type": "string"},
        "readTimeout": {"type": ["integer", "number"]},
        "writeTimeout": {"type": ["integer", "number"]}
      }
    }
  }
}`

// validateDocument checks one raw configuration document against the
// config schema.
func validateDocument(raw map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	documentLoader := gojsonschema.NewGoLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	if !result.Valid() {
		// Build error message from validation errors
		var b strings.Builder
		b.WriteString("config document does not match schema:\n")
		for _, desc := range result.Errors() {
			fmt.Fprintf(&b, "  - %s: %s\n", desc.Field(), desc.Description())
		}
		return errors.New(b.String())
	}

	return nil
}
