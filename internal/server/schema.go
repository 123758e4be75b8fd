package server

import "github.com/santhosh-tekuri/jsonschema/v5"

// evaluateSchema validates the shape of an inbound evaluation payload
// before the sanitizer sees it. It stays loose on purpose: the sanitizer
// clamps out-of-range numbers, so the schema only rejects structurally
// wrong payloads (wrong types, malformed history entries).
const evaluateSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["transcript", "level"],
  "properties": {
    "sessionId": {"type": "string"},
    "transcript": {"type": "string"},
    "timeRemaining": {"type": "number"},
    "suspicion": {"type": "number"},
    "round": {"type": "number"},
    "stage": {"type": "number"},
    "level": {"type": "string"},
    "playerEmotion": {"type": "string"},
    "emotionConfidence": {"type": "number"},
    "history": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["role", "content"],
        "properties": {
          "role": {"type": "string", "enum": ["npc", "player"]},
          "content": {"type": "string"}
        }
      }
    }
  }
}`

var evaluateSchema = jsonschema.MustCompileString("evaluate.json", evaluateSchemaJSON)
