package http

import "github.com/santhosh-tekuri/jsonschema/v5"

var volumeSetSchema = jsonschema.MustCompileString("volume-set.schema.json", `{
	"type": "object",
	"required": ["items"],
	"additionalProperties": false,
	"properties": {
		"ellipsoid": {"type": "string"},
		"concurrency": {"type": "integer", "minimum": 0},
		"items": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id"],
				"additionalProperties": false,
				"properties": {
					"id": {"type": "string"},
					"metadata": {}
				}
			}
		}
	}
}`)

var viewportSchema = jsonschema.MustCompileString("viewport.schema.json", `{
	"type": "object",
	"required": ["west", "south", "east", "north", "altitude"],
	"additionalProperties": false,
	"properties": {
		"west": {"type": "number", "minimum": -180, "maximum": 180},
		"south": {"type": "number", "minimum": -90, "maximum": 90},
		"east": {"type": "number", "minimum": -180, "maximum": 180},
		"north": {"type": "number", "minimum": -90, "maximum": 90},
		"altitude": {"type": "number"},
		"altitudeReference": {"enum": ["ellipsoid", "msl"]},
		"zoomMin": {"type": "integer", "minimum": 0, "maximum": 30},
		"zoomMax": {"type": "integer", "minimum": 0, "maximum": 30},
		"ellipsoid": {"type": "string"}
	}
}`)
