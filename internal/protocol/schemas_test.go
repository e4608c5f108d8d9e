package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	statusSchema := compile("status.schema.json")
	commandSchema := compile("command.schema.json")
	resultSchema := compile("result.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"0.3",
	  "client_name":"observer1",
	  "subscribe":[[12,20,-40]]
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"0.3",
	  "world_id":"blight_1",
	  "tick":0,
	  "world_params":{
	    "tick_rate_hz":5,
	    "height":64,
	    "boundary_r":4000,
	    "seed":1337
	  },
	  "catalogs":{
	    "block_palette":{"digest":"deadbeef","count":17},
	    "conversions_digest":"deadbeef",
	    "healing_digest":"deadbeef"
	  }
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var status any
	_ = json.Unmarshal([]byte(`{
	  "type":"STATUS",
	  "protocol_version":"0.3",
	  "tick":1250,
	  "game_hours":0.069,
	  "paused":false,
	  "sources":[{
	    "id":1,
	    "pos":[12,20,-40],
	    "range":32,
	    "current_radius":7.0,
	    "generation":0,
	    "blocks_total":310,
	    "protected":true
	  }],
	  "rifts":1,
	  "regrow_queue":310,
	  "corrupted_chunks":[[0,-3],[1,-3]],
	  "intensity":[{"pos":[12,20,-40],"score":4.2}]
	}`), &status)
	validate(statusSchema, status)

	var command any
	_ = json.Unmarshal([]byte(`{
	  "type":"COMMAND",
	  "protocol_version":"0.3",
	  "cmd":"PLACE_SOURCE",
	  "pos":[12,20,-40],
	  "range":32,
	  "amount":4
	}`), &command)
	validate(commandSchema, command)

	var result any
	_ = json.Unmarshal([]byte(`{
	  "type":"RESULT",
	  "protocol_version":"0.3",
	  "cmd":"PLACE_SOURCE",
	  "ok":false,
	  "code":"E_FULL",
	  "message":"registry at capacity",
	  "tick":1250
	}`), &result)
	validate(resultSchema, result)
}
