package registry

import (
	"encoding/json"
	"testing"

	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventTaskRequestStatusChanged, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"new_status":"paid"}`)
	output, err := reg.Decode(enums.EventTaskRequestStatusChanged, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["new_status"] != "paid" {
		t.Fatalf("unexpected output %+v", output)
	}
}
