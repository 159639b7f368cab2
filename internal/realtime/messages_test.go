package realtime

import (
	"testing"

	"maxwell-extraction/internal/settings"
	"maxwell-extraction/pkg/codex"
)

func TestDecodeServerMessage(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantType string
		wantErr  bool
	}{
		{
			name:     "entities",
			raw:      `{"type":"entities","new_entities":[{"name":"Elena","type":"CHARACTER","confidence":"high","suggestionId":"s1","isNew":true,"alreadyInCodex":false}],"timestamp":"2024-01-01T00:00:00Z"}`,
			wantType: "entities",
		},
		{
			name:     "pong",
			raw:      `{"type":"pong"}`,
			wantType: "pong",
		},
		{
			name:     "config ack",
			raw:      `{"type":"config_ack","settings":{"enabled":true,"debounceDelaySeconds":5,"confidenceThreshold":"high","entityTypes":["LOCATION"]}}`,
			wantType: "config_ack",
		},
		{
			name:    "unknown type",
			raw:     `{"type":"mystery"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `{{{`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeServerMessage([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeServerMessage(%q) succeeded, want error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeServerMessage: %v", err)
			}
			if got := msg.messageType(); got != tt.wantType {
				t.Errorf("messageType = %q, want %q", got, tt.wantType)
			}
		})
	}
}

func TestDecodeEntitiesFields(t *testing.T) {
	raw := `{"type":"entities","new_entities":[{"name":"Elena","type":"CHARACTER","context":"Elena rode north","confidence":"high","suggestionId":"s1","isNew":true,"alreadyInCodex":false}],"timestamp":"2024-01-01T00:00:00Z"}`

	msg, err := DecodeServerMessage([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeServerMessage: %v", err)
	}

	ents, ok := msg.(EntitiesMessage)
	if !ok {
		t.Fatalf("decoded %T, want EntitiesMessage", msg)
	}
	if len(ents.NewEntities) != 1 {
		t.Fatalf("got %d entities, want 1", len(ents.NewEntities))
	}

	e := ents.NewEntities[0]
	if e.Name != "Elena" || e.Type != codex.KindCharacter || e.SuggestionID != "s1" {
		t.Errorf("entity = %+v", e)
	}
	if !e.IsNew || e.AlreadyInCodex {
		t.Errorf("entity flags = isNew:%v alreadyInCodex:%v", e.IsNew, e.AlreadyInCodex)
	}
	if e.Confidence != settings.ConfidenceHigh {
		t.Errorf("confidence = %v, want high", e.Confidence)
	}
	if ents.Timestamp != "2024-01-01T00:00:00Z" {
		t.Errorf("timestamp = %q", ents.Timestamp)
	}
}

func TestConfigAckCarriesSettings(t *testing.T) {
	raw := `{"type":"config_ack","settings":{"enabled":false,"debounceDelaySeconds":10,"confidenceThreshold":"low","entityTypes":["ITEM"]}}`

	msg, err := DecodeServerMessage([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeServerMessage: %v", err)
	}
	ack := msg.(ConfigAckMessage)
	if ack.Settings.Enabled || ack.Settings.DebounceDelaySeconds != 10 {
		t.Errorf("ack settings = %+v", ack.Settings)
	}
}
