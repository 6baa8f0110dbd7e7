package memory

import "testing"

func TestExtract(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		wantTypes []FactType
	}{
		{
			"freezing and lost in forest",
			"I'm freezing and lost in the forest",
			[]FactType{FactEnvironment, FactLocation},
		},
		{
			"breathing emergency",
			"my friend can't breathe",
			[]FactType{FactCondition},
		},
		{
			"resources and time",
			"no water and it's getting dark",
			[]FactType{FactResource, FactTemporal},
		},
		{
			"nothing matches",
			"hello, how are you?",
			nil,
		},
		{
			"empty",
			"",
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.message)
			seen := map[FactType]bool{}
			for _, f := range got {
				seen[f.Type] = true
				if f.Importance <= 0 {
					t.Errorf("fact %q has non-positive importance", f.Text)
				}
			}
			for _, want := range tt.wantTypes {
				if !seen[want] {
					t.Errorf("Extract(%q) missing %s fact, got %v", tt.message, want, got)
				}
			}
			if tt.wantTypes == nil && len(got) != 0 {
				t.Errorf("Extract(%q) = %v, want none", tt.message, got)
			}
		})
	}
}

func TestExtractImportanceOrdering(t *testing.T) {
	breathing := Extract("I can't breathe")
	temporal := Extract("it happened this morning")
	if len(breathing) == 0 || len(temporal) == 0 {
		t.Fatal("expected both extractions to fire")
	}
	if breathing[0].Importance <= temporal[0].Importance {
		t.Errorf("life-threatening condition (%f) should outweigh temporal mention (%f)",
			breathing[0].Importance, temporal[0].Importance)
	}
}

func TestExtractCanonicalForm(t *testing.T) {
	got := Extract("I'm in the forest")
	if len(got) == 0 {
		t.Fatal("expected a location fact")
	}
	if got[0].Text != "location: forest" {
		t.Errorf("fact text = %q, want %q", got[0].Text, "location: forest")
	}
}
