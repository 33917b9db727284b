package types

import (
	"encoding/json"
	"testing"
)

func TestNewTextTurn(t *testing.T) {
	req := NewTextTurn(KindRequest, "hello")
	if req.Kind != KindRequest {
		t.Errorf("kind = %s", req.Kind)
	}
	if len(req.Parts) != 1 || req.Parts[0].Type != PartTypeUserPrompt {
		t.Errorf("request part = %+v, want single user_prompt", req.Parts)
	}

	resp := NewTextTurn(KindResponse, "hi")
	if len(resp.Parts) != 1 || resp.Parts[0].Type != PartTypeText {
		t.Errorf("response part = %+v, want single text", resp.Parts)
	}
}

func TestTurnClone_DeepCopiesToolArgs(t *testing.T) {
	original := Turn{Kind: KindResponse, Parts: []Part{
		{Type: PartTypeToolCall, ToolCallID: "c1", ToolName: "search", ToolArgs: json.RawMessage(`{"q":"go"}`)},
		{Type: PartTypeText, Text: "thinking about it"},
	}}

	clone := original.Clone()
	if !clone.Equal(original) {
		t.Fatal("clone must equal the original")
	}

	clone.Parts[0].ToolArgs[2] = 'X'
	clone.Parts[1].Text = "changed"
	if string(original.Parts[0].ToolArgs) != `{"q":"go"}` {
		t.Error("mutating the clone's args reached the original")
	}
	if original.Parts[1].Text != "thinking about it" {
		t.Error("mutating the clone's text reached the original")
	}
}

func TestTurnClone_NilParts(t *testing.T) {
	clone := Turn{Kind: KindRequest}.Clone()
	if clone.Parts != nil {
		t.Errorf("clone of nil parts = %+v, want nil", clone.Parts)
	}
}

func TestTurnText_FlattensInOrder(t *testing.T) {
	turn := Turn{Kind: KindRequest, Parts: []Part{
		{Type: PartTypeUserPrompt, Text: "a"},
		{Type: PartTypeToolCall, ToolCallID: "c", ToolName: "t", ToolArgs: json.RawMessage(`{"skip":"me"}`)},
		{Type: PartTypeToolReturn, ToolCallID: "c", ToolContent: "b"},
		{Type: PartTypeThinking, Text: "c"},
	}}
	if got := turn.Text(); got != "abc" {
		t.Errorf("Text() = %q, want %q", got, "abc")
	}
}

func TestTurnHasToolReturns(t *testing.T) {
	if NewTextTurn(KindRequest, "x").HasToolReturns() {
		t.Error("text turn must not report tool returns")
	}
	turn := Turn{Kind: KindRequest, Parts: []Part{
		{Type: PartTypeToolReturn, ToolCallID: "c", ToolContent: "out"},
	}}
	if !turn.HasToolReturns() {
		t.Error("return-bearing turn must report tool returns")
	}
}

func TestTurnToolCallIDs(t *testing.T) {
	turn := Turn{Kind: KindResponse, Parts: []Part{
		{Type: PartTypeText, Text: "calling"},
		{Type: PartTypeToolCall, ToolCallID: "first"},
		{Type: PartTypeToolCall, ToolCallID: "second"},
	}}
	ids := turn.ToolCallIDs()
	if len(ids) != 2 || ids[0] != "first" || ids[1] != "second" {
		t.Errorf("ToolCallIDs() = %v", ids)
	}
	if got := NewTextTurn(KindResponse, "x").ToolCallIDs(); got != nil {
		t.Errorf("text turn IDs = %v, want nil", got)
	}
}

func TestTurnEqual(t *testing.T) {
	base := Turn{Kind: KindResponse, Parts: []Part{
		{Type: PartTypeToolCall, ToolCallID: "c", ToolName: "t", ToolArgs: json.RawMessage(`{}`)},
	}}

	tests := []struct {
		name   string
		mutate func(*Turn)
		want   bool
	}{
		{name: "identical", mutate: func(*Turn) {}, want: true},
		{name: "kind differs", mutate: func(t *Turn) { t.Kind = KindRequest }, want: false},
		{name: "id differs", mutate: func(t *Turn) { t.Parts[0].ToolCallID = "x" }, want: false},
		{name: "args differ", mutate: func(t *Turn) { t.Parts[0].ToolArgs = json.RawMessage(`{"a":1}`) }, want: false},
		{name: "error flag differs", mutate: func(t *Turn) { t.Parts[0].IsError = true }, want: false},
		{name: "part count differs", mutate: func(t *Turn) { t.Parts = append(t.Parts, Part{Type: PartTypeText}) }, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base.Clone()
			tt.mutate(&other)
			if got := base.Equal(other); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEqualTurns(t *testing.T) {
	a := []Turn{NewTextTurn(KindRequest, "x"), NewTextTurn(KindResponse, "y")}
	b := []Turn{a[0].Clone(), a[1].Clone()}
	if !EqualTurns(a, b) {
		t.Error("identical sequences must be equal")
	}
	if EqualTurns(a, b[:1]) {
		t.Error("different lengths must not be equal")
	}
	if !EqualTurns(nil, []Turn{}) {
		t.Error("nil and empty must be equal")
	}
}

func TestTurnJSONRoundTrip(t *testing.T) {
	turn := Turn{Kind: KindRequest, Parts: []Part{
		{Type: PartTypeToolReturn, ToolCallID: "c1", ToolName: "search", ToolContent: "found it", IsError: true},
	}}

	data, err := json.Marshal(turn)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded Turn
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !decoded.Equal(turn) {
		t.Errorf("round trip changed the turn: %+v", decoded)
	}
}
