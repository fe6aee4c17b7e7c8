package ops

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/flemzord/opsgate/internal/operation"
	"github.com/flemzord/opsgate/internal/permission"
)

func TestEcho(t *testing.T) {
	args := mustArgs(t, Echo{}, map[string]any{
		"message": "hi",
		"details": map[string]any{"k": "v"},
	})
	res, err := Echo{}.Execute(context.Background(), args, permission.Profile{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	data := res.Data.(map[string]any)
	if data["message"] != "hi" {
		t.Errorf("message = %v", data["message"])
	}
	details, ok := data["details"].(map[string]any)
	if !ok || details["k"] != "v" {
		t.Errorf("details = %#v", data["details"])
	}
}

func TestEchoDefaultDetails(t *testing.T) {
	args := mustArgs(t, Echo{}, map[string]any{"message": "hi"})
	res, err := Echo{}.Execute(context.Background(), args, permission.Profile{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Data.(map[string]any)["details"].(map[string]any); !ok {
		t.Errorf("details default = %#v, want empty object", res.Data.(map[string]any)["details"])
	}
}

func TestPing(t *testing.T) {
	res, err := Ping{}.Execute(context.Background(), nil, permission.Profile{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Data.(map[string]any)["reply"] != "pong" {
		t.Errorf("reply = %v", res.Data.(map[string]any)["reply"])
	}
}

func TestGetServerTime(t *testing.T) {
	fixed := time.Date(2024, 3, 7, 18, 30, 45, 123_000_000, time.FixedZone("CET", 3600))
	op := GetServerTime{Now: func() time.Time { return fixed }}

	res, err := op.Execute(context.Background(), nil, permission.Profile{})
	if err != nil {
		t.Fatal(err)
	}
	got := res.Data.(map[string]any)["utc_time"]
	if got != "2024-03-07T17:30:45.123Z" {
		t.Errorf("utc_time = %q, want UTC with millisecond precision and Z suffix", got)
	}
}

func TestListOperationsFiltered(t *testing.T) {
	reg := operation.NewRegistry()
	if err := RegisterAll(reg); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}

	profile := permission.Profile{AgentID: "a1", AllowedOperations: []string{"ping", "echo"}}
	res, err := ListOperations{Registry: reg}.Execute(context.Background(), nil, profile)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(res.Data.(map[string]any)["operations"])
	var infos []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 || infos[0].Name != "echo" || infos[1].Name != "ping" {
		t.Errorf("operations = %v, want [echo ping]", infos)
	}
}

func TestListOperationsWildcard(t *testing.T) {
	reg := operation.NewRegistry()
	if err := RegisterAll(reg); err != nil {
		t.Fatal(err)
	}

	profile := permission.Profile{AgentID: "root", AllowedOperations: []string{permission.Wildcard}}
	res, err := ListOperations{Registry: reg}.Execute(context.Background(), nil, profile)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(res.Data.(map[string]any)["operations"])
	var infos []json.RawMessage
	if err := json.Unmarshal(raw, &infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != len(reg.Names()) {
		t.Errorf("wildcard sees %d operations, registry has %d", len(infos), len(reg.Names()))
	}
}

func TestFinishGoal(t *testing.T) {
	args := mustArgs(t, FinishGoal{}, map[string]any{"summary": "all files processed"})
	res, err := FinishGoal{}.Execute(context.Background(), args, permission.Profile{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Data.(map[string]any)["summary"] != "all files processed" {
		t.Errorf("summary = %v", res.Data.(map[string]any)["summary"])
	}
}

func TestRegisterAllNames(t *testing.T) {
	reg := operation.NewRegistry()
	if err := RegisterAll(reg); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	want := []string{
		"delete_file", "echo", "execute_command", "finish_goal",
		"get_server_time", "list_directory", "list_operations",
		"ping", "read_file", "write_file",
	}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("registered = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("name[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
