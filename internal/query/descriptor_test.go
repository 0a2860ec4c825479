package query

import (
	"errors"
	"testing"
)

func TestDecode_MinimalSelect(t *testing.T) {
	d, err := Decode([]byte(`{"table": "tasks", "action": "select"}`))
	if err != nil {
		t.Fatal(err)
	}
	if d.Table != "tasks" || d.Action != ActionSelect {
		t.Errorf("descriptor: %+v", d)
	}
}

func TestDecode_UnknownAction(t *testing.T) {
	_, err := Decode([]byte(`{"table": "tasks", "action": "truncate"}`))
	var uerr *UnsupportedOperationError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnsupportedOperationError, got %v", err)
	}
}

func TestDecode_UnknownOperator(t *testing.T) {
	_, err := Decode([]byte(`{"table": "tasks", "action": "select", "filters": [{"column": "status", "operator": "regex", "value": "x"}]}`))
	var uerr *UnsupportedOperationError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnsupportedOperationError, got %v", err)
	}
}

func TestDecode_UnknownJoinType(t *testing.T) {
	_, err := Decode([]byte(`{"table": "tasks", "action": "join", "join": [{"table": "notes", "on": {"local": "id", "foreign": "task_id"}, "type": "cross"}]}`))
	var uerr *UnsupportedOperationError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnsupportedOperationError, got %v", err)
	}
}

func TestDecode_MissingTable(t *testing.T) {
	_, err := Decode([]byte(`{"action": "select"}`))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestParseAction_RoundTrip(t *testing.T) {
	for _, name := range []string{"select", "insert", "update", "delete", "upsert", "join", "search"} {
		a, err := ParseAction(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if a.String() != name {
			t.Errorf("%s round-tripped to %s", name, a.String())
		}
	}
}

func TestParseOperator_RoundTrip(t *testing.T) {
	for _, name := range []string{"eq", "neq", "gt", "lt", "gte", "lte", "like", "ilike", "in", "contains", "range"} {
		o, err := ParseOperator(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if o.String() != name {
			t.Errorf("%s round-tripped to %s", name, o.String())
		}
	}
}

func TestValidIdent(t *testing.T) {
	for _, ok := range []string{"tasks", "_private", "col_2"} {
		if err := validIdent(ok); err != nil {
			t.Errorf("%q: unexpected error %v", ok, err)
		}
	}
	for _, bad := range []string{"", "ta sks", "tasks;drop", "1col", "a-b"} {
		if err := validIdent(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}
