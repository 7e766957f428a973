package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/custody/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
		prefix  string
	}{
		{"AccountID", id.NewAccountID, id.ParseAccountID, "acct_"},
		{"EventID", id.NewEventID, id.ParseEventID, "evt_"},
		{"CommitID", id.NewCommitID, id.ParseCommitID, "cmt_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.newFn()
			if !strings.HasPrefix(v.String(), tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, v.String())
			}
			parsed, err := tt.parseFn(v.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != v.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), v.String())
			}
		})
	}
}

func TestCrossPrefixRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"account rejects evt_", id.NewEventID().String(), id.ParseAccountID},
		{"event rejects cmt_", id.NewCommitID().String(), id.ParseEventID},
		{"commit rejects acct_", id.NewAccountID().String(), id.ParseCommitID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "not-a-typeid", "acct_!!!"} {
		if _, err := id.Parse(in); err == nil {
			t.Errorf("Parse(%q): expected error", in)
		}
	}
}

func TestNilBehaviour(t *testing.T) {
	var n id.ID
	if !n.IsNil() {
		t.Fatal("zero ID should be nil")
	}
	if n.String() != "" || n.Prefix() != "" {
		t.Errorf("nil ID should render empty, got %q/%q", n.String(), n.Prefix())
	}
	v, err := n.Value()
	if err != nil || v != nil {
		t.Errorf("nil Value = %v, %v", v, err)
	}
}

func TestScan(t *testing.T) {
	orig := id.NewCommitID()

	var fromString id.ID
	if err := fromString.Scan(orig.String()); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if fromString.String() != orig.String() {
		t.Errorf("scan string mismatch: %q", fromString.String())
	}

	var fromBytes id.ID
	if err := fromBytes.Scan([]byte(orig.String())); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	if fromBytes.String() != orig.String() {
		t.Errorf("scan bytes mismatch: %q", fromBytes.String())
	}

	var fromNil id.ID
	if err := fromNil.Scan(nil); err != nil || !fromNil.IsNil() {
		t.Errorf("scan nil: %v, nil=%v", err, fromNil.IsNil())
	}

	var bad id.ID
	if err := bad.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	id.MustParse("")
}
