package jsonrpc

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestWriteLineEncodesOneLine(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	req := NewRequest(1, "tools/list", nil)
	if err := WriteLine(w, req); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	out := buf.String()
	if !strings.HasSuffix(out, "\n") {
		t.Fatalf("expected trailing newline, got %q", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected exactly one line, got %q", out)
	}
	if !strings.Contains(out, `"method":"tools/list"`) {
		t.Fatalf("expected method field, got %q", out)
	}
}

func TestReadLineDecodesResponse(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(`{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}` + "\n"))
	resp, raw, ok, err := ReadLine(r)
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true for valid JSON-RPC line")
	}
	if len(raw) == 0 {
		t.Fatalf("expected non-empty raw line")
	}
	if string(resp.Result) != `{"tools":[]}` {
		t.Fatalf("unexpected result: %s", resp.Result)
	}
}

func TestReadLineIgnoresStrayNonJSON(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("not json at all\n"))
	_, _, ok, err := ReadLine(r)
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for non-JSON-RPC line")
	}
}

func TestReadLineErrorResponse(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(`{"jsonrpc":"2.0","id":2,"error":{"code":-32000,"message":"boom"}}` + "\n"))
	resp, _, ok, err := ReadLine(r)
	if err != nil || !ok {
		t.Fatalf("ReadLine: ok=%v err=%v", ok, err)
	}
	if resp.Error == nil || resp.Error.Message != "boom" {
		t.Fatalf("expected error boom, got %+v", resp.Error)
	}
}
