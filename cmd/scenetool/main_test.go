package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const hingeDoc = `<?xml version="1.0" encoding="UTF-8"?>
<object type="compound" matrix="1 0 0 0 0 1 0 0 0 0 1 0 0 0 0 1">
  <object type="box" matrix="1 0 0 0 0 1 0 0 0 0 1 0 0 0 0 1"></object>
  <object type="sphere" matrix="1 0 0 0 0 1 0 0 0 0 1 0 0 2 0 1"></object>
  <joint type="hinge" parentID="0" childID="1" pivot="0 1 0" pinDir="1 0 0"></joint>
</object>`

const danglingDoc = `<object type="compound">
  <object type="box"/>
  <joint type="hinge" parentID="0" childID="4" pivot="0 1 0" pinDir="1 0 0"/>
</object>`

func writeScene(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.xml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write scene: %v", err)
	}
	return path
}

func runTool(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsage(t *testing.T) {
	code, _, stderr := runTool(t)
	if code != 1 || !strings.Contains(stderr, "Usage:") {
		t.Errorf("no args: code %d, stderr %q", code, stderr)
	}

	code, _, stderr = runTool(t, "explode")
	if code != 1 || !strings.Contains(stderr, "Unknown command: explode") {
		t.Errorf("unknown command: code %d, stderr %q", code, stderr)
	}

	code, stdout, _ := runTool(t, "help")
	if code != 0 || !strings.Contains(stdout, "Commands:") {
		t.Errorf("help: code %d, stdout %q", code, stdout)
	}

	code, _, stderr = runTool(t, "info")
	if code != 1 || !strings.Contains(stderr, "usage") {
		t.Errorf("info without a file: code %d, stderr %q", code, stderr)
	}
}

func TestInfo(t *testing.T) {
	code, stdout, stderr := runTool(t, "info", writeScene(t, hingeDoc))
	if code != 0 {
		t.Fatalf("info failed: %s", stderr)
	}
	for _, want := range []string{"Objects: 2", "Joints:  1", "Skipped: 0", "box", "sphere", "hinge"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("info output missing %q:\n%s", want, stdout)
		}
	}
}

func TestTree(t *testing.T) {
	code, stdout, stderr := runTool(t, "tree", writeScene(t, hingeDoc))
	if code != 0 {
		t.Fatalf("tree failed: %s", stderr)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected root, joint and two objects, got:\n%s", stdout)
	}
	if !strings.HasPrefix(lines[0], "compound") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "hinge 0 -> 1") {
		t.Errorf("joint line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "[0] box") || !strings.Contains(lines[3], "[1] sphere") {
		t.Errorf("object lines = %q, %q", lines[2], lines[3])
	}
}

func TestValidate(t *testing.T) {
	code, stdout, _ := runTool(t, "validate", writeScene(t, hingeDoc))
	if code != 0 || !strings.Contains(stdout, "ok (2 objects, 1 joints)") {
		t.Errorf("valid scene: code %d, stdout %q", code, stdout)
	}

	code, stdout, stderr := runTool(t, "validate", writeScene(t, danglingDoc))
	if code != 1 {
		t.Errorf("dangling joint should fail validation, got code %d", code)
	}
	if !strings.Contains(stdout, "line 3: hinge 0 -> 4 skipped") {
		t.Errorf("stdout = %q", stdout)
	}
	if !strings.Contains(stderr, "1 joint(s) skipped") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestValidateMissingFile(t *testing.T) {
	code, _, stderr := runTool(t, "check", filepath.Join(t.TempDir(), "missing.xml"))
	if code != 1 || !strings.Contains(stderr, "open scene") {
		t.Errorf("code %d, stderr %q", code, stderr)
	}
}

func TestConvert(t *testing.T) {
	in := writeScene(t, danglingDoc)
	out := filepath.Join(t.TempDir(), "out", "converted.xml")

	code, stdout, stderr := runTool(t, "convert", in, out)
	if code != 0 {
		t.Fatalf("convert failed: %s", stderr)
	}
	if !strings.Contains(stdout, "1 objects, 0 joints, 1 skipped") {
		t.Errorf("stdout = %q", stdout)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read converted scene: %v", err)
	}
	doc := string(data)
	if !strings.HasPrefix(doc, "<?xml") || strings.Contains(doc, "<joint") {
		t.Errorf("converted document:\n%s", doc)
	}

	code, stdout, _ = runTool(t, "validate", out)
	if code != 0 || !strings.Contains(stdout, "ok (1 objects, 0 joints)") {
		t.Errorf("converted scene should validate: code %d, stdout %q", code, stdout)
	}
}

func TestSimulate(t *testing.T) {
	in := writeScene(t, hingeDoc)
	out := filepath.Join(t.TempDir(), "settled.xml")

	code, stdout, stderr := runTool(t, "sim", "-steps", "30", "-o", out, in)
	if code != 0 {
		t.Fatalf("simulate failed: %s", stderr)
	}
	if !strings.Contains(stdout, "Simulated 30 steps") || !strings.Contains(stdout, "Saved "+out) {
		t.Errorf("stdout = %q", stdout)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("settled scene not written: %v", err)
	}

	code, _, _ = runTool(t, "simulate", "-steps", "-1", in)
	if code != 1 {
		t.Errorf("negative step count should fail, got code %d", code)
	}
}

func TestServeFailsOnBusyAddress(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	code, stdout, stderr := runTool(t, "serve", "-addr", ln.Addr().String(), writeScene(t, hingeDoc))
	if code != 1 {
		t.Fatalf("serve on a busy address should fail, got code %d", code)
	}
	if !strings.Contains(stdout, "Stopped after") {
		t.Errorf("stdout = %q", stdout)
	}
	if !strings.Contains(stderr, "Error:") {
		t.Errorf("stderr = %q", stderr)
	}

	code, _, _ = runTool(t, "serve", "-rate", "0", writeScene(t, hingeDoc))
	if code != 1 {
		t.Errorf("zero rate should fail, got code %d", code)
	}
}
