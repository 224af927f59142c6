package tool

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/mcp-claude-code/internal/command"
	"github.com/opencode-ai/mcp-claude-code/internal/permission"
)

type testEnv struct {
	root    string
	outside string
	gate    *permission.Gate
	reg     *Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	parent, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	root := filepath.Join(parent, "project")
	outside := filepath.Join(parent, "elsewhere")
	for _, dir := range []string{root, outside} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
	}

	gate := permission.New()
	if err := gate.AddAllowedPath(root); err != nil {
		t.Fatalf("AddAllowedPath: %v", err)
	}
	return &testEnv{
		root:    root,
		outside: outside,
		gate:    gate,
		reg:     DefaultRegistry(gate, command.NewExecutor(gate), root),
	}
}

func (e *testEnv) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(e.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func (e *testEnv) call(t *testing.T, id string, args any) (string, bool) {
	t.Helper()
	tool, ok := e.reg.Get(id)
	if !ok {
		t.Fatalf("tool %s not registered", id)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return Invoke(context.Background(), tool, raw, &Context{Caller: CallerMCP})
}

func TestDefaultRegistry(t *testing.T) {
	env := newTestEnv(t)

	want := []string{
		"directory_tree", "edit_file", "get_file_info", "glob", "read_files",
		"run_command", "run_script", "script_tool", "search_content", "think", "write_file",
	}
	got := env.reg.IDs()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("IDs = %v, want %v", got, want)
	}

	env.reg.RegisterDispatchTool(nil)
	if _, ok := env.reg.Get(DispatchToolID); !ok {
		t.Error("dispatch_agent should be registered")
	}

	noDispatch := env.reg.Filter(func(id string) bool { return id != DispatchToolID })
	if _, ok := noDispatch.Get(DispatchToolID); ok {
		t.Error("filtered registry should not contain dispatch_agent")
	}
	if len(noDispatch.ToolInfos()) != len(want) {
		t.Errorf("ToolInfos len = %d, want %d", len(noDispatch.ToolInfos()), len(want))
	}
}

func TestRegistry_Suggest(t *testing.T) {
	env := newTestEnv(t)

	if got := env.reg.Suggest("read_file"); got != "read_files" {
		t.Errorf("Suggest(read_file) = %q", got)
	}
	if got := env.reg.Suggest("run_comand"); got != "run_command" {
		t.Errorf("Suggest(run_comand) = %q", got)
	}
	if got := env.reg.Suggest("launch_rockets_now"); got != "" {
		t.Errorf("Suggest(launch_rockets_now) = %q, want none", got)
	}
}

func TestParseJSONSchemaToParams(t *testing.T) {
	params := parseJSONSchemaToParams(NewEditTool(nil, "").Parameters())

	edits, ok := params["edits"]
	if !ok {
		t.Fatal("missing edits parameter")
	}
	if edits.Type != schema.Array || !edits.Required {
		t.Errorf("edits = %+v", edits)
	}
	if edits.ElemInfo == nil || edits.ElemInfo.Type != schema.Object {
		t.Fatalf("edits.ElemInfo = %+v", edits.ElemInfo)
	}
	if old := edits.ElemInfo.SubParams["old_text"]; old == nil || !old.Required {
		t.Errorf("old_text = %+v", old)
	}
	if params["dry_run"].Type != schema.Boolean || params["dry_run"].Required {
		t.Errorf("dry_run = %+v", params["dry_run"])
	}

	langs := parseJSONSchemaToParams(NewScriptTool(nil, "").Parameters())["language"]
	if len(langs.Enum) != len(command.AvailableLanguages()) {
		t.Errorf("language enum = %v", langs.Enum)
	}
}

type panicTool struct{ ThinkTool }

func (panicTool) Execute(context.Context, json.RawMessage, *Context) (*Result, error) {
	panic("boom")
}

func TestInvoke_ConvertsFailures(t *testing.T) {
	out, failed := Invoke(context.Background(), panicTool{}, nil, nil)
	if !failed || !strings.HasPrefix(out, "Error: ") || !strings.Contains(out, "boom") {
		t.Errorf("panic output = %q, failed = %v", out, failed)
	}

	out, failed = Invoke(context.Background(), NewThinkTool(), json.RawMessage(`{"thought": 7}`), nil)
	if !failed || !strings.HasPrefix(out, "Error: invalid input") {
		t.Errorf("bad input output = %q", out)
	}

	out, failed = Invoke(context.Background(), NewThinkTool(), json.RawMessage(`{"thought": "plan"}`), nil)
	if failed || !strings.Contains(out, "Thought recorded") {
		t.Errorf("think output = %q", out)
	}
}

func TestReadFiles(t *testing.T) {
	env := newTestEnv(t)
	a := env.write(t, "a.txt", "Line 1\nLine 2\nLine 3\n")
	env.write(t, "b.txt", "bee\n")

	out, failed := env.call(t, "read_files", map[string]any{"paths": []string{a}})
	if failed {
		t.Fatalf("read failed: %s", out)
	}
	for _, want := range []string{"00001| Line 1", "00003| Line 3", "(End of file - total 3 lines)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, failed = env.call(t, "read_files", map[string]any{"paths": []string{"a.txt"}, "offset": 2, "limit": 1})
	if failed || !strings.Contains(out, "00002| Line 2") || strings.Contains(out, "Line 3") {
		t.Errorf("paged read = %q", out)
	}
	if !strings.Contains(out, "beyond line 2") {
		t.Errorf("paged read should point past line 2: %q", out)
	}

	out, failed = env.call(t, "read_files", map[string]any{"paths": []string{"a.txt", "b.txt", "missing.txt"}})
	if failed {
		t.Fatalf("partial read should succeed: %s", out)
	}
	if !strings.Contains(out, "bee") || !strings.Contains(out, "Error: file not found") {
		t.Errorf("partial read = %q", out)
	}
}

func TestReadFiles_Denied(t *testing.T) {
	env := newTestEnv(t)
	outsideFile := filepath.Join(env.outside, "notes.txt")
	if err := os.WriteFile(outsideFile, []byte("private"), 0o644); err != nil {
		t.Fatal(err)
	}
	keyFile := env.write(t, "server.key", "private")

	for _, path := range []string{outsideFile, keyFile, "../elsewhere/notes.txt"} {
		out, failed := env.call(t, "read_files", map[string]any{"paths": []string{path}})
		if !failed || !strings.HasPrefix(out, "Error: access denied") {
			t.Errorf("read %s = %q", path, out)
		}
		if strings.Contains(out, "private") {
			t.Errorf("denied read leaked content: %q", out)
		}
	}
}

func TestWriteFile(t *testing.T) {
	env := newTestEnv(t)

	out, failed := env.call(t, "write_file", map[string]any{"path": "nested/dir/new.txt", "content": "hello"})
	if failed || !strings.Contains(out, "Created") {
		t.Fatalf("write = %q", out)
	}
	data, err := os.ReadFile(filepath.Join(env.root, "nested/dir/new.txt"))
	if err != nil || string(data) != "hello" {
		t.Errorf("file content = %q, err = %v", data, err)
	}

	out, _ = env.call(t, "write_file", map[string]any{"path": "nested/dir/new.txt", "content": "again"})
	if !strings.Contains(out, "Overwrote") || !strings.Contains(out, "+1 -1") {
		t.Errorf("overwrite = %q", out)
	}

	out, failed = env.call(t, "write_file", map[string]any{"path": filepath.Join(env.outside, "x.txt"), "content": "x"})
	if !failed || !strings.Contains(out, "outside the allowed directories") {
		t.Errorf("outside write = %q", out)
	}
	if _, err := os.Stat(filepath.Join(env.outside, "x.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Error("denied write should not create the file")
	}
}

func TestWriteFile_RequiresApproval(t *testing.T) {
	env := newTestEnv(t)
	env.gate.RequireApproval(permission.OpWrite)
	path := filepath.Join(env.root, "approved.txt")

	out, failed := env.call(t, "write_file", map[string]any{"path": path, "content": "x"})
	if !failed || !strings.Contains(out, "has not been approved") {
		t.Fatalf("unapproved write = %q", out)
	}

	env.gate.ApproveOperation(path, permission.OpWrite)
	if out, failed := env.call(t, "write_file", map[string]any{"path": path, "content": "x"}); failed {
		t.Errorf("approved write = %q", out)
	}
}

func TestEditFile(t *testing.T) {
	env := newTestEnv(t)
	path := env.write(t, "main.go", "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")

	out, failed := env.call(t, "edit_file", map[string]any{
		"path": path,
		"edits": []map[string]string{
			{"old_text": `println("hi")`, "new_text": `println("hello")`},
			{"old_text": "does not exist anywhere in this file at all", "new_text": "x"},
		},
	})
	if failed {
		t.Fatalf("edit failed: %s", out)
	}
	if !strings.HasPrefix(out, "Applied 1 of 2 edits") {
		t.Errorf("summary = %q", out)
	}
	if !strings.Contains(out, "edit 2: old_text not found") {
		t.Errorf("failure report missing: %q", out)
	}
	if !strings.Contains(out, `+	println("hello")`) && !strings.Contains(out, "hello") {
		t.Errorf("diff missing: %q", out)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `println("hello")`) {
		t.Errorf("file not edited: %s", data)
	}
}

func TestEditFile_NoneApplied(t *testing.T) {
	env := newTestEnv(t)
	path := env.write(t, "x.txt", "one\none\n")

	out, failed := env.call(t, "edit_file", map[string]any{
		"path":  path,
		"edits": []map[string]string{{"old_text": "one", "new_text": "two"}},
	})
	if !failed || !strings.Contains(out, "applied 0 of 1 edits") || !strings.Contains(out, "appears 2 times") {
		t.Errorf("ambiguous edit = %q", out)
	}
}

func TestEditFile_DryRunAndFuzzy(t *testing.T) {
	env := newTestEnv(t)
	original := "func add(a, b int) int {\n\treturn a + b\n}\n"
	path := env.write(t, "add.go", original)

	out, failed := env.call(t, "edit_file", map[string]any{
		"path":    path,
		"dry_run": true,
		"edits":   []map[string]string{{"old_text": "\treturn a + b", "new_text": "\treturn b + a"}},
	})
	if failed || !strings.HasPrefix(out, "Dry run: would apply 1 of 1 edits") {
		t.Errorf("dry run = %q", out)
	}
	if data, _ := os.ReadFile(path); string(data) != original {
		t.Error("dry run modified the file")
	}

	out, failed = env.call(t, "edit_file", map[string]any{
		"path":  path,
		"edits": []map[string]string{{"old_text": "\treturn a +  b", "new_text": "\treturn a - b"}},
	})
	if failed || !strings.Contains(out, "fuzzy match") {
		t.Errorf("fuzzy edit = %q", out)
	}
	if data, _ := os.ReadFile(path); !strings.Contains(string(data), "return a - b") {
		t.Errorf("fuzzy edit not applied: %s", data)
	}
}

func TestEditFile_KeepsCRLF(t *testing.T) {
	env := newTestEnv(t)
	path := env.write(t, "notes.txt", "one\r\ntwo\r\nthree\r\n")

	out, failed := env.call(t, "edit_file", map[string]any{
		"path":  path,
		"edits": []map[string]string{{"old_text": "one\ntwo", "new_text": "one\n2"}},
	})
	if failed || !strings.Contains(out, "line ending normalization") {
		t.Fatalf("edit = %q, failed = %v", out, failed)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "one\r\n2\r\nthree\r\n" {
		t.Errorf("content = %q", data)
	}
}

func TestEditFile_CRLFEditOnLFFile(t *testing.T) {
	env := newTestEnv(t)
	path := env.write(t, "notes.txt", "one\ntwo\nthree\n")

	if out, failed := env.call(t, "edit_file", map[string]any{
		"path":  path,
		"edits": []map[string]string{{"old_text": "two\r\nthree", "new_text": "2\r\n3"}},
	}); failed {
		t.Fatalf("edit = %q", out)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "one\n2\n3\n" {
		t.Errorf("content = %q", data)
	}
}

func TestDirectoryTree(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "src/app/main.go", "package main\n")
	env.write(t, "README.md", "# readme\n")
	env.write(t, "node_modules/pkg/index.js", "x")
	env.write(t, ".env", "TOKEN=1")
	env.write(t, "certs/site.pem", "x")

	out, failed := env.call(t, "directory_tree", map[string]any{"include_hidden": true})
	if failed {
		t.Fatalf("tree failed: %s", out)
	}
	for _, want := range []string{"src/", "app/", "main.go", "README.md"} {
		if !strings.Contains(out, want) {
			t.Errorf("tree missing %q:\n%s", want, out)
		}
	}
	for _, hidden := range []string{"node_modules", ".env", "site.pem"} {
		if strings.Contains(out, hidden) {
			t.Errorf("tree shows %q:\n%s", hidden, out)
		}
	}

	out, _ = env.call(t, "directory_tree", map[string]any{"depth": 1})
	if strings.Contains(out, "app/") {
		t.Errorf("depth 1 tree descended:\n%s", out)
	}
}

func TestGetFileInfo(t *testing.T) {
	env := newTestEnv(t)
	path := env.write(t, "data.txt", "12345")

	out, failed := env.call(t, "get_file_info", map[string]any{"path": path})
	if failed {
		t.Fatalf("info failed: %s", out)
	}
	for _, want := range []string{"type: file", "size: 5", "permissions: -rw-r--r--"} {
		if !strings.Contains(out, want) {
			t.Errorf("info missing %q:\n%s", want, out)
		}
	}

	out, _ = env.call(t, "get_file_info", map[string]any{"path": env.root})
	if !strings.Contains(out, "type: directory") {
		t.Errorf("dir info = %q", out)
	}

	out, failed = env.call(t, "get_file_info", map[string]any{"path": "nope.txt"})
	if !failed || !strings.Contains(out, "path not found") {
		t.Errorf("missing info = %q", out)
	}
}

func TestGlob(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.go", "package a\n")
	env.write(t, "pkg/b.go", "package b\n")
	env.write(t, "pkg/b.txt", "b\n")
	env.write(t, "vendor/c.go", "package c\n")
	env.write(t, "pkg/tls.key", "x")

	out, failed := env.call(t, "glob", map[string]any{"pattern": "**/*.go"})
	if failed {
		t.Fatalf("glob failed: %s", out)
	}
	if !strings.Contains(out, filepath.Join(env.root, "a.go")) || !strings.Contains(out, filepath.Join(env.root, "pkg", "b.go")) {
		t.Errorf("glob results = %q", out)
	}
	if strings.Contains(out, "b.txt") || strings.Contains(out, "vendor") {
		t.Errorf("glob returned unexpected files: %q", out)
	}

	out, _ = env.call(t, "glob", map[string]any{"pattern": "**/*.key"})
	if out != "No files matched the pattern" {
		t.Errorf("excluded file matched: %q", out)
	}

	out, failed = env.call(t, "glob", map[string]any{"pattern": "[", "path": "."})
	if !failed || !strings.Contains(out, "invalid glob pattern") {
		t.Errorf("bad pattern = %q", out)
	}
}

func TestSearchContent(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "main.go", "package main\n\nfunc Hello() {}\n")
	env.write(t, "notes.md", "hello from notes\n")
	env.write(t, "node_modules/dep.js", "hello dep\n")

	out, failed := env.call(t, "search_content", map[string]any{"pattern": "func \\w+", "include": "*.go"})
	if failed {
		t.Fatalf("search failed: %s", out)
	}
	if !strings.Contains(out, "main.go:3: func Hello() {}") {
		t.Errorf("search output = %q", out)
	}

	out, _ = env.call(t, "search_content", map[string]any{"pattern": "hello", "case_insensitive": true})
	if !strings.Contains(out, "notes.md:1:") || !strings.Contains(out, "main.go:3:") || strings.Contains(out, "dep.js") {
		t.Errorf("case-insensitive search = %q", out)
	}

	out, _ = env.call(t, "search_content", map[string]any{"pattern": "zzz-not-present"})
	if out != "No matches found" {
		t.Errorf("empty search = %q", out)
	}

	out, failed = env.call(t, "search_content", map[string]any{"pattern": "("})
	if !failed || !strings.Contains(out, "invalid regular expression") {
		t.Errorf("bad regexp = %q", out)
	}
}

func TestRunCommand(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "hello.txt", "hi there\n")

	out, failed := env.call(t, "run_command", map[string]any{"command": "cat hello.txt"})
	if failed || out != "hi there\n" {
		t.Errorf("run_command = %q, failed = %v", out, failed)
	}

	out, failed = env.call(t, "run_command", map[string]any{"command": "rm hello.txt"})
	if !failed || !strings.Contains(out, "Command not allowed") {
		t.Errorf("rm = %q", out)
	}

	out, failed = env.call(t, "run_command", map[string]any{"command": "ls", "cwd": env.outside})
	if !failed || !strings.Contains(out, "outside the allowed directories") {
		t.Errorf("outside cwd = %q", out)
	}

	out, failed = env.call(t, "run_command", map[string]any{"command": "sleep 5", "timeout": 0.2})
	if !failed || !strings.Contains(out, "timed out") {
		t.Errorf("timeout = %q", out)
	}
}

func TestRunCommand_BaseOutsideAllowedPaths(t *testing.T) {
	env := newTestEnv(t)
	reg := DefaultRegistry(env.gate, command.NewExecutor(env.gate), env.outside)

	for _, tc := range []struct {
		id   string
		args map[string]any
		want string
	}{
		{"run_command", map[string]any{"command": "echo hello"}, "hello\n"},
		{"run_script", map[string]any{"script": "echo scripted"}, "scripted\n"},
		{"script_tool", map[string]any{"language": "sh", "script": "echo from file"}, "from file\n"},
	} {
		tool, _ := reg.Get(tc.id)
		raw, _ := json.Marshal(tc.args)
		out, failed := Invoke(context.Background(), tool, raw, &Context{Caller: CallerMCP})
		if failed || out != tc.want {
			t.Errorf("%s = %q, failed = %v", tc.id, out, failed)
		}
	}

	tool, _ := reg.Get("run_command")
	raw, _ := json.Marshal(map[string]any{"command": "ls", "cwd": env.outside})
	if out, failed := Invoke(context.Background(), tool, raw, &Context{Caller: CallerMCP}); !failed ||
		!strings.Contains(out, "outside the allowed directories") {
		t.Errorf("explicit outside cwd = %q", out)
	}
}

func TestRunScriptAndScriptTool(t *testing.T) {
	env := newTestEnv(t)

	out, failed := env.call(t, "run_script", map[string]any{"script": "echo one | tr o O"})
	if failed || out != "One\n" {
		t.Errorf("run_script = %q, failed = %v", out, failed)
	}

	out, failed = env.call(t, "script_tool", map[string]any{
		"language": "bash",
		"script":   "echo \"args: $*\"",
		"args":     []string{"a", "b"},
	})
	if failed || out != "args: a b\n" {
		t.Errorf("script_tool = %q, failed = %v", out, failed)
	}

	out, failed = env.call(t, "script_tool", map[string]any{"language": "cobol", "script": "x"})
	if !failed || !strings.Contains(out, "Unsupported language: cobol") {
		t.Errorf("unsupported = %q", out)
	}
}

type fakeDispatcher struct {
	got any
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, prompt any) (string, error) {
	f.got = prompt
	if prompt == nil {
		return "", errors.New("prompt is required")
	}
	return "done", nil
}

func TestDispatchTool(t *testing.T) {
	d := &fakeDispatcher{}
	tool := NewDispatchTool(d)

	out, failed := Invoke(context.Background(), tool, json.RawMessage(`{"prompt": ["a", "b"]}`), nil)
	if failed || out != "done" {
		t.Errorf("dispatch = %q", out)
	}
	if list, ok := d.got.([]any); !ok || len(list) != 2 {
		t.Errorf("dispatcher got %#v", d.got)
	}

	out, failed = Invoke(context.Background(), tool, json.RawMessage(`{}`), nil)
	if !failed || out != "Error: prompt is required" {
		t.Errorf("missing prompt = %q", out)
	}

	out, failed = Invoke(context.Background(), NewDispatchTool(nil), json.RawMessage(`{"prompt": "x"}`), nil)
	if !failed || !strings.Contains(out, "not configured") {
		t.Errorf("unconfigured = %q", out)
	}
}

func TestDiffText(t *testing.T) {
	base := filepath.Join(string(filepath.Separator), "work")

	change := diffText(filepath.Join(base, "a.txt"), "one\ntwo\nthree\n", "one\n2\nthree\nfour\n", base)
	if change.Added != 2 || change.Removed != 1 {
		t.Errorf("counts = +%d -%d, want +2 -1", change.Added, change.Removed)
	}
	if !strings.HasPrefix(change.Patch, "--- a.txt\n+++ a.txt\n") {
		t.Errorf("patch headers = %q", change.Patch)
	}
	if change.Stat() != "+2 -1" {
		t.Errorf("stat = %q", change.Stat())
	}

	if got := diffText("/x", "same", "same", ""); got != (fileChange{}) {
		t.Errorf("unchanged text = %+v", got)
	}
	if got := displayPath("/elsewhere/b.txt", base); got != "/elsewhere/b.txt" {
		t.Errorf("outside path = %q", got)
	}
}
