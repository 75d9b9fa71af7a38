package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GraphPe/pinata-cli/internal/config"
	"github.com/GraphPe/pinata-cli/internal/sandbox"
	"github.com/GraphPe/pinata-cli/pkg/files"
)

const testJWT = "eyJhbGciOiJIUzI1NiJ9.sandbox-token.signature"

type result struct {
	code   int
	stdout string
	stderr string
}

type harness struct {
	t   *testing.T
	dir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := httptest.NewServer(sandbox.NewRouter(sandbox.Options{JWT: testJWT}))
	t.Cleanup(srv.Close)

	dir := filepath.Join(t.TempDir(), ".pinata")
	t.Setenv(config.EnvDir, dir)
	t.Setenv(config.EnvJWT, "")
	t.Setenv(config.EnvAPIURL, srv.URL)
	t.Setenv(config.EnvUploadURL, srv.URL)
	t.Setenv(config.EnvGatewayURL, srv.URL)
	t.Setenv(config.EnvMode, "")
	t.Setenv(config.EnvLogLevel, "")
	t.Setenv(config.EnvMockSeed, "")
	return &harness{t: t, dir: dir}
}

func (h *harness) run(stdin string, args ...string) result {
	h.t.Helper()
	var out, errOut bytes.Buffer
	app := &App{
		In:    strings.NewReader(stdin),
		Out:   &out,
		Err:   &errOut,
		Build: BuildInfo{Version: "1.2.3", Commit: "abc123", Date: "2024-10-04"},
	}
	code := app.Run(context.Background(), args)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func (h *harness) mustRun(args ...string) result {
	h.t.Helper()
	res := h.run("", args...)
	require.Equal(h.t, 0, res.code, "pinata %s\nstdout: %s\nstderr: %s", strings.Join(args, " "), res.stdout, res.stderr)
	return res
}

func (h *harness) writeFile(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.t.TempDir(), name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (h *harness) upload(args ...string) []files.File {
	h.t.Helper()
	res := h.mustRun(append([]string{"upload", "--output", "json"}, args...)...)
	var uploaded []files.File
	require.NoError(h.t, json.Unmarshal([]byte(res.stdout), &uploaded))
	return uploaded
}

func TestSetupSavesTokenAndVerifies(t *testing.T) {
	h := newHarness(t)
	res := h.mustRun("setup", "--jwt", testJWT, "--verify")
	assert.Contains(t, res.stdout, "Token saved")
	assert.Contains(t, res.stdout, sandbox.AuthMessage)

	data, err := os.ReadFile(config.CredentialsPath(h.dir))
	require.NoError(t, err)
	assert.Equal(t, testJWT, string(data))
	assert.NotContains(t, res.stderr, testJWT)
}

func TestSetupReadsTokenFromInput(t *testing.T) {
	h := newHarness(t)
	res := h.run(testJWT+"\n", "setup")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stderr, "Enter your Pinata JWT")

	res = h.mustRun("auth")
	assert.Contains(t, res.stdout, "Congratulations")
}

func TestWrongTokenIsRejected(t *testing.T) {
	h := newHarness(t)
	h.mustRun("setup", "--jwt", "not-the-token")
	res := h.run("", "auth")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Error: ")
	assert.Contains(t, res.stderr, "unauthorized")
}

func TestMissingCredentialsHint(t *testing.T) {
	h := newHarness(t)
	res := h.run("", "list")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "run `pinata setup` first")
	assert.Empty(t, res.stdout)
}

func TestFileLifecycle(t *testing.T) {
	h := newHarness(t)
	h.mustRun("setup", "--jwt", testJWT)

	a := h.writeFile("alpha.txt", "alpha content")
	b := h.writeFile("beta.json", `{"beta":true}`)
	uploaded := h.upload(a, b, "--keyvalue", "env=test", "--concurrency", "2")
	require.Len(t, uploaded, 2)
	assert.Equal(t, "alpha.txt", uploaded[0].Name)
	assert.Equal(t, "beta.json", uploaded[1].Name)
	assert.Equal(t, "test", uploaded[0].KeyValues["env"])

	res := h.mustRun("list")
	for _, want := range []string{"ID", "Name", "CID", "Group ID", "alpha.txt", "beta.json"} {
		assert.Contains(t, res.stdout, want)
	}

	res = h.mustRun("list", "--name", "beta", "--output", "json")
	var page files.ListResult
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &page))
	require.Len(t, page.Files, 1)
	assert.Equal(t, uploaded[1].ID, page.Files[0].ID)

	res = h.mustRun("get", uploaded[0].ID)
	for _, want := range []string{"Field", "Value", "Number of Files", "MIME Type", "env=test"} {
		assert.Contains(t, res.stdout, want)
	}

	h.mustRun("update", "id="+uploaded[0].ID+",name=renamed.txt")
	h.mustRun("update", uploaded[0].ID, "--keyvalue", "stage=2")
	res = h.mustRun("get", uploaded[0].ID, "--output", "json")
	var got files.File
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
	assert.Equal(t, "renamed.txt", got.Name)
	assert.Equal(t, map[string]string{"env": "test", "stage": "2"}, got.KeyValues)

	res = h.run("no\n", "delete", uploaded[0].ID)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "aborted")

	res = h.run("", "delete", uploaded[0].ID)
	assert.Equal(t, 1, res.code)

	res = h.run("YES\n", "delete", uploaded[0].ID)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Deleted")

	res = h.run("", "get", uploaded[0].ID)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "not found")

	h.mustRun("delete", "--yes", uploaded[1].ID)
	res = h.mustRun("list", "--all", "--output", "json")
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &page))
	assert.Empty(t, page.Files)
}

func TestUpdateNeedsChanges(t *testing.T) {
	h := newHarness(t)
	h.mustRun("setup", "--jwt", testJWT)
	res := h.run("", "update", "some-id")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "nothing to update")

	res = h.run("", "update", "name=only")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "id is missing")
}

func TestUploadNameWithManyPaths(t *testing.T) {
	h := newHarness(t)
	h.mustRun("setup", "--jwt", testJWT)
	res := h.run("", "upload", "--name", "x", h.writeFile("a", "a"), h.writeFile("b", "b"))
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "--name")
}

func TestLegacyFlags(t *testing.T) {
	h := newHarness(t)
	res := h.run("", "-s")
	assert.Equal(t, 1, res.code)

	res = h.run(testJWT+"\n", "--setup")
	require.Equal(t, 0, res.code, res.stderr)

	path := h.writeFile("legacy.txt", "legacy upload")
	res = h.mustRun("-u", path)
	assert.Contains(t, res.stdout, "Uploaded 1 file(s)")

	res = h.mustRun("-l")
	assert.Contains(t, res.stdout, "legacy.txt")

	res = h.mustRun("--output", "json", "-l")
	assert.Contains(t, res.stdout, `"legacy.txt"`)

	res = h.mustRun("--authtest")
	assert.Contains(t, res.stdout, "Congratulations")
}

func TestDownload(t *testing.T) {
	h := newHarness(t)
	h.mustRun("setup", "--jwt", testJWT)
	uploaded := h.upload(h.writeFile("dl.txt", "download me"))
	require.Len(t, uploaded, 1)

	res := h.mustRun("download", uploaded[0].CID)
	assert.Equal(t, "download me", res.stdout)

	out := filepath.Join(t.TempDir(), "copy.txt")
	res = h.mustRun("download", uploaded[0].CID, "-o", out)
	assert.Contains(t, res.stdout, out)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "download me", string(data))

	res = h.run("", "download", "definitely-not-a-cid")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "invalid cid")
}

func TestUsage(t *testing.T) {
	h := newHarness(t)
	h.mustRun("setup", "--jwt", testJWT)
	h.upload(h.writeFile("u.txt", "12345"))

	res := h.mustRun("usage", "--output", "json")
	var usage map[string]int64
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &usage))
	assert.EqualValues(t, 1, usage["pin_count"])
	assert.EqualValues(t, 5, usage["pin_size_total"])

	res = h.mustRun("usage")
	assert.Contains(t, res.stdout, "Pin Count")
}

func TestGroupsCommands(t *testing.T) {
	h := newHarness(t)
	h.mustRun("setup", "--jwt", testJWT)
	uploaded := h.upload(h.writeFile("g.txt", "grouped"))

	res := h.mustRun("groups", "create", "team", "--output", "json")
	var g files.Group
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &g))
	require.NotEmpty(t, g.ID)

	h.mustRun("groups", "add", g.ID, uploaded[0].ID)
	res = h.mustRun("list", "--group", g.ID)
	assert.Contains(t, res.stdout, "g.txt")

	res = h.mustRun("groups", "list")
	assert.Contains(t, res.stdout, "team")
	res = h.mustRun("groups", "list", "--public", "--output", "json")
	var groups files.GroupListResult
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &groups))
	assert.Empty(t, groups.Groups)

	h.mustRun("groups", "get", g.ID)
	h.mustRun("groups", "remove", g.ID, uploaded[0].ID)
	h.mustRun("groups", "delete", "-y", g.ID)
	res = h.run("", "groups", "get", g.ID)
	assert.Equal(t, 1, res.code)
}

func TestConfigSetAndShow(t *testing.T) {
	h := newHarness(t)
	h.mustRun("setup", "--jwt", testJWT)
	h.mustRun("config", "set", "timeout", "10s")
	h.mustRun("config", "set", "max_retries", "1")

	res := h.run("", "config", "set", "output", "xml")
	assert.Equal(t, 1, res.code)

	res = h.mustRun("config", "show", "--output", "json")
	var shown map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &shown))
	assert.Equal(t, "10s", shown["timeout"])
	assert.Equal(t, "1", shown["max_retries"])
	assert.Equal(t, config.MaskJWT(testJWT), shown["jwt"])
	assert.NotContains(t, res.stdout, testJWT)

	res = h.mustRun("config", "show", "--timeout", "3s")
	assert.Contains(t, res.stdout, "3s")
}

func TestMockModeNeedsNoCredentials(t *testing.T) {
	h := newHarness(t)
	res := h.mustRun("--mode", "mock", "usage", "--output", "json")
	assert.Contains(t, res.stdout, `"pin_count": 0`)
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	res := h.mustRun("version")
	assert.Equal(t, "pinata 1.2.3 (abc123, 2024-10-04)\n", res.stdout)
}

func TestInvalidOutputFormat(t *testing.T) {
	h := newHarness(t)
	res := h.run("", "version", "--output", "xml")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "unknown format")
}

func TestTranslateLegacyArgs(t *testing.T) {
	cases := []struct {
		in   []string
		want []string
	}{
		{nil, nil},
		{[]string{"list"}, []string{"list"}},
		{[]string{"-l"}, []string{"list"}},
		{[]string{"-u", "a.txt"}, []string{"upload", "a.txt"}},
		{[]string{"--getfile=abc"}, []string{"get", "abc"}},
		{[]string{"-p", "id=1,name=x"}, []string{"update", "id=1,name=x"}},
		{[]string{"--output", "json", "-l"}, []string{"--output", "json", "list"}},
		{[]string{"--no-color", "--mode=mock", "-f", "abc"}, []string{"--no-color", "--mode=mock", "get", "abc"}},
		{[]string{"--output"}, []string{"--output"}},
		{[]string{"upload", "-l"}, []string{"upload", "-l"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, translateLegacyArgs(tc.in), "%v", tc.in)
	}
}

func TestParseKeyValues(t *testing.T) {
	kv, err := parseKeyValues([]string{"a=1", " b = two words "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "two words"}, kv)

	_, err = parseKeyValues([]string{"novalue"})
	require.Error(t, err)
	_, err = parseKeyValues([]string{"=x"})
	require.Error(t, err)
}
