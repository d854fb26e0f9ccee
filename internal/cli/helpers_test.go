package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rollbook/internal/testutil"
)

const testTraceID = "trace-test"

// goldenDir is resolved before any test changes the working directory.
var goldenDir = func() string {
	dir, err := filepath.Abs(filepath.Join("testdata", "golden"))
	if err != nil {
		panic(err)
	}
	return dir
}()

// cliEnv runs commands against one temporary database.
type cliEnv struct {
	t     *testing.T
	db    string
	clock *testutil.FixedClock
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Chdir(t.TempDir()) // no stray .env
	t.Setenv("ROLLBOOK_AUTH__BCRYPT_COST", "4")
	t.Setenv(PasswordEnv, "")
	return &cliEnv{
		t:     t,
		db:    filepath.Join(t.TempDir(), "rollbook.db"),
		clock: testutil.ClockOn("2024-06-01"),
	}
}

// run executes one command line and returns what it wrote to stdout.
func (e *cliEnv) run(args ...string) (string, error) {
	e.t.Helper()
	opts := &RootOptions{
		Clock:      e.clock,
		NewTraceID: func() string { return testTraceID },
	}
	cmd := newRootCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", e.db}, args...))
	err := cmd.ExecuteContext(e.t.Context())
	return out.String(), err
}

// mustRun fails the test if the command fails.
func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, "rollbook %v: %s", args, out)
	return out
}

// asAdmin prefixes the default admin credentials.
func asAdmin(args ...string) []string {
	return append([]string{"-u", "admin", "--password", "admin"}, args...)
}

// as prefixes a user's credentials.
func as(user, password string, args ...string) []string {
	return append([]string{"-u", user, "--password", password}, args...)
}

// decodeResponse parses a JSON envelope, decoding its data into data if non-nil.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data), out)
	}
	return resp.CLIResponse
}

func assertGolden(t *testing.T, name, out string) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir(goldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(out))
}
