package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportbot-dev/supportbot/internal/config"
	"github.com/supportbot-dev/supportbot/internal/devserver"
	"github.com/supportbot-dev/supportbot/internal/log"
	"github.com/supportbot-dev/supportbot/internal/testutil"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	configDirFlag, apiBaseURLFlag, logLevelFlag = "", "", ""
	timeoutFlag = 0
	logStderrFlag = false
	forceFlag, summariesFlag, chatNewFlag = false, false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "", "config", "init", "--config-dir", dir, "--api-base-url", "http://support.test/api")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote ")

	cfg, err := config.ReadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://support.test/api", cfg.APIBaseURL)

	out, err = execute(t, "", "config", "show", "--config-dir", dir, "--timeout", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "api_base_url: http://support.test/api")
	assert.Contains(t, out, "request_timeout: 9")
}

func TestConfigInitAbortsWithoutConfirmation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, config.WriteConfig(dir, &config.Config{Version: 1, APIBaseURL: "http://keep.test/api", RequestTimeout: 5}))

	out, err := execute(t, "n\n", "config", "init", "--config-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted.")

	cfg, err := config.ReadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://keep.test/api", cfg.APIBaseURL)
}

func TestNewAskAndSessionsCommands(t *testing.T) {
	dir := t.TempDir()
	base := testutil.Server(t)

	out, err := execute(t, "", "new", "--config-dir", dir, "--api-base-url", base)
	require.NoError(t, err)
	assert.Contains(t, out, devserver.GreetingText)

	line := strings.SplitN(out, "\n", 2)[0]
	require.True(t, strings.HasPrefix(line, "Session: "))
	id := strings.TrimPrefix(line, "Session: ")

	out, err = execute(t, "", "ask", id, "I", "want", "a", "refund", "--config-dir", dir, "--api-base-url", base)
	require.NoError(t, err)
	assert.Contains(t, out, "Refunds are processed")
	assert.Contains(t, out, "1. What is the refund policy?")

	out, err = execute(t, "", "sessions", "--summaries", "--config-dir", dir, "--api-base-url", base)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "2 messages")
	assert.Contains(t, out, "I want a refund")

	events, err := mustEventLog(t, dir).ReadAll()
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}

func TestAskUnknownSessionReportsNewID(t *testing.T) {
	dir := t.TempDir()
	base := testutil.Server(t)

	out, err := execute(t, "", "ask", "gone", "hello", "--config-dir", dir, "--api-base-url", base)
	require.NoError(t, err)
	assert.Contains(t, out, "Session id changed: gone -> ")
}

func TestAskUnreachableBackendFails(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "", "ask", "s1", "hello", "--config-dir", dir, "--api-base-url", testutil.UnreachableURL, "--timeout", "2")
	require.Error(t, err)
	assert.Contains(t, out, "Sorry, something went wrong. Please try again.")
}

func TestSummarizeUnknownSession(t *testing.T) {
	dir := t.TempDir()
	base := testutil.Server(t)

	_, err := execute(t, "", "summarize", "missing", "--config-dir", dir, "--api-base-url", base)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Session not found")
}

func TestNextActionsCommand(t *testing.T) {
	dir := t.TempDir()
	base := testutil.Server(t)

	out, err := execute(t, "", "new", "--config-dir", dir, "--api-base-url", base)
	require.NoError(t, err)
	id := strings.TrimPrefix(strings.SplitN(out, "\n", 2)[0], "Session: ")

	out, err = execute(t, "", "next-actions", id, "--config-dir", dir, "--api-base-url", base)
	require.NoError(t, err)
	assert.Contains(t, out, "1. ")
}

func TestLogFileWritten(t *testing.T) {
	dir := t.TempDir()
	base := testutil.Server(t)

	_, err := execute(t, "", "sessions", "--config-dir", dir, "--api-base-url", base, "--log-level", "debug")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "supportbot.log"))
	assert.NoError(t, err)
}

func TestConfigFileSelectsBackend(t *testing.T) {
	base := testutil.Server(t)
	dir := testutil.TempDir(t, testutil.ConfigFiles(base))
	clearBaseURLEnv(t)

	out, err := execute(t, "", "new", "--config-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, devserver.GreetingText)
}

func TestEnvFileSelectsBackend(t *testing.T) {
	base := testutil.Server(t)
	clearBaseURLEnv(t)
	t.Chdir(testutil.TempDir(t, testutil.EnvFile(base)))

	out, err := execute(t, "", "config", "show", "--config-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "api_base_url: "+base)
}

// clearBaseURLEnv unsets the base URL variables for the test; godotenv does
// not override variables that are set, even to "".
func clearBaseURLEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvBaseURL, config.EnvLegacyBaseURL} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func mustEventLog(t *testing.T, dir string) *log.EventLog {
	t.Helper()
	el, err := log.NewEventLog(dir)
	require.NoError(t, err)
	return el
}
