package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hexagram/internal/config"
	"github.com/roach88/hexagram/internal/profile"
)

// testConfig points the client at baseURL with a fresh database.
func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	return config.Config{
		BaseURL:   baseURL,
		DBPath:    filepath.Join(t.TempDir(), "hexagram.db"),
		Variant:   "standard",
		SyncDelay: 20 * time.Millisecond,
		NATS:      config.NATSConfig{Subject: config.DefaultNATSSubject},
		Proxy:     config.ProxyConfig{Port: config.DefaultProxyPort, UpstreamURL: config.DefaultUpstreamURL},
		Dev:       config.DevServerConfig{Port: config.DefaultDevPort, JWTSecret: "test-secret"},
	}
}

type cliResult struct {
	stdout string
	stderr string
	err    error
}

// runCLI executes one command line against cfg.
func runCLI(t *testing.T, cfg config.Config, stdin string, args ...string) cliResult {
	t.Helper()
	opts := &RootOptions{Config: cfg, Suffixes: profile.NewFixedSuffix("0000")}
	cmd := newRootCommand(opts)

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return cliResult{stdout: out.String(), stderr: errOut.String(), err: err}
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "hexagram", cmd.Use)
	assert.Contains(t, cmd.Long, "offline")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"login"}, {"register"}, {"logout"}, {"whoami"}, {"shell"}, {"schema"}, {"proxy"}, {"devserver"}, {"test"},
		{"profile", "show"}, {"profile", "set"}, {"profile", "pull"}, {"profile", "upgrade"}, {"profile", "reset"},
	}

	for _, path := range commands {
		name := strings.Join(path, " ")
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %s should exist", name)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cfg := testConfig(t, "http://example.test")
	cmd := newRootCommand(&RootOptions{Config: cfg})

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, cfg.DBPath, dbFlag.DefValue, "defaults come from the environment config")

	baseFlag := cmd.PersistentFlags().Lookup("base-url")
	require.NotNil(t, baseFlag)
	assert.Equal(t, "http://example.test", baseFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("variant"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("schema-file"))
}

func TestServeCommandFlags(t *testing.T) {
	cfg := testConfig(t, "")
	cmd := newRootCommand(&RootOptions{Config: cfg})

	proxyCmd, _, err := cmd.Find([]string{"proxy"})
	require.NoError(t, err)
	assert.Equal(t, "8787", proxyCmd.Flags().Lookup("port").DefValue)
	assert.Equal(t, config.DefaultUpstreamURL, proxyCmd.Flags().Lookup("upstream").DefValue)

	devCmd, _, err := cmd.Find([]string{"devserver"})
	require.NoError(t, err)
	assert.Equal(t, "8788", devCmd.Flags().Lookup("port").DefValue)
}

func TestLoginRequiresEmail(t *testing.T) {
	res := runCLI(t, testConfig(t, "http://127.0.0.1:1"), "", "login", "--password", "pw")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "required flag")
}

func TestInvalidFormat(t *testing.T) {
	res := runCLI(t, testConfig(t, ""), "", "profile", "show", "--format", "yaml")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid format")
}
