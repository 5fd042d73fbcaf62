package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
pipelines:
  - id: activities
    modules:
      - id: answer
        type: static
        config:
          value: "the activities answer"
  - id: summaries
    modules:
      - id: answer
        type: static
        config:
          value: "the summary answer"
router:
  choices:
    - description: "answers questions about specific activities and events"
      pipeline: activities
    - description: "produces a summary of the document"
      pipeline: summaries
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	path := writeTestConfig(t, testConfig)
	out, err := execute(t, "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration valid")
	assert.Contains(t, out, `default "root"`)
}

func TestValidateCommandRejectsBadConfig(t *testing.T) {
	path := writeTestConfig(t, "pipelines: []")
	_, err := execute(t, "validate", "--config", path)
	require.Error(t, err)
}

func TestRunCommandRoutesQuery(t *testing.T) {
	path := writeTestConfig(t, testConfig)
	out, err := execute(t, "run", "--config", path, "What is a summary of this document?")
	require.NoError(t, err)
	assert.Contains(t, out, "the summary answer")
}

func TestRunCommandNamedPipeline(t *testing.T) {
	path := writeTestConfig(t, testConfig)
	out, err := execute(t, "run", "--config", path, "--pipeline", "activities", "ignored by static module")
	require.NoError(t, err)
	assert.Contains(t, out, "the activities answer")
}

func TestRunCommandUnknownPipeline(t *testing.T) {
	path := writeTestConfig(t, testConfig)
	_, err := execute(t, "run", "--config", path, "--pipeline", "ghost", "q")
	require.Error(t, err)
}
