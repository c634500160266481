package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"invoicehandler/internal/errors"
	"invoicehandler/pkg/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return testutils.StripANSI(out.String()), err
}

func initConfig(t *testing.T, name string) (cfgPath, inbox string) {
	t.Helper()
	root := t.TempDir()
	cfgPath = filepath.Join(root, name)
	inbox = filepath.Join(root, "inbox")
	require.NoError(t, os.Mkdir(inbox, 0o755))

	out, err := execute(t, "init", "--config", cfgPath, "--dir", inbox)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+cfgPath)
	return cfgPath, inbox
}

func TestInitAndCheck(t *testing.T) {
	for _, name := range []string{".invoicehandler", "config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			cfgPath, inbox := initConfig(t, name)

			out, err := execute(t, "check", "--config", cfgPath)
			require.NoError(t, err)
			assert.Contains(t, out, inbox)
			assert.Contains(t, out, "Rules (1)")
			assert.Contains(t, out, "Invoice_$4_$1-$2-$3.pdf")
			assert.Contains(t, out, "Configuration is valid")
		})
	}
}

func TestInitRefusesOverwrite(t *testing.T) {
	cfgPath, _ := initConfig(t, "config.ini")

	_, err := execute(t, "init", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "init", "--config", cfgPath, "--force")
	assert.NoError(t, err)
}

func TestCheckMissingConfig(t *testing.T) {
	_, err := execute(t, "check", "--config", filepath.Join(t.TempDir(), "missing.ini"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoicehandler init")
}

func TestTestCommand(t *testing.T) {
	cfgPath, _ := initConfig(t, "config.ini")

	out, err := execute(t, "test", "--config", cfgPath,
		"invoice_2024_03_15_acme.pdf", "holiday.jpg", "invoice_2024_03_15_acme.pdf.part", "Invoice_acme_2024-03-15.pdf")
	require.NoError(t, err)
	assert.Contains(t, out, "invoice_2024_03_15_acme.pdf -> Invoice_acme_2024-03-15.pdf")
	assert.Contains(t, out, "holiday.jpg (no-match)")
	assert.Contains(t, out, "invoice_2024_03_15_acme.pdf.part (ignored)")

	_, err = execute(t, "test", "--config", cfgPath)
	assert.Error(t, err, "at least one name is required")
}

func TestRunCommand(t *testing.T) {
	cfgPath, inbox := initConfig(t, "config.ini")
	src := filepath.Join(inbox, "invoice_2024_03_15_acme.pdf")
	testutils.CreateTestFilesWithContent(t, inbox, map[string]string{
		"invoice_2024_03_15_acme.pdf": "pdf",
		"notes.txt":                   "txt",
	})

	t.Run("dry run", func(t *testing.T) {
		out, err := execute(t, "run", "--config", cfgPath, "--dry-run")
		require.NoError(t, err)
		assert.Contains(t, out, "(dry run)")
		assert.Contains(t, out, "0 renamed, 1 planned, 1 skipped, 0 failed")
		assert.FileExists(t, src)
	})

	t.Run("rename", func(t *testing.T) {
		out, err := execute(t, "run", "--config", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, out, "1 renamed, 0 planned, 1 skipped, 0 failed")
		assert.NoFileExists(t, src)
		assert.FileExists(t, filepath.Join(inbox, "Invoice_acme_2024-03-15.pdf"))
	})
}

func TestUnknownLogFormat(t *testing.T) {
	cfgPath, _ := initConfig(t, "config.ini")
	_, err := execute(t, "check", "--config", cfgPath, "--log-format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log format")
}

func TestHistoryCommand(t *testing.T) {
	root := t.TempDir()
	inbox := filepath.Join(root, "inbox")
	require.NoError(t, os.Mkdir(inbox, 0o755))
	cfgPath := filepath.Join(root, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`settings:
  watch_directory: `+inbox+`
  history_db: `+filepath.Join(root, "history.db")+`
translations:
  - pattern: invoice_(\d{4})_(\d{2})_(\d{2})_(.+)\.pdf
    replacement: Invoice_$4_$1-$2-$3.pdf
`), 0o644))

	out, err := execute(t, "history", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No history yet")

	testutils.CreateTestFiles(t, inbox, "invoice_2024_03_15_acme.pdf", "notes.txt")
	_, err = execute(t, "run", "--config", cfgPath)
	require.NoError(t, err)

	out, err = execute(t, "history", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "invoice_2024_03_15_acme.pdf -> Invoice_acme_2024-03-15.pdf")
	assert.NotContains(t, out, "notes.txt")

	_, err = execute(t, "history", "--config", cfgPath, "--limit", "0")
	assert.Error(t, err)
}

func TestHistoryDisabled(t *testing.T) {
	cfgPath, _ := initConfig(t, "config.ini")
	_, err := execute(t, "history", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history is not enabled")
}

func TestCheckInvalidPattern(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "config.ini")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[settings]\nwatch_directory = "+root+"\n[translations]\nbroken(( = x\n"), 0o644))

	_, err := execute(t, "check", "--config", cfgPath)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRule(err))
	assert.Contains(t, err.Error(), "fix the pattern in "+cfgPath)
}

func TestFailureHint(t *testing.T) {
	tests := []struct {
		kind errors.ErrorKind
		want string
	}{
		{errors.LockExhausted, "still in use"},
		{errors.CollisionExhausted, "too many files"},
		{errors.MoveFailed, "permissions"},
		{errors.LockTerminal, ""},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			hint := failureHint(errors.NewFileError("failed", "/in/a.pdf", tt.kind, nil))
			if tt.want == "" {
				assert.Empty(t, hint)
				return
			}
			assert.Contains(t, hint, tt.want)
		})
	}
}
