package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boltview/internal/apperr"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"db": "users"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"db": "users"}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("WRITE_CONFLICT", "commit failed", map[string]string{"db": "users"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "WRITE_CONFLICT", resp.Error.Code)
	assert.Equal(t, "commit failed", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error("NOT_FOUND", "failed to read key", "users/alice"))
			assert.Contains(t, buf.String(), "Error [NOT_FOUND]: failed to read key")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: users/alice")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_Render(t *testing.T) {
	text := func(w io.Writer) error {
		_, err := fmt.Fprintln(w, "committed")
		return err
	}

	buf := &bytes.Buffer{}
	require.NoError(t, (&OutputFormatter{Format: "text", Writer: buf}).Render(map[string]bool{"committed": true}, text))
	assert.Equal(t, "committed\n", buf.String())

	buf.Reset()
	require.NoError(t, (&OutputFormatter{Format: "json", Writer: buf}).Render(map[string]bool{"committed": true}, text))
	assert.JSONEq(t, `{"status":"ok","data":{"committed":true}}`, buf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("scanned %d entries", 10)
	assert.Empty(t, out.String())
	assert.Equal(t, "scanned 10 entries\n", errOut.String())

	errOut.Reset()
	formatter.Verbose = false
	formatter.VerboseLog("scanned %d entries", 20)
	assert.Empty(t, errOut.String())
}

func TestEntryOf(t *testing.T) {
	assert.Equal(t, Entry{Key: "alice", Value: `{"age":30}`}, entryOf([]byte("alice"), []byte(`{"age":30}`)))
	assert.Equal(t, Entry{Key: "YQ==", Value: "/w==", Encoding: "base64"}, entryOf([]byte("a"), []byte{0xff}))
}

func TestPrintable(t *testing.T) {
	assert.Equal(t, "héllo", printable([]byte("héllo")))
	assert.Equal(t, `"\x00\xff"`, printable([]byte{0x00, 0xff}))
}

func TestFail_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", apperr.New(apperr.CodeNotFound, "get", "missing"), ExitCommandError},
		{"store not found", apperr.New(apperr.CodeStoreNotFound, "open", "missing"), ExitCommandError},
		{"inside job failure", apperr.JobFailed("job-1", apperr.New(apperr.CodeNotFound, "scan", "no db")), ExitCommandError},
		{"conflict", apperr.New(apperr.CodeWriteConflict, "commit", "stale"), ExitFailure},
		{"plain", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fail("failed", tt.err)
			assert.Equal(t, tt.want, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "x"))))
}
