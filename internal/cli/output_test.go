package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/genesis/internal/engine"
	"github.com/roach88/genesis/internal/genesis"
)

func testReport() *engine.Report {
	return &engine.Report{
		RunID:   "run-1",
		ChainID: "test",
		State:   engine.StateAllDone,
		Entities: []engine.Outcome{
			{Entity: "accounts", Table: "accounts", State: engine.StateDone, Candidates: 2, Written: 2},
		},
	}
}

func TestOutputFormatter_JSONSuccessCarriesRunID(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(testReport()))

	// Output must be plain JSON that the standard decoder accepts.
	var resp struct {
		Status string         `json:"status"`
		RunID  string         `json:"run_id"`
		Data   engine.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "test", resp.Data.ChainID)
	require.Len(t, resp.Data.Entities, 1)
	assert.Equal(t, int64(2), resp.Data.Entities[0].Written)
}

func TestOutputFormatter_JSONSuccessWithoutReport(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]int{"entities": 3}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.RunID)
	assert.NotContains(t, buf.String(), "run_id")
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	report := testReport()
	report.State = engine.StateAborted
	require.NoError(t, formatter.Error("MALFORMED_INPUT", "app_state.wasm.contracts: missing", report))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "MALFORMED_INPUT", resp.Error.Code)
	assert.Equal(t, "app_state.wasm.contracts: missing", resp.Error.Message)
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

			require.NoError(t, formatter.Error("E101", "entity supply: key is required", "supply.cue:3"))
			assert.Contains(t, buf.String(), "Error [E101]: entity supply: key is required")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: supply.cue:3")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLogGoesToDiagnostics(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}

	formatter.VerboseLog("Read genesis document for chain %s", "test")
	assert.Empty(t, out.String())
	assert.Equal(t, "Read genesis document for chain test\n", diag.String())

	formatter.Verbose = false
	formatter.VerboseLog("dropped")
	assert.NotContains(t, diag.String(), "dropped")
}

func TestOutputFormatter_DiagnosticsFallsBackToWriter(t *testing.T) {
	out := &bytes.Buffer{}
	formatter := &OutputFormatter{Writer: out}
	assert.Same(t, out, formatter.Diagnostics())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantMsg  string
	}{
		{
			name:     "load error",
			err:      &engine.LoadError{Code: engine.ErrCodeSchemaFailed, Message: "create schema app: denied"},
			wantCode: "SCHEMA_FAILED",
			wantMsg:  "create schema app: denied",
		},
		{
			name:     "wrapped load error",
			err:      fmt.Errorf("run: %w", &engine.LoadError{Code: engine.ErrCodeCanceled, Message: "context canceled"}),
			wantCode: "CANCELED",
			wantMsg:  "context canceled",
		},
		{
			name:     "malformed document",
			err:      &genesis.MalformedError{Path: "chain_id", Reason: "missing"},
			wantCode: "MALFORMED_INPUT",
		},
		{
			name:     "anything else",
			err:      errors.New("boom"),
			wantCode: "ENTITY_FAILED",
			wantMsg:  "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := errorCode(tt.err)
			assert.Equal(t, tt.wantCode, code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, msg)
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", WrapExitError(ExitFailure, "load failed", errors.New("x")))))

	err := WrapExitError(ExitCommandError, "failed to open database", errors.New("dial tcp: refused"))
	assert.Equal(t, "failed to open database: dial tcp: refused", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "dial tcp: refused")
}
