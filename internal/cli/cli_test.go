package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envelopes/internal/core"
	"envelopes/internal/ledger"
)

const testCatalogue = `
accounts:
  - name: Checking
envelopes:
  - name: Food
    target: "40.00"
    interval: weekly
`

const testExport = `Date,Amount,Account,Envelope,Name,Notes,Details
2024-03-01,1000.00,Checking,[Unallocated],Employer,,
2024-03-02,-12.00,Checking,Food,Grocer,,
`

type harness struct {
	t   *testing.T
	dir string
	db  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, key := range []string{"SEED_FILE", "AMQP_URL", "GOOGLE_SPREADSHEET_ID", "DATA_BACKEND", "SQLITE_DB_PATH"} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_LEVEL", "error")
	dir := t.TempDir()
	return &harness{t: t, dir: dir, db: filepath.Join(dir, "ledger.db")}
}

func (h *harness) file(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (h *harness) run(stdin string, args ...string) (string, string, int) {
	h.t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--env-file", "", "--backend", "sqlite", "--db", h.db}, args...))
	code := Execute(cmd)
	return out.String(), errOut.String(), code
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, errOut, code := h.run("", args...)
	require.Equal(h.t, 0, code, "args %v: %s", args, errOut)
	return out
}

func (h *harness) balances() map[string]core.Pennies {
	h.t.Helper()
	var balances []ledger.Balance
	require.NoError(h.t, json.Unmarshal([]byte(h.mustRun("balances", "--format", "json")), &balances))
	out := make(map[string]core.Pennies, len(balances))
	for _, b := range balances {
		out[b.Name] = b.Balance
	}
	return out
}

func TestSeedImportFillExport(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("seed", h.file("catalogue.yaml", testCatalogue))
	assert.Contains(t, out, "Created 3 buckets, updated 0")

	out = h.mustRun("import", h.file("export.csv", testExport))
	assert.Contains(t, out, "Imported 2 transactions, created 0 buckets")

	assert.Equal(t, map[string]core.Pennies{
		"Checking":           98800,
		"Food":               -1200,
		core.UnallocatedName: 100000,
	}, h.balances())

	out = h.mustRun("fill", "plan")
	assert.Contains(t, out, "Food")

	out = h.mustRun("fill", "save", "--date", "2024-03-10", "--set", "Food=40.00")
	assert.Contains(t, out, "Saved 1 fills as fill/2024-03-10/")
	group := strings.TrimSpace(out[strings.Index(out, "fill/"):])

	bal := h.balances()
	assert.Equal(t, core.Pennies(2800), bal["Food"])
	assert.Equal(t, core.Pennies(96000), bal[core.UnallocatedName])
	assert.Equal(t, core.Pennies(98800), bal["Checking"])

	out = h.mustRun("fill", "show", group)
	assert.Contains(t, out, "$40.00")

	var docs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("txn", "list", "--type", "banktxn", "--format", "json")), &docs))
	assert.Len(t, docs, 2)

	csv := h.mustRun("export", "--to", "csv")
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "ID,Date,Type,Amount,From,To,Memo", lines[0])

	out = h.mustRun("fill", "delete", group)
	assert.Contains(t, out, "Deleted 1 fills")
	assert.Equal(t, core.Pennies(-1200), h.balances()["Food"])
}

func TestTxnAddAndDelete(t *testing.T) {
	h := newHarness(t)
	h.mustRun("seed", h.file("catalogue.yaml", testCatalogue))

	var buckets []ledger.Balance
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("balances", "--format", "json")), &buckets))
	ids := map[string]string{}
	for _, b := range buckets {
		ids[b.Name] = b.ID
	}

	doc := `{"type":"banktxn","date":"2024-03-05","memo":"","amount":-500,"payee":"Cafe",` +
		`"from":{"id":"` + ids["Checking"] + `","name":"Checking","type":"account"},` +
		`"categories":[{"name":"Food","id":"` + ids["Food"] + `","amount":-500}]}` + "\n"

	out, errOut, code := h.run(doc, "txn", "add", "-")
	require.Equal(t, 0, code, errOut)
	id := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(id, "txn/2024-03-05/banktxn/Cafe/"), id)

	out = h.mustRun("txn", "get", id)
	assert.Contains(t, out, `"payee": "Cafe"`)

	out = h.mustRun("txn", "list", "--account", ids["Checking"])
	assert.Contains(t, out, id)

	h.mustRun("txn", "delete", id)
	_, errOut, code = h.run("", "txn", "get", id)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not found")
}

func TestValidationErrorsPrintEachMessage(t *testing.T) {
	h := newHarness(t)
	h.mustRun("seed", h.file("catalogue.yaml", testCatalogue))

	doc := `{"type":"banktxn","date":"2024-03-05","memo":"","amount":0,"payee":"",` +
		`"from":{"id":"","name":"","type":"account"},"categories":[]}` + "\n"
	_, errOut, code := h.run(doc, "txn", "add", "-")
	assert.Equal(t, 1, code)
	assert.Equal(t, []string{core.MsgPayeeMissing, core.MsgAccountMissing, core.MsgNoCategories},
		strings.Split(strings.TrimSpace(errOut), "\n"))
}

func TestFlagsAndMigrations(t *testing.T) {
	h := newHarness(t)

	_, errOut, code := h.run("", "balances", "--format", "yaml")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid format")

	_, errOut, code = h.run("", "fill", "plan", "--mode", "sometimes")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid fill mode")

	out := h.mustRun("migrate", "up")
	assert.Contains(t, out, "Schema version 2")

	_, errOut, code = h.run("", "fill", "plan")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "[Unallocated]")
}
