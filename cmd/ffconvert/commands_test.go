package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"ffconvert/internal/logs"
	"ffconvert/internal/report"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cliDump = `COPY members (id, firstname, lastname) FROM stdin;
1	Funkfeuer	Wien
\.

COPY nodes (id, name, id_members) FROM stdin;
10	kirche	1
\.

COPY devices (id, name, id_nodes) FROM stdin;
1	omni	10
\.

COPY ips (id, ip, cidr, id_devices) FROM stdin;
1	193.238.158.1	24	1
\.
`
	cliOLSR   = "Table: Topology\nDest. IP\tLast hop IP\tLQ\tNLQ\tCost\n"
	cliSpider = `{"193.238.158.1": {"interfaces": {"eth0": {"name": "eth0", "inet4": [{"ip": "193.238.158.1"}]}}}}`
)

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestConvertCommandWritesReport(t *testing.T) {
	t.Cleanup(func() { logs.Logger.ReplaceHooks(logrus.LevelHooks{}) })
	dir := t.TempDir()
	rep := filepath.Join(dir, "report.json")
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{
		"convert",
		"--log-level", "error",
		"--db", filepath.Join(dir, "ffw.db"),
		"--dump", write(t, dir, "dump.sql", cliDump),
		"--olsr", write(t, dir, "txtinfo.txt", cliOLSR),
		"--spider", write(t, dir, "spider.json", cliSpider),
		"--network", "193.238.156.0/22;Funkfeuer Wien",
		"--report", rep,
	})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "1 devices")

	r, err := report.Load(rep)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Result["devices"])
	assert.Equal(t, 1, r.Result["nodes"])
}

func TestConvertCommandMissingInput(t *testing.T) {
	t.Cleanup(func() { logs.Logger.ReplaceHooks(logrus.LevelHooks{}) })
	dir := t.TempDir()
	root := newRootCommand()
	root.SetArgs([]string{
		"convert",
		"--log-level", "error",
		"--db", filepath.Join(dir, "ffw.db"),
		"--dump", write(t, dir, "dump.sql", cliDump),
		"--olsr", filepath.Join(dir, "missing.txt"),
	})
	assert.Error(t, root.Execute())
}

func TestReportServeNeedsFile(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"report", "serve", "--log-level", "error"})
	assert.Error(t, root.Execute())
}
