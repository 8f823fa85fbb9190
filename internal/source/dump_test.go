package source

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDump = `--
-- PostgreSQL database dump
--

CREATE TABLE public.nodes (
    id integer NOT NULL,
    name character varying(255),
    id_members integer,
    gps_lat_deg double precision,
    map boolean,
    created timestamp with time zone,
    CONSTRAINT nodes_pkey PRIMARY KEY (id)
);

CREATE TABLE devices (
    id integer NOT NULL,
    name text,
    id_nodes integer,
    hardware text
);

COPY public.nodes (id, name, id_members, gps_lat_deg, map, created) FROM stdin;
1	gumpendorf	551	48.19	t	2008-03-01 12:00:00+01
-803	-803	\N	\N	f	\N
\.

COPY devices (id, name, id_nodes, hardware) FROM stdin;
7	omni	1	Linksys\tWRT54GL
8	sektor	1	MÃ¼ller
\.
`

func TestParseDump(t *testing.T) {
	tables, err := ParseDump(strings.NewReader(sampleDump))
	require.NoError(t, err)
	require.Len(t, tables["nodes"], 2)
	require.Len(t, tables["devices"], 2)

	n := tables["nodes"][0]
	assert.Equal(t, int64(1), n["id"])
	assert.Equal(t, "gumpendorf", n["name"])
	assert.Equal(t, 48.19, n["gps_lat_deg"])
	assert.Equal(t, true, n["map"])
	assert.Equal(t, time.Date(2008, 3, 1, 11, 0, 0, 0, time.UTC), n["created"])

	assert.Nil(t, tables["nodes"][1]["id_members"])
	assert.Equal(t, int64(-803), tables["nodes"][1]["id"])

	assert.Equal(t, "Linksys\tWRT54GL", tables["devices"][0]["hardware"])
	assert.Equal(t, "Müller", tables["devices"][1]["hardware"], "double encoding repaired")
}

func TestParseDumpFieldMismatch(t *testing.T) {
	bad := "COPY devices (id, name) FROM stdin;\n1\n\\.\n"
	_, err := ParseDump(strings.NewReader(bad))
	assert.Error(t, err)
}

func TestParseDumpUnterminated(t *testing.T) {
	_, err := ParseDump(strings.NewReader("COPY devices (id) FROM stdin;\n1\n"))
	assert.Error(t, err)
}

func TestFromTables(t *testing.T) {
	tables, err := ParseDump(strings.NewReader(sampleDump))
	require.NoError(t, err)
	ds := FromTables(tables)
	require.Len(t, ds.Nodes, 2)
	assert.Equal(t, 551, ds.Nodes[0].IDMembers)
	require.NotNil(t, ds.Nodes[0].LatDeg)
	assert.Nil(t, ds.Nodes[0].LatMin)
	assert.Nil(t, ds.Nodes[1].LatDeg)
	assert.True(t, ds.Nodes[0].Map)
	assert.Equal(t, 0, ds.Nodes[1].IDMembers)
	require.Len(t, ds.Devices, 2)
	assert.Equal(t, 1, ds.Devices[1].IDNodes)
	assert.Empty(t, ds.IPs)
}

func TestFixDoubleEncodingKeepsGenuineText(t *testing.T) {
	assert.Equal(t, "Müller", fixDoubleEncoding("Müller"))
	assert.Equal(t, "plain", fixDoubleEncoding("plain"))
	assert.Equal(t, "€", fixDoubleEncoding("€"))
}
