// Package source loads the three independent inputs of a conversion: the
// redeemer database (plain PostgreSQL dump or live connection), the OLSR
// txtinfo dump and the spider snapshot.
package source

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Row — одна строка таблицы: колонка -> скаляр (int64, float64, bool,
// time.Time, string) или nil.
type Row map[string]any

// Tables — все таблицы дампа по имени (без схемы).
type Tables map[string][]Row

type colType int

const (
	colText colType = iota
	colInt
	colFloat
	colBool
	colTime
)

func typeOf(sqlType string) colType {
	t := strings.ToLower(sqlType)
	switch {
	case strings.HasPrefix(t, "int"), strings.HasPrefix(t, "bigint"),
		strings.HasPrefix(t, "smallint"), strings.HasPrefix(t, "serial"),
		strings.HasPrefix(t, "bigserial"):
		return colInt
	case strings.HasPrefix(t, "double"), strings.HasPrefix(t, "real"),
		strings.HasPrefix(t, "numeric"), strings.HasPrefix(t, "decimal"),
		strings.HasPrefix(t, "float"):
		return colFloat
	case strings.HasPrefix(t, "bool"):
		return colBool
	case strings.HasPrefix(t, "timestamp"), t == "date":
		return colTime
	}
	return colText
}

func tableName(s string) string {
	s = strings.Trim(s, `"`)
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[i+1:]
	}
	return strings.Trim(s, `"`)
}

// ParseDump reads a plain-format PostgreSQL dump. Column types come from
// CREATE TABLE, rows from COPY ... FROM stdin blocks.
func ParseDump(r io.Reader) (Tables, error) {
	types := map[string]map[string]colType{}
	tables := Tables{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0

	var (
		createIn string
		copyIn   string
		copyCols []string
	)
	for sc.Scan() {
		line := sc.Text()
		lineNo++

		switch {
		case copyIn != "":
			if line == `\.` {
				copyIn = ""
				continue
			}
			row, err := parseCopyLine(line, copyCols, types[copyIn])
			if err != nil {
				return nil, fmt.Errorf("dump line %d: %w", lineNo, err)
			}
			tables[copyIn] = append(tables[copyIn], row)

		case createIn != "":
			tl := strings.TrimSpace(line)
			if strings.HasPrefix(tl, ")") {
				createIn = ""
				continue
			}
			f := strings.Fields(strings.TrimSuffix(tl, ","))
			if len(f) < 2 {
				continue
			}
			switch strings.ToUpper(f[0]) {
			case "CONSTRAINT", "PRIMARY", "UNIQUE", "CHECK", "FOREIGN", "EXCLUDE":
				continue
			}
			types[createIn][strings.Trim(f[0], `"`)] = typeOf(f[1])

		case strings.HasPrefix(line, "CREATE TABLE "):
			rest := strings.TrimPrefix(line, "CREATE TABLE ")
			name, _, _ := strings.Cut(rest, " ")
			createIn = tableName(name)
			types[createIn] = map[string]colType{}

		case strings.HasPrefix(line, "COPY ") && strings.HasSuffix(line, "FROM stdin;"):
			rest := strings.TrimPrefix(line, "COPY ")
			name, rest, _ := strings.Cut(rest, " ")
			open := strings.Index(rest, "(")
			closing := strings.Index(rest, ")")
			if open < 0 || closing < open {
				return nil, fmt.Errorf("dump line %d: COPY without column list", lineNo)
			}
			copyIn = tableName(name)
			copyCols = copyCols[:0]
			for _, c := range strings.Split(rest[open+1:closing], ",") {
				copyCols = append(copyCols, strings.Trim(strings.TrimSpace(c), `"`))
			}
			if _, ok := tables[copyIn]; !ok {
				tables[copyIn] = []Row{}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}
	if copyIn != "" {
		return nil, fmt.Errorf("dump: unterminated COPY for %s", copyIn)
	}
	return tables, nil
}

func parseCopyLine(line string, cols []string, types map[string]colType) (Row, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != len(cols) {
		return nil, fmt.Errorf("got %d fields, want %d", len(fields), len(cols))
	}
	row := make(Row, len(cols))
	for i, raw := range fields {
		if raw == `\N` {
			row[cols[i]] = nil
			continue
		}
		s := fixDoubleEncoding(unescapeCopy(raw))
		v, err := convert(s, types[cols[i]])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", cols[i], err)
		}
		row[cols[i]] = v
	}
	return row, nil
}

func unescapeCopy(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// fixDoubleEncoding repairs UTF-8 text that was stored latin1-decoded once
// more ("Ã¤" for "ä").
func fixDoubleEncoding(s string) string {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return s
	}
	b, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil || !utf8.ValidString(b) || b == s {
		return s
	}
	return b
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func convert(s string, t colType) (any, error) {
	switch t {
	case colInt:
		return strconv.ParseInt(s, 10, 64)
	case colFloat:
		return strconv.ParseFloat(s, 64)
	case colBool:
		switch s {
		case "t", "true", "1":
			return true, nil
		case "f", "false", "0":
			return false, nil
		}
		return nil, fmt.Errorf("bad bool %q", s)
	case colTime:
		for _, l := range timeLayouts {
			if ts, err := time.Parse(l, s); err == nil {
				return ts.UTC(), nil
			}
		}
		return nil, fmt.Errorf("bad timestamp %q", s)
	}
	return s, nil
}
