// Package convert runs a whole conversion: it loads the sources, builds
// the device graph, creates persons, networks, nodes and devices and
// commits the result into the target store.
package convert

import (
	"context"
	"fmt"
	"io"
	"os"

	"ffconvert/config"
	"ffconvert/internal/addr"
	"ffconvert/internal/db"
	"ffconvert/internal/ipam"
	"ffconvert/internal/logs"
	"ffconvert/internal/persons"
	"ffconvert/internal/reconcile"
	"ffconvert/internal/repo"
	"ffconvert/internal/source"
)

const hnaDesc = "HNA"

// Sources is everything a conversion reads.
type Sources struct {
	Dataset *source.Dataset
	OLSR    *source.OLSR
	Spider  *source.SpiderIndex
}

type Options struct {
	Anonymize bool
	IP4Nets   map[addr.Address]string
	IP6Nets   map[addr.Address]string
	Tables    *persons.Tables
	Admins    []string
}

// Result counts what was written.
type Result struct {
	Persons  int
	Nodes    int
	Devices  int
	Networks int
	Commits  int
}

// Run converts according to cfg. The target store is reset first when
// cfg.Database.Fresh is set.
func Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	src, err := Load(cfg)
	if err != nil {
		return nil, err
	}
	ip4, ip6, err := cfg.Convert.ReservedNetworks()
	if err != nil {
		return nil, err
	}
	tables, err := persons.DefaultTables()
	if err != nil {
		return nil, err
	}

	d, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open target: %w", err)
	}
	if cfg.Database.Fresh {
		if err := db.Reset(d); err != nil {
			return nil, err
		}
	}
	if err := db.Migrate(d); err != nil {
		return nil, err
	}
	s, err := repo.NewScope(d)
	if err != nil {
		return nil, err
	}

	res, err := Convert(ctx, s, src, Options{
		Anonymize: cfg.Convert.Anonymize,
		IP4Nets:   ip4,
		IP6Nets:   ip6,
		Tables:    tables,
		Admins:    cfg.Convert.Admins,
	})
	if err != nil {
		// the open batch may hold half-built entities
		if rerr := s.Rollback(); rerr != nil {
			logs.Logger.Warnf("rollback: %v", rerr)
		}
	} else if cerr := s.Close(); cerr != nil {
		err = cerr
	}
	if res != nil {
		res.Commits = s.Commits()
	}
	return res, err
}

// Load reads the redeemer data (live database or dump), the OLSR dump and
// the spider snapshot named in cfg.
func Load(cfg *config.Config) (*Sources, error) {
	tables, err := loadRedeemer(cfg.Source)
	if err != nil {
		return nil, err
	}
	src := &Sources{Dataset: source.FromTables(tables)}

	f, err := os.Open(cfg.Source.OLSRFile)
	if err != nil {
		return nil, fmt.Errorf("olsr: %w", err)
	}
	defer f.Close()
	if src.OLSR, err = source.ParseOLSR(f); err != nil {
		return nil, err
	}
	if err := src.OLSR.CheckMID(); err != nil {
		return nil, fmt.Errorf("%w: %w", reconcile.ErrInvariant, err)
	}

	ignore, err := cfg.Convert.SpiderIgnore()
	if err != nil {
		return nil, err
	}
	sf, err := os.Open(cfg.Source.SpiderDump)
	if err != nil {
		return nil, fmt.Errorf("spider: %w", err)
	}
	defer sf.Close()
	snap, err := source.LoadSpider(sf)
	if err != nil {
		return nil, err
	}
	src.Spider = source.IndexSpider(snap, ignore)
	return src, nil
}

func loadRedeemer(sc config.SourceConfig) (source.Tables, error) {
	if sc.DSN != "" {
		d, err := db.Open(sc.Driver, sc.DSN)
		if err != nil {
			return nil, fmt.Errorf("open redeemer: %w", err)
		}
		defer func() {
			if sqlDB, err := d.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}()
		return source.LoadDatabase(d)
	}
	var r io.Reader = os.Stdin
	if sc.Dump != "" && sc.Dump != "-" {
		f, err := os.Open(sc.Dump)
		if err != nil {
			return nil, fmt.Errorf("dump: %w", err)
		}
		defer f.Close()
		r = f
	}
	return source.ParseDump(r)
}

// Convert writes src into s. The context is checked between phases.
func Convert(ctx context.Context, s repo.Store, src *Sources, o Options) (*Result, error) {
	res := &Result{}
	tables := o.Tables
	if tables == nil {
		t, err := persons.DefaultTables()
		if err != nil {
			return nil, err
		}
		tables = t
	}
	ds := src.Dataset
	if ds == nil {
		ds = &source.Dataset{}
	}

	g := reconcile.New(ds, src.OLSR, src.Spider, o.IP4Nets)
	if err := g.BuildDeviceStructure(); err != nil {
		return nil, fmt.Errorf("device structure: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := Seed(s, o.Admins); err != nil {
		return nil, fmt.Errorf("fixtures: %w", err)
	}
	pc := persons.New(s, tables, o.Anonymize)
	if err := pc.CreatePersons(ds.Members); err != nil {
		return nil, fmt.Errorf("persons: %w", err)
	}
	res.Persons = pc.Count()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var owner *uint
	if pc.FF != nil {
		id := pc.FF.ID
		owner = &id
	}
	nets := ipam.NewRepo(s)
	if err := nets.ReserveNets(g.IP4Nets, owner); err != nil {
		return nil, fmt.Errorf("ip4 networks: %w", err)
	}
	if err := nets.ReserveNets(o.IP6Nets, owner); err != nil {
		return nil, fmt.Errorf("ip6 networks: %w", err)
	}
	res.Networks = len(g.IP4Nets) + len(o.IP6Nets)

	nm := &nodeMaker{
		s:          s,
		pc:         pc,
		anonymize:  o.Anonymize,
		hasDevices: func(id int) bool { return len(g.DevsByNode[id]) > 0 },
	}
	nodes, err := nm.createNodes(ds.Nodes)
	if err != nil {
		return nil, err
	}
	res.Nodes = len(nodes)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := g.HNAPass(); err != nil {
		return nil, fmt.Errorf("hna: %w", err)
	}
	hna := map[addr.Address]string{}
	for _, n := range g.ReservedHNA() {
		hna[n] = hnaDesc
	}
	if err := nets.ReserveNets(hna, owner); err != nil {
		return nil, fmt.Errorf("hna networks: %w", err)
	}
	res.Networks += len(hna)

	e, err := reconcile.NewEmitter(s, nodes)
	if err != nil {
		return nil, err
	}
	if res.Devices, err = g.CreateIPsAndDevices(e); err != nil {
		return nil, fmt.Errorf("devices: %w", err)
	}
	if err := s.Commit(); err != nil {
		return nil, err
	}
	logs.Logger.Infof("converted %d persons, %d nodes, %d devices", res.Persons, res.Nodes, res.Devices)
	return res, nil
}
