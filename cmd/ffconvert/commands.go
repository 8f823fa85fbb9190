package main

import (
	"fmt"

	"ffconvert/config"
	"ffconvert/internal/convert"
	"ffconvert/internal/logs"
	"ffconvert/internal/report"
	"ffconvert/server"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type cli struct {
	v          *viper.Viper
	configFile string
}

func newRootCommand() *cobra.Command {
	c := &cli{v: viper.New()}
	root := &cobra.Command{
		Use:           "ffconvert",
		Short:         "Convert the Funkfeuer redeemer data into the node database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "config file (yaml)")
	pf.String("log-level", "", "log level: trace, debug, info, warn, error")
	pf.String("log-format", "", "log format: text, json")
	pf.String("log-file", "", "log file (default stderr)")
	pf.String("db-driver", "", "target database driver: sqlite, mysql, postgres")
	pf.String("db", "", "target database DSN")
	c.bind(pf, map[string]string{
		"logging.level":   "log-level",
		"logging.format":  "log-format",
		"logging.file":    "log-file",
		"database.driver": "db-driver",
		"database.dsn":    "db",
	})

	root.AddCommand(c.convertCommand(), c.reportCommand())
	return root
}

func (c *cli) bind(fs *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		// only fails for unknown flags
		if err := c.v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func (c *cli) load() (*config.Config, error) {
	cfg, err := config.Load(c.v, c.configFile)
	if err != nil {
		return nil, err
	}
	logs.Init(logs.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, File: cfg.Logging.File})
	return cfg, nil
}

func (c *cli) convertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Run the conversion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.load()
			if err != nil {
				return err
			}
			col := report.NewCollector()
			logs.Logger.AddHook(col)

			res, err := convert.Run(cmd.Context(), cfg)
			if res != nil {
				col.Finish(map[string]int{
					"persons":  res.Persons,
					"nodes":    res.Nodes,
					"devices":  res.Devices,
					"networks": res.Networks,
					"commits":  res.Commits,
				})
			} else {
				col.Finish(nil)
			}
			if cfg.Report.File != "" {
				if werr := col.Report().WriteFile(cfg.Report.File); werr != nil {
					logs.Logger.Errorf("write report: %v", werr)
				}
			}
			if err != nil {
				return err
			}
			r := col.Report()
			fmt.Fprintf(cmd.OutOrStdout(), "%d persons, %d nodes, %d devices, %d merges\n",
				res.Persons, res.Nodes, res.Devices, r.Total(logs.EvMerge))
			return nil
		},
	}
	f := cmd.Flags()
	f.Bool("fresh", false, "drop the converter tables of the target first")
	f.String("dump", "", `redeemer PostgreSQL dump ("-": stdin)`)
	f.String("source-driver", "", "live redeemer database driver")
	f.String("source-dsn", "", "live redeemer database DSN, used instead of --dump")
	f.String("olsr", "", "OLSR txtinfo dump")
	f.String("spider", "", "spider snapshot (json, optionally snappy framed)")
	f.BoolP("verbose", "v", false, "verbose output")
	f.Bool("debug", false, "debug output")
	f.BoolP("anonymize", "a", false, "anonymize persons and positions")
	f.StringSlice("network", nil, `reserved network "<net>;<comment>" (repeatable)`)
	f.StringSlice("spider-ignore-ip", nil, `ignored spider address "<main ip>:<ip>" (repeatable)`)
	f.StringSlice("admin", nil, "admin account to seed (repeatable)")
	f.String("report", "", "write the audit report (json) to this file")
	c.bind(f, map[string]string{
		"database.fresh":           "fresh",
		"source.dump":              "dump",
		"source.driver":            "source-driver",
		"source.dsn":               "source-dsn",
		"source.olsr_file":         "olsr",
		"source.spider_dump":       "spider",
		"convert.verbose":          "verbose",
		"convert.debug":            "debug",
		"convert.anonymize":        "anonymize",
		"convert.networks":         "network",
		"convert.spider_ignore_ip": "spider-ignore-ip",
		"convert.admins":           "admin",
		"report.file":              "report",
	})
	return cmd
}

func (c *cli) reportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect audit reports",
	}
	serve := &cobra.Command{
		Use:   "serve [report.json]",
		Short: "Serve an audit report over HTTP",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				c.v.Set("report.file", args[0])
			}
			cfg, err := c.load()
			if err != nil {
				return err
			}
			if cfg.Report.File == "" {
				return fmt.Errorf("no report file given")
			}
			rep, err := report.Load(cfg.Report.File)
			if err != nil {
				return err
			}
			var app server.App
			if err := app.Initialize(cfg, rep); err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
	f := serve.Flags()
	f.String("addr", "", "listen address (default :8080)")
	f.Bool("ipam", false, "also serve the network tree of the target database")
	c.bind(f, map[string]string{
		"report.addr": "addr",
		"report.ipam": "ipam",
	})
	cmd.AddCommand(serve)
	return cmd
}
