package config

import (
	"fmt"
	"strings"

	"ffconvert/internal/addr"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Source   SourceConfig   `mapstructure:"source"`
	Convert  ConvertConfig  `mapstructure:"convert"`
	Report   ReportConfig   `mapstructure:"report"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
	File   string `mapstructure:"file"`
}

// DatabaseConfig — целевое хранилище (куда пишем результат).
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=sqlite mysql postgres"`
	DSN    string `mapstructure:"dsn" validate:"required"`
	Fresh  bool   `mapstructure:"fresh"`
}

// SourceConfig — входные данные. Dump "-" или пусто: stdin, если не задан
// DSN живой базы redeemer.
type SourceConfig struct {
	Dump       string `mapstructure:"dump"`
	Driver     string `mapstructure:"driver" validate:"omitempty,oneof=sqlite mysql postgres"`
	DSN        string `mapstructure:"dsn" validate:"required_with=Driver"`
	OLSRFile   string `mapstructure:"olsr_file" validate:"required"`
	SpiderDump string `mapstructure:"spider_dump" validate:"required"`
}

type ConvertConfig struct {
	Verbose   bool `mapstructure:"verbose"`
	Debug     bool `mapstructure:"debug"`
	Anonymize bool `mapstructure:"anonymize"`
	// "<net>;<comment>", e.g. "193.238.156.0/22;Funkfeuer Wien"
	Networks []string `mapstructure:"networks" validate:"dive,contains=;"`
	// "<spider main ip>:<ip to ignore>"
	SpiderIgnoreIP []string `mapstructure:"spider_ignore_ip" validate:"dive,contains=:"`
	// accounts seeded as enabled superusers in FFW-admin
	Admins []string `mapstructure:"admins" validate:"dive,email"`
}

// ReportConfig — аудит-отчёт и его HTTP-просмотр.
type ReportConfig struct {
	File string `mapstructure:"file"`
	Addr string `mapstructure:"addr" validate:"required"`
	// IPAM also serves the network tree of the target database.
	IPAM bool `mapstructure:"ipam"`
}

// SetDefaults registers the defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "ffconvert.db")
	v.SetDefault("source.olsr_file", "olsr/txtinfo.txt")
	v.SetDefault("source.spider_dump", "Funkfeuer.dump")
	v.SetDefault("report.addr", ":8080")
}

// Load reads an optional config file, FFCONVERT_* environment and whatever
// flags were bound to v, then validates the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("ffconvert")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Convert.Debug || cfg.Convert.Verbose {
		cfg.Logging.Level = "debug"
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ReservedNetworks splits the configured networks by family. Comments are
// everything after the first ';'.
func (c ConvertConfig) ReservedNetworks() (ip4, ip6 map[addr.Address]string, err error) {
	ip4 = map[addr.Address]string{}
	ip6 = map[addr.Address]string{}
	for _, n := range c.Networks {
		ip, comment, _ := strings.Cut(n, ";")
		a, e := addr.Parse(ip)
		if e != nil {
			return nil, nil, fmt.Errorf("network %q: %w", n, e)
		}
		if a.Is4() {
			ip4[a] = comment
		} else {
			ip6[a] = comment
		}
	}
	return ip4, ip6, nil
}

// SpiderIgnore maps a spider main ip to the sub-ips that must not be used.
func (c ConvertConfig) SpiderIgnore() (map[string][]string, error) {
	out := map[string][]string{}
	for _, s := range c.SpiderIgnoreIP {
		dev, ip, ok := strings.Cut(s, ":")
		if !ok || dev == "" || ip == "" {
			return nil, fmt.Errorf("spider_ignore_ip %q: want <ip>:<ip>", s)
		}
		out[dev] = append(out[dev], ip)
	}
	return out, nil
}
