package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/igolaizola/mixtape/pkg/cmd/compose"
	"github.com/igolaizola/mixtape/pkg/cmd/download"
	"github.com/igolaizola/mixtape/pkg/cmd/importer"
	"github.com/igolaizola/mixtape/pkg/cmd/migrate"
	"github.com/igolaizola/mixtape/pkg/cmd/web"
	"github.com/peterbourgon/ff/ffyaml"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

func New(version, commit, date string) *ffcli.Command {
	fs := flag.NewFlagSet("mixtape", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "mixtape [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newVersionCommand(version, commit, date),
			newMigrateCommand(),
			newImportCommand(),
			newComposeCommand(),
			newDownloadCommand(),
			newServeCommand(),
		},
	}
}

func newVersionCommand(version, commit, date string) *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "mixtape version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := version
			if v == "" {
				if buildInfo, ok := debug.ReadBuildInfo(); ok {
					v = buildInfo.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			versionFields := []string{v}
			if commit != "" {
				versionFields = append(versionFields, commit)
			}
			if date != "" {
				versionFields = append(versionFields, date)
			}
			fmt.Println(strings.Join(versionFields, " "))
			return nil
		},
	}
}

func options() []ff.Option {
	return []ff.Option{
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parser),
		ff.WithEnvVarPrefix("MIXTAPE"),
	}
}

func newMigrateCommand() *ffcli.Command {
	cmd := "migrate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &migrate.Config{}

	fs.StringVar(&cfg.DBType, "db-type", "sqlite", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "mixtape.db", "path for sqlite, dsn for mysql or postgres")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("mixtape %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "create or upgrade database tables",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return migrate.Run(ctx, cfg)
		},
	}
}

func newImportCommand() *ffcli.Command {
	cmd := "import"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &importer.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "sqlite", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "mixtape.db", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.Input, "input", "", "json or csv file with songs (fields: title,artist,album,genre,year,duration,path)")
	fs.IntVar(&cfg.Limit, "limit", 0, "limit the number of songs imported (0 means no limit)")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("mixtape %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "import songs into the catalog",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if cfg.Input == "" {
				return errors.New("import: input file is required")
			}
			return importer.Run(ctx, cfg)
		},
	}
}

func newComposeCommand() *ffcli.Command {
	cmd := "compose"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &compose.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "sqlite", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "mixtape.db", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.FSType, "fs-type", "", "fs type to upload the playlist to (local, s3), empty to skip")
	fs.StringVar(&cfg.FSConn, "fs-conn", "", "path for local, key:secret@bucket.region for s3")
	fs.StringVar(&cfg.Proxy, "proxy", "", "proxy to use")

	fs.StringVar(&cfg.Source, "source", "db", "catalog source (db, file)")
	fs.StringVar(&cfg.Input, "input", "", "json or csv catalog file when source is file")
	fs.StringVar(&cfg.Output, "output", "final_playlist.json", "output file (.json, .yaml)")
	fs.BoolVar(&cfg.Save, "save", false, "save the playlist to the database")

	fs.StringVar(&cfg.Selector, "selector", "ollama", "selector backend (ollama, openai)")
	fs.StringVar(&cfg.Endpoint, "endpoint", "", "selector endpoint (ollama chat url or openai base url)")
	fs.StringVar(&cfg.Model, "model", "gemma:2b", "model name")
	fs.StringVar(&cfg.Token, "token", "", "api token for openai")
	fs.DurationVar(&cfg.Timeout, "timeout", 120*time.Second, "timeout for each request")
	fs.DurationVar(&cfg.BackoffUnit, "backoff", time.Second, "backoff unit, waits are 2^attempt units")
	fs.IntVar(&cfg.MaxRetries, "max-retries", 3, "extra attempts for each batch")
	fs.IntVar(&cfg.PerBatch, "per-batch", 5, "songs to pick from each batch")

	fs.StringVar(&cfg.Theme, "theme", "", "playlist theme")
	fs.IntVar(&cfg.BatchSize, "batch-size", 300, "songs sent in each request")
	fs.IntVar(&cfg.TotalTarget, "total", 50, "maximum number of songs in the playlist")
	fs.Int64Var(&cfg.Seed, "seed", 0, "shuffle seed (0 means random)")
	fs.BoolVar(&cfg.RequireInBatch, "require-in-batch", false, "drop picks that aren't in the batch they were picked from")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("mixtape %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "compose a themed playlist from the catalog",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if cfg.Theme == "" && len(args) > 0 {
				cfg.Theme = strings.Join(args, " ")
			}
			return compose.Run(ctx, cfg)
		},
	}
}

func newDownloadCommand() *ffcli.Command {
	cmd := "download"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &download.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.FSType, "fs-type", "local", "fs type (local, s3)")
	fs.StringVar(&cfg.FSConn, "fs-conn", "", "path for local, key:secret@bucket.region for s3")
	fs.StringVar(&cfg.ID, "id", "", "playlist id printed by compose")
	fs.StringVar(&cfg.Ext, "ext", ".json", "extension the playlist was uploaded with")
	fs.StringVar(&cfg.Output, "output", "", "output file (defaults to id plus extension)")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("mixtape %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "download an uploaded playlist from the file store",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if cfg.ID == "" && len(args) > 0 {
				cfg.ID = args[0]
			}
			return download.Run(ctx, cfg)
		},
	}
}

func newServeCommand() *ffcli.Command {
	cmd := "serve"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &web.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "sqlite", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "mixtape.db", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.Addr, "addr", ":1337", "server address")
	fsMapVar(fs, &cfg.Credentials, "credentials", nil, "credentials for basic auth (format: user1:pass1;user2:pass2)")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("mixtape %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  "serve saved playlists over http",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return web.Serve(ctx, cfg)
		},
	}
}

type mapValue struct {
	v *map[string]string
}

func (m *mapValue) String() string {
	if m.v == nil {
		return ""
	}
	return fmt.Sprintf("%v", map[string]string(*m.v))
}

func (m *mapValue) Set(value string) error {
	if m.v == nil {
		return errors.New("nil map reference")
	}
	pairs := strings.Split(value, ";")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid map entry: %s", pair)
		}
		(*m.v)[parts[0]] = parts[1]
	}
	return nil
}

func fsMapVar(fs *flag.FlagSet, p *map[string]string, name string, value map[string]string, usage string) {
	if value == nil {
		value = make(map[string]string)
	}
	*p = value
	fs.Var(&mapValue{p}, name, usage)
}
