package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/pci/internal/config"
	"github.com/standardbeagle/pci/internal/detect"
	"github.com/standardbeagle/pci/internal/discovery"
	"github.com/standardbeagle/pci/internal/mcp"
	"github.com/standardbeagle/pci/internal/phpreflect"
	"github.com/standardbeagle/pci/internal/scanner"
	"github.com/standardbeagle/pci/internal/version"
)

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")

	// with --root and the default config path, look for the config there
	if rootFlag := c.String("root"); rootFlag != "" && configPath == config.DefaultConfigFile {
		configPath = filepath.Join(rootFlag, config.DefaultConfigFile)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	if rootFlag := c.String("root"); rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Scan.Exclude = append(cfg.Scan.Exclude, excludeFlags...)
	}
	if workers := c.Int("workers"); workers > 0 {
		cfg.Scan.Workers = workers
	}

	return cfg, nil
}

func main() {
	app := &cli.App{
		Name:                   "pci",
		Usage:                  "PHP code intelligence: class discovery, API introspection and usage scanning",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   config.DefaultConfigFile,
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns (e.g., --exclude '**/generated/**')",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Scan parallelism (default: number of CPUs)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run as an MCP server over stdio",
				Action: serveCommand,
			},
			{
				Name:      "usages",
				Usage:     "Find usages of a class",
				ArgsUsage: "<fully-qualified-class>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Usage: "Directory to scan, relative to the root"},
					&cli.StringFlag{Name: "types", Usage: "Comma-separated usage kinds (import,new,static_call,extends,implements,trait,type_hint)"},
					&cli.BoolFlag{Name: "include-vendor", Usage: "Also scan dependency code"},
					&cli.BoolFlag{Name: "group", Usage: "Group results by usage kind"},
					&cli.StringFlag{Name: "sort", Value: "line", Usage: "Sort key: line, file or type"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum usages returned"},
					&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
					&cli.BoolFlag{Name: "flush-cache", Usage: "Drop cached vendor results first"},
				},
				Action: usagesCommand,
			},
			{
				Name:      "classes",
				Usage:     "Discover classes under a path",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "has-trait", Usage: "Keep classes using this trait (FQN)"},
					&cli.StringFlag{Name: "has-interface", Usage: "Keep classes implementing this interface (FQN)"},
					&cli.StringFlag{Name: "has-method", Usage: "Keep classes declaring this method"},
					&cli.BoolFlag{Name: "no-recursive", Usage: "Only look at files directly under the path"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum classes returned"},
					&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
				},
				Action: classesCommand,
			},
			{
				Name:      "class",
				Usage:     "Introspect one class's API surface",
				ArgsUsage: "<fully-qualified-class>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "File declaring the class, instead of index lookup"},
					&cli.BoolFlag{Name: "inherited", Usage: "Include inherited members"},
					&cli.StringFlag{Name: "visibility", Usage: "Keep only public, protected or private members"},
				},
				Action: classCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// serveCommand runs the MCP server until interrupted
func serveCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	srv, err := mcp.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	runErr := srv.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}

func usagesCommand(c *cli.Context) error {
	target := c.Args().First()
	if target == "" {
		return fmt.Errorf("usage: pci usages <fully-qualified-class>")
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	var types []detect.UsageType
	for _, t := range strings.Split(c.String("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, detect.UsageType(t))
		}
	}

	limit := c.Int("limit")
	if limit <= 0 {
		limit = cfg.Scan.DefaultLimit
	}
	opts := scanner.Options{
		UsageTypes:    types,
		ExcludeVendor: !c.Bool("include-vendor"),
		SortBy:        c.String("sort"),
		GroupByType:   c.Bool("group"),
		Limit:         limit,
		Offset:        c.Int("offset"),
		FlushCache:    c.Bool("flush-cache"),
	}

	root := c.String("path")
	if root == "" {
		root = cfg.Scan.DefaultPath
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(cfg.Project.Root, root)
	}

	result, err := scanner.New(cfg, nil).FindUsages(context.Background(), target, root, opts)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func classesCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("usage: pci classes <path>")
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.Project.Root, path)
	}

	classes, err := discovery.New(cfg).Discover(context.Background(), path, discovery.Filter{
		HasTrait:     c.String("has-trait"),
		HasInterface: c.String("has-interface"),
		HasMethod:    c.String("has-method"),
		Recursive:    !c.Bool("no-recursive"),
		Limit:        c.Int("limit"),
		Offset:       c.Int("offset"),
	})
	if err != nil {
		return err
	}
	return printJSON(classes)
}

func classCommand(c *cli.Context) error {
	name := c.Args().First()
	file := c.String("file")
	if name == "" && file == "" {
		return fmt.Errorf("usage: pci class <fully-qualified-class> [--file path]")
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	in := phpreflect.Input{Name: name}
	var reflector *phpreflect.Reflector
	if file != "" && !c.Bool("inherited") {
		in.Path = file
		reflector = phpreflect.NewReflector(nil)
	} else {
		ix, err := discovery.New(cfg).BuildIndex(context.Background(), cfg.Project.Root)
		if err != nil {
			return err
		}
		if file != "" {
			in.Path = file
		}
		reflector = phpreflect.NewReflector(ix)
	}

	info, err := reflector.Describe(in, phpreflect.Options{
		IncludeInherited: c.Bool("inherited"),
		Visibility:       phpreflect.Visibility(c.String("visibility")),
	})
	if err != nil {
		return err
	}
	return printJSON(info)
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
