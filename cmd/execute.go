// Package cmd is the `nativec` command line and the code generation driver:
// it loads the build profile, lowers and generates the program, keeps the
// library caches up to date and runs `llc` and the linker.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"nativec/common"
	"nativec/config"
	"nativec/deps"
	"nativec/report"

	"github.com/ComedicChimera/olive"
	"github.com/pterm/pterm"
)

// registeredFrontend is the frontend used by the `build` and `cache update`
// commands.
var registeredFrontend Frontend

// RegisterFrontend sets the frontend the CLI compiles sources with.  It must
// be called before Execute.
func RegisterFrontend(fe Frontend) {
	registeredFrontend = fe
}

// Execute is the main entry point for the `nativec` CLI utility.
func Execute() {
	report.SetCompilerVersion(common.NativecVersion)

	// set up the argument parser and all its extended commands and arguments
	cli := olive.NewCLI("nativec", "nativec lowers and compiles programs to native code", true)
	logLvlArg := cli.AddSelectorArg("loglevel", "ll", "the compiler log level", false, []string{"silent", "error", "warn", "verbose", "debug"})
	logLvlArg.SetDefaultValue("verbose")

	buildCmd := cli.AddSubcommand("build", "compile a program or a library cache", true)
	buildCmd.AddPrimaryArg("profile-path", "the path to the build profile", true)
	buildCmd.AddStringArg("output", "o", "override the output path of the profile", false)

	libsCmd := cli.AddSubcommand("libs", "list the libraries of a build in dependency order", true)
	libsCmd.AddPrimaryArg("profile-path", "the path to the build profile", true)

	cacheCmd := cli.AddSubcommand("cache", "inspect and update library caches", true)
	cacheDirtyCmd := cacheCmd.AddSubcommand("dirty", "list the cached files that must be rebuilt", true)
	cacheDirtyCmd.AddPrimaryArg("profile-path", "the path to the build profile", true)
	cacheUpdateCmd := cacheCmd.AddSubcommand("update", "rebuild the dirty files of per-file caches", true)
	cacheUpdateCmd.AddPrimaryArg("profile-path", "the path to the build profile", true)

	cli.AddSubcommand("options", "list the binary options and their valid values", false)
	cli.AddSubcommand("version", "print the nativec version", false)

	// run the argument parser
	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		report.PrintErrorMessage("CLI Usage Error", err)
		os.Exit(1)
	}

	loglevel := result.Arguments["loglevel"].(string)

	// process the inputed command line
	subcmdName, subResult, _ := result.Subcommand()
	switch subcmdName {
	case "build":
		execBuildCommand(subResult, loglevel)
	case "libs":
		execLibsCommand(subResult, loglevel)
	case "cache":
		execCacheCommand(subResult, loglevel)
	case "options":
		execOptionsCommand()
	case "version":
		report.PrintInfoMessage("nativec Version", common.NativecVersion)
	}

	if report.AnyErrors() {
		os.Exit(1)
	}
}

// loadProfile loads the build profile given as the primary argument and
// initializes the reporter.  The log level of the environment takes
// precedence over the command line.
func loadProfile(result *olive.ArgParseResult, loglevel string) *config.Config {
	profilePath, _ := result.PrimaryArg()
	if fi, err := os.Stat(profilePath); err == nil && fi.IsDir() {
		profilePath = filepath.Join(profilePath, common.ProfileFileName)
	}

	cfg, err := config.Load(profilePath)
	if err != nil {
		report.PrintErrorMessage("Profile Error", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		loglevel = cfg.LogLevel
	}

	level, ok := report.LogLevelNames[loglevel]
	if !ok {
		report.PrintErrorMessage("Profile Error", fmt.Errorf("invalid log level `%s`", loglevel))
		os.Exit(1)
	}

	report.InitReporter(level)
	return cfg
}

// execBuildCommand executes the build subcommand and handles all errors.
func execBuildCommand(result *olive.ArgParseResult, loglevel string) {
	cfg := loadProfile(result, loglevel)

	if outArg, ok := result.Arguments["output"]; ok {
		outputPath, err := filepath.Abs(outArg.(string))
		if err != nil {
			report.ReportFatal("error calculating absolute path: %s", err.Error())
		}

		cfg.OutputPath = outputPath
	}

	if registeredFrontend == nil {
		report.ReportFatal("no frontend is registered: this build of nativec cannot compile sources")
	}

	c := NewCompiler(cfg, registeredFrontend)
	if err := c.Build(); err != nil {
		report.ReportError("Build Error", err)
	}

	report.ReportCompilationFinished(cfg.OutputPath)
}

// execLibsCommand prints the libraries of a build with their caches.
func execLibsCommand(result *olive.ArgParseResult, loglevel string) {
	cfg := loadProfile(result, loglevel)

	libs, caches, err := NewCompiler(cfg, nil).Resolve()
	if err != nil {
		report.ReportError("Library Error", err)
		return
	}

	data := pterm.TableData{{"Library", "Cache", "Path"}}
	for _, lib := range libs {
		data = append(data, libraryRow(lib, caches))
	}

	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		report.ReportError("Output Error", err)
	}
}

// libraryRow describes the cache of a library.
func libraryRow(lib *deps.Library, caches *deps.CachedLibraries) []string {
	cache, err := caches.LibraryCache(lib)
	switch {
	case err != nil:
		return []string{lib.Name, "error", err.Error()}
	case cache == nil:
		return []string{lib.Name, "none", lib.Path}
	default:
		return []string{lib.Name, cache.Kind().String(), cache.Path()}
	}
}

// execCacheCommand executes the `cache` subcommand and its subcommands.
func execCacheCommand(result *olive.ArgParseResult, loglevel string) {
	subcmdName, subResult, _ := result.Subcommand()

	cfg := loadProfile(subResult, loglevel)

	switch subcmdName {
	case "dirty":
		dirty, err := NewCompiler(cfg, nil).DirtyFiles()
		if err != nil {
			report.ReportError("Cache Error", err)
			return
		}

		if len(dirty) == 0 {
			report.PrintInfoMessage("Caches", "all caches are up to date")
			return
		}

		data := pterm.TableData{{"Library", "File", "Reason"}}
		for _, df := range dirty {
			name := df.File.Path
			if name == "" {
				name = df.FileID
			}

			data = append(data, []string{df.Library.Name, name, df.Reason.String()})
		}

		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			report.ReportError("Output Error", err)
		}
	case "update":
		if registeredFrontend == nil {
			report.ReportFatal("no frontend is registered: this build of nativec cannot compile sources")
		}

		if err := NewCompiler(cfg, registeredFrontend).UpdateCaches(); err != nil {
			report.ReportError("Cache Error", err)
		}
	}
}

// execOptionsCommand lists the binary options.
func execOptionsCommand() {
	data := pterm.TableData{{"Option", "Valid Values"}}
	for _, opt := range config.BinaryOptions() {
		data = append(data, []string{opt.Name, opt.ValidValues})
	}

	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		report.PrintErrorMessage("Output Error", err)
	}
}
