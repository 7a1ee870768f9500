package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/elimisha/maabara/core"
	"github.com/elimisha/maabara/storage/database"
)

var (
	migrateFunc = func(db *sqlx.DB) error { return database.Migrate(db.DB) } // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db *sqlx.DB
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate - apply pending database migrations")
	fmt.Println("  seedgame [-pretty] - print the built-in fallback game payload")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	seedGameCmd := flag.NewFlagSet("seedgame", flag.ExitOnError)
	seedGamePretty := seedGameCmd.Bool("pretty", false, "Indent the JSON output.")

	switch args[1] {
	case "migrate":
		return migrateFunc(cli.db)
	case "seedgame":
		if err := seedGameCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.seedGame(*seedGamePretty)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) seedGame(pretty bool) error {
	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(core.FallbackGamePayload())
}
