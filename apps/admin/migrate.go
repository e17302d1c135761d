package main

import (
	"errors"

	"github.com/pressly/goose/v3"

	"github.com/simonmuehling/educafric-platform-sub005/fs"
	"github.com/simonmuehling/educafric-platform-sub005/storage/database"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errors.New("migrations need a database connection")
	}
	if err := database.SetupMigrations(); err != nil {
		return err
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, appfs.MigrationsDir, arguments...)
}
