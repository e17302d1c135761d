package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/simonmuehling/educafric-platform-sub005/core"
	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
	logsvc "github.com/simonmuehling/educafric-platform-sub005/services/logger"
	"github.com/simonmuehling/educafric-platform-sub005/storage/database"
	sqlxrepos "github.com/simonmuehling/educafric-platform-sub005/storage/database/sqlx"
)

var logger *log.Logger

// cliNotifier drops notifications: the admin commands never send bulletins.
type cliNotifier struct{}

func (cliNotifier) Notify(_ context.Context, n bulletin.Notification) error {
	logger.Printf("notification for bulletin %s not delivered from the CLI", n.BulletinID)
	return nil
}

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	// set up services
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug && conf.RollbarToken != "")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	bulletin.InitValidators(validate, translator, conf.Bulletins.MaxGrade)

	svc := bulletin.NewService(conf, sqlxrepos.NewBulletinRepository(db), cliNotifier{}, appLogger, validate, translator)

	// start CLI
	cli := commandLine{
		conf:      conf,
		db:        db.DB,
		svc:       svc,
		guardians: sqlxrepos.NewGuardianRepository(db),
		out:       os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up: %v", err))
	}
}
