package dig_container

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/simonmuehling/educafric-platform-sub005/apps/api/echo"
	"github.com/simonmuehling/educafric-platform-sub005/core"
	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
	archivesvc "github.com/simonmuehling/educafric-platform-sub005/services/archive"
	emailsvc "github.com/simonmuehling/educafric-platform-sub005/services/email"
	logsvc "github.com/simonmuehling/educafric-platform-sub005/services/logger"
	"github.com/simonmuehling/educafric-platform-sub005/services/notify"
	"github.com/simonmuehling/educafric-platform-sub005/services/queue"
	"github.com/simonmuehling/educafric-platform-sub005/services/whatsapp"
	"github.com/simonmuehling/educafric-platform-sub005/storage/database"
	inmemdb "github.com/simonmuehling/educafric-platform-sub005/storage/database/inmem"
	sqlxrepos "github.com/simonmuehling/educafric-platform-sub005/storage/database/sqlx"
)

// InMemoryEngine keeps the data in process memory; meant for local runs only.
const InMemoryEngine = "memory"

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage holds the repositories and the connection backing them.
type Storage struct {
	dig.Out
	Bulletins bulletin.Repository
	Guardians bulletin.GuardianRepository
	DB        io.Closer `name:"db"`
}

type DBParam struct {
	dig.In
	DB io.Closer `name:"db"`
}

// Notifications runs the delivery of sent bulletins in the background.
type Notifications interface {
	Start(ctx context.Context)
	Stop()
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	if conf.Database.Engine == InMemoryEngine {
		loggerParam.Logger.Warn("using the in-memory database: data is lost on restart")
		db := inmemdb.Open()
		return Storage{
			Bulletins: inmemdb.NewBulletinRepository(db),
			Guardians: inmemdb.NewGuardianRepository(db),
			DB:        db,
		}
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Storage{
		Bulletins: sqlxrepos.NewBulletinRepository(db),
		Guardians: sqlxrepos.NewGuardianRepository(db),
		DB:        db,
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newMessenger(conf *core.Config) notify.Messenger {
	if !conf.WhatsApp.Enabled() {
		return nil
	}
	return whatsapp.NewClient(conf)
}

func newArchive(conf *core.Config, logger core.Logger) notify.Archive {
	if !conf.Storage.Enabled() {
		return nil
	}
	archive, err := archivesvc.NewS3Archive(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up bulletin archive: %v", err), err)
	}
	return archive
}

func newDispatcher(
	conf *core.Config,
	guardians bulletin.GuardianRepository,
	messenger notify.Messenger,
	mailer core.EmailService,
	archive notify.Archive,
	logger core.Logger,
) *notify.Dispatcher {
	return notify.NewDispatcher(conf, guardians, messenger, mailer, archive, logger)
}

// newNotifier queues notifications in Redis when configured, in process otherwise.
func newNotifier(conf *core.Config, logger core.Logger, dispatcher *notify.Dispatcher) (bulletin.Notifier, Notifications) {
	dispatch := notify.DispatchJob(dispatcher)

	if !conf.Redis.Enabled() {
		pool := notify.NewWorkerPool(conf.Bulletins.NotifyWorkers, 100, dispatch, logger)
		return pool, pool
	}

	rdb, err := queue.NewRedisClient(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up redis: %v", err), err)
	}
	producer := queue.NewProducer(rdb, conf.Redis.Queue)
	consumer := queue.NewConsumer(rdb, conf.Redis.Queue, conf.Redis.DLQSuffix, logger)
	return notify.NewQueueNotifier(producer), &queueWorker{
		worker: notify.NewWorker(consumer, dispatch),
		client: rdb,
		logger: logger,
	}
}

// queueWorker consumes the Redis notification queue until stopped.
type queueWorker struct {
	worker *notify.Worker
	client *redis.Client
	logger core.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (qw *queueWorker) Start(ctx context.Context) {
	ctx, qw.cancel = context.WithCancel(ctx)
	qw.wg.Add(1)
	go func() {
		defer qw.wg.Done()
		if err := qw.worker.Run(ctx); err != nil {
			qw.logger.Error(fmt.Sprintf("notification worker stopped: %v", err), err)
		}
	}()
}

func (qw *queueWorker) Stop() {
	if qw.cancel != nil {
		qw.cancel()
	}
	qw.wg.Wait()
	if err := qw.client.Close(); err != nil {
		qw.logger.Error(fmt.Sprintf("closing redis: %v", err), err)
	}
}

func newServer(conf *core.Config, logger core.Logger, svc *bulletin.Service, translator ut.Translator) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:        conf,
		Logger:      logger,
		BulletinSvc: svc,
		Translator:  translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(newMessenger))
	must(c.Provide(newArchive))
	must(c.Provide(newDispatcher))
	must(c.Provide(newNotifier))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(bulletin.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
