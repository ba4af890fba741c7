package cli

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CMSgov/xc-harvester/api"
	"github.com/CMSgov/xc-harvester/conf"
	"github.com/CMSgov/xc-harvester/database"
	"github.com/CMSgov/xc-harvester/harvester/filesource"
	"github.com/CMSgov/xc-harvester/harvester/oai"
	"github.com/CMSgov/xc-harvester/harvestworker/queueing"
	"github.com/CMSgov/xc-harvester/harvestworker/worker"
	"github.com/CMSgov/xc-harvester/log"
	"github.com/CMSgov/xc-harvester/metrics"
	"github.com/CMSgov/xc-harvester/transformation/mapper"
	"github.com/CMSgov/xc-harvester/transformation/marc"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

const Name = "xc-harvester"
const Usage = "OAI-PMH harvester and MARC to XC transformation CLI"

type apiConfig struct {
	Addr           string        `conf:"HARVEST_API_ADDR" conf_default:":3005"`
	ReadTimeout    time.Duration `conf:"API_READ_TIMEOUT" conf_default:"10s"`
	WriteTimeout   time.Duration `conf:"API_WRITE_TIMEOUT" conf_default:"20s"`
	AllowedOrigins []string      `conf:"HARVEST_API_ALLOWED_ORIGINS"`
}

func GetApp() *cli.App {
	return setUpApp()
}

func setUpApp() *cli.App {
	app := cli.NewApp()
	app.Name = Name
	app.Usage = Usage
	app.Before = func(c *cli.Context) error {
		log.SetupLoggers()
		return nil
	}

	var scheduleID, stepID int
	var dir, s3URI, file string
	var indent bool

	stepFlags := []cli.Flag{
		cli.IntFlag{
			Name:        "schedule",
			Usage:       "ID of the harvest schedule",
			Destination: &scheduleID,
		},
		cli.IntFlag{
			Name:        "step",
			Usage:       "ID of the schedule step",
			Destination: &stepID,
		},
	}

	app.Commands = []cli.Command{
		{
			Name:  "start-worker",
			Usage: "Start the queue workers and the harvest API",
			Action: func(c *cli.Context) error {
				return startWorker()
			},
		},
		{
			Name:  "harvest",
			Usage: "Harvest a schedule step from its provider",
			Flags: stepFlags,
			Action: func(c *cli.Context) error {
				return withWorker(func(ctx context.Context, w worker.Worker) error {
					return w.HarvestStep(ctx, scheduleID, stepID)
				})
			},
		},
		{
			Name:  "harvest-files",
			Usage: "Harvest a schedule step from a directory or S3 prefix of ListRecords responses",
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:        "dir",
					Usage:       "Local directory holding the responses",
					Destination: &dir,
				},
				cli.StringFlag{
					Name:        "s3",
					Usage:       "S3 URI (s3://bucket/prefix) holding the responses",
					Destination: &s3URI,
				},
			}, stepFlags...),
			Action: func(c *cli.Context) error {
				source, err := fileSource(dir, s3URI)
				if err != nil {
					return err
				}
				return withWorker(func(ctx context.Context, w worker.Worker) error {
					return w.HarvestFrom(ctx, source, scheduleID, stepID)
				})
			},
		},
		{
			Name:  "enqueue",
			Usage: "Queue a harvest of a schedule step",
			Flags: stepFlags,
			Action: func(c *cli.Context) error {
				cfg, err := database.LoadConfig()
				if err != nil {
					return err
				}
				pool, err := database.ConnectQueue(cfg)
				if err != nil {
					return err
				}
				defer pool.Close()

				args := queueing.HarvestStepArgs{ScheduleID: scheduleID, StepID: stepID}
				if err := queueing.NewEnqueuer(pool).AddHarvestStep(context.Background(), args); err != nil {
					return err
				}
				fmt.Fprintf(app.Writer, "Queued schedule %d step %d\n", scheduleID, stepID)
				return nil
			},
		},
		{
			Name:  "transform",
			Usage: "Transform a MARCXML file to XC and print the result",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "file",
					Usage:       "MARCXML file holding one or more records",
					Destination: &file,
				},
				cli.BoolFlag{
					Name:        "indent",
					Usage:       "Indent the output",
					Destination: &indent,
				},
			},
			Action: func(c *cli.Context) error {
				return transformFile(c, file, indent)
			},
		},
		{
			Name:  "migrate",
			Usage: "Apply pending database migrations",
			Action: func(c *cli.Context) error {
				cfg, err := database.LoadConfig()
				if err != nil {
					return err
				}
				return database.Migrate(cfg, log.Worker)
			},
		},
	}
	return app
}

func fileSource(dir, s3URI string) (oai.PageSource, error) {
	switch {
	case dir != "" && s3URI != "":
		return nil, errors.New("only one of --dir and --s3 may be provided")
	case dir != "":
		return filesource.NewLocal(dir, log.Harvest), nil
	case s3URI != "":
		var cfg filesource.S3Config
		if err := conf.Checkout(&cfg); err != nil {
			return nil, err
		}
		return filesource.NewS3(s3URI, cfg, log.Harvest)
	}
	return nil, errors.New("one of --dir or --s3 must be provided")
}

func transformFile(c *cli.Context, path string, indent bool) error {
	if path == "" {
		return errors.New("file (--file) must be provided")
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	records, err := marc.ParseCollection(f)
	if err != nil {
		return err
	}

	var cfg mapper.Config
	if err := conf.Checkout(&cfg); err != nil {
		return err
	}
	m := mapper.New(cfg, log.Transform)

	for i, rec := range records {
		out, err := m.Transform(rec)
		if err != nil {
			return errors.Wrapf(err, "failed to transform record %d", i+1)
		}
		n := 0
		out.AssignIDs(func() string {
			n++
			return fmt.Sprintf("%d-%d", i+1, n)
		})
		data, err := out.Bytes(indent)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s\n", data)
	}
	return nil
}

func connect(ctx context.Context) (*sql.DB, *database.Config, error) {
	cfg, err := database.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Connect(ctx, cfg, log.Worker)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}

// withWorker runs f with a worker until it returns or the process is
// signaled.
func withWorker(f func(ctx context.Context, w worker.Worker) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, _, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	w, err := worker.NewWorker(db)
	if err != nil {
		return err
	}

	ctx, end := metrics.NewParent(ctx, "harvest-cli")
	defer end()
	return f(ctx, w)
}

func startWorker() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	db, cfg, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	w, err := worker.NewWorker(db)
	if err != nil {
		return err
	}

	pool, err := database.ConnectQueue(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	qcfg, err := queueing.LoadConfig()
	if err != nil {
		return err
	}
	queue := queueing.StartQue(pool, qcfg, w.HarvestStep, log.Worker)
	defer queue.StopQue()

	var acfg apiConfig
	if err := conf.Checkout(&acfg); err != nil {
		return err
	}
	handler := api.NewHandler(w.Machines(), w.Repository(), queueing.NewEnqueuer(pool), db.PingContext, log.API)
	srv := &http.Server{
		Addr:         acfg.Addr,
		Handler:      api.NewRouter(handler, acfg.AllowedOrigins...),
		ReadTimeout:  acfg.ReadTimeout,
		WriteTimeout: acfg.WriteTimeout,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.API.Errorf("API server stopped: %s", err)
			stop()
		}
	}()

	fmt.Println("Starting xc-harvester worker...")
	<-ctx.Done()
	fmt.Println("Stopping xc-harvester worker...")

	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdown)
}
