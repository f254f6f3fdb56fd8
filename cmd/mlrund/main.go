package main

import (
	"context"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/bcrant/mlrun/cmd/mlrund/handlers"
	"github.com/bcrant/mlrun/pkg/configs/server"
	"github.com/bcrant/mlrun/pkg/domain/auth"
	authrest "github.com/bcrant/mlrun/pkg/domain/auth/rest"
	"github.com/bcrant/mlrun/pkg/domain/ingest"
	ingestk8s "github.com/bcrant/mlrun/pkg/domain/ingest/k8s"
	mlrunpg "github.com/bcrant/mlrun/pkg/domain/mlrun/db/postgres"
	"github.com/bcrant/mlrun/pkg/utils/echoutil"
	"github.com/bcrant/mlrun/pkg/utils/filewatch"
	"github.com/bcrant/mlrun/pkg/utils/kubeutil"
	kstrings "github.com/bcrant/mlrun/pkg/utils/strings"
)

func main() {

	configPath := flag.String("config-path", "", "server config path")
	loglevel := flag.String("loglevel", "", "log level. debug|info|warn|error|off (overrides config)")
	kubeconfig := flag.String("kubeconfig", "", "(optional) path to kubeconfig file. in-cluster config when omitted")
	pcert := flag.String("cert", "", "certification file for TLS")
	pkey := flag.String("certkey", "", "key of certification file for TLS")
	flag.Parse()

	conf, err := server.Load(*configPath)
	if err != nil {
		log.Fatalf("can not read configration: %s", err)
	}

	e := echo.New()
	e.Pre(middleware.AddTrailingSlash())

	// set log
	level := conf.Server.LogLevel
	if *loglevel != "" {
		level = *loglevel
	}
	echoutil.SetLevel(e, level)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt, os.Kill,
	)
	defer stop()

	if *configPath != "" {
		wctx, cancel, err := filewatch.UntilModifyContext(ctx, *configPath)
		if err != nil {
			log.Fatalf("can not watch configration: %s", err)
		}
		defer cancel()
		ctx = wctx
	}

	db, err := mlrunpg.New(
		ctx, conf.DB.URI,
		mlrunpg.WithSchemaRepository(conf.DB.SchemaRepository),
	)
	if err != nil {
		log.Fatalf("can not connect to database: %s", err)
	}
	defer db.Close()

	if conf.DB.SchemaRepository != "" {
		// quit when the schema repository on disk gets ahead of the database
		sctx, cancel := db.Schema().Context(ctx)
		defer cancel()
		ctx = sctx
	}

	context.AfterFunc(ctx, func() {
		log.Printf("stopping server: %s", context.Cause(ctx))
		graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := e.Shutdown(graceful); err != nil {
			log.Printf("error on shutdown: %s", err)
		}
	})

	var verifier auth.Verifier
	if conf.Auth.VerifierURL != "" {
		verifier = authrest.New(conf.Auth.VerifierURL)
	} else {
		log.Println("no authorization verifier is configured. every request is allowed.")
		verifier = auth.Permissive()
	}

	clientset, err := kubeutil.Connect(*kubeconfig)
	if err != nil {
		log.Fatalf("can not connect to kubernetes: %s", err)
	}
	launcher := ingestk8s.New(clientset, conf.Ingest.Namespace)

	dispatcher, err := ingest.New(
		db.FeatureSets(), db.Tasks(), verifier, launcher,
		ingest.Config{
			Image:          conf.Ingest.Image,
			DefaultTargets: ingestTargets(conf.Ingest.DefaultTargets),
			Workers:        conf.Ingest.Workers,
			TaskTimeout:    conf.Ingest.TaskTimeout,
		},
	)
	if err != nil {
		log.Fatalf("can not build ingestion dispatcher: %s", err)
	}
	defer dispatcher.Close()

	api, err := root("/api")
	if err != nil {
		log.Fatalf("api root /api is invalid url or path: %s", err)
	}

	// handlers
	{
		fs := handlers.FeatureSets(db.FeatureSets(), verifier)
		e.POST(api("projects/:project/feature-sets"), fs.Create())
		e.GET(api("projects/:project/feature-sets"), fs.List(nil))
		e.DELETE(api("projects/:project/feature-sets/:name"), fs.Delete(false))
		e.GET(api("projects/:project/feature-sets/:name/tags"), fs.ListTags())

		e.PUT(api("projects/:project/feature-sets/:name/references/:reference"), fs.Store())
		e.GET(api("projects/:project/feature-sets/:name/references/:reference"), fs.Get())
		e.PATCH(api("projects/:project/feature-sets/:name/references/:reference"), fs.Patch())
		e.DELETE(api("projects/:project/feature-sets/:name/references/:reference"), fs.Delete(true))

		e.POST(
			api("projects/:project/feature-sets/:name/references/:reference/ingest"),
			handlers.IngestHandler(dispatcher, verifier),
		)
	}

	{
		fv := handlers.FeatureVectors(db.FeatureVectors(), verifier)
		e.POST(api("projects/:project/feature-vectors"), fv.Create())
		e.GET(api("projects/:project/feature-vectors"), fv.List(handlers.FeatureReferenceCheck(verifier)))
		e.DELETE(api("projects/:project/feature-vectors/:name"), fv.Delete(false))
		e.GET(api("projects/:project/feature-vectors/:name/tags"), fv.ListTags())

		e.PUT(api("projects/:project/feature-vectors/:name/references/:reference"), fv.Store())
		e.GET(api("projects/:project/feature-vectors/:name/references/:reference"), fv.Get())
		e.PATCH(api("projects/:project/feature-vectors/:name/references/:reference"), fv.Patch())
		e.DELETE(api("projects/:project/feature-vectors/:name/references/:reference"), fv.Delete(true))
	}

	{
		e.GET(api("projects/:project/features"), handlers.ListFeaturesHandler(db.FeatureSets(), verifier))
		e.GET(api("projects/:project/entities"), handlers.ListEntitiesHandler(db.FeatureSets(), verifier))
	}

	{
		e.GET(api("projects/:project/background-tasks"), handlers.ListTasksHandler(db.Tasks(), verifier))
		e.GET(api("projects/:project/background-tasks/:name"), handlers.GetTaskHandler(db.Tasks(), verifier))
	}

	log.Println("registred routes:")
	for _, r := range e.Routes() {
		log.Println(r.Method, r.Path)
	}

	port := strconv.Itoa(conf.Server.Port)
	cert, key := *pcert, *pkey
	if cert != "" && key != "" {
		e.Logger.Fatal(e.StartTLS(":"+port, cert, key))
	} else {
		e.Logger.Fatal(e.Start(":" + port))
	}
}

func ingestTargets(targets []server.TargetConfig) []ingest.Target {
	converted := make([]ingest.Target, len(targets))
	for i, t := range targets {
		converted[i] = ingest.Target{Kind: t.Kind, Path: t.Path}
	}
	return converted
}

// create api URL factory
//
// args:
//   - root: api root
//
// return:
// - func: it receive relative path from root, and returns full-path of URL.
func root(r string) (func(...string) string, error) {
	//    when r is https://example.org:8080/api/root/path
	origin := "" // https://example.org:8080/ . "/" terminated. if r is path only, this is empty.
	base := ""   // /api/root/path
	{
		b, err := url.Parse(r)
		if err != nil {
			return nil, err
		}
		base = b.Path
		if b.Host != "" || b.Scheme != "" {
			_r := *b
			r := &_r
			r.RawPath = ""
			r.Path = ""
			r.RawQuery = ""
			r.Fragment = ""
			origin = r.String()
		}
	}
	origin = kstrings.EnsureSuffix(origin, "/")

	return func(s ...string) string {
		parts := make([]string, len(s)+1)
		parts[0] = base
		copy(parts[1:], s)
		joined := path.Join(parts...)
		joined = kstrings.TrimPrefixAll(joined, "/")

		return kstrings.EnsureSuffix(origin+joined, "/")
	}, nil
}
