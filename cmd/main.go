package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	_ "go.uber.org/automaxprocs"

	"github.com/mapfold/geograph/graph"
	"github.com/mapfold/geograph/internal/telemetry"
	"github.com/mapfold/geograph/overture"
	"github.com/mapfold/geograph/routing"
	"github.com/mapfold/geograph/server"
)

func main() {
	// Optional; the .env file is a development convenience.
	_ = godotenv.Load()

	app := &cli.App{
		Name:        "geograph",
		Description: "Spatial resolution and routing graph engine over Overture-style feature catalogs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "overture",
				Usage: "base URL of the feature catalog",
				Value: os.Getenv("GEOGRAPH_OVERTURE_URL"),
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "graph store backend: neo4j or memory",
				Value: "neo4j",
			},
			&cli.StringFlag{
				Name:  "otlp-endpoint",
				Value: os.Getenv("GEOGRAPH_OTLP_ENDPOINT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve the resolution and routing api",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
					},
				},
				Action: serve,
			},
			{
				Name:    "seed",
				Aliases: []string{"s"},
				Usage:   "resolve a points file and load the road network around it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:      "points",
						Aliases:   []string{"p"},
						Required:  true,
						TakesFile: true,
					},
					&cli.Float64Flag{
						Name:  "radius",
						Usage: "road network radius in km",
						Value: 2.0,
					},
					&cli.StringSliceFlag{
						Name:  "road-classes",
						Usage: "road classes to load, empty for all",
					},
					&cli.StringFlag{
						Name: "region",
					},
					&cli.IntFlag{
						Name:        "threads",
						Aliases:     []string{"t"},
						DefaultText: "max",
					},
				},
				Action: seed,
			},
			{
				Name:  "route",
				Usage: "query a shortest path between two resolved locations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "origin",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "destination",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "algorithm",
						Value: "dijkstra",
					},
				},
				Action: route,
			},
			{
				Name:  "status",
				Usage: "print road network status",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name: "region",
					},
				},
				Action: status,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(ctx *cli.Context) error {
	tel, err := telemetry.Setup(ctx.Context, "geograph", ctx.String("otlp-endpoint"))
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	if tel != nil {
		defer tel.Shutdown(ctx.Context)
	}

	source := overture.NewClient(ctx.String("overture"))
	store, err := newStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx.Context)

	return server.Run(ctx.Context, ctx.String("listen"), source, store)
}

func route(ctx *cli.Context) error {
	telemetry.SetupLogging()

	store, err := newStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx.Context)

	algorithm, err := routing.ParseAlgorithm(ctx.String("algorithm"))
	if err != nil {
		return err
	}

	resolver := routing.NewResolver(store)
	result, err := resolver.Route(ctx.Context,
		graph.NodeRef{Label: "Location", KeyField: "address", KeyValue: ctx.String("origin")},
		graph.NodeRef{Label: "Location", KeyField: "address", KeyValue: ctx.String("destination")},
		algorithm,
	)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func status(ctx *cli.Context) error {
	telemetry.SetupLogging()

	store, err := newStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx.Context)

	s, err := store.NetworkStatus(ctx.Context, ctx.String("region"))
	if err != nil {
		return err
	}
	return printJSON(s)
}

func newStore(ctx *cli.Context) (graph.Store, error) {
	switch ctx.String("store") {
	case "memory":
		return graph.NewMemoryStore(), nil
	case "neo4j":
		uri := os.Getenv("NEO4J_URI")
		if uri == "" {
			uri = "bolt://localhost:7687"
		}
		store, err := graph.NewNeo4jStore(uri, os.Getenv("NEO4J_USERNAME"), os.Getenv("NEO4J_PASSWORD"))
		if err != nil {
			return nil, fmt.Errorf("connect graph store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", ctx.String("store"))
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
