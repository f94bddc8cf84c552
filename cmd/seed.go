package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/cheggaaa/pb/v3"
	"github.com/sourcegraph/conc/pool"
	"github.com/urfave/cli/v3"

	"github.com/mapfold/geograph/geomodel"
	"github.com/mapfold/geograph/internal/telemetry"
	"github.com/mapfold/geograph/overture"
	"github.com/mapfold/geograph/roadnet"
	"github.com/mapfold/geograph/spatial"
)

type seedPoint struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// seed runs the full harmonization flow for a points file: building,
// street, address and division resolution per point, then one road network
// load around the whole batch.
func seed(ctx *cli.Context) error {
	telemetry.SetupLogging()
	log := slog.Default()

	threads := ctx.Int("threads")
	if threads == 0 {
		threads = runtime.GOMAXPROCS(0)
	}

	data, err := os.ReadFile(ctx.String("points"))
	if err != nil {
		return fmt.Errorf("read points file: %w", err)
	}
	var points []seedPoint
	if err := json.Unmarshal(data, &points); err != nil {
		return fmt.Errorf("parse points file: %w", err)
	}
	log.Info("Seeding", "points", len(points), "threads", threads)

	source := overture.NewClient(ctx.String("overture"))
	store, err := newStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx.Context)

	locations := make([]geomodel.Location, 0, len(points))
	anchors := make([]roadnet.Anchor, 0, len(points))
	for _, p := range points {
		loc := geomodel.Location{Address: p.Address}
		if p.Lat != nil && p.Lon != nil {
			loc.Coords = &geomodel.Point{Lat: *p.Lat, Lon: *p.Lon}
		}
		locations = append(locations, loc)
		anchors = append(anchors, roadnet.Anchor{Node: loc, Coords: loc.Coords})
	}

	linker := spatial.NewLinker(source, store)

	bar := pb.StartNew(len(locations))
	bar.Set("prefix", "1/2 resolving points ")
	p := pool.New().WithMaxGoroutines(threads)
	for _, loc := range locations {
		if ctx.Context.Err() != nil {
			break
		}
		loc := loc
		p.Go(func() {
			linker.ResolveLocation(ctx.Context, loc)
			bar.Increment()
		})
	}
	p.Wait()
	bar.Finish()
	if err := ctx.Context.Err(); err != nil {
		return err
	}

	log.Info("Loading road network", "radius_km", ctx.Float64("radius"))
	builder := roadnet.NewBuilder(source, store,
		roadnet.WithRadiusKm(ctx.Float64("radius")),
		roadnet.WithRoadClasses(ctx.StringSlice("road-classes")),
		roadnet.WithRegion(ctx.String("region")),
		roadnet.WithThreads(threads),
	)
	stats, err := builder.Load(ctx.Context, anchors)
	if err != nil {
		return fmt.Errorf("road network load: %w", err)
	}

	log.Info("Seed complete",
		"intersections", stats.Intersections,
		"segments", stats.Segments,
		"dropped_segments", stats.DroppedSegments,
		"linked_points", stats.LinkedPoints,
	)
	return nil
}
