package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/john-mcenroe/landos/internal/api"
	"github.com/john-mcenroe/landos/internal/circle"
	"github.com/john-mcenroe/landos/internal/config"
	"github.com/john-mcenroe/landos/internal/detail"
	"github.com/john-mcenroe/landos/internal/logger"
	"github.com/john-mcenroe/landos/internal/mapview"
	"github.com/john-mcenroe/landos/internal/selection"
	"github.com/john-mcenroe/landos/internal/viewport"
)

// app bundles the wired controllers each subcommand draws from.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	client  *api.Client
	surface *mapview.Recorder
	ui      *termUI
}

func newApp(apiURL string, verbose bool) *app {
	cfg := config.Load()
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}

	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	log := logger.New(cfg.App.LogFilePath, level)

	var bus *mapview.EventBus
	if verbose {
		bus = mapview.NewEventBus()
		events := bus.Subscribe()
		go func() {
			for ev := range events {
				log.Debug("map op",
					zap.String("op", ev.Op),
					zap.String("target", ev.Target),
					zap.String("detail", ev.Detail))
			}
		}()
	}

	return &app{
		cfg: cfg,
		log: log,
		client: api.New(api.Config{
			BaseURL: cfg.API.BaseURL,
			Timeout: cfg.RequestTimeout(),
		}, log),
		surface: mapview.NewRecorder(bus),
		ui:      newTermUI(os.Stdout),
	}
}

// catalog builds the layer catalog: backend list when reachable, defaults
// otherwise, then the optional YAML overlay on top.
func (a *app) catalog(ctx context.Context) []viewport.Layer {
	layers := viewport.DefaultCatalog()
	if infos, err := a.client.Layers(ctx); err == nil {
		layers = viewport.MergeCatalog(infos)
	} else {
		a.log.Warn("layer list unreachable, using defaults", zap.Error(err))
	}

	overrides, err := a.cfg.LayerOverrides()
	if err != nil {
		a.log.Warn("layer overlay unreadable", zap.Error(err))
		return layers
	}
	for _, o := range overrides {
		for i := range layers {
			if layers[i].Name != o.Name {
				continue
			}
			if o.DisplayName != "" {
				layers[i].DisplayName = o.DisplayName
			}
			if o.Active != nil {
				layers[i].Active = *o.Active
			}
			if o.MinZoom != nil {
				layers[i].MinZoom = *o.MinZoom
			}
		}
	}
	return layers
}

func main() {
	var apiURL string
	var verbose bool

	root := &cobra.Command{
		Use:     "landos",
		Short:   "Explore Irish land, planning and sold-property data",
		Version: "0.1.0",
	}
	root.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (overrides LANDOS_API_URL)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log map operations and debug detail")

	root.AddCommand(
		newLayersCmd(&apiURL, &verbose),
		newSearchCmd(&apiURL, &verbose),
		newParcelCmd(&apiURL, &verbose),
		newStatsCmd(&apiURL, &verbose),
		newChatCmd(&apiURL, &verbose),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLayersCmd(apiURL *string, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "layers",
		Short: "List the map layer catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(*apiURL, *verbose)
			defer a.log.Sync()

			for _, l := range a.catalog(cmd.Context()) {
				a.ui.PrintLayer(l)
			}
			return nil
		},
	}
}

func newSearchCmd(apiURL *string, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search for a place or address",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(*apiURL, *verbose)
			defer a.log.Sync()

			q := args[0]
			for _, extra := range args[1:] {
				q += " " + extra
			}
			results, err := a.client.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				a.ui.PrintMuted("No results.")
				return nil
			}
			for _, r := range results {
				a.ui.PrintSearchResult(r)
			}
			a.surface.FlyTo(orb.Point{results[0].Lng, results[0].Lat}, 15)
			return nil
		},
	}
}

func newParcelCmd(apiURL *string, verbose *bool) *cobra.Command {
	var parcelType string
	cmd := &cobra.Command{
		Use:   "parcel <id>",
		Short: "Show full detail for one cadastral parcel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(*apiURL, *verbose)
			defer a.log.Sync()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid parcel id %q", args[0])
			}

			d, err := a.client.ParcelDetail(cmd.Context(), id, parcelType)
			if err != nil {
				return err
			}
			a.ui.ShowDetail(selection.Title(selection.KindParcel), detail.ParcelRows(d))
			return nil
		},
	}
	cmd.Flags().StringVar(&parcelType, "type", "freehold", "Parcel register: freehold or leasehold")
	return cmd
}

func newStatsCmd(apiURL *string, verbose *bool) *cobra.Command {
	var radius float64
	cmd := &cobra.Command{
		Use:   "stats <lng> <lat>",
		Short: "Aggregate sold-price and census statistics for a disc",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(*apiURL, *verbose)
			defer a.log.Sync()

			lng, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid longitude %q", args[0])
			}
			lat, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid latitude %q", args[1])
			}

			ctrl := circle.NewController(a.client, a.surface, a.ui, nil, a.log, func() {})
			ctrl.ToggleMode()
			ctrl.PointerDown(orb.Point{lng, lat})
			ctrl.PointerUp()
			ctrl.SetRadius(radius)

			// The controller debounces and fetches on the real clock;
			// wait for the panel to render once.
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.RequestTimeout())
			defer cancel()
			a.ui.WaitForStats(ctx)
			if ctx.Err() != nil {
				return fmt.Errorf("statistics unavailable: %w", ctx.Err())
			}
			return nil
		},
	}
	cmd.Flags().Float64VarP(&radius, "radius", "r", 500, "Disc radius in metres (100-2000)")
	return cmd
}
