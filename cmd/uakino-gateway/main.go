// Command uakino-gateway: addon server for uakino.best, plus helpers.
//
//	serve   Run the addon server (default when no command is given)
//	genres  Refresh the genre cache and print it
//	search  Print search results for a query
//	probe   Check that the site answers with parseable listings
//	mount   Mount the catalog as .strm files (Linux, FUSE)
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/snapetech/uakino-gateway/internal/addon"
	"github.com/snapetech/uakino-gateway/internal/catalog"
	"github.com/snapetech/uakino-gateway/internal/config"
	"github.com/snapetech/uakino-gateway/internal/genrecache"
	"github.com/snapetech/uakino-gateway/internal/health"
	"github.com/snapetech/uakino-gateway/internal/hls"
	"github.com/snapetech/uakino-gateway/internal/httpclient"
	"github.com/snapetech/uakino-gateway/internal/logging"
	"github.com/snapetech/uakino-gateway/internal/searchcache"
	"github.com/snapetech/uakino-gateway/internal/server"
	"github.com/snapetech/uakino-gateway/internal/site"
	"github.com/snapetech/uakino-gateway/internal/strmfs"
)

// pruneInterval is how often expired search results are dropped.
const pruneInterval = 10 * time.Minute

// app is the wired backend shared by the commands.
type app struct {
	cfg   *config.Config
	log   *logrus.Logger
	site  *site.Client
	svc   *addon.Service
	cache *searchcache.Cache
	store *searchcache.SQLiteStore // nil when UAKINO_SEARCH_CACHE_DB is unset
}

func newApp(cfg *config.Config, log *logrus.Logger) *app {
	hc := httpclient.New(httpclient.Options{
		Timeout:   cfg.HTTPTimeout,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		HostSem:   httpclient.NewHostSemaphore(cfg.HostConcurrency),
	})
	a := &app{cfg: cfg, log: log}
	a.site = site.New(cfg.BaseURL, cfg.UserAgent, hc, log)

	var store searchcache.Store
	if cfg.SearchCacheDB != "" {
		st, err := searchcache.OpenSQLite(cfg.SearchCacheDB)
		if err != nil {
			log.Warnf("search cache db %s: %v; using memory only", cfg.SearchCacheDB, err)
		} else {
			a.store = st
			store = st
		}
	}
	a.cache = searchcache.New(cfg.SearchCacheTTL, store, log)
	a.svc = addon.New(addon.Options{
		Site:        a.site,
		Resolver:    hls.NewResolver(hc, cfg.SiteHost()+"/", cfg.UserAgent, log),
		Search:      a.cache,
		BaseURL:     cfg.SiteHost() + "/",
		UserAgent:   cfg.UserAgent,
		Concurrency: cfg.PlayerConcurrency,
		Log:         log,
	})
	return a
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warnf("close search cache db: %v", err)
		}
	}
}

// loadGenres fills the service's genre tables from cache or the site.
func (a *app) loadGenres(ctx context.Context) *genrecache.Genres {
	g := genrecache.LoadOrRefresh(ctx, a.site, a.cfg.GenreCachePath, a.cfg.GenreCacheTTL, a.log)
	a.svc.SetGenres(g)
	return g
}

// maintain refreshes genres when their TTL runs out and prunes expired
// search results until ctx is cancelled.
func (a *app) maintain(ctx context.Context, onGenres func(*genrecache.Genres)) {
	genreTick := time.NewTicker(a.cfg.GenreCacheTTL)
	defer genreTick.Stop()
	pruneTick := time.NewTicker(pruneInterval)
	defer pruneTick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-genreTick.C:
			g, err := genrecache.Refresh(ctx, a.site, a.cfg.GenreCachePath, time.Now(), a.log)
			if errors.Is(err, genrecache.ErrNoGenres) {
				a.log.Warn("genre refresh returned nothing; keeping previous tables")
				continue
			}
			if err != nil {
				a.log.Warnf("save genre cache: %v", err)
			}
			a.svc.SetGenres(g)
			onGenres(g)
		case <-pruneTick.C:
			n := a.cache.Prune()
			if a.store != nil {
				m, err := a.store.PruneBefore(ctx, time.Now().Add(-a.cfg.SearchCacheTTL))
				if err != nil {
					a.log.Warnf("search cache db prune: %v", err)
				}
				n += int(m)
			}
			if n > 0 {
				a.log.Debugf("pruned %d expired search results", n)
			}
		}
	}
}

func genreCount(g *genrecache.Genres) int {
	return len(g.ForType(catalog.TypeMovie)) + len(g.ForType(catalog.TypeSeries))
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [serve|genres|search|probe|mount] [flags]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  serve   Run the addon server (default)\n")
	fmt.Fprintf(os.Stderr, "  genres  Refresh the genre cache and print it\n")
	fmt.Fprintf(os.Stderr, "  search  Print search results: search <query>\n")
	fmt.Fprintf(os.Stderr, "  probe   Check the site (and optionally a running addon with -addon)\n")
	fmt.Fprintf(os.Stderr, "  mount   Mount Movies/ and TV/ as .strm files (Linux)\n")
}

func main() {
	_ = config.LoadEnvFile(".env")

	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	serveAddr := serveCmd.String("addr", "", "Listen address (default: UAKINO_ADDR)")

	genresCmd := flag.NewFlagSet("genres", flag.ExitOnError)
	genresPath := genresCmd.String("cache", "", "Genre cache path (default: UAKINO_GENRE_CACHE)")

	searchCmd := flag.NewFlagSet("search", flag.ExitOnError)
	searchType := searchCmd.String("type", "", "movie or series (default: both)")

	probeCmd := flag.NewFlagSet("probe", flag.ExitOnError)
	probeAddon := probeCmd.String("addon", "", "Also check a running addon at this base URL (e.g. http://127.0.0.1:3000)")
	probeTimeout := probeCmd.Duration("timeout", 30*time.Second, "Timeout")

	mountCmd := flag.NewFlagSet("mount", flag.ExitOnError)
	mountPoint := mountCmd.String("mount", "", "Mount point (default: UAKINO_MOUNT)")
	mountAllowOther := mountCmd.Bool("allow-other", false, "Let other users (e.g. the media server) read the mount")

	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		_ = serveCmd.Parse(args)
		if *serveAddr != "" {
			cfg.Addr = *serveAddr
		}
		a := newApp(cfg, log)
		defer a.close()
		srv := &server.Server{
			Addr:  cfg.Addr,
			Addon: a.svc,
			Log:   log,
		}
		go func() {
			g := a.loadGenres(ctx)
			srv.SetReady(genreCount(g))
			a.maintain(ctx, func(g *genrecache.Genres) { srv.SetReady(genreCount(g)) })
		}()
		if err := srv.Run(ctx); err != nil {
			log.Errorf("server failed: %v", err)
			a.close()
			os.Exit(1)
		}

	case "genres":
		_ = genresCmd.Parse(args)
		path := *genresPath
		if path == "" {
			path = cfg.GenreCachePath
		}
		a := newApp(cfg, log)
		defer a.close()
		g, err := genrecache.Refresh(ctx, a.site, path, time.Now(), log)
		if errors.Is(err, genrecache.ErrNoGenres) {
			log.Error("no genres parsed; is the site reachable? cache left unchanged")
			a.close()
			os.Exit(1)
		}
		if err != nil {
			log.Errorf("save genre cache: %v", err)
		}
		printJSON(g)

	case "search":
		_ = searchCmd.Parse(args)
		query := strings.TrimSpace(strings.Join(searchCmd.Args(), " "))
		if query == "" {
			fmt.Fprintf(os.Stderr, "Usage: %s search [-type movie|series] <query>\n", os.Args[0])
			os.Exit(2)
		}
		a := newApp(cfg, log)
		defer a.close()
		out := map[string][]catalog.MetaPreview{}
		for typ, id := range map[string]string{catalog.TypeMovie: addon.CatalogMovies, catalog.TypeSeries: addon.CatalogSeries} {
			if *searchType != "" && *searchType != typ {
				continue
			}
			out[typ] = a.svc.Catalog(ctx, typ, id, addon.Extra{Search: query})
		}
		printJSON(out)

	case "probe":
		_ = probeCmd.Parse(args)
		pctx, cancel := context.WithTimeout(ctx, *probeTimeout)
		defer cancel()
		failed := false
		if err := health.CheckSite(pctx, cfg.BaseURL, cfg.UserAgent); err != nil {
			log.Errorf("site %s: %v", cfg.BaseURL, err)
			failed = true
		} else {
			log.Infof("site %s OK", cfg.BaseURL)
		}
		if *probeAddon != "" {
			if err := health.CheckEndpoints(pctx, *probeAddon); err != nil {
				log.Errorf("addon %s: %v", *probeAddon, err)
				failed = true
			} else {
				log.Infof("addon %s OK", *probeAddon)
			}
		}
		if failed {
			cancel()
			os.Exit(1)
		}

	case "mount":
		_ = mountCmd.Parse(args)
		mp := *mountPoint
		if mp == "" {
			mp = cfg.MountPoint
		}
		a := newApp(cfg, log)
		defer a.close()
		a.loadGenres(ctx)
		lib := strmfs.NewLibrary(ctx, a.svc, log)
		fsrv, err := strmfs.Mount(mp, lib, *mountAllowOther)
		if err != nil {
			log.Errorf("mount %s: %v", mp, err)
			a.close()
			os.Exit(1)
		}
		log.Infof("mounted %d movies, %d shows at %s", len(lib.Movies), len(lib.Series), mp)
		go func() {
			<-ctx.Done()
			if err := fsrv.Unmount(); err != nil {
				log.Warnf("unmount %s: %v", mp, err)
			}
		}()
		fsrv.Wait()

	case "help", "-h", "--help":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", cmd)
		usage()
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
