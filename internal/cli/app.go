package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/term"

	"github.com/matzehuels/shelfmark/internal/config"
	"github.com/matzehuels/shelfmark/pkg/cache"
	"github.com/matzehuels/shelfmark/pkg/dataset"
	"github.com/matzehuels/shelfmark/pkg/httputil"
	"github.com/matzehuels/shelfmark/pkg/integrations/gramedia"
	"github.com/matzehuels/shelfmark/pkg/integrations/hfhub"
	"github.com/matzehuels/shelfmark/pkg/session"
	"github.com/matzehuels/shelfmark/pkg/snapshot"
	"github.com/matzehuels/shelfmark/pkg/storage"
)

// app bundles what a command needs to load tables.
type app struct {
	manager *dataset.Manager
	remote  snapshot.Remote
	closers []func() error
}

// Close releases backend connections.
func (a *app) Close() error {
	var errs []error
	for _, fn := range a.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

// newApp wires the origin client, the tiered store and the memoizer from cfg.
func (c *CLI) newApp(ctx context.Context, cfg config.Config) (*app, error) {
	remote, closer, err := newRemote(ctx, cfg, c.Logger)
	if err != nil {
		return nil, err
	}

	asm := dataset.NewAssembler(newOrigin(cfg), dataset.AssemblerOptions{
		Descriptions:     cfg.Fetch.Descriptions,
		DescriptionLimit: cfg.Fetch.DescriptionLimit,
		CategoryLimit:    cfg.Fetch.CategoryLimit,
		Logger:           c.Logger,
	})
	store := dataset.NewStore(snapshot.NewDir(cfg.CacheDir), remote, cfg.PublishPolicy(), c.Logger)

	a := &app{manager: dataset.NewManager(store, asm), remote: remote}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	return a, nil
}

func newOrigin(cfg config.Config) *gramedia.Client {
	return gramedia.NewClient(gramedia.Options{
		APIURL:   cfg.Origin.APIURL,
		WebURL:   cfg.Origin.WebURL,
		BuildID:  cfg.Origin.BuildID,
		PageSize: cfg.Origin.PageSize,
		HTTP:     httputil.NewClient(cfg.TransportOptions()),
		Attempts: cfg.Origin.Attempts,
		Backoff:  cfg.Origin.Backoff,
	})
}

// newRemote builds the shared store selected by remote.backend. The returned
// closer is nil for backends without a connection.
func newRemote(ctx context.Context, cfg config.Config, logger *log.Logger) (snapshot.Remote, func() error, error) {
	rc := cfg.Remote
	switch rc.Backend {
	case config.BackendHub:
		hub, err := newHub(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return hub, nil, nil

	case config.BackendS3:
		bucket, err := storage.NewS3(storage.Options{
			Endpoint:  rc.S3.Endpoint,
			Region:    rc.S3.Region,
			AccessKey: rc.S3.AccessKey,
			SecretKey: rc.S3.SecretKey,
			Bucket:    rc.S3.Bucket,
			Prefix:    rc.S3.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return bucket, nil, nil

	case config.BackendRedis:
		redis, err := cache.NewRedisCache(ctx, rc.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		return snapshot.FromCache(redis), redis.Close, nil

	case config.BackendMongo:
		mc, err := cache.NewMongoCache(ctx, rc.Mongo.URI, rc.Mongo.Database, rc.Mongo.Collection)
		if err != nil {
			return nil, nil, err
		}
		return snapshot.FromCache(mc), mc.Close, nil

	case config.BackendDir:
		fc, err := cache.NewFileCache(rc.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open shared dir: %w", err)
		}
		return snapshot.FromCache(fc), nil, nil

	case config.BackendNone:
		return snapshot.None(), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown remote backend %q", rc.Backend)
}

// newHub builds the dataset repository client. Tokens are tried in order:
// configuration (HF_TOKEN), the saved session, then an interactive prompt.
func newHub(cfg config.Config, logger *log.Logger) (*hfhub.Hub, error) {
	hc := cfg.Remote.Hub
	sources := []hfhub.TokenSource{hfhub.StaticToken(hc.Token)}
	if ring, err := session.Open(""); err != nil {
		logger.Debug("session store unavailable", "err", err)
	} else {
		sources = append(sources, ring.TokenSource(hc.Endpoint))
	}
	sources = append(sources, promptToken(os.Stdin, os.Stderr))

	return hfhub.New(hfhub.Options{
		Endpoint: hc.Endpoint,
		Repo:     hc.Repo,
		Revision: hc.Revision,
		Private:  hc.Private,
		Tokens:   hfhub.FirstToken(sources...),
		HTTP:     httputil.NewClient(cfg.TransportOptions()),
		Attempts: cfg.Origin.Attempts,
		Backoff:  cfg.Origin.Backoff,
	})
}

// promptToken asks for a hub token on the terminal. Without a terminal on
// in it yields hfhub.ErrNoToken.
func promptToken(in *os.File, out io.Writer) hfhub.TokenSource {
	return func(ctx context.Context) (string, error) {
		if !term.IsTerminal(in.Fd()) {
			return "", hfhub.ErrNoToken
		}
		fmt.Fprint(out, "Hub access token (input hidden): ")
		raw, err := term.ReadPassword(in.Fd())
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return tokenOrNone(string(raw))
	}
}

// readToken reads a token from the first line of r.
func readToken(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read token: %w", err)
	}
	return tokenOrNone(line)
}

func tokenOrNone(s string) (string, error) {
	if s = strings.TrimSpace(s); s == "" {
		return "", hfhub.ErrNoToken
	}
	return s, nil
}
