package cli

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/docchat/pkg/adapter"
	"github.com/m-mizutani/docchat/pkg/repository"
	"github.com/m-mizutani/docchat/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const defaultConfigStore = "file://" + repository.DefaultFilePath

// config holds configuration values
type config struct {
	// Gateway
	geminiAPIKey       string
	geminiModel        string
	geminiPollInterval time.Duration

	// Persistence of the active store
	configStore string

	// Logging
	logLevel  string
	logFormat string
}

// geminiFlags returns flags for the File Search gateway
func geminiFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model used for answers and suggested questions",
			Value:       adapter.DefaultGenerativeModel,
			Sources:     cli.EnvVars("DOCCHAT_GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.DurationFlag{
			Name:        "gemini-poll-interval",
			Usage:       "Interval to poll a document ingestion operation",
			Value:       adapter.DefaultPollInterval,
			Sources:     cli.EnvVars("DOCCHAT_GEMINI_POLL_INTERVAL"),
			Destination: &cfg.geminiPollInterval,
		},
	}
}

// storeFlags returns flags selecting where the active store name is persisted
func storeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config-store",
			Aliases:     []string{"s"},
			Usage:       "Where to persist the active store: file://PATH, http(s)://ENDPOINT, firestore://PROJECT/DATABASE, gs://BUCKET/OBJECT or redis://HOST:PORT/DB?key=KEY",
			Value:       defaultConfigStore,
			Sources:     cli.EnvVars("DOCCHAT_CONFIG_STORE"),
			Destination: &cfg.configStore,
		},
	}
}

// logFlags returns flags for logging
func logFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "warn",
			Sources:     cli.EnvVars("DOCCHAT_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       string(logging.FormatConsole),
			Sources:     cli.EnvVars("DOCCHAT_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

func allFlags(cfg *config) []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, geminiFlags(cfg)...)
	flags = append(flags, storeFlags(cfg)...)
	flags = append(flags, logFlags(cfg)...)
	return flags
}

// newLogger configures the default logger and attaches it to ctx
func (cfg *config) newLogger(ctx context.Context, w io.Writer) (context.Context, error) {
	level, err := logging.ParseLevel(cfg.logLevel)
	if err != nil {
		return ctx, err
	}
	format, err := logging.ParseFormat(cfg.logFormat)
	if err != nil {
		return ctx, err
	}

	logger := logging.New(level, format, w)
	logging.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

// newGemini creates the gateway. A missing key is not an error here: the
// session reports it as a credential problem instead.
func (cfg *config) newGemini() *adapter.GeminiClient {
	var opts []adapter.GeminiOption
	if cfg.geminiModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.geminiModel))
	}
	if cfg.geminiPollInterval > 0 {
		opts = append(opts, adapter.WithPollInterval(cfg.geminiPollInterval))
	}
	return adapter.NewGemini(cfg.geminiAPIKey, opts...)
}

// configStoreURI is a parsed --config-store value
type configStoreURI struct {
	scheme string

	// file, http(s)
	path string
	// firestore
	project  string
	database string
	// gs
	bucket string
	object string
	// redis
	redisURL string
	key      string
}

func parseConfigStore(raw string) (*configStoreURI, error) {
	if raw == "" {
		raw = defaultConfigStore
	}
	if !strings.Contains(raw, "://") {
		return &configStoreURI{scheme: "file", path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid config store", goerr.V("config_store", raw))
	}

	switch u.Scheme {
	case "file":
		path := u.Host + u.Path
		if path == "" {
			return nil, goerr.New("file path is required", goerr.V("config_store", raw))
		}
		return &configStoreURI{scheme: "file", path: path}, nil

	case "http", "https":
		return &configStoreURI{scheme: u.Scheme, path: raw}, nil

	case "firestore":
		if u.Host == "" {
			return nil, goerr.New("firestore project is required", goerr.V("config_store", raw))
		}
		return &configStoreURI{
			scheme:   "firestore",
			project:  u.Host,
			database: strings.Trim(u.Path, "/"),
		}, nil

	case "gs":
		if u.Host == "" {
			return nil, goerr.New("bucket is required", goerr.V("config_store", raw))
		}
		return &configStoreURI{
			scheme: "gs",
			bucket: u.Host,
			object: strings.TrimPrefix(u.Path, "/"),
		}, nil

	case "redis", "rediss":
		q := u.Query()
		key := q.Get("key")
		q.Del("key")
		u.RawQuery = q.Encode()
		return &configStoreURI{
			scheme:   u.Scheme,
			redisURL: u.String(),
			key:      key,
		}, nil

	default:
		return nil, goerr.New("unsupported config store scheme", goerr.V("scheme", u.Scheme))
	}
}

// newConfigStore creates the repository selected by --config-store. The
// returned function releases its connection.
func (cfg *config) newConfigStore(ctx context.Context) (repository.Repository, func(), error) {
	nop := func() {}

	uri, err := parseConfigStore(cfg.configStore)
	if err != nil {
		return nil, nop, err
	}

	switch uri.scheme {
	case "file":
		return repository.NewFile(uri.path), nop, nil

	case "http", "https":
		return adapter.NewConfigClient(uri.path), nop, nil

	case "firestore":
		repo, err := repository.NewFirestore(ctx, uri.project, uri.database)
		if err != nil {
			return nil, nop, goerr.Wrap(err, "failed to create firestore config store")
		}
		return repo, closer(ctx, repo), nil

	case "gs":
		st, err := adapter.NewStorage(ctx, uri.bucket)
		if err != nil {
			return nil, nop, goerr.Wrap(err, "failed to create storage config store")
		}
		return repository.NewStorage(st, uri.object), nop, nil

	default:
		repo, err := repository.NewRedis(ctx, uri.redisURL, uri.key)
		if err != nil {
			return nil, nop, goerr.Wrap(err, "failed to create redis config store")
		}
		return repo, closer(ctx, repo), nil
	}
}

func closer(ctx context.Context, c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			logging.From(ctx).Warn("failed to close config store", "error", err)
		}
	}
}
