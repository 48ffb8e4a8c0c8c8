package container

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"edupulse/adapters/excel"
	"edupulse/adapters/identity"
	"edupulse/adapters/modelstore"
	"edupulse/adapters/postgres"
	"edupulse/adapters/rng"
	"edupulse/domain/core"
	"edupulse/internal"
	"edupulse/internal/analytics/cluster"
	"edupulse/internal/analytics/features"
	"edupulse/internal/analytics/patterns"
	"edupulse/internal/analytics/recommend"
	"edupulse/internal/analytics/risk"
	"edupulse/internal/analytics/session"
	"edupulse/internal/config"
	"edupulse/internal/testkit"
	"edupulse/ports"
)

// demoBatchSize is the synthetic roster size used when neither a database
// nor a roster file is configured.
const demoBatchSize = 30

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Collaborators
	Provider ports.RecordProvider
	Store    ports.ModelStore
	IDGen    ports.IDGenerator
	RNG      ports.RNGPort

	// Engine components
	Extractor   *features.Extractor
	Risk        *risk.Predictor
	Clusters    *cluster.Analyzer
	Patterns    *patterns.Detector
	Recommender *recommend.Engine
	Session     *session.Session
}

// New wires the full dependency graph from configuration. Record source
// selection: database when DATABASE_URL is set, roster workbook when
// ROSTER_FILE is set, synthetic demo data otherwise.
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		Logger: internal.NewDefaultLogger(),
	}

	if err := c.initProvider(); err != nil {
		return nil, fmt.Errorf("failed to initialize record provider: %w", err)
	}
	c.initEngine()
	return c, nil
}

func (c *Container) initProvider() error {
	switch {
	case c.Config.Database.URL != "":
		db, err := sqlx.Connect("postgres", c.Config.Database.URL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		c.DB = db
		c.Provider = postgres.NewRecordProvider(db)
		c.Logger.Info("record provider: postgres")
	case c.Config.Paths.RosterFile != "":
		c.Provider = excel.NewRosterProvider(c.Config.Paths.RosterFile)
		c.Logger.Info("record provider: roster workbook %s", c.Config.Paths.RosterFile)
	default:
		kit := testkit.NewTestKit(c.Config.Seed)
		c.Provider = testkit.NewInMemoryProvider(kit.GenerateBatch(demoBatchSize))
		c.Logger.Info("record provider: synthetic demo batch of %d students", demoBatchSize)
	}
	return nil
}

func (c *Container) initEngine() {
	c.Store = modelstore.NewFSStore(c.Config.Paths.ModelStoreDir)
	c.IDGen = identity.NewUUIDGenerator()
	c.RNG = rng.NewSeededSource(c.Config.Seed)

	c.Extractor = features.NewExtractor()
	c.Risk = risk.NewPredictor(c.Extractor, c.RNG, c.Logger)
	c.Clusters = cluster.NewAnalyzer(c.Extractor, c.RNG, c.Logger)
	c.Patterns = patterns.NewDetector(c.IDGen)
	c.Recommender = recommend.NewEngine(c.Extractor)

	c.Session = session.New(session.Deps{
		Risk:        c.Risk,
		Clusters:    c.Clusters,
		Patterns:    c.Patterns,
		Recommender: c.Recommender,
		IDGen:       c.IDGen,
		Store:       c.Store,
		ModelID:     core.ModelID("default"),
		Logger:      c.Logger,
	})
}

// Close releases held resources.
func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
