package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"gymgate/internal/config"
	"gymgate/internal/db"
	"gymgate/internal/domain"
	"gymgate/internal/engine"
	"gymgate/internal/identity"
	"gymgate/internal/migrate"
	"gymgate/internal/repo"
)

// App wires the workspace database, config, engine and identity resolver.
// Shared by the CLI and the serve command.
type App struct {
	DB       *sql.DB
	Config   *config.Config
	Repo     repo.Repo
	Engine   engine.Engine
	Identity identity.Resolver
}

// Open opens the workspace, runs migrations, loads config (seeding a
// default one in memory when the file is absent) and ensures the
// configured discipline and plan catalog exists.
func Open(ctx context.Context, workspace string) (*App, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default("main")
	}
	a := &App{
		DB:     conn,
		Config: cfg,
		Repo:   repo.Repo{DB: conn},
		Engine: engine.New(conn, cfg),
		Identity: identity.Resolver{
			Repo:   repo.Repo{DB: conn},
			Secret: cfg.Tokens.MemberSecret,
		},
	}
	if err := a.seedCatalog(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

func (a *App) seedCatalog(ctx context.Context) error {
	byName := map[string]domain.Discipline{}
	for name, seed := range a.Config.Disciplines {
		d, err := a.Repo.EnsureDiscipline(ctx, domain.Discipline{
			ID:                  uuid.New().String(),
			Name:                name,
			RequiresReservation: seed.RequiresReservation,
		})
		if err != nil {
			return fmt.Errorf("seed discipline %s: %w", name, err)
		}
		byName[name] = d
	}
	for name, seed := range a.Config.Plans {
		d, ok := byName[seed.Discipline]
		if !ok {
			var err error
			d, err = a.Repo.GetDisciplineByName(ctx, seed.Discipline)
			if err != nil {
				return fmt.Errorf("plan %s: discipline %s: %w", name, seed.Discipline, err)
			}
		}
		p := domain.Plan{
			ID:           uuid.New().String(),
			Name:         name,
			DisciplineID: d.ID,
			ValidDays:    seed.ValidDays,
		}
		if seed.Credits > 0 {
			credits := seed.Credits
			p.Credits = &credits
		}
		if _, err := a.Repo.EnsurePlan(ctx, p); err != nil {
			return fmt.Errorf("seed plan %s: %w", name, err)
		}
	}
	return nil
}
