package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/sentinel/internal/conf"
	datastore "github.com/tphakala/sentinel/internal/datastore/v2"
	"github.com/tphakala/sentinel/internal/logger"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			log, closer := newLogger(settings.Logging)
			defer func() { _ = closer.Close() }()

			store, err := openStore(settings.Database, log)
			if err != nil {
				return err
			}
			return store.Close()
		},
	}
}

// openStore connects to the configured database and migrates the schema.
func openStore(s conf.DatabaseSettings, log logger.Logger) (datastore.Manager, error) {
	store, err := datastore.NewManager(s.Type, datastore.Config{
		Path:  s.Path,
		DSN:   s.DSN,
		Debug: s.Debug,
	})
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(); err != nil {
		_ = store.Close()
		return nil, err
	}
	log.Info("database ready", logger.String("dialect", store.Dialect()))
	return store, nil
}
