package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/extract"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/store"
)

var migrateSeed bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the store schema and seed the catalog",
	Long:  "Creates the catalog and policy tables. With --seed (the default) the insurers and branches of the keyword dictionary are added when their code is missing.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		st, err := store.New(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}
		zap.L().Info("schema applied", zap.String("store", cfg.Store.Driver))

		if !migrateSeed {
			return nil
		}

		dict, err := loadDictionary(cfg.Extract.DictionaryPath)
		if err != nil {
			return err
		}
		insurers, branches := catalogFromDictionary(dict)
		n, err := st.SeedCatalog(ctx, insurers, branches)
		if err != nil {
			return eris.Wrap(err, "seed catalog")
		}

		zap.L().Info("catalog seeded", zap.Int("inserted", n))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSeed, "seed", true, "seed insurers and branches from the dictionary")
	rootCmd.AddCommand(migrateCmd)
}

func catalogFromDictionary(dict *extract.Dictionary) ([]model.Insurer, []model.Branch) {
	insurers := make([]model.Insurer, 0, len(dict.Insurers))
	for _, t := range dict.Insurers {
		insurers = append(insurers, model.Insurer{Code: t.Code, Name: t.Name})
	}
	branches := make([]model.Branch, 0, len(dict.Branches))
	for _, t := range dict.Branches {
		branches = append(branches, model.Branch{Code: t.Code, Name: t.Name})
	}
	return insurers, branches
}
