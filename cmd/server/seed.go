package main

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soaringjerry/surveyform/internal/api"
	"github.com/soaringjerry/surveyform/internal/models"
)

// fixture is the YAML layout accepted by the seed command.
type fixture struct {
	Surveys []fixtureSurvey `yaml:"surveys"`
}

type fixtureSurvey struct {
	models.Survey `yaml:",inline"`
	Categories    []*models.Category `yaml:"categories"`
	Questions     []*models.Question `yaml:"questions"`
}

func loadFixture(path string) (*fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return &f, nil
}

func (f *fixture) validate() error {
	types := models.AnswerTypes()
	for _, sv := range f.Surveys {
		if sv.Name == "" {
			return fmt.Errorf("survey %d: name is required", sv.ID)
		}
		switch sv.DisplayMethod {
		case "", models.AllInOnePage, models.ByCategory, models.ByQuestion:
		default:
			return fmt.Errorf("survey %q: unknown display_method %q", sv.Name, sv.DisplayMethod)
		}
		cats := map[int64]bool{}
		for _, c := range sv.Categories {
			cats[c.ID] = true
		}
		for _, q := range sv.Questions {
			if q.CategoryID != nil && !cats[*q.CategoryID] {
				return fmt.Errorf("survey %q question %q: unknown category %d", sv.Name, q.Text, *q.CategoryID)
			}
			if len(q.AnswerGroups) == 0 {
				return fmt.Errorf("survey %q question %q: no answer groups", sv.Name, q.Text)
			}
			for _, ag := range q.AnswerGroups {
				if !slices.Contains(types, ag.Type) {
					return fmt.Errorf("survey %q question %q: unknown answer type %q", sv.Name, q.Text, ag.Type)
				}
			}
		}
	}
	return nil
}

type seedStats struct {
	Surveys, Categories, Questions int
}

// apply writes every survey of the fixture. Category ids referenced by
// questions must be the fixture's own ids.
func (f *fixture) apply(ctx context.Context, store api.Store) (seedStats, error) {
	var stats seedStats
	for i := range f.Surveys {
		sv := f.Surveys[i]
		survey := sv.Survey
		if err := store.AddSurvey(ctx, &survey); err != nil {
			return stats, fmt.Errorf("add survey %q: %w", sv.Name, err)
		}
		stats.Surveys++
		for _, c := range sv.Categories {
			c.SurveyID = survey.ID
			if err := store.AddCategory(ctx, c); err != nil {
				return stats, fmt.Errorf("add category %q: %w", c.Name, err)
			}
			stats.Categories++
		}
		for _, q := range sv.Questions {
			q.SurveyID = survey.ID
			if err := store.AddQuestion(ctx, q); err != nil {
				return stats, fmt.Errorf("add question %q: %w", q.Text, err)
			}
			stats.Questions++
		}
	}
	return stats, nil
}

func newSeedCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed FIXTURE",
		Short: "Load survey definitions from a YAML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			if cfg.Store.Driver == "memory" {
				return fmt.Errorf("seeding the memory store has no lasting effect; configure sqlite or postgres")
			}
			f, err := loadFixture(args[0])
			if err != nil {
				return err
			}
			be, err := openBackend(cmd.Context(), cfg.Store, logger)
			if err != nil {
				return err
			}
			defer be.close()
			stats, err := f.apply(cmd.Context(), be.store)
			if err != nil {
				return err
			}
			logger.Info("fixture loaded", "surveys", stats.Surveys, "categories", stats.Categories, "questions", stats.Questions)
			return nil
		},
	}
}
