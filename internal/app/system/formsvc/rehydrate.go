package formsvc

import (
	"context"

	"github.com/dalemusser/formhub/internal/domain/models"
	"go.uber.org/zap"
)

// Rehydrate re-attaches every stored form version to its existing record
// store. It runs once at startup, before requests are served, and returns
// the number of versions bound.
//
// A snapshot that no longer compiles is skipped with a warning rather than
// failing startup; its records stay in place but cannot be reached until
// the form is edited or deleted.
func (s *Service) Rehydrate(ctx context.Context) (int, error) {
	bound := 0
	err := s.forms.Each(ctx, func(f models.Form) error {
		versions, err := s.forms.Versions(ctx, f.ID)
		if err != nil {
			return err
		}
		for _, v := range versions {
			if v.Version > f.Version {
				continue
			}
			desc, mutable, err := Compile(v.Fields)
			if err != nil {
				s.log.Warn("skipping form version that no longer compiles",
					zap.String("form_id", f.ID.Hex()),
					zap.Int("version", v.Version),
					zap.Error(err))
				continue
			}
			if _, err := s.reg.Restore(ctx, f.ID, v.Version, desc, mutable); err != nil {
				return err
			}
			bound++
		}
		return nil
	})
	s.metrics.SetBindings(s.reg.Len())
	if err != nil {
		return bound, err
	}
	s.log.Info("form versions rehydrated", zap.Int("bindings", bound))
	return bound, nil
}
