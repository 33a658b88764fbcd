package service

import (
	"github.com/okian/echochamber/internal/adapters/repository"
	"github.com/okian/echochamber/internal/config"
	"github.com/okian/echochamber/internal/domain/simulation"
	"github.com/okian/echochamber/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithRepository injects durable storage. An injected repository is not
// closed by Stop.
func WithRepository(repo repository.EdgeRepository) Option {
	return func(s *Service) {
		if repo != nil {
			s.repo = repo
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRand fixes the randomness behind the simulation and the weighted pick policy.
func WithRand(r simulation.RandSource) Option {
	return func(s *Service) {
		if r != nil {
			s.rand = r
		}
	}
}
