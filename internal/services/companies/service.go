package companies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"wastemetrics/internal/domain"
	"wastemetrics/internal/ports"
)

var (
	ErrNotFound     = errors.New("company not found")
	ErrInvalidInput = errors.New("invalid company")
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type Service struct {
	repo   ports.CompanyRepository
	cache  ports.DirectoryInvalidator
	logger *slog.Logger
}

// New builds the directory service. cache may be nil when no directory cache
// is configured.
func New(repo ports.CompanyRepository, cache ports.DirectoryInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

func (s *Service) List(ctx context.Context, f ports.CompanyFilter) ([]domain.Company, error) {
	switch {
	case f.Limit <= 0:
		f.Limit = defaultLimit
	case f.Limit > maxLimit:
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Search = strings.TrimSpace(f.Search)
	out, err := s.repo.ListCompanies(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	if out == nil {
		out = []domain.Company{}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Company, error) {
	c, err := s.repo.GetCompany(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		return domain.Company{}, ErrNotFound
	}
	if err != nil {
		return domain.Company{}, fmt.Errorf("get company %s: %w", id, err)
	}
	return c, nil
}

// Upsert validates c, creates or replaces it and drops its cached entry.
// An empty ID creates a new company.
func (s *Service) Upsert(ctx context.Context, c domain.Company) (domain.Company, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Sector = strings.TrimSpace(c.Sector)
	c.Country = strings.TrimSpace(c.Country)
	if c.Name == "" {
		return domain.Company{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := validateCoordinates(c.Latitude, c.Longitude); err != nil {
		return domain.Company{}, err
	}
	if c.Website != "" {
		website, err := NormalizeWebsite(c.Website)
		if err != nil {
			return domain.Company{}, err
		}
		c.Website = website
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	saved, err := s.repo.UpsertCompany(ctx, c)
	if err != nil {
		return domain.Company{}, fmt.Errorf("upsert company %s: %w", c.ID, err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, saved.ID); err != nil {
			s.logger.Warn("directory cache invalidation failed", "company_id", saved.ID, "error", err)
		}
	}
	return saved, nil
}

func validateCoordinates(lat, lon *float64) error {
	if (lat == nil) != (lon == nil) {
		return fmt.Errorf("%w: latitude and longitude must be set together", ErrInvalidInput)
	}
	if lat == nil {
		return nil
	}
	if *lat < -90 || *lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidInput, *lat)
	}
	if *lon < -180 || *lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidInput, *lon)
	}
	return nil
}

// NormalizeWebsite lowercases the host, defaults the scheme to https and
// drops a leading "www.". The host must sit under a public suffix.
func NormalizeWebsite(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: website: %v", ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: website scheme %q", ErrInvalidInput, u.Scheme)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if _, err := publicsuffix.EffectiveTLDPlusOne(host); err != nil {
		return "", fmt.Errorf("%w: website host %q", ErrInvalidInput, host)
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	return u.Scheme + "://" + host + strings.TrimSuffix(u.EscapedPath(), "/"), nil
}
