// Package scanner enqueues scans and reports their status.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"beacon/internal/domain"
	"beacon/internal/ports"
)

var ErrInvalidURL = errors.New("scanner: url must be an absolute http(s) url")

// Plans resolves a tier name to its plan, falling back to a default tier.
type Plans interface {
	Plan(name string) domain.Plan
}

type Service struct {
	domains ports.DomainRepository
	scans   ports.ScanRepository
	plans   Plans
}

func New(domains ports.DomainRepository, scans ports.ScanRepository, plans Plans) *Service {
	return &Service{domains: domains, scans: scans, plans: plans}
}

// Enqueue registers the scan's domain and queues a scan job for it. A bare
// host is accepted and given an https scheme.
func (s *Service) Enqueue(ctx context.Context, rawurl string, form *domain.FormInput, plan string) (string, error) {
	rawurl = strings.TrimSpace(rawurl)
	if rawurl != "" && !strings.Contains(rawurl, "://") {
		rawurl = "https://" + rawurl
	}
	u, err := url.Parse(rawurl)
	if err != nil || u.Hostname() == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidURL
	}
	registrable := domain.Registrable(u.String())
	if registrable == "" {
		return "", ErrInvalidURL
	}

	domainID, err := s.domains.GetOrCreate(ctx, registrable)
	if err != nil {
		return "", fmt.Errorf("register domain: %w", err)
	}
	resolved := s.plans.Plan(plan)
	scanID, err := s.scans.Create(ctx, domainID, u.String(), form, resolved.Name)
	if err != nil {
		return "", fmt.Errorf("create scan: %w", err)
	}
	return scanID, nil
}

func (s *Service) Status(ctx context.Context, scanID string) (string, float64, error) {
	return s.scans.Status(ctx, scanID)
}

// Get returns the full scan row.
func (s *Service) Get(ctx context.Context, scanID string) (domain.Scan, error) {
	return s.scans.Get(ctx, scanID)
}
