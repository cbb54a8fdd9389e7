package scanner

import (
	"context"
	"errors"
	"testing"

	"beacon/internal/config"
	"beacon/internal/domain"
)

type fakeRepo struct {
	domains map[string]string
	created []created
	err     error
}

type created struct {
	domainID, url, plan string
	form                *domain.FormInput
}

func (f *fakeRepo) GetOrCreate(_ context.Context, registrable string) (string, error) {
	if f.domains == nil {
		f.domains = map[string]string{}
	}
	if id, ok := f.domains[registrable]; ok {
		return id, nil
	}
	id := "dom-" + registrable
	f.domains[registrable] = id
	return id, nil
}

func (f *fakeRepo) Create(_ context.Context, domainID, url string, form *domain.FormInput, plan string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, created{domainID: domainID, url: url, plan: plan, form: form})
	return "scan-1", nil
}

func (f *fakeRepo) Status(context.Context, string) (string, float64, error) {
	return "running", 0.35, nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (domain.Scan, error) {
	return domain.Scan{ID: id}, nil
}

func TestEnqueue(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		plan       string
		wantDomain string
		wantURL    string
		wantPlan   string
	}{
		{"full url", "https://www.acme.co.uk/pricing", "growth", "dom-acme.co.uk", "https://www.acme.co.uk/pricing", "growth"},
		{"bare host", "app.acme.io", "", "dom-acme.io", "https://app.acme.io", "starter"},
		{"unknown plan", "http://acme.io", "platinum", "dom-acme.io", "http://acme.io", "starter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			svc := New(repo, repo, config.DefaultSettings())
			form := &domain.FormInput{BrandName: "Acme"}

			id, err := svc.Enqueue(context.Background(), tt.url, form, tt.plan)
			if err != nil {
				t.Fatalf("Enqueue() error = %v", err)
			}
			if id != "scan-1" || len(repo.created) != 1 {
				t.Fatalf("Enqueue() = %q, created %v", id, repo.created)
			}
			c := repo.created[0]
			if c.domainID != tt.wantDomain || c.url != tt.wantURL || c.plan != tt.wantPlan || c.form != form {
				t.Errorf("created = %+v", c)
			}
		})
	}
}

func TestEnqueueInvalidURL(t *testing.T) {
	repo := &fakeRepo{}
	svc := New(repo, repo, config.DefaultSettings())
	for _, raw := range []string{"", "   ", "ftp://acme.io", "https://"} {
		if _, err := svc.Enqueue(context.Background(), raw, nil, ""); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("Enqueue(%q) error = %v, want ErrInvalidURL", raw, err)
		}
	}
	if len(repo.created) != 0 {
		t.Errorf("no scan should be created, got %v", repo.created)
	}
}

func TestEnqueueRepoError(t *testing.T) {
	boom := errors.New("boom")
	repo := &fakeRepo{err: boom}
	svc := New(repo, repo, config.DefaultSettings())
	if _, err := svc.Enqueue(context.Background(), "acme.io", nil, ""); !errors.Is(err, boom) {
		t.Errorf("Enqueue() error = %v, want wrapped boom", err)
	}
}
