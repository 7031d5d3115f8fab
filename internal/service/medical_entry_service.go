package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"vita-chat/internal/model"
	"vita-chat/internal/transport"
)

// MedicalEntryService is the admin console for the documents the assistant
// cites.
type MedicalEntryService struct {
	client *transport.Client
}

func NewMedicalEntryService(client *transport.Client) *MedicalEntryService {
	return &MedicalEntryService{client: client}
}

func entryPath(id string) string {
	return "/medicalentry/" + url.PathEscape(id)
}

func (s *MedicalEntryService) List(ctx context.Context) ([]model.MedicalEntry, error) {
	var entries []model.MedicalEntry
	if err := s.client.JSON(ctx, http.MethodGet, "/medicalentry", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *MedicalEntryService) Get(ctx context.Context, id string) (*model.MedicalEntry, error) {
	var entry model.MedicalEntry
	if err := s.client.JSON(ctx, http.MethodGet, entryPath(id), nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *MedicalEntryService) Create(ctx context.Context, in model.MedicalEntryInput) (*model.MedicalEntry, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || strings.TrimSpace(in.Content) == "" {
		return nil, errors.New("title and content are required")
	}

	var entry model.MedicalEntry
	if err := s.client.JSON(ctx, http.MethodPost, "/medicalentry", in, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Scrape asks the backend to extract an entry from a web page. The result
// is a draft; nothing is stored until Create is called with it.
func (s *MedicalEntryService) Scrape(ctx context.Context, rawURL string) (*model.ScrapeResult, error) {
	u, err := url.ParseRequestURI(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.New("a valid http(s) url is required")
	}

	var result model.ScrapeResult
	if err := s.client.JSON(ctx, http.MethodPost, "/medicalentry/scrape", model.ScrapeRequest{URL: u.String()}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *MedicalEntryService) Update(ctx context.Context, id string, in model.MedicalEntryInput) (*model.MedicalEntry, error) {
	var entry model.MedicalEntry
	if err := s.client.JSON(ctx, http.MethodPut, entryPath(id), in, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SetPublished publishes or unpublishes id without touching its content.
func (s *MedicalEntryService) SetPublished(ctx context.Context, id string, published bool) (*model.MedicalEntry, error) {
	return s.Update(ctx, id, model.MedicalEntryInput{Published: &published})
}

func (s *MedicalEntryService) Delete(ctx context.Context, id string) error {
	return s.client.JSON(ctx, http.MethodDelete, entryPath(id), nil, nil)
}
