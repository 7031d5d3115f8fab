package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vita-chat/internal/model"
	"vita-chat/internal/storage"
)

type MedicalEntryHandler struct {
	storage storage.Storage
}

func NewMedicalEntryHandler(store storage.Storage) *MedicalEntryHandler {
	return &MedicalEntryHandler{storage: store}
}

func (h *MedicalEntryHandler) List(c *gin.Context) {
	entries, err := h.storage.ListEntries()
	if err != nil {
		respondStorageError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *MedicalEntryHandler) Get(c *gin.Context) {
	entry, err := h.storage.GetEntry(c.Param("id"))
	if err != nil {
		respondStorageError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *MedicalEntryHandler) Create(c *gin.Context) {
	var req model.MedicalEntryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		respondError(c, http.StatusBadRequest, "title and content should not be empty")
		return
	}

	now := time.Now()
	entry := &model.MedicalEntry{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(req.Title),
		Content:   req.Content,
		SourceURL: req.SourceURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Published != nil {
		entry.Published = *req.Published
	}
	if err := h.storage.CreateEntry(entry); err != nil {
		respondStorageError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// Scrape returns a draft entry for the url. The stub does not fetch the page;
// the title comes from the last path segment.
func (h *MedicalEntryHandler) Scrape(c *gin.Context) {
	var req model.ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	u, err := url.ParseRequestURI(req.URL)
	if err != nil || u.Host == "" {
		respondError(c, http.StatusBadRequest, "url must be a URL address")
		return
	}

	c.JSON(http.StatusOK, model.ScrapeResult{
		Title:     titleFromPath(u),
		Content:   fmt.Sprintf("Content scraped from %s.", u.String()),
		SourceURL: u.String(),
		Message:   "Scraped successfully",
	})
}

func titleFromPath(u *url.URL) string {
	seg := path.Base(strings.TrimRight(u.Path, "/"))
	if seg == "." || seg == "/" || seg == "" {
		return u.Host
	}
	seg = strings.TrimSuffix(seg, path.Ext(seg))
	words := strings.FieldsFunc(seg, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Update applies the non-empty fields of the body; published is only changed
// when present.
func (h *MedicalEntryHandler) Update(c *gin.Context) {
	var req model.MedicalEntryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.storage.GetEntry(c.Param("id"))
	if err != nil {
		respondStorageError(c, err)
		return
	}
	if t := strings.TrimSpace(req.Title); t != "" {
		entry.Title = t
	}
	if req.Content != "" {
		entry.Content = req.Content
	}
	if req.SourceURL != "" {
		entry.SourceURL = req.SourceURL
	}
	if req.Published != nil {
		entry.Published = *req.Published
	}
	if err := h.storage.UpdateEntry(entry); err != nil {
		respondStorageError(c, err)
		return
	}

	updated, err := h.storage.GetEntry(entry.ID)
	if err != nil {
		respondStorageError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *MedicalEntryHandler) Delete(c *gin.Context) {
	if err := h.storage.DeleteEntry(c.Param("id")); err != nil {
		respondStorageError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Medical entry deleted successfully"})
}
