package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"swifthand/api/internal/rbac"
	"swifthand/api/internal/search"
	"swifthand/api/internal/storage"
	"swifthand/api/internal/store"
	"swifthand/api/internal/util"
	"swifthand/api/internal/validate"
)

type ServiceInput struct {
	Title             string          `json:"title" validate:"required,max=200"`
	Description       string          `json:"description" validate:"required"`
	Category          string          `json:"category" validate:"required,max=120"`
	Price             decimal.Decimal `json:"price"`
	ProviderID        string          `json:"provider"`
	ChecklistTemplate json.RawMessage `json:"checklistTemplate"`
	OnSale            bool            `json:"onSale"`
	SaleEndDate       *time.Time      `json:"saleEndDate"`

	// A nil list leaves the stored one untouched on update; an empty list clears it.
	FleetDocs []store.FleetDoc      `json:"fleetDocs"`
	Portfolio []store.PortfolioItem `json:"portfolio"`
}

func (in *ServiceInput) check() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	fields := validate.FieldErrors{}
	if err := validate.Struct(*in); err != nil {
		var verrs validate.FieldErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fields = verrs
	}
	if in.Price.IsNegative() {
		fields["price"] = "must be zero or more"
	}
	if len(in.ChecklistTemplate) > 0 && !json.Valid(in.ChecklistTemplate) {
		fields["checklistTemplate"] = "must be valid JSON"
	}
	if in.FleetDocs != nil {
		in.FleetDocs = normalizeFleetDocs(in.FleetDocs)
		if len(in.FleetDocs) > store.MaxFleetDocs {
			fields["fleetDocs"] = fmt.Sprintf("at most %d documents", store.MaxFleetDocs)
		}
	}
	if in.Portfolio != nil {
		in.Portfolio = normalizePortfolio(in.Portfolio)
		if len(in.Portfolio) > store.MaxPortfolioItems {
			fields["portfolio"] = fmt.Sprintf("at most %d projects", store.MaxPortfolioItems)
		}
	}
	if len(fields) > 0 {
		return validationError("Service details are invalid", fields)
	}
	return nil
}

// normalizeFleetDocs drops blank entries and fills the default names and
// categories the service editor uses.
func normalizeFleetDocs(docs []store.FleetDoc) []store.FleetDoc {
	out := make([]store.FleetDoc, 0, len(docs))
	for _, doc := range docs {
		doc.Name = strings.TrimSpace(doc.Name)
		doc.URL = strings.TrimSpace(doc.URL)
		if doc.Name == "" && doc.URL == "" {
			continue
		}
		out = append(out, normalizeFleetDoc(doc, len(out)+1))
	}
	return out
}

func normalizeFleetDoc(doc store.FleetDoc, position int) store.FleetDoc {
	doc.Name = strings.TrimSpace(doc.Name)
	if doc.Name == "" {
		doc.Name = fmt.Sprintf("Document %d", position)
	}
	items := make([]store.FleetDocItem, 0, len(doc.Checklist))
	for _, item := range doc.Checklist {
		item.Item = strings.TrimSpace(item.Item)
		if item.Item == "" {
			continue
		}
		item.Category = strings.TrimSpace(item.Category)
		if item.Category == "" {
			item.Category = "General"
		}
		items = append(items, item)
	}
	doc.Checklist = items
	return doc
}

func normalizePortfolio(items []store.PortfolioItem) []store.PortfolioItem {
	out := make([]store.PortfolioItem, 0, len(items))
	for _, item := range items {
		item.Title = strings.TrimSpace(item.Title)
		item.ImageURL = strings.TrimSpace(item.ImageURL)
		if item.Title == "" && item.ImageURL == "" {
			continue
		}
		out = append(out, normalizePortfolioItem(item, len(out)+1))
	}
	return out
}

func normalizePortfolioItem(item store.PortfolioItem, position int) store.PortfolioItem {
	item.Title = strings.TrimSpace(item.Title)
	item.Description = strings.TrimSpace(item.Description)
	if item.Title == "" {
		item.Title = fmt.Sprintf("Project %d", position)
	}
	return item
}

func servicePayload(service store.Service) map[string]any {
	template := service.ChecklistTemplate
	if len(template) == 0 {
		template = json.RawMessage("null")
	}
	fleetDocs := service.FleetDocs
	if fleetDocs == nil {
		fleetDocs = []store.FleetDoc{}
	}
	portfolio := service.Portfolio
	if portfolio == nil {
		portfolio = []store.PortfolioItem{}
	}
	return map[string]any{
		"id":                service.ID,
		"title":             service.Title,
		"description":       service.Description,
		"category":          service.Category,
		"provider":          service.ProviderID,
		"price":             service.Price.StringFixed(2),
		"imageUrl":          service.ImageURL,
		"checklistTemplate": template,
		"onSale":            service.OnSale,
		"saleEndDate":       service.SaleEndDate,
		"fleetDocs":         fleetDocs,
		"portfolio":         portfolio,
		"createdAt":         service.CreatedAt,
	}
}

func servicePayloads(services []store.Service) []map[string]any {
	items := make([]map[string]any, 0, len(services))
	for _, service := range services {
		items = append(items, servicePayload(service))
	}
	return items
}

func searchRecord(service store.Service) search.ServiceRecord {
	return search.ServiceRecord{
		ID:          service.ID,
		Title:       service.Title,
		Description: service.Description,
		Category:    service.Category,
		Price:       service.Price.StringFixed(2),
		ProviderID:  service.ProviderID,
	}
}

func (s *Service) ListServices(ctx context.Context) ([]map[string]any, error) {
	services, err := s.store.ListServices(ctx, "")
	if err != nil {
		return nil, wrap("list services", err)
	}
	return servicePayloads(services), nil
}

func (s *Service) GetService(ctx context.Context, serviceID string) (map[string]any, error) {
	service, err := s.store.GetService(ctx, serviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("Service not found")
	}
	if err != nil {
		return nil, wrap("load service", err)
	}
	return servicePayload(service), nil
}

// CreateService stores a new listing. Providers always own what they create;
// admins may assign another provider.
func (s *Service) CreateService(ctx context.Context, caller Session, input ServiceInput) (map[string]any, error) {
	if !s.Can(caller.Role, rbac.ActionManageServices) {
		return nil, forbidden()
	}
	if err := input.check(); err != nil {
		return nil, err
	}
	providerID := caller.UserID
	if rbac.Normalize(caller.Role) == rbac.RoleAdmin && strings.TrimSpace(input.ProviderID) != "" {
		providerID = strings.TrimSpace(input.ProviderID)
	}

	service := store.Service{
		ID:                util.NewID("svc"),
		Title:             input.Title,
		Description:       input.Description,
		Category:          input.Category,
		ProviderID:        providerID,
		Price:             input.Price,
		ChecklistTemplate: input.ChecklistTemplate,
		OnSale:            input.OnSale,
		SaleEndDate:       input.SaleEndDate,
		FleetDocs:         input.FleetDocs,
		Portfolio:         input.Portfolio,
		CreatedAt:         s.now().UTC(),
	}
	if err := s.store.InsertService(ctx, service); err != nil {
		if errors.Is(err, store.ErrMissingReference) {
			return nil, validationError("Service details are invalid", map[string]string{"provider": "unknown provider"})
		}
		return nil, wrap("create service", err)
	}
	s.indexService(service)
	return servicePayload(service), nil
}

func (s *Service) UpdateService(ctx context.Context, caller Session, serviceID string, input ServiceInput) (map[string]any, error) {
	service, err := s.ownedService(ctx, caller, serviceID)
	if err != nil {
		return nil, err
	}
	if err := input.check(); err != nil {
		return nil, err
	}
	service.Title = input.Title
	service.Description = input.Description
	service.Category = input.Category
	service.Price = input.Price
	service.ChecklistTemplate = input.ChecklistTemplate
	service.OnSale = input.OnSale
	service.SaleEndDate = input.SaleEndDate
	if input.FleetDocs != nil {
		service.FleetDocs = input.FleetDocs
	}
	if input.Portfolio != nil {
		service.Portfolio = input.Portfolio
	}
	if err := s.store.UpdateService(ctx, service); err != nil {
		return nil, wrap("update service", err)
	}
	s.indexService(service)
	return servicePayload(service), nil
}

func (s *Service) DeleteService(ctx context.Context, caller Session, serviceID string) error {
	service, err := s.ownedService(ctx, caller, serviceID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteService(ctx, service.ID); err != nil {
		return wrap("delete service", err)
	}
	if s.search != nil {
		s.search.DeleteService(service.ID)
	}
	return nil
}

// UploadServiceImage stores the image in object storage and points the service at it.
func (s *Service) UploadServiceImage(ctx context.Context, caller Session, serviceID, filename string, body io.Reader, size int64) (map[string]any, error) {
	if s.uploads == nil {
		return nil, domainError(http.StatusServiceUnavailable, "UPLOADS_UNAVAILABLE", "Uploads are not configured", nil)
	}
	service, err := s.ownedService(ctx, caller, serviceID)
	if err != nil {
		return nil, err
	}
	object, err := s.uploads.Put(ctx, "image", filename, body, size)
	if err != nil {
		return nil, uploadError(err)
	}
	if err := s.store.SetServiceImage(ctx, service.ID, object.URL); err != nil {
		return nil, wrap("set service image", err)
	}
	return map[string]any{"imageUrl": object.URL, "name": object.Name}, nil
}

// AddFleetDoc uploads a vehicle document and appends it to the service's fleet documents.
func (s *Service) AddFleetDoc(ctx context.Context, caller Session, serviceID string, doc store.FleetDoc, filename string, body io.Reader, size int64) (map[string]any, error) {
	if s.uploads == nil {
		return nil, domainError(http.StatusServiceUnavailable, "UPLOADS_UNAVAILABLE", "Uploads are not configured", nil)
	}
	service, err := s.ownedService(ctx, caller, serviceID)
	if err != nil {
		return nil, err
	}
	if len(service.FleetDocs) >= store.MaxFleetDocs {
		return nil, listFull("fleet documents", store.MaxFleetDocs)
	}
	object, err := s.uploads.Put(ctx, "fleet_doc", filename, body, size)
	if err != nil {
		return nil, uploadError(err)
	}
	doc = normalizeFleetDoc(doc, len(service.FleetDocs)+1)
	doc.URL = object.URL
	if err := s.store.AppendFleetDoc(ctx, service.ID, doc); err != nil {
		s.discardUpload(ctx, object.Name)
		if errors.Is(err, store.ErrListFull) {
			return nil, listFull("fleet documents", store.MaxFleetDocs)
		}
		return nil, wrap("append fleet doc", err)
	}
	return map[string]any{"fleetDoc": doc, "name": object.Name}, nil
}

// AddPortfolioItem uploads a project image and appends the project to the service's portfolio.
func (s *Service) AddPortfolioItem(ctx context.Context, caller Session, serviceID string, item store.PortfolioItem, filename string, body io.Reader, size int64) (map[string]any, error) {
	if s.uploads == nil {
		return nil, domainError(http.StatusServiceUnavailable, "UPLOADS_UNAVAILABLE", "Uploads are not configured", nil)
	}
	service, err := s.ownedService(ctx, caller, serviceID)
	if err != nil {
		return nil, err
	}
	if len(service.Portfolio) >= store.MaxPortfolioItems {
		return nil, listFull("portfolio projects", store.MaxPortfolioItems)
	}
	if contentType, err := storage.ContentType(filename); err == nil && !strings.HasPrefix(contentType, "image/") {
		return nil, validationError("Portfolio images must be jpeg, png or gif files", nil)
	}
	object, err := s.uploads.Put(ctx, "portfolio", filename, body, size)
	if err != nil {
		return nil, uploadError(err)
	}
	item = normalizePortfolioItem(item, len(service.Portfolio)+1)
	item.ImageURL = object.URL
	if err := s.store.AppendPortfolioItem(ctx, service.ID, item); err != nil {
		s.discardUpload(ctx, object.Name)
		if errors.Is(err, store.ErrListFull) {
			return nil, listFull("portfolio projects", store.MaxPortfolioItems)
		}
		return nil, wrap("append portfolio item", err)
	}
	return map[string]any{"project": item, "name": object.Name}, nil
}

// discardUpload removes an object whose record could not be saved.
func (s *Service) discardUpload(ctx context.Context, name string) {
	if err := s.uploads.Remove(ctx, name); err != nil {
		log.Printf("discard upload %s: %v", name, err)
	}
}

func listFull(what string, limit int) error {
	return domainError(http.StatusConflict, "LIMIT_REACHED", fmt.Sprintf("A service holds at most %d %s", limit, what), nil)
}

func (s *Service) ownedService(ctx context.Context, caller Session, serviceID string) (store.Service, error) {
	if !s.Can(caller.Role, rbac.ActionManageServices) {
		return store.Service{}, forbidden()
	}
	service, err := s.store.GetService(ctx, serviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Service{}, notFound("Service not found")
	}
	if err != nil {
		return store.Service{}, wrap("load service", err)
	}
	if rbac.Normalize(caller.Role) != rbac.RoleAdmin && service.ProviderID != caller.UserID {
		return store.Service{}, forbidden()
	}
	return service, nil
}

func (s *Service) indexService(service store.Service) {
	if s.search != nil {
		s.search.IndexService(searchRecord(service))
	}
}

func uploadError(err error) error {
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		return validationError(err.Error(), nil)
	case errors.Is(err, storage.ErrTooLarge):
		return domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error(), nil)
	case errors.Is(err, storage.ErrInvalidName):
		return domainError(http.StatusBadRequest, "INVALID_NAME", err.Error(), nil)
	}
	return wrap("upload", err)
}
