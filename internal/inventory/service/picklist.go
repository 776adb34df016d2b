package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wareflow/wareflow-backend/internal/inventory/events"
	"github.com/wareflow/wareflow-backend/internal/inventory/repository"
	"github.com/wareflow/wareflow-backend/pkg/actor"
	"github.com/wareflow/wareflow-backend/pkg/database"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/wareflow/wareflow-backend/pkg/messaging"
	"github.com/wareflow/wareflow-backend/pkg/permissions"
	"github.com/wareflow/wareflow-backend/pkg/tenant"
)

const (
	picklistSequence = "picklist"
	nameAttempts     = 5
)

// CreatePicklistRequest turns order lines into one picklist per customer.
type CreatePicklistRequest struct {
	Lines   []PicklistLine `json:"lines" validate:"required,min=1,dive"`
	UserID  *int64         `json:"user_id,omitempty" validate:"omitempty,gt=0"`
	Invoice *string        `json:"invoice,omitempty" validate:"omitempty,max=100"`
}

// PicklistLine is one requested material for one customer.
type PicklistLine struct {
	MaterialName string `json:"material_name" validate:"required"`
	CustomerName string `json:"customer_name" validate:"required"`
	Quantity     int    `json:"quantity" validate:"required,gt=0"`
}

// UpdatePicklistRequest changes status, dispatch data or issues the picklist.
type UpdatePicklistRequest struct {
	PicklistStatus *string `json:"picklist_status,omitempty" validate:"omitempty,oneof=Pending 'In Progress' Completed"`
	IsIssued       *bool   `json:"is_issued,omitempty"`
	VehicleNo      *string `json:"vehicle_no,omitempty" validate:"omitempty,max=50"`
	Invoice        *string `json:"invoice,omitempty" validate:"omitempty,max=100"`
}

// ReassignPickerRequest hands the picklist to another picker.
type ReassignPickerRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

// PicklistDetail is a picklist with its items.
type PicklistDetail struct {
	*repository.Picklist
	Items []repository.PicklistItem `json:"items"`
}

// PicklistService creates, updates, issues and deletes picklists.
type PicklistService struct {
	units     *repository.UnitRepository
	materials *repository.MaterialRepository
	customers *repository.CustomerRepository
	picklists *repository.PicklistRepository
	records   *repository.RecordRepository
	sequences *repository.SequenceRepository
	ledger    *Ledger
	publisher *events.WarehousePublisher
	settings  Settings
	logger    *logger.Logger
}

// NewPicklistService creates a new picklist service
func NewPicklistService(
	repos *Repositories,
	ledger *Ledger,
	publisher *events.WarehousePublisher,
	settings Settings,
	log *logger.Logger,
) *PicklistService {
	return &PicklistService{
		units:     repos.Units,
		materials: repos.Materials,
		customers: repos.Customers,
		picklists: repos.Picklists,
		records:   repos.Records,
		sequences: repos.Sequences,
		ledger:    ledger,
		publisher: publisher,
		settings:  settings,
		logger:    log,
	}
}

// picklistGroup collects the lines of one customer.
type picklistGroup struct {
	customer *repository.Customer
	order    []int64
	totals   map[int64]int
}

// Create resolves materials and customers by name, groups the lines per
// customer and creates one picklist per group with one item per material.
func (s *PicklistService) Create(ctx context.Context, tx database.Querier, req CreatePicklistRequest) ([]PicklistDetail, error) {
	materials, err := s.resolveMaterials(ctx, tx, req.Lines)
	if err != nil {
		return nil, err
	}

	siteID, err := picklistSite(ctx, materials)
	if err != nil {
		return nil, err
	}

	customers, err := s.resolveCustomers(ctx, tx, req.Lines, siteID)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*repository.Material, len(materials))
	for _, m := range materials {
		byID[m.ID] = m
	}

	groups, order := groupLines(req.Lines, materials, customers)
	if err := checkStock(groups, byID); err != nil {
		return nil, err
	}

	details := make([]PicklistDetail, 0, len(order))
	for _, customerID := range order {
		g := groups[customerID]
		p := &repository.Picklist{
			SiteID:         siteID,
			CustomerID:     g.customer.ID,
			UserID:         req.UserID,
			PicklistStatus: repository.PicklistPending,
			Invoice:        req.Invoice,
		}
		if err := s.insert(ctx, tx, p); err != nil {
			return nil, err
		}

		items := make([]repository.PicklistItem, 0, len(g.order))
		for _, materialID := range g.order {
			m := byID[materialID]
			item := repository.PicklistItem{
				PicklistID:          p.ID,
				MaterialID:          m.ID,
				MaterialName:        m.Name,
				MaterialDescription: m.Description,
				MaterialQuantity:    g.totals[materialID],
			}
			if err := s.picklists.CreateItem(ctx, tx, &item); err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		details = append(details, PicklistDetail{Picklist: p, Items: items})
	}

	s.logger.Info().
		Int("picklists", len(details)).
		Int64("site_id", siteID).
		Str("actor", actor.FromContext(ctx).String()).
		Msg("picklists created")

	return details, nil
}

// Get returns a picklist with its items
func (s *PicklistService) Get(ctx context.Context, q database.Querier, id int64) (*PicklistDetail, error) {
	p, err := s.picklists.GetByID(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if err := ownedBy(ctx, p.SiteID, "picklist"); err != nil {
		return nil, err
	}
	items, err := s.picklists.Items(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return &PicklistDetail{Picklist: p, Items: items}, nil
}

// Update applies a status change, dispatch data and, when asked, issues the
// picklist. Issued picklists cannot change.
func (s *PicklistService) Update(ctx context.Context, tx database.Querier, id int64, req UpdatePicklistRequest) (*PicklistDetail, error) {
	issuing := req.IsIssued != nil && *req.IsIssued
	if issuing && !actor.FromContext(ctx).Can(permissions.PicklistIssue) {
		return nil, errors.Forbidden("missing permission " + permissions.PicklistIssue)
	}

	p, err := s.lockOpen(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if req.Invoice != nil {
		p.Invoice = req.Invoice
	}
	if req.VehicleNo != nil {
		p.VehicleNo = req.VehicleNo
	}

	if req.PicklistStatus != nil && *req.PicklistStatus != p.PicklistStatus {
		if err := s.transition(ctx, tx, p, *req.PicklistStatus); err != nil {
			return nil, err
		}
	}

	if issuing {
		if err := s.issue(ctx, tx, p); err != nil {
			return nil, err
		}
	} else if err := s.picklists.Save(ctx, tx, p); err != nil {
		return nil, err
	}

	items, err := s.picklists.Items(ctx, tx, p.ID)
	if err != nil {
		return nil, err
	}
	return &PicklistDetail{Picklist: p, Items: items}, nil
}

// Issue dispatches every unit picked for the picklist.
func (s *PicklistService) Issue(ctx context.Context, tx database.Querier, id int64, vehicleNo string) (*PicklistDetail, error) {
	issued := true
	return s.Update(ctx, tx, id, UpdatePicklistRequest{IsIssued: &issued, VehicleNo: &vehicleNo})
}

// Delete unwinds the picklist: picked units are released and the
// picklist, its items and links are soft-deleted.
func (s *PicklistService) Delete(ctx context.Context, tx database.Querier, id int64) error {
	p, err := s.picklists.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := ownedBy(ctx, p.SiteID, "picklist"); err != nil {
		return err
	}
	if p.IsIssued {
		return errors.BusinessRule("issued picklists cannot be deleted")
	}

	released, err := s.units.ClearPicksByPicklist(ctx, tx, p.ID)
	if err != nil {
		return err
	}
	if err := s.picklists.SoftDelete(ctx, tx, p.ID); err != nil {
		return err
	}

	s.logger.Info().
		Int64("picklist_id", p.ID).
		Str("name", p.Name).
		Int64("released_units", released).
		Msg("picklist deleted")
	return nil
}

// ReassignPicker records the hand-over and sets the new picker.
func (s *PicklistService) ReassignPicker(ctx context.Context, tx database.Querier, id int64, req ReassignPickerRequest) (*repository.PickerChange, error) {
	p, err := s.lockOpen(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != nil && *p.UserID == req.UserID {
		return nil, errors.BusinessRule("picker is already assigned to this picklist")
	}

	change := &repository.PickerChange{
		PicklistID:       p.ID,
		PreviousPickerID: p.UserID,
		CurrentPickerID:  req.UserID,
	}
	if err := s.records.CreatePickerChange(ctx, tx, change); err != nil {
		return nil, err
	}

	p.UserID = &req.UserID
	if err := s.picklists.Save(ctx, tx, p); err != nil {
		return nil, err
	}
	return change, nil
}

func (s *PicklistService) lockOpen(ctx context.Context, tx database.Querier, id int64) (*repository.Picklist, error) {
	p, err := s.picklists.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := ownedBy(ctx, p.SiteID, "picklist"); err != nil {
		return nil, err
	}
	if p.IsIssued {
		return nil, errors.BusinessRule("picklist already issued")
	}
	return p, nil
}

func (s *PicklistService) transition(ctx context.Context, tx database.Querier, p *repository.Picklist, status string) error {
	now := time.Now()
	name := actor.FromContext(ctx).Name()

	switch status {
	case repository.PicklistPending:
		p.PicklistStatus = status

	case repository.PicklistInProgress:
		p.PicklistStatus = status
		if p.StartedAt == nil {
			p.StartedAt = &now
			p.StartedBy = &name
		}

	case repository.PicklistCompleted:
		picked, err := s.picklists.PickedCount(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if picked == 0 {
			return errors.BusinessRule("cannot complete a picklist with no picked units")
		}
		items, err := s.picklists.Items(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		p.IsPartial = PicklistStatus(items) != repository.PicklistCompleted
		p.PicklistStatus = status
		p.CompletedAt = &now
		p.CompletedBy = &name

		s.publisher.PicklistCompleted(ctx, messaging.PicklistCompletedEvent{
			SiteID:     p.SiteID,
			PicklistID: p.ID,
			Name:       p.Name,
			IsPartial:  p.IsPartial,
		})

	default:
		return errors.Validation(map[string]string{
			"picklist_status": "must be one of: Pending, In Progress, Completed",
		})
	}
	return nil
}

// issue marks the linked units dispatched, takes them out of stock and off
// their shelves, and closes the picklist for good.
func (s *PicklistService) issue(ctx context.Context, tx database.Querier, p *repository.Picklist) error {
	if p.VehicleNo == nil || strings.TrimSpace(*p.VehicleNo) == "" {
		return errors.Validation(map[string]string{"vehicle_no": "is required to issue a picklist"})
	}

	dispatched, err := s.units.DispatchByPicklist(ctx, tx, p.ID)
	if err != nil {
		return err
	}
	if len(dispatched) == 0 {
		return errors.NotFound("picked units")
	}

	stock, loads := DispatchDeltas(dispatched)
	if err := s.ledger.AdjustStock(ctx, tx, stock); err != nil {
		return err
	}
	if err := s.ledger.ReleaseShelves(ctx, tx, loads); err != nil {
		return err
	}

	now := time.Now()
	name := actor.FromContext(ctx).Name()
	p.IsIssued = true
	p.IssueDate = &now
	p.IssueBy = &name
	if err := s.picklists.Save(ctx, tx, p); err != nil {
		return err
	}

	items, err := s.picklists.Items(ctx, tx, p.ID)
	if err != nil {
		return err
	}
	names := make(map[int64]string, len(items))
	for _, it := range items {
		names[it.MaterialID] = it.MaterialName
	}
	perMaterial := make(map[string]int64, len(stock))
	for materialID, delta := range stock {
		perMaterial[names[materialID]] = -delta
	}

	event := messaging.PicklistIssuedEvent{
		SiteID:     p.SiteID,
		PicklistID: p.ID,
		Name:       p.Name,
		VehicleNo:  *p.VehicleNo,
		Units:      len(dispatched),
		Materials:  perMaterial,
		IssuedBy:   name,
	}
	if p.Invoice != nil {
		event.Invoice = *p.Invoice
	}
	s.publisher.PicklistIssued(ctx, event)

	s.logger.Info().
		Int64("picklist_id", p.ID).
		Str("name", p.Name).
		Int("units", len(dispatched)).
		Msg("picklist issued")
	return nil
}

// insert names and stores the picklist. The name comes from an atomic
// counter; a unique violation (a name taken outside the counter) is retried
// with the next value.
func (s *PicklistService) insert(ctx context.Context, tx database.Querier, p *repository.Picklist) error {
	for attempt := 0; attempt < nameAttempts; attempt++ {
		n, err := s.sequences.Next(ctx, tx, picklistSequence)
		if err != nil {
			return err
		}
		p.Name = FormatPicklistName(s.settings.PicklistPrefix, s.settings.PicklistDigits, n)

		err = s.picklists.Create(ctx, tx, p)
		if err == nil {
			return nil
		}
		if !database.IsUniqueViolation(err, "picklists_name_key") {
			return err
		}
		s.logger.Warn().Str("name", p.Name).Msg("picklist name taken, retrying")
	}
	return errors.Conflict("could not allocate a picklist name")
}

// FormatPicklistName renders a counter value as a picklist name.
func FormatPicklistName(prefix string, digits int, n int64) string {
	return fmt.Sprintf("%s%0*d", prefix, digits, n)
}

func (s *PicklistService) resolveMaterials(ctx context.Context, tx database.Querier, lines []PicklistLine) (map[string]*repository.Material, error) {
	names := make([]string, 0, len(lines))
	for _, l := range lines {
		names = append(names, l.MaterialName)
	}
	names = dedupe(names)

	found, err := s.materials.ListByNames(ctx, tx, names)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*repository.Material, len(found))
	for i := range found {
		byName[found[i].Name] = &found[i]
	}

	var missing []string
	for _, n := range names {
		if _, ok := byName[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NotFound("material").WithDetail("materials", strings.Join(missing, ", "))
	}
	return byName, nil
}

func (s *PicklistService) resolveCustomers(ctx context.Context, tx database.Querier, lines []PicklistLine, siteID int64) (map[string]*repository.Customer, error) {
	names := make([]string, 0, len(lines))
	for _, l := range lines {
		names = append(names, l.CustomerName)
	}
	names = dedupe(names)

	found, err := s.customers.ListByNames(ctx, tx, names)
	if err != nil {
		return nil, err
	}

	// a site-specific customer wins over a shared one of the same name
	byName := make(map[string]*repository.Customer, len(found))
	for i := range found {
		c := &found[i]
		if c.SiteID != nil && *c.SiteID != siteID {
			continue
		}
		if prev, ok := byName[c.Name]; ok && prev.SiteID != nil {
			continue
		}
		byName[c.Name] = c
	}

	var missing []string
	for _, n := range names {
		if _, ok := byName[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NotFound("customer").WithDetail("customers", strings.Join(missing, ", "))
	}
	return byName, nil
}

// picklistSite returns the single site every material belongs to.
func picklistSite(ctx context.Context, materials map[string]*repository.Material) (int64, error) {
	var siteID int64
	for _, m := range materials {
		if siteID == 0 {
			siteID = m.SiteID
			continue
		}
		if m.SiteID != siteID {
			return 0, errors.BadRequest("picklist lines span more than one site")
		}
	}
	if !tenant.Allows(actor.FromContext(ctx), siteID) {
		return 0, errors.BadRequest("materials belong to another site")
	}
	return siteID, nil
}

// groupLines groups lines per customer in first-seen order and sums
// duplicate materials within a customer.
func groupLines(lines []PicklistLine, materials map[string]*repository.Material, customers map[string]*repository.Customer) (map[int64]*picklistGroup, []int64) {
	groups := make(map[int64]*picklistGroup)
	var order []int64
	for _, l := range lines {
		c := customers[l.CustomerName]
		m := materials[l.MaterialName]
		g, ok := groups[c.ID]
		if !ok {
			g = &picklistGroup{customer: c, totals: make(map[int64]int)}
			groups[c.ID] = g
			order = append(order, c.ID)
		}
		if _, seen := g.totals[m.ID]; !seen {
			g.order = append(g.order, m.ID)
		}
		g.totals[m.ID] += l.Quantity
	}
	return groups, order
}

// checkStock rejects a material requested beyond its stock by any customer.
func checkStock(groups map[int64]*picklistGroup, byID map[int64]*repository.Material) error {
	var short []string
	for _, g := range groups {
		for materialID, qty := range g.totals {
			m := byID[materialID]
			if int64(qty) > m.Quantity {
				short = append(short, fmt.Sprintf("%s (requested %d, in stock %d)", m.Name, qty, m.Quantity))
			}
		}
	}
	if len(short) > 0 {
		sort.Strings(short)
		return errors.BusinessRule("requested quantity exceeds stock").
			WithDetail("materials", strings.Join(short, "; "))
	}
	return nil
}

// DispatchDeltas returns the stock decrements per material and the load to
// release per shelf for a set of dispatched units.
func DispatchDeltas(units []repository.DispatchedUnit) (map[int64]int64, map[int64]decimal.Decimal) {
	stock := make(map[int64]int64)
	loads := make(map[int64]decimal.Decimal)
	for _, u := range units {
		stock[u.MaterialID] -= int64(u.Quantity)
		if u.ShelfID != nil {
			loads[*u.ShelfID] = loads[*u.ShelfID].Add(decimal.NewFromInt(int64(u.Quantity)))
		}
	}
	return stock, loads
}
