package repositories

import (
	"context"
	"errors"
	"sort"
	"time"

	"dispatch-app/controllers/idgen"
	"dispatch-app/models"
	"dispatch-app/services"
	"dispatch-app/types"

	"gorm.io/gorm"
)

// DispatchRepository implements services.DispatchStore and the read-only
// query layer over dispatch records. It never touches the stock tables.
type DispatchRepository struct {
	db *gorm.DB
}

func NewDispatchRepository(db *gorm.DB) *DispatchRepository {
	return &DispatchRepository{db: db}
}

// Create persists the header and its details in one transaction.
func (r *DispatchRepository) Create(ctx context.Context, header *models.DispatchHeader) error {
	if header.ID == 0 {
		header.ID = types.SnowflakeID(idgen.GenerateID())
	}
	for i := range header.Items {
		header.Items[i].DispatchID = header.ID
	}

	tx := r.db.WithContext(ctx).Begin()
	defer func() {
		if rec := recover(); rec != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(header).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

func (r *DispatchRepository) GetByID(ctx context.Context, id types.SnowflakeID) (*models.DispatchHeader, error) {
	var header models.DispatchHeader
	err := r.db.WithContext(ctx).Preload("Items").First(&header, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrDispatchNotFound
		}
		return nil, &services.PersistenceError{Op: "failed to read dispatch", Err: err}
	}
	return &header, nil
}

// Save writes the header row only. Details are immutable so they are
// never rewritten; last-writer-wins on the header is a single UPDATE, no
// partial-field interleaving.
func (r *DispatchRepository) Save(ctx context.Context, header *models.DispatchHeader) error {
	return r.db.WithContext(ctx).Omit("Items").Save(header).Error
}

func (r *DispatchRepository) Delete(ctx context.Context, id types.SnowflakeID) error {
	tx := r.db.WithContext(ctx).Begin()
	defer func() {
		if rec := recover(); rec != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Where("dispatch_id = ?", id).Delete(&models.DispatchDetail{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(&models.DispatchHeader{}, "id = ?", id).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

type DispatchFilter struct {
	Status      string
	Destination string
	StartDate   *time.Time
	EndDate     *time.Time
	Search      string
	Page        int
	Limit       int
}

type Pagination struct {
	Current int   `json:"current"`
	Total   int   `json:"total"`
	Count   int64 `json:"count"`
	Limit   int   `json:"limit"`
}

// List filters and paginates dispatch records, newest dispatch date
// first. Search matches destination, customer, vehicle, driver and the
// item code/name snapshots on the lines.
func (r *DispatchRepository) List(ctx context.Context, filter DispatchFilter) ([]models.DispatchHeader, *Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 100
	}

	q := r.applyFilter(r.db.WithContext(ctx).Model(&models.DispatchHeader{}), filter)

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, nil, &services.PersistenceError{Op: "failed to count dispatches", Err: err}
	}

	var headers []models.DispatchHeader
	err := q.Order("dispatch_date DESC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Preload("Items").
		Find(&headers).Error
	if err != nil {
		return nil, nil, &services.PersistenceError{Op: "failed to list dispatches", Err: err}
	}

	totalPages := int((count + int64(filter.Limit) - 1) / int64(filter.Limit))
	pagination := &Pagination{
		Current: filter.Page,
		Total:   totalPages,
		Count:   count,
		Limit:   filter.Limit,
	}

	return headers, pagination, nil
}

func (r *DispatchRepository) applyFilter(q *gorm.DB, filter DispatchFilter) *gorm.DB {
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Destination != "" {
		q = q.Where("destination LIKE ?", "%"+filter.Destination+"%")
	}
	if filter.StartDate != nil {
		q = q.Where("dispatch_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		q = q.Where("dispatch_date <= ?", *filter.EndDate)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where(`destination LIKE ? OR customer_name LIKE ? OR vehicle_number LIKE ? OR driver_name LIKE ?
			OR id IN (SELECT dispatch_id FROM dispatch_details WHERE item_code LIKE ? OR item_name LIKE ?)`,
			like, like, like, like, like, like)
	}
	return q
}

// DispatchLineView is the flattened row the inventory page table renders.
type DispatchLineView struct {
	ItemCode  string    `json:"item_code"`
	Product   string    `json:"product"`
	Quantity  int       `json:"quantity"`
	WorkOrder string    `json:"work_order"`
	Machine   string    `json:"machine"`
	Date      time.Time `json:"date"`
}

// RecentLineDetails flattens the most recent dispatches into one row per
// line item.
func (r *DispatchRepository) RecentLineDetails(ctx context.Context, limit int) ([]DispatchLineView, error) {
	if limit < 1 {
		limit = 50
	}

	var headers []models.DispatchHeader
	err := r.db.WithContext(ctx).Order("dispatch_date DESC").Limit(limit).Preload("Items").Find(&headers).Error
	if err != nil {
		return nil, &services.PersistenceError{Op: "failed to read dispatch details", Err: err}
	}

	views := make([]DispatchLineView, 0)
	for _, header := range headers {
		idStr := header.ID.String()
		workOrder := "WO-" + idStr
		if len(idStr) > 6 {
			workOrder = "WO-" + idStr[len(idStr)-6:]
		}
		machine := header.TransportMode
		if machine == "" {
			machine = "N/A"
		}
		for _, item := range header.Items {
			views = append(views, DispatchLineView{
				ItemCode:  item.ItemCode,
				Product:   item.ItemName,
				Quantity:  item.Quantity,
				WorkOrder: workOrder,
				Machine:   machine,
				Date:      header.DispatchDate,
			})
		}
	}

	return views, nil
}

type DispatchSummary struct {
	TotalDispatches    int64 `json:"total_dispatches"`
	TotalQuantity      int64 `json:"total_quantity"`
	TotalItems         int64 `json:"total_items"`
	UniqueDestinations int64 `json:"unique_destinations"`
}

type StatusStat struct {
	Status        string `json:"status"`
	Count         int64  `json:"count"`
	TotalQuantity int64  `json:"total_quantity"`
}

type MonthlyStat struct {
	Year          int   `json:"year"`
	Month         int   `json:"month"`
	Count         int64 `json:"count"`
	TotalQuantity int64 `json:"total_quantity"`
}

type DispatchStats struct {
	Summary         DispatchSummary `json:"summary"`
	StatusBreakdown []StatusStat    `json:"status_breakdown"`
	MonthlyTrends   []MonthlyStat   `json:"monthly_trends"`
}

// Stats aggregates totals, a per-status breakdown and a last-12-months
// trend. The monthly rollup is done in Go so the query stays portable
// across the supported drivers.
func (r *DispatchRepository) Stats(ctx context.Context) (*DispatchStats, error) {
	stats := &DispatchStats{
		StatusBreakdown: []StatusStat{},
		MonthlyTrends:   []MonthlyStat{},
	}

	db := r.db.WithContext(ctx)

	if err := db.Model(&models.DispatchHeader{}).Count(&stats.Summary.TotalDispatches).Error; err != nil {
		return nil, &services.PersistenceError{Op: "failed to aggregate dispatches", Err: err}
	}
	if err := db.Model(&models.DispatchDetail{}).Count(&stats.Summary.TotalItems).Error; err != nil {
		return nil, &services.PersistenceError{Op: "failed to aggregate dispatch items", Err: err}
	}

	var totalQty struct{ Total int64 }
	err := db.Model(&models.DispatchDetail{}).
		Select("COALESCE(SUM(quantity), 0) AS total").
		Scan(&totalQty).Error
	if err != nil {
		return nil, &services.PersistenceError{Op: "failed to aggregate quantities", Err: err}
	}
	stats.Summary.TotalQuantity = totalQty.Total

	var destCount struct{ Total int64 }
	err = db.Model(&models.DispatchHeader{}).
		Select("COUNT(DISTINCT destination) AS total").
		Scan(&destCount).Error
	if err != nil {
		return nil, &services.PersistenceError{Op: "failed to count destinations", Err: err}
	}
	stats.Summary.UniqueDestinations = destCount.Total

	err = db.Model(&models.DispatchHeader{}).
		Select(`dispatch_headers.status AS status,
			COUNT(DISTINCT dispatch_headers.id) AS count,
			COALESCE(SUM(dispatch_details.quantity), 0) AS total_quantity`).
		Joins("LEFT JOIN dispatch_details ON dispatch_details.dispatch_id = dispatch_headers.id").
		Group("dispatch_headers.status").
		Scan(&stats.StatusBreakdown).Error
	if err != nil {
		return nil, &services.PersistenceError{Op: "failed to aggregate statuses", Err: err}
	}

	since := time.Now().AddDate(-1, 0, 0)
	var rows []struct {
		DispatchDate  time.Time
		TotalQuantity int64
	}
	err = db.Model(&models.DispatchHeader{}).
		Select(`dispatch_headers.dispatch_date AS dispatch_date,
			COALESCE(SUM(dispatch_details.quantity), 0) AS total_quantity`).
		Joins("LEFT JOIN dispatch_details ON dispatch_details.dispatch_id = dispatch_headers.id").
		Where("dispatch_headers.dispatch_date >= ?", since).
		Group("dispatch_headers.id, dispatch_headers.dispatch_date").
		Scan(&rows).Error
	if err != nil {
		return nil, &services.PersistenceError{Op: "failed to aggregate monthly trend", Err: err}
	}

	type ym struct{ year, month int }
	buckets := make(map[ym]*MonthlyStat)
	for _, row := range rows {
		key := ym{row.DispatchDate.Year(), int(row.DispatchDate.Month())}
		bucket, ok := buckets[key]
		if !ok {
			bucket = &MonthlyStat{Year: key.year, Month: key.month}
			buckets[key] = bucket
		}
		bucket.Count++
		bucket.TotalQuantity += row.TotalQuantity
	}
	for _, bucket := range buckets {
		stats.MonthlyTrends = append(stats.MonthlyTrends, *bucket)
	}
	sort.Slice(stats.MonthlyTrends, func(i, j int) bool {
		a, b := stats.MonthlyTrends[i], stats.MonthlyTrends[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		return a.Month > b.Month
	})
	if len(stats.MonthlyTrends) > 12 {
		stats.MonthlyTrends = stats.MonthlyTrends[:12]
	}

	return stats, nil
}
