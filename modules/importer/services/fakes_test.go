package services

import (
	"context"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/seedpurchase"
	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/seedsource"
	"github.com/verdantlabs/seedbank/modules/catalog/domain/entities/taxonomy"
	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/importrow"
	"github.com/verdantlabs/seedbank/modules/importer/domain/entities/seedimport"
	"github.com/verdantlabs/seedbank/modules/importer/infrastructure/classify"
	"github.com/verdantlabs/seedbank/pkg/composables"
	"github.com/verdantlabs/seedbank/pkg/jobqueue"
	"github.com/verdantlabs/seedbank/pkg/repo"
)

// stubTx satisfies the repository query surface so InTx reuses it
// instead of reaching for a pool. The in-memory fakes never touch it.
type stubTx struct{}

func (stubTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (stubTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, nil
}

func (stubTx) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func testContext() context.Context {
	return composables.WithTx(context.Background(), stubTx{})
}

// ---- import repository ----

type fakeImportRepo struct {
	nextID  uint
	imports map[uint]*seedimport.Import
}

func newFakeImportRepo() *fakeImportRepo {
	return &fakeImportRepo{imports: make(map[uint]*seedimport.Import)}
}

func (r *fakeImportRepo) add(imp *seedimport.Import) *seedimport.Import {
	r.nextID++
	imp.ID = r.nextID
	r.imports[imp.ID] = imp
	return imp
}

func (r *fakeImportRepo) Create(_ context.Context, imp *seedimport.Import) error {
	if imp.Status == "" {
		imp.Status = seedimport.StatusPending
	}
	r.add(imp)
	return nil
}

func (r *fakeImportRepo) GetByID(_ context.Context, id uint) (*seedimport.Import, error) {
	imp, ok := r.imports[id]
	if !ok {
		return nil, seedimport.ErrNotFound
	}
	return imp, nil
}

func (r *fakeImportRepo) List(_ context.Context, params *seedimport.FindParams) ([]*seedimport.Import, error) {
	var out []*seedimport.Import
	for _, imp := range r.imports {
		if params != nil && params.Status != nil && imp.Status != *params.Status {
			continue
		}
		out = append(out, imp)
	}
	return out, nil
}

func (r *fakeImportRepo) Update(_ context.Context, imp *seedimport.Import) error {
	if _, ok := r.imports[imp.ID]; !ok {
		return seedimport.ErrNotFound
	}
	r.imports[imp.ID] = imp
	return nil
}

func (r *fakeImportRepo) TransitionStatus(_ context.Context, id uint, from, to seedimport.Status) (bool, error) {
	imp, ok := r.imports[id]
	if !ok || imp.Status != from {
		return false, nil
	}
	imp.Status = to
	return true, nil
}

func (r *fakeImportRepo) SetFailed(_ context.Context, id uint, message string) error {
	imp, ok := r.imports[id]
	if !ok {
		return seedimport.ErrNotFound
	}
	imp.Status = seedimport.StatusFailed
	imp.ErrorMessage = message
	return nil
}

// ---- import row repository ----

type fakeRowRepo struct {
	nextID uint
	rows   []*importrow.ImportRow
}

func (r *fakeRowRepo) add(row *importrow.ImportRow) *importrow.ImportRow {
	r.nextID++
	row.ID = r.nextID
	r.rows = append(r.rows, row)
	return row
}

func (r *fakeRowRepo) Create(_ context.Context, row *importrow.ImportRow) error {
	r.add(row)
	return nil
}

func (r *fakeRowRepo) GetByID(_ context.Context, id uint) (*importrow.ImportRow, error) {
	for _, row := range r.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return nil, importrow.ErrNotFound
}

func (r *fakeRowRepo) List(_ context.Context, params *importrow.FindParams) ([]*importrow.ImportRow, error) {
	var out []*importrow.ImportRow
	for _, row := range r.rows {
		if row.ImportID != params.ImportID {
			continue
		}
		if params.MappingStatus != nil && row.MappingStatus != *params.MappingStatus {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRowRepo) Count(ctx context.Context, params *importrow.FindParams) (int64, error) {
	rows, err := r.List(ctx, params)
	return int64(len(rows)), err
}

func (r *fakeRowRepo) ListForDuplicateScan(_ context.Context, importID uint) ([]*importrow.ImportRow, error) {
	var out []*importrow.ImportRow
	for _, row := range r.rows {
		if row.ImportID == importID && row.MappingStatus != importrow.MappingRejected {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRowRepo) ListEligible(_ context.Context, importID uint) ([]*importrow.ImportRow, error) {
	var out []*importrow.ImportRow
	for _, row := range r.rows {
		if row.ImportID != importID || row.DuplicateOfRowID != nil {
			continue
		}
		if row.MappingStatus != importrow.MappingAccepted && row.MappingStatus != importrow.MappingModified {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SheetName != out[j].SheetName {
			return out[i].SheetName < out[j].SheetName
		}
		return out[i].RowNumber < out[j].RowNumber
	})
	return out, nil
}

func (r *fakeRowRepo) Update(_ context.Context, row *importrow.ImportRow) error {
	for i, existing := range r.rows {
		if existing.ID == row.ID {
			r.rows[i] = row
			return nil
		}
	}
	return importrow.ErrNotFound
}

func (r *fakeRowRepo) DeleteByImportID(_ context.Context, importID uint) error {
	kept := r.rows[:0]
	for _, row := range r.rows {
		if row.ImportID != importID {
			kept = append(kept, row)
		}
	}
	r.rows = kept
	return nil
}

// ---- taxonomy repository ----

type fakeTaxonomyRepo struct {
	nextID        uint
	types         []*taxonomy.PlantType
	categories    []*taxonomy.PlantCategory
	subcategories []*taxonomy.PlantSubcategory
	varieties     []*taxonomy.PlantVariety
}

func newFakeTaxonomyRepo(typeNames ...string) *fakeTaxonomyRepo {
	r := &fakeTaxonomyRepo{}
	for _, name := range typeNames {
		r.nextID++
		r.types = append(r.types, &taxonomy.PlantType{ID: r.nextID, Name: name})
	}
	return r
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func (r *fakeTaxonomyRepo) ListTypes(context.Context) ([]*taxonomy.PlantType, error) {
	return r.types, nil
}

func (r *fakeTaxonomyRepo) GetTypeByName(_ context.Context, name string) (*taxonomy.PlantType, error) {
	for _, t := range r.types {
		if sameName(t.Name, name) {
			return t, nil
		}
	}
	return nil, taxonomy.ErrTypeNotFound
}

func (r *fakeTaxonomyRepo) GetCategoryByName(_ context.Context, plantTypeID uint, name string) (*taxonomy.PlantCategory, error) {
	for _, c := range r.categories {
		if c.PlantTypeID == plantTypeID && sameName(c.Name, name) {
			return c, nil
		}
	}
	return nil, taxonomy.ErrCategoryNotFound
}

func (r *fakeTaxonomyRepo) CreateCategory(_ context.Context, category *taxonomy.PlantCategory) error {
	r.nextID++
	category.ID = r.nextID
	r.categories = append(r.categories, category)
	return nil
}

func (r *fakeTaxonomyRepo) GetSubcategoryByName(_ context.Context, categoryID uint, name string) (*taxonomy.PlantSubcategory, error) {
	for _, s := range r.subcategories {
		if s.PlantCategoryID == categoryID && sameName(s.Name, name) {
			return s, nil
		}
	}
	return nil, taxonomy.ErrSubcategoryNotFound
}

func (r *fakeTaxonomyRepo) CreateSubcategory(_ context.Context, subcategory *taxonomy.PlantSubcategory) error {
	r.nextID++
	subcategory.ID = r.nextID
	r.subcategories = append(r.subcategories, subcategory)
	return nil
}

func (r *fakeTaxonomyRepo) GetVarietyByName(_ context.Context, categoryID uint, name string) (*taxonomy.PlantVariety, error) {
	for _, v := range r.varieties {
		if v.PlantCategoryID == categoryID && sameName(v.Name, name) {
			return v, nil
		}
	}
	return nil, taxonomy.ErrVarietyNotFound
}

func (r *fakeTaxonomyRepo) CreateVariety(_ context.Context, variety *taxonomy.PlantVariety) error {
	r.nextID++
	variety.ID = r.nextID
	r.varieties = append(r.varieties, variety)
	return nil
}

func (r *fakeTaxonomyRepo) UpdateVariety(_ context.Context, variety *taxonomy.PlantVariety) error {
	for i, existing := range r.varieties {
		if existing.ID == variety.ID {
			r.varieties[i] = variety
			return nil
		}
	}
	return taxonomy.ErrVarietyNotFound
}

func (r *fakeTaxonomyRepo) Snapshot(context.Context) ([]taxonomy.Entry, error) {
	var entries []taxonomy.Entry
	for _, c := range r.categories {
		entry := taxonomy.Entry{Category: c.Name}
		for _, t := range r.types {
			if t.ID == c.PlantTypeID {
				entry.Type = t.Name
			}
		}
		for _, s := range r.subcategories {
			if s.PlantCategoryID == c.ID {
				entry.Subcategories = append(entry.Subcategories, s.Name)
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ---- seed source repository ----

type fakeSourceRepo struct {
	nextID  uint
	sources []*seedsource.SeedSource
}

func (r *fakeSourceRepo) List(context.Context, *seedsource.FindParams) ([]*seedsource.SeedSource, error) {
	return r.sources, nil
}

func (r *fakeSourceRepo) Names(context.Context) ([]string, error) {
	names := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		names = append(names, s.Name)
	}
	return names, nil
}

func (r *fakeSourceRepo) GetByName(_ context.Context, name string) (*seedsource.SeedSource, error) {
	for _, s := range r.sources {
		if sameName(s.Name, name) {
			return s, nil
		}
	}
	return nil, seedsource.ErrNotFound
}

func (r *fakeSourceRepo) Create(_ context.Context, source *seedsource.SeedSource) error {
	r.nextID++
	source.ID = r.nextID
	r.sources = append(r.sources, source)
	return nil
}

// ---- seed purchase repository ----

type fakePurchaseRepo struct {
	nextID    uint
	purchases []*seedpurchase.SeedPurchase
}

func (r *fakePurchaseRepo) List(context.Context, *seedpurchase.FindParams) ([]*seedpurchase.SeedPurchase, error) {
	return r.purchases, nil
}

func (r *fakePurchaseRepo) Count(context.Context, *seedpurchase.FindParams) (int64, error) {
	return int64(len(r.purchases)), nil
}

func (r *fakePurchaseRepo) Create(_ context.Context, purchase *seedpurchase.SeedPurchase) error {
	r.nextID++
	purchase.ID = r.nextID
	r.purchases = append(r.purchases, purchase)
	return nil
}

// ---- job publisher ----

type fakeJobPublisher struct {
	nextSequence int64
	enqueued     []jobqueue.Message
}

func (p *fakeJobPublisher) Enqueue(_ context.Context, _ repo.Tx, _ pgx.Identifier, msg jobqueue.Message) (int64, error) {
	p.nextSequence++
	p.enqueued = append(p.enqueued, msg)
	return p.nextSequence, nil
}

// ---- classifier ----

type fakeClassifier struct {
	fn    func(req classify.Request) ([]classify.Result, error)
	calls []classify.Request
}

func (c *fakeClassifier) Classify(_ context.Context, req classify.Request) ([]classify.Result, []byte, error) {
	c.calls = append(c.calls, req)
	results, err := c.fn(req)
	if err != nil {
		return nil, nil, err
	}
	return results, []byte(`[]`), nil
}
