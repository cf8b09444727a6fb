package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const itemColumns = `
	id, name, brand, description,
	price_value, price_currency,
	size_value, size_unit,
	tags_json, section, additional_context, raw_text,
	confidence, status
`

func scanItem(row pgx.Row) (Item, error) {
	var (
		it        Item
		id        int64
		name      *string
		brand     *string
		desc      *string
		priceVal  *float64
		currency  *string
		sizeVal   *string
		sizeUnit  *string
		tagsJSON  *string
		section   *string
		addCtx    *string
		rawText   *string
		status    string
	)

	err := row.Scan(
		&id, &name, &brand, &desc,
		&priceVal, &currency,
		&sizeVal, &sizeUnit,
		&tagsJSON, &section, &addCtx, &rawText,
		&it.Confidence, &status,
	)
	if err != nil {
		return Item{}, err
	}

	it.ID = PersistedID(id)
	it.Name = deref(name)
	it.Brand = deref(brand)
	it.Description = deref(desc)
	it.Price = Price{Value: priceVal, Currency: DefaultCurrency}
	if currency != nil && *currency != "" {
		it.Price.Currency = *currency
	}
	it.Size = Size{Value: ParseSizeValue(deref(sizeVal)), Unit: deref(sizeUnit)}
	it.Tags = []string{}
	if tagsJSON != nil && *tagsJSON != "" {
		_ = json.Unmarshal([]byte(*tagsJSON), &it.Tags)
	}
	it.Section = deref(section)
	if it.Section == "" {
		it.Section = DefaultSection
	}
	it.AdditionalContext = deref(addCtx)
	it.RawText = deref(rawText)
	it.Status = Status(status)
	return it, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --------------------------------------------------
// GET PAGE (ITEMS ORDERED BY ASCENDING CONFIDENCE)
// --------------------------------------------------
func (r *PostgresRepository) GetPage(ctx context.Context, scope Scope) (*Page, error) {
	var (
		pageID int64
		page   Page
	)

	err := r.db.QueryRow(ctx, `
		SELECT id, source_id, page, page_width, page_height
		FROM catalog_pages
		WHERE source_id = $1 AND page = $2
	`, scope.SourceID, scope.Page).Scan(
		&pageID, &page.SourceID, &page.Page, &page.PageWidth, &page.PageHeight,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+itemColumns+`
		FROM catalog_items
		WHERE page_id = $1
		ORDER BY confidence ASC, id ASC
	`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page.Items = []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, it)
	}
	return &page, rows.Err()
}

// --------------------------------------------------
// CREATE ITEM (PAGE ROW CREATED ON DEMAND)
// --------------------------------------------------
func (r *PostgresRepository) CreateItem(ctx context.Context, scope Scope, item Item) (Item, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Item{}, err
	}
	defer tx.Rollback(ctx)

	var pageID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO catalog_pages (source_id, page, page_width, page_height)
		VALUES ($1, $2, 800, 1200)
		ON CONFLICT (source_id, page) DO UPDATE SET source_id = EXCLUDED.source_id
		RETURNING id
	`, scope.SourceID, scope.Page).Scan(&pageID)
	if err != nil {
		return Item{}, err
	}

	tagsJSON, err := json.Marshal(FilterTags(item.Tags))
	if err != nil {
		return Item{}, err
	}

	status := item.Status
	if status == "" {
		status = StatusDetected
	}
	currency := item.Price.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	section := item.Section
	if section == "" {
		section = DefaultSection
	}

	var sizeVal *string
	if !item.Size.Value.IsZero() {
		s := item.Size.Value.String()
		sizeVal = &s
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO catalog_items (
			page_id, name, brand, description,
			price_value, price_currency,
			size_value, size_unit,
			tags_json, section, additional_context, raw_text,
			confidence, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`,
		pageID, item.Name, item.Brand, item.Description,
		item.Price.Value, currency,
		sizeVal, item.Size.Unit,
		string(tagsJSON), section, item.AdditionalContext, item.RawText,
		item.Confidence, string(status),
	).Scan(&id)
	if err != nil {
		return Item{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Item{}, err
	}

	created := item.Clone()
	created.ID = PersistedID(id)
	created.Status = status
	created.Price.Currency = currency
	created.Section = section
	created.Tags = FilterTags(item.Tags)
	return created, nil
}

// --------------------------------------------------
// UPDATE ITEM (ONLY PROVIDED FIELDS)
// --------------------------------------------------
func (r *PostgresRepository) UpdateItem(ctx context.Context, id int64, patch Patch) (Item, error) {
	set := []string{}
	args := []any{}
	n := 0
	add := func(col string, val any) {
		n++
		set = append(set, col+" = $"+strconv.Itoa(n))
		args = append(args, val)
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Brand != nil {
		add("brand", *patch.Brand)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Price != nil {
		add("price_value", patch.Price.Value)
		currency := patch.Price.Currency
		if currency == "" {
			currency = DefaultCurrency
		}
		add("price_currency", currency)
	}
	if patch.Size != nil {
		var sizeVal *string
		if !patch.Size.Value.IsZero() {
			s := patch.Size.Value.String()
			sizeVal = &s
		}
		add("size_value", sizeVal)
		add("size_unit", patch.Size.Unit)
	}
	if patch.Tags != nil {
		tagsJSON, err := json.Marshal(FilterTags(*patch.Tags))
		if err != nil {
			return Item{}, err
		}
		add("tags_json", string(tagsJSON))
	}
	if patch.Section != nil {
		add("section", *patch.Section)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.AdditionalContext != nil {
		add("additional_context", *patch.AdditionalContext)
	}

	if len(set) > 0 {
		n++
		args = append(args, id)
		cmd, err := r.db.Exec(ctx, `
			UPDATE catalog_items
			SET `+strings.Join(set, ", ")+`
			WHERE id = $`+strconv.Itoa(n), args...)
		if err != nil {
			return Item{}, err
		}
		if cmd.RowsAffected() == 0 {
			return Item{}, ErrItemNotFound
		}
	}

	it, err := scanItem(r.db.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM catalog_items
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return it, nil
}

// --------------------------------------------------
// LIST PAGES (FOR EXPORT)
// --------------------------------------------------
func (r *PostgresRepository) ListPages(ctx context.Context, sourceID string) ([]Page, error) {
	rows, err := r.db.Query(ctx, `
		SELECT source_id, page
		FROM catalog_pages
		WHERE source_id = $1
		ORDER BY page
	`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scopes []Scope
	for rows.Next() {
		var s Scope
		if err := rows.Scan(&s.SourceID, &s.Page); err != nil {
			return nil, err
		}
		scopes = append(scopes, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pages := []Page{}
	for _, s := range scopes {
		p, err := r.GetPage(ctx, s)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *p)
	}
	return pages, nil
}
