package travel

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/handoff/pkg/domain"
)

// inventory is a bookable table: hotels, car rentals, trip recommendations.
type inventory struct {
	table string
	label string // "Hotel", "Car rental", ...
	idArg string
}

// Listing is one row of an inventory table.
type Listing struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Location  string `json:"location"`
	PriceTier string `json:"price_tier,omitempty"`
	Keywords  string `json:"keywords,omitempty"`
	Details   string `json:"details,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Booked    bool   `json:"booked"`
}

// scanDated scans hotels and car rentals, whose dates land in StartDate and EndDate.
func scanDated(l *Listing) []any {
	return []any{&l.ID, &l.Name, &l.Location, &l.PriceTier, &l.StartDate, &l.EndDate, &l.Booked}
}

type searchArgs struct {
	Location string `json:"location"`
	Name     string `json:"name"`
	Keywords string `json:"keywords"`
}

func (inv inventory) notFound(id int64) string {
	return fmt.Sprintf("No %s found with ID %d.", strings.ToLower(inv.label), id)
}

func (inv inventory) done(id int64, verb string) string {
	return fmt.Sprintf("%s %d successfully %s.", inv.label, id, verb)
}

// search matches location and name by substring, and keywords by any of a
// comma separated list.
func (inv inventory) search(ctx context.Context, d *DB, columns string, scan func(*Listing) []any, args searchArgs) ([]Listing, error) {
	query := "SELECT " + columns + " FROM " + inv.table + " WHERE 1 = 1"
	var params []any
	if args.Location != "" {
		query += " AND location LIKE ?"
		params = append(params, "%"+args.Location+"%")
	}
	if args.Name != "" {
		query += " AND name LIKE ?"
		params = append(params, "%"+args.Name+"%")
	}
	if args.Keywords != "" {
		var conds []string
		for _, kw := range strings.Split(args.Keywords, ",") {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			conds = append(conds, "keywords LIKE ?")
			params = append(params, "%"+kw+"%")
		}
		if len(conds) > 0 {
			query += " AND (" + strings.Join(conds, " OR ") + ")"
		}
	}
	query += " ORDER BY id"

	rows, err := d.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", inv.table, err)
	}
	defer rows.Close()

	out := []Listing{}
	for rows.Next() {
		var l Listing
		if err := rows.Scan(scan(&l)...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", inv.table, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// setBooked flips the booked flag and reports the outcome as a result message.
func (inv inventory) setBooked(ctx context.Context, d *DB, id int64, booked bool) (string, error) {
	flag, verb := 0, "cancelled"
	if booked {
		flag, verb = 1, "booked"
	}
	res, err := d.db.ExecContext(ctx, "UPDATE "+inv.table+" SET booked = ? WHERE id = ?", flag, id)
	if err != nil {
		return "", fmt.Errorf("failed to update %s: %w", inv.table, err)
	}
	return inv.outcome(res, id, verb)
}

// update sets the given columns, leaving empty values untouched.
func (inv inventory) update(ctx context.Context, d *DB, id int64, columns []string, values ...string) (string, error) {
	sets := make([]string, len(columns))
	params := make([]any, 0, len(values)+1)
	for i, col := range columns {
		sets[i] = col + " = COALESCE(?, " + col + ")"
		params = append(params, nullable(values[i]))
	}
	params = append(params, id)

	res, err := d.db.ExecContext(ctx, "UPDATE "+inv.table+" SET "+strings.Join(sets, ", ")+" WHERE id = ?", params...)
	if err != nil {
		return "", fmt.Errorf("failed to update %s: %w", inv.table, err)
	}
	return inv.outcome(res, id, "updated")
}

func (inv inventory) outcome(res interface{ RowsAffected() (int64, error) }, id int64, verb string) (string, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to update %s: %w", inv.table, err)
	}
	if n == 0 {
		return inv.notFound(id), nil
	}
	return inv.done(id, verb), nil
}

func (inv inventory) idParam(what string) domain.Param {
	return required(integer(inv.idArg, "The id of the "+what+"."))
}
