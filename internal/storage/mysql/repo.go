package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"flex_reviews/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func nullStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// rowArgs flattens r in reviewColumns order.
func rowArgs(r domain.Review) ([]any, error) {
	cats := r.Categories
	if cats == nil {
		cats = map[string]float64{}
	}
	catsJSON, err := json.Marshal(cats)
	if err != nil {
		return nil, err
	}
	var extJSON []byte
	if r.ExternalIDs != nil {
		if extJSON, err = json.Marshal(r.ExternalIDs); err != nil {
			return nil, err
		}
	}
	submitted, ok := domain.ParseTime(r.SubmittedAt)
	if !ok {
		return nil, domain.NewValidationError("submittedAt", "must be an ISO date string")
	}
	var status any
	if r.Status != nil {
		status = string(*r.Status)
	}
	var authorName, authorURL any
	if r.Author != nil {
		authorName, authorURL = valStr(r.Author.Name), valStr(r.Author.URL)
	}
	return []any{
		r.ID,
		string(r.Source),
		r.ListingID,
		valStr(r.ListingName),
		string(r.Type),
		string(r.Channel),
		status,
		valF64(r.Rating),
		string(catsJSON),
		valStr(r.Text),
		valStr(r.PrivateFeedback),
		submitted.UTC(),
		authorName,
		authorURL,
		r.Approved,
		valJSON(extJSON),
	}, nil
}

func (r *Repo) UpsertReviews(ctx context.Context, rs []domain.Review) error {
	if len(rs) == 0 {
		return nil
	}
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*16) // 16 params per row
	for _, rv := range rs {
		a, err := rowArgs(rv)
		if err != nil {
			return err
		}
		values = append(values, reviewPlaceholders)
		args = append(args, a...)
	}
	sqlStr := insertReviewsPrefix + strings.Join(values, ",") + insertReviewsOnDup
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *Repo) SetApproved(ctx context.Context, id string, approved bool) (domain.Review, error) {
	if _, err := r.db.ExecContext(ctx, setApprovedSQL, approved, id); err != nil {
		return domain.Review{}, err
	}
	// RowsAffected is 0 for an unchanged flag too, so existence is decided by the read.
	return r.Get(ctx, id)
}

func (r *Repo) UpsertApproval(ctx context.Context, rv domain.Review) (domain.Review, error) {
	args, err := rowArgs(rv)
	if err != nil {
		return domain.Review{}, err
	}
	if _, err := r.db.ExecContext(ctx, upsertApprovalSQL, args...); err != nil {
		return domain.Review{}, err
	}
	return r.Get(ctx, rv.ID)
}

func (r *Repo) Get(ctx context.Context, id string) (domain.Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx, getReviewSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Review{}, domain.ErrNotFound
	}
	return rv, err
}

func (r *Repo) ApprovalStates(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, approvalStatesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var (
			id       string
			approved bool
		)
		if err := rows.Scan(&id, &approved); err != nil {
			return nil, err
		}
		out[id] = approved
	}
	return out, rows.Err()
}

func (r *Repo) ListApproved(ctx context.Context) ([]domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, listApprovedSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReview(s scanner) (domain.Review, error) {
	var (
		rv                    domain.Review
		source, typ, channel  string
		listingName, status   sql.NullString
		text, private         sql.NullString
		authorName, authorURL sql.NullString
		rating                sql.NullFloat64
		catsRaw, extRaw       []byte
		submitted             time.Time
	)
	if err := s.Scan(
		&rv.ID,
		&source,
		&rv.ListingID,
		&listingName,
		&typ,
		&channel,
		&status,
		&rating,
		&catsRaw,
		&text,
		&private,
		&submitted,
		&authorName,
		&authorURL,
		&rv.Approved,
		&extRaw,
	); err != nil {
		return domain.Review{}, err
	}

	rv.Source = domain.Source(source)
	rv.Type = domain.Type(typ)
	rv.Channel = domain.Channel(channel)
	rv.ListingName = nullStr(listingName)
	if status.Valid {
		st := domain.Status(status.String)
		rv.Status = &st
	}
	if rating.Valid {
		f := rating.Float64
		rv.Rating = &f
	}
	rv.Categories = map[string]float64{}
	if len(catsRaw) > 0 {
		if err := json.Unmarshal(catsRaw, &rv.Categories); err != nil {
			return domain.Review{}, err
		}
	}
	rv.Text = nullStr(text)
	rv.PrivateFeedback = nullStr(private)
	rv.SubmittedAt = domain.FormatTime(submitted)
	if authorName.Valid || authorURL.Valid {
		rv.Author = &domain.Author{Name: nullStr(authorName), URL: nullStr(authorURL)}
	}
	if len(extRaw) > 0 {
		var ext domain.ExternalIDs
		if err := json.Unmarshal(extRaw, &ext); err != nil {
			return domain.Review{}, err
		}
		rv.ExternalIDs = &ext
	}
	return rv, nil
}
