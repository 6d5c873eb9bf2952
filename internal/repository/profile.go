package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"rollermate/internal/model"
)

const profileColumns = `id, email, password_hashed, full_name, avatar_url, avatar_key, bio, sports, created_at, updated_at`

type profileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, p *model.Profile) error {
	if p.Sports == nil {
		p.Sports = pq.StringArray{}
	}
	query := `
		INSERT INTO profiles (email, password_hashed, full_name, avatar_url, avatar_key, bio, sports)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		p.Email,
		p.PasswordHashed,
		p.FullName,
		p.AvatarURL,
		p.AvatarKey,
		p.Bio,
		p.Sports,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return model.ErrEmailExists
		}
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	err := r.db.GetContext(ctx, &p, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile by id: %w", err)
	}
	return &p, nil
}

func (r *profileRepository) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	var p model.Profile
	err := r.db.GetContext(ctx, &p, `SELECT `+profileColumns+` FROM profiles WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile by email: %w", err)
	}
	return &p, nil
}

// Search matches a case-insensitive prefix of the full name.
func (r *profileRepository) Search(ctx context.Context, query string, limit int) ([]model.ProfileSummary, error) {
	searchQuery := `
		SELECT id, full_name, avatar_url
		FROM profiles
		WHERE lower(full_name) LIKE $1
		ORDER BY full_name
		LIMIT $2
	`
	pattern := strings.ToLower(escapeLike(query)) + "%"

	var users []model.ProfileSummary
	if err := r.db.SelectContext(ctx, &users, searchQuery, pattern, limit); err != nil {
		return nil, fmt.Errorf("failed to search profiles: %w", err)
	}
	return users, nil
}

// Update overwrites only the fields present in req.
func (r *profileRepository) Update(ctx context.Context, id string, req *model.UpdateProfileRequest) (*model.Profile, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}

	if req.FullName != nil {
		args = append(args, *req.FullName)
		sets = append(sets, fmt.Sprintf("full_name = $%d", len(args)))
	}
	if req.Bio != nil {
		args = append(args, *req.Bio)
		sets = append(sets, fmt.Sprintf("bio = $%d", len(args)))
	}
	if req.Sports != nil {
		args = append(args, pq.StringArray(*req.Sports))
		sets = append(sets, fmt.Sprintf("sports = $%d", len(args)))
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE profiles SET %s WHERE id = $%d RETURNING `+profileColumns,
		strings.Join(sets, ", "), len(args))

	var p model.Profile
	if err := r.db.GetContext(ctx, &p, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return &p, nil
}

func (r *profileRepository) UpdateAvatar(ctx context.Context, id string, upload *model.UploadResult) (*string, error) {
	query := `
		UPDATE profiles p
		SET avatar_url = $2, avatar_key = $3, updated_at = NOW()
		FROM (SELECT avatar_key FROM profiles WHERE id = $1 FOR UPDATE) old
		WHERE p.id = $1
		RETURNING old.avatar_key
	`
	var oldKey *string
	if err := r.db.GetContext(ctx, &oldKey, query, id, upload.URL, upload.Key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to update avatar: %w", err)
	}
	return oldKey, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
