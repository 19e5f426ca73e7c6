package postgres

import (
	"context"
	"database/sql"

	"feepay-backend/internal/domain"
	"feepay-backend/internal/repository"
)

type userRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u := &domain.User{}
	query := `SELECT id, email, name, role, school_id, created_at FROM users WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.SchoolID, &u.CreatedAt)
	if err != nil {
		return nil, translate(err, "user "+id)
	}
	return u, nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return translate(sql.ErrNoRows, "user "+id)
	}
	return nil
}

type studentRepository struct {
	db DBTX
}

func NewStudentRepository(db DBTX) repository.StudentRepository {
	return &studentRepository{db: db}
}

const studentColumns = `id, user_id, school_id, student_id_number, grade`

func (r *studentRepository) GetByID(ctx context.Context, id string) (*domain.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	return r.scanOne(ctx, "student "+id, query, id)
}

func (r *studentRepository) GetByUserID(ctx context.Context, userID string) (*domain.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE user_id = $1`
	return r.scanOne(ctx, "student for user "+userID, query, userID)
}

func (r *studentRepository) scanOne(ctx context.Context, what, query string, args ...any) (*domain.Student, error) {
	s := &domain.Student{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&s.ID, &s.UserID, &s.SchoolID, &s.StudentIDNumber, &s.Grade)
	if err != nil {
		return nil, translate(err, what)
	}
	return s, nil
}

func (r *studentRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	return translate(err, "delete student")
}

type schoolRepository struct {
	db DBTX
}

func NewSchoolRepository(db DBTX) repository.SchoolRepository {
	return &schoolRepository{db: db}
}

func (r *schoolRepository) GetByID(ctx context.Context, id string) (*domain.School, error) {
	s := &domain.School{}
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM schools WHERE id = $1`, id).Scan(&s.ID, &s.Name)
	if err != nil {
		return nil, translate(err, "school "+id)
	}
	return s, nil
}

func (r *schoolRepository) List(ctx context.Context) ([]domain.School, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM schools ORDER BY name`)
	if err != nil {
		return nil, translate(err, "list schools")
	}
	defer rows.Close()

	schools := []domain.School{}
	for rows.Next() {
		var s domain.School
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, translate(err, "list schools")
		}
		schools = append(schools, s)
	}
	return schools, translate(rows.Err(), "list schools")
}
