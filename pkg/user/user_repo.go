package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var ErrUserNotFound = errors.New("user not found")

type Repo interface {
	GetUser(ctx context.Context, id int) (User, error)
	GetUserByUid(ctx context.Context, uid string) (User, error)
}

type UserRepoImpl struct {
	db *pgxpool.Pool
}

func NewUserRepo(db *pgxpool.Pool) *UserRepoImpl {
	return &UserRepoImpl{db: db}
}

const selectUser = `SELECT id, uid, tenant_id, username, display_name, role FROM app_user`

func (u *UserRepoImpl) GetUser(ctx context.Context, id int) (User, error) {
	return u.getOne(ctx, selectUser+` WHERE id = $1`, id)
}

func (u *UserRepoImpl) GetUserByUid(ctx context.Context, uid string) (User, error) {
	return u.getOne(ctx, selectUser+` WHERE uid = $1`, uid)
}

func (u *UserRepoImpl) getOne(ctx context.Context, query string, arg any) (User, error) {
	var user User
	err := u.db.QueryRow(ctx, query, arg).Scan(
		&user.Id,
		&user.Uid,
		&user.TenantId,
		&user.Username,
		&user.DisplayName,
		&user.Role,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Debugf("user %v not found", arg)
		return User{}, ErrUserNotFound
	} else if err != nil {
		err := fmt.Errorf("failed to get user: %w", err)
		log.Error(err)
		return User{}, err
	}
	return user, nil
}
