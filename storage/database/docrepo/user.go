package docrepo

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/sistemaeducativo/gradebook/core"
	"github.com/sistemaeducativo/gradebook/core/user"
)

const usersCollection = "users"

// userDoc is the stored shape of a user.User.
type userDoc struct {
	Email         string    `json:"email"`
	Name          string    `json:"nombre"`
	Role          string    `json:"role"`
	ControlNumber string    `json:"numeroControl"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toUserDoc(usr user.User) userDoc {
	return userDoc{
		Email:         usr.Email,
		Name:          usr.Name,
		Role:          string(usr.Role),
		ControlNumber: usr.ControlNumber,
		CreatedAt:     usr.CreatedAt.UTC(),
	}
}

func fromUserDoc(doc core.Document) (user.User, error) {
	var ud userDoc
	if err := doc.Decode(&ud); err != nil {
		return user.User{}, errors.Wrapf(err, "decoding user %s", doc.ID)
	}
	return user.User{
		ID:            doc.ID,
		Email:         ud.Email,
		Name:          ud.Name,
		Role:          user.ParseRole(ud.Role),
		ControlNumber: ud.ControlNumber,
		CreatedAt:     ud.CreatedAt,
	}, nil
}

type userRepository struct {
	store core.DocumentStore
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(store core.DocumentStore) user.Repository {
	return &userRepository{store: store}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		return user.User{}, errors.New("creating user: missing id")
	}
	if err := repo.store.SetDocument(ctx, usersCollection, usr.ID, toUserDoc(usr)); err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, id string) (user.User, error) {
	doc, err := repo.store.GetDocument(ctx, usersCollection, id)
	if err != nil {
		if errors.Cause(err) == core.ErrDocumentNotFound {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return fromUserDoc(doc)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	docs, err := repo.store.QueryDocuments(ctx, usersCollection, core.Where("email", email))
	if err != nil {
		return user.User{}, errors.Wrap(err, "querying user by email")
	}
	if len(docs) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return fromUserDoc(docs[0])
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	var docs []core.Document
	if filter.IsEmpty() {
		all, err := repo.store.QueryDocuments(ctx, usersCollection)
		if err != nil {
			return nil, errors.Wrap(err, "querying users")
		}
		docs = all
	} else {
		for _, role := range filter.Roles {
			byRole, err := repo.store.QueryDocuments(ctx, usersCollection, core.Where("role", string(role)))
			if err != nil {
				return nil, errors.Wrap(err, "querying users")
			}
			docs = append(docs, byRole...)
		}
		sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	}

	users := make([]user.User, 0, len(docs))
	for _, doc := range docs {
		usr, err := fromUserDoc(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, usr)
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.store.SetDocument(ctx, usersCollection, usr.ID, toUserDoc(usr)); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	if err := repo.store.DeleteDocument(ctx, usersCollection, id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return nil
}
