package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/vendwatch/vendwatch/internal/identity/domain"
	"github.com/vendwatch/vendwatch/pkg/db"
	"github.com/vendwatch/vendwatch/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node

	users         repository.Repository[domain.User]
	machineGrants repository.Repository[domain.MachineUser]
	productGrants repository.Repository[domain.ProductUser]
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("identity.service"),
		genID: p.GenID,

		users:         repository.ProvideStore[domain.User](p.DB),
		machineGrants: repository.ProvideStore[domain.MachineUser](p.DB),
		productGrants: repository.ProvideStore[domain.ProductUser](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateUserRequest) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, domain.ErrInvalidEmail
	}
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return domain.User{}, domain.ErrInvalidFullName
	}
	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleAdmin && role != domain.RoleUser {
		return domain.User{}, domain.ErrInvalidRole
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:          s.genID.Generate(),
		Email:       email,
		FullName:    fullName,
		Role:        role,
		Permissions: datatypes.NewJSONSlice(req.Permissions),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.User{}, domain.ErrUserExists
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.User, error) {
	if id == 0 {
		return domain.User{}, domain.ErrInvalidUser
	}
	user, err := s.users.FindOne(ctx, &domain.User{ID: id})
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *user, nil
}

func (s *Service) GrantMachine(ctx context.Context, req domain.GrantRequest) error {
	if req.UserID == 0 {
		return domain.ErrInvalidUser
	}
	if req.TargetID == 0 {
		return domain.ErrInvalidTarget
	}
	grant := domain.MachineUser{
		ID:        s.genID.Generate(),
		UserID:    req.UserID,
		MachineID: req.TargetID,
		CreatedAt: time.Now().UTC(),
	}
	err := s.machineGrants.Create(ctx, &grant)
	if db.IsDuplicateKeyErr(err) {
		// Granting twice is a no-op.
		return nil
	}
	return err
}

func (s *Service) RevokeMachine(ctx context.Context, req domain.GrantRequest) error {
	if req.UserID == 0 {
		return domain.ErrInvalidUser
	}
	if req.TargetID == 0 {
		return domain.ErrInvalidTarget
	}
	return s.db.WithContext(ctx).
		Where("user_id = ? AND machine_id = ?", req.UserID, req.TargetID).
		Delete(&domain.MachineUser{}).Error
}

func (s *Service) GrantProduct(ctx context.Context, req domain.GrantRequest) error {
	if req.UserID == 0 {
		return domain.ErrInvalidUser
	}
	if req.TargetID == 0 {
		return domain.ErrInvalidTarget
	}
	grant := domain.ProductUser{
		ID:        s.genID.Generate(),
		UserID:    req.UserID,
		ProductID: req.TargetID,
		CreatedAt: time.Now().UTC(),
	}
	err := s.productGrants.Create(ctx, &grant)
	if db.IsDuplicateKeyErr(err) {
		return nil
	}
	return err
}

func (s *Service) RevokeProduct(ctx context.Context, req domain.GrantRequest) error {
	if req.UserID == 0 {
		return domain.ErrInvalidUser
	}
	if req.TargetID == 0 {
		return domain.ErrInvalidTarget
	}
	return s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", req.UserID, req.TargetID).
		Delete(&domain.ProductUser{}).Error
}

func (s *Service) MachineGrants(ctx context.Context, userID snowflake.ID) ([]snowflake.ID, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	grants, err := s.machineGrants.Find(ctx, &domain.MachineUser{UserID: userID})
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(grants))
	for _, g := range grants {
		ids = append(ids, g.MachineID)
	}
	return ids, nil
}

func (s *Service) ProductGrants(ctx context.Context, userID snowflake.ID) ([]snowflake.ID, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	grants, err := s.productGrants.Find(ctx, &domain.ProductUser{UserID: userID})
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(grants))
	for _, g := range grants {
		ids = append(ids, g.ProductID)
	}
	return ids, nil
}
