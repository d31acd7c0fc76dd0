package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/articulacion-api/internal/models"
	appErrors "github.com/noah-isme/articulacion-api/pkg/errors"
)

type liaisonLookup interface {
	ListIDsByLiaison(ctx context.Context, teacherID string) ([]string, error)
}

type studentAccountLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
}

// AccessService resolves the authorization scope of an authenticated caller.
type AccessService struct {
	schools  liaisonLookup
	students studentAccountLookup
	logger   *zap.Logger
}

// NewAccessService constructs AccessService.
func NewAccessService(schools liaisonLookup, students studentAccountLookup, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{schools: schools, students: students, logger: logger}
}

// Resolve turns verified token claims into an Actor.
// Admins see everything, teachers the schools they are liaison of and students their own record.
func (s *AccessService) Resolve(ctx context.Context, claims *models.JWTClaims) (models.Actor, error) {
	if claims == nil || claims.UserID == "" {
		return models.Actor{}, appErrors.ErrUnauthorized
	}
	actor := models.Actor{UserID: claims.UserID, Role: claims.Role}
	switch claims.Role {
	case models.RoleAdmin:
		actor.Scope = models.AccessScope{All: true}
	case models.RoleTeacher:
		schoolIDs, err := s.schools.ListIDsByLiaison(ctx, claims.UserID)
		if err != nil {
			return models.Actor{}, appErrors.Internal(err, "failed to resolve teacher scope")
		}
		actor.Scope = models.AccessScope{SchoolIDs: schoolIDs}
	case models.RoleStudent:
		student, err := s.students.FindByUserID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.Actor{}, appErrors.Clone(appErrors.ErrForbidden, "account has no student profile")
			}
			return models.Actor{}, appErrors.Internal(err, "failed to resolve student scope")
		}
		actor.Scope = models.AccessScope{StudentID: student.ID}
	default:
		s.logger.Warn("unknown role in token", zap.String("user_id", claims.UserID), zap.String("role", string(claims.Role)))
		return models.Actor{}, appErrors.ErrForbidden
	}
	return actor, nil
}
