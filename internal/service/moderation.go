package service

import (
	"errors"

	"github.com/RhaCode/Groci-Smart-sub000/internal/apierror"
	"github.com/RhaCode/Groci-Smart-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Viewer is the caller identity every operation receives from the auth
// layer. The core never reads session state — handlers build a Viewer from
// the JWT claims and pass it explicitly.
type Viewer struct {
	ID        uuid.UUID
	Moderator bool
}

const dateLayout = "2006-01-02"

// requireModerator guards approve/reject/delete operations.
func requireModerator(v Viewer) error {
	if !v.Moderator {
		return apierror.Permission("Moderator role required")
	}
	return nil
}

// checkTransition converts a conditional-update result into the API error
// contract: losing the compare-and-swap means the entity already left the
// pending state, so a second approve fails instead of double-applying.
func checkTransition(rows int64, err error, entity string) error {
	if err != nil {
		return err
	}
	if rows == 0 {
		return apierror.InvalidState("%s is not pending — approve/reject already applied", entity)
	}
	return nil
}

// notFound maps gorm's record-not-found onto the API error taxonomy,
// leaving infrastructure errors untouched for the 500 path.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierror.NotFound(format, args...)
	}
	return err
}

// visibleOrNotFound hides pending/rejected entities from third parties:
// an entity the viewer may not see is indistinguishable from a missing one.
func visibleOrNotFound(m model.Moderation, v Viewer, format string, args ...any) error {
	if !m.VisibleTo(v.ID, v.Moderator) {
		return apierror.NotFound(format, args...)
	}
	return nil
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	pages := int(total) / limit
	if int(total)%limit != 0 {
		pages++
	}
	return pages
}
